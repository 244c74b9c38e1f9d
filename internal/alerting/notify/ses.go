package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
)

const charsetUTF8 = "UTF-8"

// SESClient is the subset of the SES API used for delivery.
type SESClient interface {
	SendEmailWithContext(ctx aws.Context, input *ses.SendEmailInput, opts ...request.Option) (*ses.SendEmailOutput, error)
}

// SESChannel sends messages as plain text e-mail through Amazon SES.
type SESChannel struct {
	client SESClient
	sender string
}

// NewSESChannel builds an SES client for region.
func NewSESChannel(region, sender string) (*SESChannel, error) {
	if region == "" {
		return nil, errors.New("ses channel: empty region")
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("ses channel: session: %w", err)
	}
	return NewSESChannelWithClient(ses.New(sess), sender)
}

// NewSESChannelWithClient wraps an existing client.
func NewSESChannelWithClient(client SESClient, sender string) (*SESChannel, error) {
	if client == nil {
		return nil, errors.New("ses channel: nil client")
	}
	if sender == "" {
		return nil, errors.New("ses channel: empty sender")
	}
	return &SESChannel{client: client, sender: sender}, nil
}

// Send delivers one e-mail addressed to every recipient.
func (s *SESChannel) Send(ctx context.Context, msg Message) error {
	if s == nil || s.client == nil {
		return errors.New("ses channel: nil client")
	}
	if len(msg.Recipients) == 0 {
		return errors.New("ses channel: no recipients")
	}
	input := &ses.SendEmailInput{
		Source: aws.String(s.sender),
		Destination: &ses.Destination{
			ToAddresses: aws.StringSlice(msg.Recipients),
		},
		Message: &ses.Message{
			Subject: &ses.Content{Charset: aws.String(charsetUTF8), Data: aws.String(msg.Subject)},
			Body: &ses.Body{
				Text: &ses.Content{Charset: aws.String(charsetUTF8), Data: aws.String(msg.Body)},
			},
		},
	}
	if _, err := s.client.SendEmailWithContext(ctx, input); err != nil {
		return fmt.Errorf("ses channel: %w", err)
	}
	return nil
}
