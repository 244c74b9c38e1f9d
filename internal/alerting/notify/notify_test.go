package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ses"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/segmentio/kafka-go"
)

func TestWebhookChannelPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new webhook channel: %v", err)
	}
	if err := channel.Send(context.Background(), Message{Subject: "alert", Body: "Building A down"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case payload := <-payloadCh:
		if payload.MsgType != "text" {
			t.Fatalf("expected msgtype text, got %s", payload.MsgType)
		}
		if !strings.Contains(payload.Text.Content, "alert") || !strings.Contains(payload.Text.Content, "Building A down") {
			t.Fatalf("unexpected content %q", payload.Text.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for webhook payload")
	}
}

func TestWebhookChannelNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new webhook channel: %v", err)
	}
	if err := channel.Send(context.Background(), Message{Body: "x"}); err == nil {
		t.Fatalf("expected error for 502")
	}
}

type stubSES struct {
	input *ses.SendEmailInput
	err   error
}

func (s *stubSES) SendEmailWithContext(_ aws.Context, input *ses.SendEmailInput, _ ...request.Option) (*ses.SendEmailOutput, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESChannelBuildsEmail(t *testing.T) {
	client := &stubSES{}
	channel, err := NewSESChannelWithClient(client, "alerts@example.com")
	if err != nil {
		t.Fatalf("new ses channel: %v", err)
	}
	msg := Message{Subject: "2 new critical alerts", Body: "body", Recipients: []string{"a@example.com", "b@example.com"}}
	if err := channel.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aws.StringValue(client.input.Source) != "alerts@example.com" {
		t.Fatalf("unexpected source %s", aws.StringValue(client.input.Source))
	}
	to := aws.StringValueSlice(client.input.Destination.ToAddresses)
	if len(to) != 2 || to[0] != "a@example.com" {
		t.Fatalf("unexpected recipients %v", to)
	}
	if aws.StringValue(client.input.Message.Subject.Data) != msg.Subject {
		t.Fatalf("unexpected subject")
	}
	if aws.StringValue(client.input.Message.Body.Text.Data) != "body" {
		t.Fatalf("unexpected body")
	}

	if err := channel.Send(context.Background(), Message{Body: "x"}); err == nil {
		t.Fatalf("expected error without recipients")
	}
	client.err = errors.New("throttled")
	if err := channel.Send(context.Background(), msg); err == nil {
		t.Fatalf("expected client error")
	}
}

type stubWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (s *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func (s *stubWriter) Close() error { return nil }

func TestKafkaChannelPublishesJSON(t *testing.T) {
	writer := &stubWriter{}
	channel, err := NewKafkaChannelWithWriter(writer, "voip.alerts")
	if err != nil {
		t.Fatalf("new kafka channel: %v", err)
	}
	msg := Message{ID: "cycle-1", Subject: "s", Body: "b", Recipients: []string{"ops@example.com"}}
	if err := channel.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(writer.msgs) != 1 || string(writer.msgs[0].Key) != "cycle-1" {
		t.Fatalf("unexpected kafka messages %+v", writer.msgs)
	}
	var decoded Message
	if err := json.Unmarshal(writer.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Body != "b" || len(decoded.Recipients) != 1 {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

type failingChannel struct{}

func (failingChannel) Send(context.Context, Message) error { return errors.New("down") }

type countingChannel struct{ count int }

func (c *countingChannel) Send(context.Context, Message) error {
	c.count++
	return nil
}

func TestMultiChannelJoinsErrors(t *testing.T) {
	ok := &countingChannel{}
	multi := NewMultiChannel(ok, nil, failingChannel{})
	if multi.Len() != 2 {
		t.Fatalf("expected nil channel to be dropped")
	}
	if err := multi.Send(context.Background(), Message{}); err == nil {
		t.Fatalf("expected joined error")
	}
	if ok.count != 1 {
		t.Fatalf("expected healthy channel to still receive the message")
	}
	if err := NewMultiChannel().Send(context.Background(), Message{}); err == nil {
		t.Fatalf("expected error without channels")
	}
}

func TestDefaultTemplateRender(t *testing.T) {
	tpl, err := NewTemplate("", "")
	if err != nil {
		t.Fatalf("new template: %v", err)
	}
	subject, body, err := tpl.Render(TemplateData{
		CycleID:          "c-1",
		GeneratedAt:      "2026-03-09T10:00:00Z",
		Lower:            "10.00",
		Upper:            "25.00",
		CohortLevel:      "warning",
		CohortOffline:    1,
		CohortTotal:      5,
		CohortPercentage: "20.00",
		NewCount:         2,
		Buildings:        []BuildingLine{{ID: "B", Name: "Main Hall", Offline: 3, Total: 10, Percentage: "30.00"}},
		Devices:          []DeviceLine{{ID: "d1", Name: "Lobby phone", Building: "Main Hall"}},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "[VoIP Monitor] 2 new critical alerts" {
		t.Fatalf("unexpected subject %q", subject)
	}
	checks := []string{
		"Critical devices: 1/5 offline (20.00%) - warning",
		"- Main Hall: 3/10 devices offline (30.00%)",
		"- Lobby phone (Main Hall)",
		"Reference: c-1",
	}
	for _, expected := range checks {
		if !strings.Contains(body, expected) {
			t.Fatalf("expected body to include %q, got %s", expected, body)
		}
	}
}

type stubTelegram struct {
	sent []tgbotapi.MessageConfig
	fail int64
}

func (s *stubTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	if msg.ChatID == s.fail {
		return tgbotapi.Message{}, errors.New("chat not found")
	}
	s.sent = append(s.sent, msg)
	return tgbotapi.Message{}, nil
}

func TestTelegramChannelPostsToChats(t *testing.T) {
	bot := &stubTelegram{fail: 99}
	channel, err := NewTelegramChannelWithSender(bot, []int64{11, 99, 12})
	if err != nil {
		t.Fatalf("new telegram channel: %v", err)
	}
	err = channel.Send(context.Background(), Message{Subject: "[VoIP Monitor] 1 new critical alert", Body: "- Main Office: 3/4 devices offline (75%)"})
	if err == nil || !strings.Contains(err.Error(), "chat 99") {
		t.Fatalf("expected failure for chat 99, got %v", err)
	}
	if len(bot.sent) != 2 || bot.sent[0].ChatID != 11 || bot.sent[1].ChatID != 12 {
		t.Fatalf("expected the other chats to be delivered, got %+v", bot.sent)
	}
	if !strings.HasPrefix(bot.sent[0].Text, "[VoIP Monitor]") || !strings.Contains(bot.sent[0].Text, "Main Office") {
		t.Fatalf("unexpected text %q", bot.sent[0].Text)
	}

	if _, err := NewTelegramChannelWithSender(bot, nil); err == nil {
		t.Fatalf("expected error without chats")
	}
}
