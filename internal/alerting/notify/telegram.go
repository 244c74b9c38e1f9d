package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender is the subset of the bot API used for delivery.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel posts messages to fixed operator chats.
type TelegramChannel struct {
	bot     TelegramSender
	chatIDs []int64
}

// NewTelegramChannel logs in with a bot token.
func NewTelegramChannel(token string, chatIDs []int64) (*TelegramChannel, error) {
	if token == "" {
		return nil, errors.New("telegram channel: empty token")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram channel: %w", err)
	}
	return NewTelegramChannelWithSender(bot, chatIDs)
}

// NewTelegramChannelWithSender wraps an existing bot.
func NewTelegramChannelWithSender(bot TelegramSender, chatIDs []int64) (*TelegramChannel, error) {
	if bot == nil {
		return nil, errors.New("telegram channel: nil bot")
	}
	if len(chatIDs) == 0 {
		return nil, errors.New("telegram channel: no chats")
	}
	return &TelegramChannel{bot: bot, chatIDs: append([]int64(nil), chatIDs...)}, nil
}

// Send posts the message to every chat. Failures are joined.
func (t *TelegramChannel) Send(ctx context.Context, msg Message) error {
	if t == nil || t.bot == nil {
		return errors.New("telegram channel: nil bot")
	}
	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}
	var errs []error
	for _, chatID := range t.chatIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			errs = append(errs, fmt.Errorf("telegram channel: chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}
