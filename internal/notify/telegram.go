package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender is the part of tgbotapi.BotAPI the channel needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel posts alerts into a restaurant's chat.
type TelegramChannel struct {
	bot TelegramSender
}

func NewTelegramChannel(bot TelegramSender) *TelegramChannel {
	return &TelegramChannel{bot: bot}
}

func (c *TelegramChannel) Name() string { return ChannelTelegram }

func (c *TelegramChannel) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(msg.Recipient, 10, 64)
	if err != nil {
		return Permanent(fmt.Errorf("invalid chat id %q", msg.Recipient))
	}

	_, err = c.bot.Send(tgbotapi.NewMessage(chatID, msg.Body))
	if err == nil {
		return nil
	}

	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		switch tgErr.Code {
		case 429:
			return &RetryAfterError{Err: err, After: time.Duration(tgErr.RetryAfter) * time.Second}
		case 400, 403:
			// bad request or bot removed from the chat
			return Permanent(err)
		}
	}
	return err
}
