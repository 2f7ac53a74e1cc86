// Package notify pushes new-booking alerts to the salon's managers.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"flawless/internal/events"
)

// TelegramNotifier sends booking notifications to manager chats.
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
	logger  *zerolog.Logger
}

// NewTelegramNotifier creates a notifier; returns an error if the token
// is rejected by the Telegram API.
func NewTelegramNotifier(token string, chatIDs []int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, logger: logger}, nil
}

// Subscribe registers the notifier on the event bus.
func (n *TelegramNotifier) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.BookingCreated, n.onBookingCreated)
}

func (n *TelegramNotifier) onBookingCreated(event events.Event) {
	b := event.Booking
	if b == nil {
		return
	}

	text := fmt.Sprintf(
		"New booking #%d\nService: %s\nDate: %s %s\nCustomer: %s (%s)\nAmount: ₹%.0f",
		b.ID, b.ServiceName, b.BookingDate, b.BookingTime,
		b.CustomerName, b.CustomerPhone, b.TotalAmount,
	)

	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send booking notification")
		}
	}
}
