// Package notify forwards presence events to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"scanner/internal/config"
	"scanner/internal/model"
)

// sendTimeout bounds one Bot API request
const sendTimeout = 10 * time.Second

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends one chat message per event. Messages over the
// configured rate are dropped so a burst of joins never stalls the poll loop.
type TelegramNotifier struct {
	bot     sender
	chatID  int64
	limiter *rate.Limiter
}

// NewTelegramNotifier returns nil when the bot is not configured
func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, &http.Client{Timeout: sendTimeout})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}

	log.Info().Str("bot", bot.Self.UserName).Int64("chat_id", cfg.ChatID).Msg("Telegram notifier initialized")
	return newTelegramNotifier(bot, cfg.ChatID, cfg.MessagesPerMinute), nil
}

func newTelegramNotifier(bot sender, chatID int64, perMinute int) *TelegramNotifier {
	if perMinute <= 0 {
		perMinute = 20
	}
	return &TelegramNotifier{
		bot:     bot,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

// PublishEvent returns when the message is sent or ctx is done, whichever
// comes first. An abandoned send still ends within sendTimeout.
func (t *TelegramNotifier) PublishEvent(ctx context.Context, event model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !t.limiter.Allow() {
		log.Warn().
			Str("event_type", string(event.Kind)).
			Str("player_id", event.PlayerID.String()).
			Msg("Telegram rate limit reached, dropping notification")
		return nil
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatEvent(event))
	result := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(msg)
		result <- err
	}()

	select {
	case err := <-result:
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram send: %w", ctx.Err())
	}
}

// FormatEvent renders the chat message for event
func FormatEvent(event model.Event) string {
	at := event.Timestamp.UTC().Format("15:04:05 MST")
	switch event.Kind {
	case model.NEW_PLAYER:
		return fmt.Sprintf("New player: %s first seen at %s", event.PlayerName, at)
	case model.PLAYER_JOIN:
		return fmt.Sprintf("%s joined at %s", event.PlayerName, at)
	case model.PLAYER_LEAVE:
		return fmt.Sprintf("%s left at %s", event.PlayerName, at)
	default:
		return fmt.Sprintf("%s: %s at %s", event.Kind, event.PlayerName, at)
	}
}
