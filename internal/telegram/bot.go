// Package telegram adapts the Telegram Bot API to the booking flow: it turns
// inbound commands, button presses and free text into state machine actions
// and renders the replies.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/beryozskin/studio-bot/pkg/logging"
)

// Transport is the outbound surface the handler renders through. Carved out
// of the bot so handler tests can run against a fake.
type Transport interface {
	SendMessage(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(callbackID, text string) error
}

// Bot wraps the Telegram API client and runs the long-polling update loop.
type Bot struct {
	api        *tgbotapi.BotAPI
	dispatcher *Dispatcher
	logger     *logging.Logger
}

// NewBot authorizes against the Telegram API.
func NewBot(token string, logger *logging.Logger) (*Bot, error) {
	if logger == nil {
		logger = logging.Default()
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: authorize: %w", err)
	}
	logger.Info("telegram bot authorized", "username", api.Self.UserName)
	return &Bot{
		api:        api,
		dispatcher: NewDispatcher(),
		logger:     logger,
	}, nil
}

// SetCommands registers the command menu shown by Telegram clients.
func (b *Bot) SetCommands() error {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Main menu"},
		tgbotapi.BotCommand{Command: "my_bookings", Description: "My bookings"},
	)
	if _, err := b.api.Request(cmds); err != nil {
		return fmt.Errorf("telegram: set commands: %w", err)
	}
	return nil
}

// Run consumes updates until ctx is cancelled. Updates for the same user are
// handled in order; distinct users are handled concurrently.
func (b *Bot) Run(ctx context.Context, handler *Handler) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			userID := updateUserID(update)
			if userID == 0 {
				continue
			}
			go b.dispatcher.Do(userID, func() {
				handler.HandleUpdate(ctx, update)
			})
		}
	}
}

// SendMessage sends text with an optional inline keyboard.
func (b *Bot) SendMessage(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

// EditMessage replaces a previously sent message in place.
func (b *Bot) EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	var edit tgbotapi.EditMessageTextConfig
	if keyboard != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *keyboard)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	if _, err := b.api.Send(edit); err != nil {
		return fmt.Errorf("telegram: edit message: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges a button press, optionally with an alert text.
func (b *Bot) AnswerCallback(callbackID, text string) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(cb); err != nil {
		return fmt.Errorf("telegram: answer callback: %w", err)
	}
	return nil
}

// SendText implements notify.Sender for operator notifications.
func (b *Bot) SendText(_ context.Context, chatID int64, text string) error {
	return b.SendMessage(chatID, text, nil)
}

func updateUserID(update tgbotapi.Update) int64 {
	if update.CallbackQuery != nil && update.CallbackQuery.From != nil {
		return update.CallbackQuery.From.ID
	}
	if update.Message != nil && update.Message.From != nil {
		return update.Message.From.ID
	}
	return 0
}
