// Package telegram adapts the Bot API client to the transport surface
// the engine consumes and converts incoming updates to the internal
// shape.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ogettransport/oget-bot/internal/bot"
	"github.com/ogettransport/oget-bot/internal/common/logger"
)

const longPollTimeout = 30 // seconds

// Client implements bot.Transport over the Telegram Bot API. The
// underlying library is not context-aware; contexts bound the caller's
// patience, not the HTTP call.
type Client struct {
	api    *tgbotapi.BotAPI
	logger logger.Logger
}

func New(token string, log logger.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating bot api client: %w", err)
	}
	log.Info("Messaging transport ready", "bot_username", api.Self.UserName)
	return &Client{api: api, logger: log}, nil
}

func (c *Client) Send(ctx context.Context, chatID int64, text string, kb bot.Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb != nil {
		msg.ReplyMarkup = toMarkup(kb)
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("sending message to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

func (c *Client) Edit(ctx context.Context, chatID int64, messageID int, text string, kb bot.Keyboard) error {
	var edit tgbotapi.Chattable
	if kb != nil {
		e := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, toMarkup(kb))
		edit = e
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	if _, err := c.api.Send(edit); err != nil {
		return fmt.Errorf("editing message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, chatID int64, messageID int) error {
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("deleting message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answering callback %s: %w", callbackID, err)
	}
	return nil
}

// Updates long-polls for updates and converts them until ctx is
// cancelled.
func (c *Client) Updates(ctx context.Context) <-chan *bot.Update {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = longPollTimeout

	src := c.api.GetUpdatesChan(cfg)
	out := make(chan *bot.Update)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				c.api.StopReceivingUpdates()
				return
			case upd, ok := <-src:
				if !ok {
					return
				}
				converted := convert(upd)
				if converted == nil {
					continue
				}
				select {
				case out <- converted:
				case <-ctx.Done():
					c.api.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out
}

func toMarkup(kb bot.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func convert(u tgbotapi.Update) *bot.Update {
	out := &bot.Update{UpdateID: int64(u.UpdateID)}
	switch {
	case u.Message != nil:
		out.Message = convertMessage(u.Message)
	case u.CallbackQuery != nil:
		cq := &bot.CallbackQuery{
			ID:   u.CallbackQuery.ID,
			Data: u.CallbackQuery.Data,
		}
		if u.CallbackQuery.From != nil {
			cq.From = convertUser(u.CallbackQuery.From)
		}
		if u.CallbackQuery.Message != nil {
			cq.Message = convertMessage(u.CallbackQuery.Message)
		}
		out.CallbackQuery = cq
	default:
		return nil
	}
	return out
}

func convertMessage(m *tgbotapi.Message) *bot.Message {
	msg := &bot.Message{
		MessageID: m.MessageID,
		Text:      m.Text,
	}
	if m.From != nil {
		msg.From = convertUser(m.From)
	}
	if m.Chat != nil {
		msg.Chat = bot.Chat{ID: m.Chat.ID}
	}
	if m.Location != nil {
		msg.Location = &bot.Location{
			Latitude:  m.Location.Latitude,
			Longitude: m.Location.Longitude,
		}
	}
	return msg
}

func convertUser(u *tgbotapi.User) *bot.User {
	return &bot.User{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
	}
}
