// Package bot defines the messaging-platform types and the transport
// surface the conversation engine is written against. The concrete
// Telegram client lives in the telegram subpackage; tests and the
// load-test webhook inject updates directly.
package bot

import "context"

// Update mirrors the platform update payload.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// UserID extracts the acting user, or 0 for updates the bot ignores.
func (u *Update) UserID() int64 {
	switch {
	case u.Message != nil && u.Message.From != nil:
		return u.Message.From.ID
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return u.CallbackQuery.From.ID
	default:
		return 0
	}
}

// ChatID extracts the chat the update belongs to. For private bots the
// chat id equals the user id, which is also the webhook form's shape.
func (u *Update) ChatID() int64 {
	switch {
	case u.Message != nil:
		if u.Message.Chat.ID != 0 {
			return u.Message.Chat.ID
		}
		return u.UserID()
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		if u.CallbackQuery.Message.Chat.ID != 0 {
			return u.CallbackQuery.Message.Chat.ID
		}
		return u.UserID()
	default:
		return u.UserID()
	}
}

type Message struct {
	MessageID int       `json:"message_id"`
	From      *User     `json:"from,omitempty"`
	Chat      Chat      `json:"chat"`
	Text      string    `json:"text,omitempty"`
	Location  *Location `json:"location,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from,omitempty"`
	Data    string   `json:"data,omitempty"`
	Message *Message `json:"message,omitempty"`
}

// Button is one inline keyboard button carrying a callback payload.
type Button struct {
	Text string
	Data string
}

// Keyboard is rows of buttons.
type Keyboard [][]Button

// Row builds a single-button row, the most common layout here.
func Row(text, data string) []Button {
	return []Button{{Text: text, Data: data}}
}

// Transport is the reply/edit/delete channel towards the messaging
// platform.
type Transport interface {
	// Send posts a new message and returns its id.
	Send(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error)
	// Edit replaces the text and keyboard of an existing message. It
	// fails when the message is gone or cannot be edited (has media).
	Edit(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	// Delete removes a message.
	Delete(ctx context.Context, chatID int64, messageID int) error
	// AnswerCallback acknowledges a button press.
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}
