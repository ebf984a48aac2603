// Package engine runs per-user conversations as small declarative
// scripts. Each user has exactly one live "anchor" message that the
// engine edits in place as the conversation advances, and a mailbox
// goroutine that serializes that user's updates.
package engine

import (
	"context"

	"github.com/ogettransport/oget-bot/internal/bot"
)

// Expect says what kind of input a step waits for.
type Expect int

const (
	// ExpectCallback waits for an inline button press.
	ExpectCallback Expect = iota
	// ExpectText waits for a free-text message.
	ExpectText
	// ExpectLocation waits for a shared location.
	ExpectLocation
)

// View is what the anchor message shows: text plus an optional inline
// keyboard.
type View struct {
	Text     string
	Keyboard bot.Keyboard
}

// Ctx is handed to every step callback. Payload survives across steps
// of one script run and is dropped when the script finishes or the
// user bails out to the menu.
type Ctx struct {
	Context context.Context
	UserID  int64
	ChatID  int64
	Payload map[string]string

	session *session
}

// Start abandons the current script, if any, and enters the named one.
func (c *Ctx) Start(script string) {
	c.session.startScript(c.Context, script)
}

// Show renders a view into the anchor without changing the step. Used
// by terminal handlers and static screens.
func (c *Ctx) Show(v View) {
	c.session.showAnchor(c.Context, v)
}

// Home resets the conversation to the main menu.
func (c *Ctx) Home() {
	c.session.goHome(c.Context)
}

// Step is one node of a script.
type Step struct {
	ID     string
	Expect Expect

	// Render produces the prompt for this step.
	Render func(c *Ctx) View

	// Key, when set, stores the (validated) input in the payload.
	Key string

	// Validate normalizes free-text input. A returned error's text is
	// shown to the user above the re-rendered prompt. Nil accepts the
	// input verbatim.
	Validate func(input string) (string, error)

	// Next picks the following step from the accepted input. An empty
	// id finishes the script. Nil ends the script after this step.
	Next func(c *Ctx, input string) string
}

// Script is a finite conversation: entry step, step set, and a
// completion handler that produces the final anchor view.
type Script struct {
	Name  string
	Entry string
	Steps []*Step

	// OnComplete runs when a step chain ends. It gets the full payload
	// and returns the view the anchor settles on.
	OnComplete func(c *Ctx) View
}

func (s *Script) step(id string) *Step {
	for _, st := range s.Steps {
		if st.ID == id {
			return st
		}
	}
	return nil
}

// CallbackHandler serves a button press outside any script, e.g. menu
// navigation. data is the full callback payload.
type CallbackHandler func(c *Ctx, data string)
