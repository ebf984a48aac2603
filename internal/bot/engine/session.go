package engine

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ogettransport/oget-bot/internal/bot"
)

const mailboxSize = 16

type envelope struct {
	ctx context.Context
	upd *bot.Update
}

// session holds one user's conversation state. All fields except
// warned are touched only from the session goroutine.
type session struct {
	engine  *Engine
	userID  int64
	chatID  int64
	mailbox chan envelope

	script   *Script
	step     *Step
	payload  map[string]string
	anchorID int

	// warned is also cleared from the warning-deletion timer.
	warned atomic.Bool
}

func newSession(e *Engine, userID, chatID int64) *session {
	return &session{
		engine:  e,
		userID:  userID,
		chatID:  chatID,
		mailbox: make(chan envelope, mailboxSize),
	}
}

func (s *session) loop() {
	idle := time.NewTimer(s.engine.idleTTL)
	defer idle.Stop()

	for {
		select {
		case env, ok := <-s.mailbox:
			if !ok {
				return
			}
			s.handle(env.ctx, env.upd)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(s.engine.idleTTL)
		case <-idle.C:
			if s.retire() {
				return
			}
			idle.Reset(s.engine.idleTTL)
		}
	}
}

// retire removes a menu-idle session so the per-user goroutine does
// not outlive casual visitors. Sessions mid-script stay; a
// conversation only ends by completion, cancellation, or process
// exit. The anchor id is handed back to the engine so a returning
// user's menu is edited, not re-sent.
func (s *session) retire() bool {
	if s.script != nil {
		return false
	}
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || len(s.mailbox) > 0 {
		return false
	}
	delete(e.sessions, s.userID)
	e.anchors[s.userID] = s.anchorID
	return true
}

func (s *session) handle(ctx context.Context, upd *bot.Update) {
	defer func() {
		if r := recover(); r != nil {
			s.engine.logger.Error("Panic in conversation handler",
				"user_id", s.userID, "panic", fmt.Sprint(r))
			s.goHome(ctx)
		}
	}()

	switch {
	case upd.Message != nil:
		s.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		s.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (s *session) handleMessage(ctx context.Context, msg *bot.Message) {
	if strings.HasPrefix(msg.Text, "/start") {
		if h := s.engine.onStart; h != nil {
			h(ctx, msg.From)
		}
		// A fresh /start gets a fresh anchor at the bottom of the chat.
		if s.anchorID != 0 {
			_ = s.engine.transport.Delete(ctx, s.chatID, s.anchorID)
			s.anchorID = 0
		}
		s.deleteUserMessage(ctx, msg)
		s.goHome(ctx)
		return
	}

	if s.step != nil {
		switch {
		case s.step.Expect == ExpectText && msg.Text != "":
			s.deleteUserMessage(ctx, msg)
			s.advance(ctx, msg.Text)
			return
		case s.step.Expect == ExpectLocation && msg.Location != nil:
			s.deleteUserMessage(ctx, msg)
			s.advance(ctx, fmt.Sprintf("%f,%f", msg.Location.Latitude, msg.Location.Longitude))
			return
		}
	}

	s.rejectStray(ctx, msg)
}

func (s *session) handleCallback(ctx context.Context, cq *bot.CallbackQuery) {
	if err := s.engine.transport.AnswerCallback(ctx, cq.ID, ""); err != nil {
		s.engine.logger.Debug("Answering callback failed", "user_id", s.userID, "error", err)
	}

	// The home button works from every state and wipes any half-done
	// script.
	if cq.Data == HomeData {
		s.goHome(ctx)
		return
	}

	if s.step != nil && s.step.Expect == ExpectCallback {
		s.advance(ctx, cq.Data)
		return
	}

	if h := s.engine.routeFor(cq.Data); h != nil {
		h(s.ctxFor(ctx), cq.Data)
		return
	}

	s.engine.logger.Debug("Unrouted callback", "user_id", s.userID, "data", cq.Data)
}

// advance feeds one accepted input into the current step.
func (s *session) advance(ctx context.Context, input string) {
	c := s.ctxFor(ctx)
	step := s.step

	value := input
	if step.Validate != nil {
		v, err := step.Validate(input)
		if err != nil {
			prompt := step.Render(c)
			prompt.Text = err.Error() + "\n\n" + prompt.Text
			s.showAnchor(ctx, prompt)
			return
		}
		value = v
	}
	if step.Key != "" {
		s.payload[step.Key] = value
	}
	s.engine.metrics.DialogTransitions.Inc()

	next := ""
	if step.Next != nil {
		next = step.Next(c, value)
	}
	if next == "" {
		s.finish(ctx, c)
		return
	}

	nextStep := s.script.step(next)
	if nextStep == nil {
		s.engine.logger.Error("Script step not found",
			"script", s.script.Name, "step", next)
		s.goHome(ctx)
		return
	}
	s.step = nextStep
	s.showAnchor(ctx, nextStep.Render(c))
}

func (s *session) finish(ctx context.Context, c *Ctx) {
	script := s.script
	s.script = nil
	s.step = nil
	s.payload = nil

	if script.OnComplete != nil {
		s.showAnchor(ctx, script.OnComplete(c))
	} else {
		s.goHome(ctx)
	}
}

func (s *session) startScript(ctx context.Context, name string) {
	script, ok := s.engine.scripts[name]
	if !ok {
		s.engine.logger.Error("Unknown script requested", "script", name)
		s.goHome(ctx)
		return
	}
	entry := script.step(script.Entry)
	if entry == nil {
		s.engine.logger.Error("Script has no entry step", "script", name)
		s.goHome(ctx)
		return
	}

	s.script = script
	s.step = entry
	s.payload = make(map[string]string)
	s.showAnchor(ctx, entry.Render(s.ctxFor(ctx)))
}

func (s *session) goHome(ctx context.Context) {
	s.script = nil
	s.step = nil
	s.payload = nil
	if s.engine.home == nil {
		return
	}
	s.showAnchor(ctx, s.engine.home(s.ctxFor(ctx)))
}

// showAnchor edits the anchor in place. When the edit fails (message
// too old, deleted by the user, or unchanged content rejected by the
// platform) the anchor is recreated at the bottom of the chat.
func (s *session) showAnchor(ctx context.Context, v View) {
	if s.anchorID != 0 {
		if err := s.engine.transport.Edit(ctx, s.chatID, s.anchorID, v.Text, v.Keyboard); err == nil {
			return
		}
		_ = s.engine.transport.Delete(ctx, s.chatID, s.anchorID)
	}
	id, err := s.engine.transport.Send(ctx, s.chatID, v.Text, v.Keyboard)
	if err != nil {
		s.engine.logger.Error("Sending anchor failed", "user_id", s.userID, "error", err)
		return
	}
	s.anchorID = id
}

// rejectStray removes an unexpected message and shows at most one
// transient reminder at a time.
func (s *session) rejectStray(ctx context.Context, msg *bot.Message) {
	s.engine.metrics.UnexpectedInputs.Inc()
	s.deleteUserMessage(ctx, msg)

	if !s.warned.CompareAndSwap(false, true) {
		return
	}
	warnID, err := s.engine.transport.Send(ctx, s.chatID,
		"Будь ласка, скористайтеся кнопками під повідомленням.", nil)
	if err != nil {
		s.warned.Store(false)
		return
	}
	time.AfterFunc(s.engine.warnTTL, func() {
		_ = s.engine.transport.Delete(context.Background(), s.chatID, warnID)
		s.warned.Store(false)
	})
}

func (s *session) deleteUserMessage(ctx context.Context, msg *bot.Message) {
	if err := s.engine.transport.Delete(ctx, s.chatID, msg.MessageID); err != nil {
		s.engine.logger.Debug("Deleting user message failed",
			"user_id", s.userID, "message_id", msg.MessageID, "error", err)
	}
}

func (s *session) ctxFor(ctx context.Context) *Ctx {
	payload := s.payload
	if payload == nil {
		payload = make(map[string]string)
	}
	return &Ctx{
		Context: ctx,
		UserID:  s.userID,
		ChatID:  s.chatID,
		Payload: payload,
		session: s,
	}
}
