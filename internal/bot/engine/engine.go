package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ogettransport/oget-bot/internal/bot"
	"github.com/ogettransport/oget-bot/internal/common/logger"
	"github.com/ogettransport/oget-bot/internal/metrics"
)

// HomeData is the reserved callback payload that returns the user to
// the main menu from any state.
const HomeData = "menu:home"

// warningTTL is how long the buttons-only reminder stays visible.
const warningTTL = 5 * time.Second

// sessionIdleTTL is how long a session sitting at the main menu keeps
// its goroutine before retiring.
const sessionIdleTTL = 30 * time.Minute

// StartHook runs on /start before the menu is shown, typically to
// register the user.
type StartHook func(ctx context.Context, u *bot.User)

type callbackRoute struct {
	prefix  string
	handler CallbackHandler
}

// Engine owns the per-user sessions and routes updates into them.
type Engine struct {
	transport bot.Transport
	logger    logger.Logger
	metrics   *metrics.Collector

	scripts map[string]*Script
	routes  []callbackRoute
	home    func(c *Ctx) View
	onStart StartHook
	warnTTL time.Duration
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[int64]*session
	anchors  map[int64]int
	closed   bool
	wg       sync.WaitGroup
}

func New(transport bot.Transport, log logger.Logger, collector *metrics.Collector) *Engine {
	return &Engine{
		transport: transport,
		logger:    log,
		metrics:   collector,
		scripts:   make(map[string]*Script),
		sessions:  make(map[int64]*session),
		anchors:   make(map[int64]int),
		warnTTL:   warningTTL,
		idleTTL:   sessionIdleTTL,
	}
}

// SetWarningTTL overrides how long the buttons-only reminder stays
// visible before it is removed and re-armed.
func (e *Engine) SetWarningTTL(d time.Duration) { e.warnTTL = d }

// SetIdleTTL overrides how long a menu-idle session keeps its
// goroutine before retiring.
func (e *Engine) SetIdleTTL(d time.Duration) { e.idleTTL = d }

// Register adds a script. Panics on duplicate names since scripts are
// wired once at startup.
func (e *Engine) Register(s *Script) {
	if _, dup := e.scripts[s.Name]; dup {
		panic("engine: duplicate script " + s.Name)
	}
	e.scripts[s.Name] = s
}

// HandleCallback routes button presses whose payload starts with
// prefix to h when no script step claims them. Longest prefix wins.
func (e *Engine) HandleCallback(prefix string, h CallbackHandler) {
	e.routes = append(e.routes, callbackRoute{prefix: prefix, handler: h})
}

// SetHome installs the main menu renderer.
func (e *Engine) SetHome(render func(c *Ctx) View) { e.home = render }

// SetStartHook installs the /start side effect.
func (e *Engine) SetStartHook(h StartHook) { e.onStart = h }

// Dispatch hands an update to its user's session. Updates without an
// identifiable user are dropped. Each user's updates are processed
// strictly in order; distinct users run concurrently.
func (e *Engine) Dispatch(ctx context.Context, upd *bot.Update) {
	userID := upd.UserID()
	if userID == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	s, ok := e.sessions[userID]
	if !ok {
		s = newSession(e, userID, upd.ChatID())
		// A retired session's anchor survives so the returning user's
		// menu is edited in place, not duplicated.
		s.anchorID = e.anchors[userID]
		e.sessions[userID] = s
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			s.loop()
		}()
	}

	// The send stays under the lock so Close cannot close the mailbox
	// mid-send. It never blocks: overflow is dropped.
	select {
	case s.mailbox <- envelope{ctx: ctx, upd: upd}:
	default:
		// A user flooding faster than their dialog processes loses the
		// overflow rather than stalling the ingress path.
		e.logger.Warn("Session mailbox full, dropping update", "user_id", userID)
	}
}

// Close stops accepting updates and waits for in-flight ones.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for _, s := range e.sessions {
		close(s.mailbox)
	}
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Engine) routeFor(data string) CallbackHandler {
	var best callbackRoute
	for _, r := range e.routes {
		if strings.HasPrefix(data, r.prefix) && len(r.prefix) > len(best.prefix) {
			best = r
		}
	}
	return best.handler
}
