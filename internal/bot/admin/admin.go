// Package admin implements admin membership checks, the broadcast
// fan-out and operational notifications to the museum admin.
package admin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ogettransport/oget-bot/internal/bot"
	"github.com/ogettransport/oget-bot/internal/common/logger"
	"github.com/ogettransport/oget-bot/internal/metrics"
	"github.com/ogettransport/oget-bot/internal/storage"
)

// Fan-out caps. Conservative relative to the platform's published
// limits so broadcasts never trip flood control.
const (
	maxConcurrentSends = 20
	messagesPerSecond  = 25
	perMessageTimeout  = 5 * time.Second
)

// Gate answers admin membership questions from the configured id sets.
type Gate struct {
	museumAdminID int64
	admins        map[int64]struct{}
}

func NewGate(museumAdminID int64, adminIDs []int64) *Gate {
	g := &Gate{
		museumAdminID: museumAdminID,
		admins:        make(map[int64]struct{}, len(adminIDs)),
	}
	for _, id := range adminIDs {
		g.admins[id] = struct{}{}
	}
	return g
}

// IsAdmin reports whether the user may open the admin menu. The museum
// admin counts as an admin.
func (g *Gate) IsAdmin(userID int64) bool {
	if userID == g.museumAdminID && userID != 0 {
		return true
	}
	_, ok := g.admins[userID]
	return ok
}

func (g *Gate) IsMuseumAdmin(userID int64) bool {
	return userID != 0 && userID == g.museumAdminID
}

func (g *Gate) MuseumAdminID() int64 { return g.museumAdminID }

// Summary is the result of one broadcast run, reported back to the
// initiating admin.
type Summary struct {
	Total  int
	Sent   int
	Failed int
}

func (s Summary) String() string {
	return fmt.Sprintf("Розсилку завершено: %d отримувачів, надіслано %d, помилок %d.",
		s.Total, s.Sent, s.Failed)
}

// Broadcaster fans a message out to all subscribed users with bounded
// concurrency and a global send-rate cap.
type Broadcaster struct {
	transport bot.Transport
	store     *storage.Store
	limiter   *rate.Limiter
	logger    logger.Logger
	metrics   *metrics.Collector
}

func NewBroadcaster(transport bot.Transport, store *storage.Store, log logger.Logger, collector *metrics.Collector) *Broadcaster {
	return &Broadcaster{
		transport: transport,
		store:     store,
		limiter:   rate.NewLimiter(rate.Limit(messagesPerSecond), messagesPerSecond),
		logger:    log,
		metrics:   collector,
	}
}

// Broadcast sends text to every subscribed user. Individual failures
// are counted, not retried; a blocked user is not an error worth a
// retry. Cancelling ctx stops the fan-out after in-flight sends.
func (b *Broadcaster) Broadcast(ctx context.Context, text string) (Summary, error) {
	ids, err := b.store.SubscribedUserIDs(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("loading recipients: %w", err)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		sem    = make(chan struct{}, maxConcurrentSends)
		result = Summary{Total: len(ids)}
	)

	for _, id := range ids {
		if err := b.limiter.Wait(ctx); err != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			defer func() { <-sem }()

			sendCtx, cancel := context.WithTimeout(ctx, perMessageTimeout)
			defer cancel()
			_, err := b.transport.Send(sendCtx, userID, text, nil)

			mu.Lock()
			if err != nil {
				result.Failed++
			} else {
				result.Sent++
			}
			mu.Unlock()

			if err != nil {
				b.logger.Debug("Broadcast send failed", "user_id", userID, "error", err)
			}
		}(id)
	}
	wg.Wait()

	if result.Failed > 0 {
		b.metrics.BroadcastMessages.WithLabelValues("error").Add(float64(result.Failed))
	}
	b.metrics.BroadcastMessages.WithLabelValues("ok").Add(float64(result.Sent))
	b.logger.Info("Broadcast finished",
		"total", result.Total, "sent", result.Sent, "failed", result.Failed)
	return result, nil
}

// BroadcastAndReport runs Broadcast and drops a summary message into
// the initiating admin's chat when done. Meant to run in its own
// goroutine so the admin's dialog is not blocked for the whole fan-out.
func (b *Broadcaster) BroadcastAndReport(ctx context.Context, text string, reportTo int64) {
	summary, err := b.Broadcast(ctx, text)
	msg := summary.String()
	if err != nil {
		msg = "Не вдалося виконати розсилку. Спробуйте пізніше."
	}
	if _, err := b.transport.Send(ctx, reportTo, msg, nil); err != nil {
		b.logger.Warn("Broadcast summary delivery failed", "admin_id", reportTo, "error", err)
	}
}

// Notifier pushes operational events to the museum admin's chat.
type Notifier struct {
	transport bot.Transport
	adminID   int64
	logger    logger.Logger
}

func NewNotifier(transport bot.Transport, museumAdminID int64, log logger.Logger) *Notifier {
	return &Notifier{transport: transport, adminID: museumAdminID, logger: log}
}

// NotifyBooking tells the museum admin about a fresh booking. Failures
// are logged only; the booking itself is already persisted.
func (n *Notifier) NotifyBooking(ctx context.Context, b storage.Booking) {
	if n.adminID == 0 {
		return
	}
	text := fmt.Sprintf(
		"Нове бронювання екскурсії\nДата: %s\nКількість осіб: %d\nІм'я: %s\nТелефон: %s",
		b.ExcursionDate, b.PeopleCount, b.UserName, b.UserPhone)
	if _, err := n.transport.Send(ctx, n.adminID, text, nil); err != nil {
		n.logger.Warn("Museum admin notification failed",
			"booking_id", b.ID, "error", err)
	}
}
