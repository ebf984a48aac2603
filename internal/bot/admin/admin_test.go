package admin

import (
	"context"
	"errors"
	"sync"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/ogettransport/oget-bot/internal/bot"
	"github.com/ogettransport/oget-bot/internal/common/logger"
	"github.com/ogettransport/oget-bot/internal/metrics"
	"github.com/ogettransport/oget-bot/internal/storage"
)

func TestGateMembership(t *testing.T) {
	g := NewGate(100, []int64{1, 2})

	if !g.IsAdmin(1) || !g.IsAdmin(2) {
		t.Error("configured admins must pass the gate")
	}
	if !g.IsAdmin(100) {
		t.Error("the museum admin is an admin too")
	}
	if g.IsAdmin(3) || g.IsAdmin(0) {
		t.Error("unknown users must not pass the gate")
	}
	if !g.IsMuseumAdmin(100) || g.IsMuseumAdmin(1) {
		t.Error("museum admin check must match only the museum admin id")
	}
}

// countingTransport fails sends to the ids in fail and records the rest.
type countingTransport struct {
	mu      sync.Mutex
	sent    []int64
	fail    map[int64]bool
	maxSeen int
	inUse   int
}

func (c *countingTransport) Send(ctx context.Context, chatID int64, text string, kb bot.Keyboard) (int, error) {
	c.mu.Lock()
	c.inUse++
	if c.inUse > c.maxSeen {
		c.maxSeen = c.inUse
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inUse--
		c.mu.Unlock()
	}()

	if c.fail[chatID] {
		return 0, errors.New("blocked by user")
	}
	c.mu.Lock()
	c.sent = append(c.sent, chatID)
	c.mu.Unlock()
	return int(chatID), nil
}

func (c *countingTransport) Edit(ctx context.Context, chatID int64, messageID int, text string, kb bot.Keyboard) error {
	return nil
}
func (c *countingTransport) Delete(ctx context.Context, chatID int64, messageID int) error {
	return nil
}
func (c *countingTransport) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return nil
}

func newBroadcastFixture(t *testing.T, tr bot.Transport) (*Broadcaster, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	log := logger.New(logger.ParseLogLevel("error"))
	store := storage.New(db, log)
	return NewBroadcaster(tr, store, log, metrics.NewCollector()), mock
}

func TestBroadcastCountsFailures(t *testing.T) {
	tr := &countingTransport{fail: map[int64]bool{2: true, 4: true}}
	b, mock := newBroadcastFixture(t, tr)

	rows := sqlmock.NewRows([]string{"telegram_id"})
	for i := int64(1); i <= 5; i++ {
		rows.AddRow(i)
	}
	mock.ExpectQuery(`SELECT telegram_id FROM users WHERE is_subscribed = 1`).
		WillReturnRows(rows)

	summary, err := b.Broadcast(context.Background(), "depot open day")
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if summary.Total != 5 || summary.Sent != 3 || summary.Failed != 2 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if tr.maxSeen > maxConcurrentSends {
		t.Errorf("concurrency %d exceeded the cap", tr.maxSeen)
	}
}

func TestBroadcastStoreFailure(t *testing.T) {
	tr := &countingTransport{}
	b, mock := newBroadcastFixture(t, tr)

	mock.ExpectQuery(`SELECT telegram_id FROM users WHERE is_subscribed = 1`).
		WillReturnError(errors.New("db locked"))

	if _, err := b.Broadcast(context.Background(), "x"); err == nil {
		t.Error("recipient load failure must surface")
	}
}

func TestNotifyBookingContent(t *testing.T) {
	tr := &countingTransport{}
	n := NewNotifier(tr, 900, logger.New(logger.ParseLogLevel("error")))

	n.NotifyBooking(context.Background(), storage.Booking{
		ID:            7,
		ExcursionDate: "25.11.2025 11:00",
		PeopleCount:   3,
		UserName:      "Olena",
		UserPhone:     "+380931234567",
	})

	if len(tr.sent) != 1 || tr.sent[0] != 900 {
		t.Fatalf("notification must go to the museum admin, sent=%v", tr.sent)
	}
}

func TestNotifyBookingDisabledWithoutAdmin(t *testing.T) {
	tr := &countingTransport{}
	n := NewNotifier(tr, 0, logger.New(logger.ParseLogLevel("error")))

	n.NotifyBooking(context.Background(), storage.Booking{ID: 1})
	if len(tr.sent) != 0 {
		t.Error("no admin configured means no notification")
	}
}
