package tickets

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/ogettransport/oget-bot/internal/common/logger"
	"github.com/ogettransport/oget-bot/internal/metrics"
	"github.com/ogettransport/oget-bot/internal/sheets"
	"github.com/ogettransport/oget-bot/internal/storage"
)

// Payload carries the user-submitted fields of one feedback ticket.
type Payload struct {
	Text      string
	Route     string
	Board     string
	EventTime string
	Name      string
	Phone     string
	Email     string
}

// Result is what the dialog shows the user after submission.
type Result struct {
	OK       bool
	TicketID string
	Message  string
}

// SheetWriter is the slice of the spreadsheet adapter the service
// needs.
type SheetWriter interface {
	Append(ctx context.Context, sheet string, row []interface{}) error
}

// Resyncer may push spreadsheet rows that failed their first append.
// The default implementation does nothing; the interface exists so an
// operator-run job can be slotted in.
type Resyncer interface {
	Resync(ctx context.Context) error
}

// NoopResyncer is the default Resyncer.
type NoopResyncer struct{}

func (NoopResyncer) Resync(ctx context.Context) error { return nil }

// Service creates identified feedback records. The local store is the
// source of user-visible success; the spreadsheet append is
// best-effort.
type Service struct {
	store   *storage.Store
	sheet   SheetWriter
	logger  logger.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

func NewService(store *storage.Store, sheet SheetWriter, log logger.Logger, collector *metrics.Collector) *Service {
	return &Service{
		store:   store,
		sheet:   sheet,
		logger:  log,
		metrics: collector,
		now:     time.Now,
	}
}

func (s *Service) CreateComplaint(ctx context.Context, userID int64, p Payload) Result {
	return s.create(ctx, userID, storage.CategoryComplaint, sheets.SheetComplaints, p)
}

func (s *Service) CreateThanks(ctx context.Context, userID int64, p Payload) Result {
	return s.create(ctx, userID, storage.CategoryThanks, sheets.SheetThanks, p)
}

func (s *Service) CreateSuggestion(ctx context.Context, userID int64, p Payload) Result {
	return s.create(ctx, userID, storage.CategorySuggestion, sheets.SheetSuggestions, p)
}

func (s *Service) create(ctx context.Context, userID int64, category storage.FeedbackCategory, sheet string, p Payload) Result {
	now := s.now()
	ticketID := NewTicketID(now)

	record := storage.Feedback{
		TicketID:  ticketID,
		Category:  category,
		Text:      p.Text,
		Route:     p.Route,
		Board:     p.Board,
		UserID:    userID,
		UserName:  p.Name,
		UserPhone: p.Phone,
		UserEmail: p.Email,
	}
	if err := s.store.InsertFeedback(ctx, record); err != nil {
		s.logger.Error("Feedback insert failed", "ticket_id", ticketID, "error", err)
		return Result{OK: false, Message: "Вибачте, сталася помилка. Спробуйте пізніше."}
	}

	// Columns A-J: ticket id, created, category, route, board, event
	// time, text, name, phone, email.
	row := []interface{}{
		ticketID,
		now.Format("02.01.2006 15:04"),
		string(category),
		p.Route,
		p.Board,
		p.EventTime,
		p.Text,
		p.Name,
		p.Phone,
		p.Email,
	}
	if err := s.sheet.Append(ctx, sheet, row); err != nil {
		// The local row exists, so the ticket is valid; the append is
		// retried later by the resync hook if one is installed.
		s.logger.Warn("Sheet append failed, ticket remains local-only",
			"ticket_id", ticketID, "sheet", sheet, "error", err)
	}

	s.metrics.TicketsCreated.WithLabelValues(string(category)).Inc()
	s.logger.Info("Ticket created", "ticket_id", ticketID, "category", category)

	return Result{
		OK:       true,
		TicketID: ticketID,
		Message:  fmt.Sprintf("Дякуємо! Ваше звернення зареєстровано.\nНомер звернення: %s", ticketID),
	}
}

// Issued ids are remembered for the life of the process. 24 random
// bits alone collide well within a day's volume (birthday bound), and
// the ticket_id column is UNIQUE, so a repeat would fail a valid
// submission.
var (
	issuedMu    sync.Mutex
	issued      = make(map[string]struct{})
	fallbackSeq uint32
)

// NewTicketID produces `CMP-YYYYMMDD-XXXXXX` with a random uppercase
// hex suffix, unique per process lifetime: collisions are re-drawn.
func NewTicketID(now time.Time) string {
	date := now.Format("20060102")

	issuedMu.Lock()
	defer issuedMu.Unlock()
	for {
		id := fmt.Sprintf("CMP-%s-%06X", date, randomSuffix())
		if _, dup := issued[id]; dup {
			continue
		}
		issued[id] = struct{}{}
		return id
	}
}

// randomSuffix returns 24 random bits. Callers hold issuedMu, which
// also guards the sequential fallback for the never-in-practice case
// of crypto/rand failing.
func randomSuffix() uint32 {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		fallbackSeq++
		return fallbackSeq & 0xFFFFFF
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
