package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ogettransport/oget-bot/internal/common/logger"
)

// User is a messaging-platform user known to the bot.
type User struct {
	TelegramID   int64
	Username     string
	FirstName    string
	IsSubscribed bool
	CreatedAt    time.Time
}

// FeedbackCategory enumerates the kinds of feedback tickets.
type FeedbackCategory string

const (
	CategoryComplaint  FeedbackCategory = "complaint"
	CategoryThanks     FeedbackCategory = "thanks"
	CategorySuggestion FeedbackCategory = "suggestion"
)

// Feedback is one user-submitted ticket. Status is mutated only by
// admin tooling; the bot always writes 'new'.
type Feedback struct {
	ID        int64
	TicketID  string
	Category  FeedbackCategory
	Text      string
	Route     string
	Board     string
	UserID    int64
	UserName  string
	UserPhone string
	UserEmail string
	Status    string
	CreatedAt time.Time
}

// SyncState of a booking relative to the spreadsheet of record.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
)

// Booking is one museum excursion booking.
type Booking struct {
	ID            int64
	ExcursionDate string
	PeopleCount   int
	UserName      string
	UserPhone     string
	SyncState     string
	CreatedAt     time.Time
}

// Store gives relational persistence for users, subscriptions,
// bookings and feedback. Every write commits per operation.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{db: db, logger: log}
}

// UpsertUser registers a user on first contact and refreshes the
// display fields on subsequent contacts. Keys on telegram_id.
func (s *Store) UpsertUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, username, first_name)
		VALUES (?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name`,
		u.TelegramID, u.Username, u.FirstName)
	if err != nil {
		return fmt.Errorf("upserting user %d: %w", u.TelegramID, err)
	}
	return nil
}

// SetSubscribed flips the broadcast opt-in flag.
func (s *Store) SetSubscribed(ctx context.Context, telegramID int64, subscribed bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_subscribed = ? WHERE telegram_id = ?`,
		subscribed, telegramID)
	if err != nil {
		return fmt.Errorf("setting subscription for %d: %w", telegramID, err)
	}
	return nil
}

// SubscribedUserIDs lists all broadcast recipients.
func (s *Store) SubscribedUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT telegram_id FROM users WHERE is_subscribed = 1`)
	if err != nil {
		return nil, fmt.Errorf("listing subscribed users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertFeedback stores a new ticket with status 'new'.
func (s *Store) InsertFeedback(ctx context.Context, f Feedback) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (ticket_id, category, text, route, board, user_id, user_name, user_phone, user_email)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.TicketID, string(f.Category), f.Text, f.Route, f.Board,
		f.UserID, f.UserName, f.UserPhone, f.UserEmail)
	if err != nil {
		return fmt.Errorf("inserting feedback %s: %w", f.TicketID, err)
	}
	return nil
}

// FeedbackByTicketID fetches one ticket.
func (s *Store) FeedbackByTicketID(ctx context.Context, ticketID string) (*Feedback, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ticket_id, category, text, route, board, user_id, user_name, user_phone, user_email, status, created_at
		FROM feedback WHERE ticket_id = ?`, ticketID)

	var f Feedback
	var category, createdAt string
	if err := row.Scan(&f.ID, &f.TicketID, &category, &f.Text, &f.Route, &f.Board,
		&f.UserID, &f.UserName, &f.UserPhone, &f.UserEmail, &f.Status, &createdAt); err != nil {
		return nil, fmt.Errorf("fetching feedback %s: %w", ticketID, err)
	}
	f.Category = FeedbackCategory(category)
	f.CreatedAt = parseDBTime(createdAt)
	return &f, nil
}

// parseDBTime parses SQLite's datetime('now') text representation.
func parseDBTime(value string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// InsertBooking stores a booking in sync_state 'pending' and returns
// its id.
func (s *Store) InsertBooking(ctx context.Context, b Booking) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO museum_bookings (excursion_date, people_count, user_name, user_phone)
		VALUES (?, ?, ?, ?)`,
		b.ExcursionDate, b.PeopleCount, b.UserName, b.UserPhone)
	if err != nil {
		return 0, fmt.Errorf("inserting booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading booking id: %w", err)
	}
	return id, nil
}

// BookingByID fetches one booking.
func (s *Store) BookingByID(ctx context.Context, id int64) (*Booking, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, excursion_date, people_count, user_name, user_phone, sync_state, created_at
		FROM museum_bookings WHERE id = ?`, id)

	var b Booking
	var createdAt string
	if err := row.Scan(&b.ID, &b.ExcursionDate, &b.PeopleCount, &b.UserName,
		&b.UserPhone, &b.SyncState, &createdAt); err != nil {
		return nil, fmt.Errorf("fetching booking %d: %w", id, err)
	}
	b.CreatedAt = parseDBTime(createdAt)
	return &b, nil
}

// MarkBookingSynced records a successful spreadsheet append.
func (s *Store) MarkBookingSynced(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE museum_bookings SET sync_state = ? WHERE id = ?`, SyncSynced, id)
	if err != nil {
		return fmt.Errorf("marking booking %d synced: %w", id, err)
	}
	return nil
}

// PendingBookings lists bookings whose spreadsheet append has not yet
// succeeded, for the background resync hook.
func (s *Store) PendingBookings(ctx context.Context) ([]Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, excursion_date, people_count, user_name, user_phone, sync_state, created_at
		FROM museum_bookings WHERE sync_state = ?`, SyncPending)
	if err != nil {
		return nil, fmt.Errorf("listing pending bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		var createdAt string
		if err := rows.Scan(&b.ID, &b.ExcursionDate, &b.PeopleCount, &b.UserName,
			&b.UserPhone, &b.SyncState, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}
		b.CreatedAt = parseDBTime(createdAt)
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
