package tickets

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/ogettransport/oget-bot/internal/common/logger"
	"github.com/ogettransport/oget-bot/internal/metrics"
	"github.com/ogettransport/oget-bot/internal/storage"
)

var ticketIDPattern = regexp.MustCompile(`^CMP-\d{8}-[0-9A-F]{6}$`)

func TestNewTicketIDFormat(t *testing.T) {
	id := NewTicketID(time.Date(2025, 10, 28, 14, 30, 0, 0, time.UTC))
	if !ticketIDPattern.MatchString(id) {
		t.Errorf("ticket id %q does not match the format", id)
	}
	if id[4:12] != "20251028" {
		t.Errorf("expected date prefix 20251028, got %s", id[4:12])
	}
}

func TestNewTicketIDUniqueness(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping uniqueness sweep in short mode")
	}
	now := time.Now()
	seen := make(map[string]struct{}, 1_000_000)
	for i := 0; i < 1_000_000; i++ {
		id := NewTicketID(now)
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ticket id after %d creations: %s", i, id)
		}
		seen[id] = struct{}{}
	}
}

type recordingSheet struct {
	rows map[string][][]interface{}
	err  error
}

func (r *recordingSheet) Append(ctx context.Context, sheet string, row []interface{}) error {
	if r.err != nil {
		return r.err
	}
	if r.rows == nil {
		r.rows = make(map[string][][]interface{})
	}
	r.rows[sheet] = append(r.rows[sheet], row)
	return nil
}

func newTestService(t *testing.T, sheet SheetWriter) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	log := logger.New(logger.ParseLogLevel("error"))
	store := storage.New(db, log)
	svc := NewService(store, sheet, log, metrics.NewCollector())
	svc.now = func() time.Time { return time.Date(2025, 10, 28, 14, 30, 0, 0, time.UTC) }
	return svc, mock
}

func TestCreateComplaintHappyPath(t *testing.T) {
	sheet := &recordingSheet{}
	svc, mock := newTestService(t, sheet)

	mock.ExpectExec(`INSERT INTO feedback`).WillReturnResult(sqlmock.NewResult(1, 1))

	res := svc.CreateComplaint(context.Background(), 42, Payload{
		Text:      "door failed to open",
		Route:     "5",
		Board:     "4321",
		EventTime: "28.10.2025 14:30",
		Name:      "Ivan Petrov",
		Phone:     "+380501112233",
	})

	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if !ticketIDPattern.MatchString(res.TicketID) {
		t.Errorf("bad ticket id: %s", res.TicketID)
	}

	rows := sheet.rows["Скарги"]
	if len(rows) != 1 {
		t.Fatalf("expected one row appended to Скарги, got %d", len(rows))
	}
	row := rows[0]
	if len(row) != 10 {
		t.Fatalf("expected columns A-J (10 values), got %d", len(row))
	}
	if row[0] != res.TicketID || row[3] != "5" || row[4] != "4321" || row[6] != "door failed to open" {
		t.Errorf("unexpected row content: %v", row)
	}
}

func TestCreateSuggestionSurvivesSheetOutage(t *testing.T) {
	sheet := &recordingSheet{err: errors.New("HTTP 500")}
	svc, mock := newTestService(t, sheet)

	mock.ExpectExec(`INSERT INTO feedback`).WillReturnResult(sqlmock.NewResult(1, 1))

	res := svc.CreateSuggestion(context.Background(), 42, Payload{
		Text:  "more night routes",
		Name:  "Olena",
		Phone: "+380931234567",
	})

	if !res.OK {
		t.Error("suggestion must succeed when the local store succeeded")
	}
	if res.TicketID == "" {
		t.Error("ticket id must still be produced")
	}
}

func TestCreateFailsWhenStoreFails(t *testing.T) {
	sheet := &recordingSheet{}
	svc, mock := newTestService(t, sheet)

	mock.ExpectExec(`INSERT INTO feedback`).WillReturnError(errors.New("disk full"))

	res := svc.CreateThanks(context.Background(), 42, Payload{Text: "great driver"})
	if res.OK {
		t.Error("store failure must fail the operation")
	}
	if len(sheet.rows) != 0 {
		t.Error("no sheet row must be appended when the store write failed")
	}
}
