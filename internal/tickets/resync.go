package tickets

import (
	"context"

	"github.com/ogettransport/oget-bot/internal/common/logger"
	"github.com/ogettransport/oget-bot/internal/sheets"
	"github.com/ogettransport/oget-bot/internal/storage"
)

// BookingResyncer pushes bookings whose first spreadsheet append
// failed. It is safe to run repeatedly; synced rows are skipped by the
// pending filter.
type BookingResyncer struct {
	store  *storage.Store
	sheet  SheetWriter
	logger logger.Logger
}

func NewBookingResyncer(store *storage.Store, sheet SheetWriter, log logger.Logger) *BookingResyncer {
	return &BookingResyncer{store: store, sheet: sheet, logger: log}
}

func (r *BookingResyncer) Resync(ctx context.Context) error {
	pending, err := r.store.PendingBookings(ctx)
	if err != nil {
		return err
	}
	for _, b := range pending {
		row := []interface{}{
			b.ExcursionDate,
			b.PeopleCount,
			b.UserName,
			b.UserPhone,
			b.CreatedAt.Format("02.01.2006 15:04"),
		}
		if err := r.sheet.Append(ctx, sheets.SheetBookings, row); err != nil {
			// Keep going; the outage may clear mid-run and every synced
			// row is one fewer to retry.
			r.logger.Warn("Booking resync append failed", "booking_id", b.ID, "error", err)
			continue
		}
		if err := r.store.MarkBookingSynced(ctx, b.ID); err != nil {
			r.logger.Warn("Booking resync mark failed", "booking_id", b.ID, "error", err)
		}
	}
	if len(pending) > 0 {
		r.logger.Info("Booking resync pass finished", "pending", len(pending))
	}
	return nil
}
