package sheets

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/ogettransport/oget-bot/internal/common/logger"
	"github.com/ogettransport/oget-bot/internal/common/workerpool"
	"github.com/ogettransport/oget-bot/internal/metrics"
)

// Well-known sheet names in the organization's spreadsheet of record.
const (
	SheetComplaints  = "Скарги"
	SheetSuggestions = "Пропозиції"
	SheetThanks      = "Подяки"
	SheetMuseumDates = "MuseumDates"
	SheetBookings    = "MuseumBookings"
)

// valuesAPI is the minimal surface of the spreadsheet values service,
// extracted so tests can run without remote credentials.
type valuesAPI interface {
	Append(ctx context.Context, rangeRef string, row []interface{}) error
	Get(ctx context.Context, rangeRef string) ([][]interface{}, error)
	Clear(ctx context.Context, rangeRef string) error
}

// Adapter provides append/read/clear against the remote spreadsheet.
// The underlying client is synchronous, so every call runs on a bounded
// worker pool; appends retry with exponential backoff.
type Adapter struct {
	api     valuesAPI
	pool    *workerpool.Pool
	timeout time.Duration
	logger  logger.Logger
	metrics *metrics.Collector
	cache   *dateCache
}

type Config struct {
	SpreadsheetID   string
	CredentialsFile string
	Workers         int
	CacheTTL        time.Duration
	Timeout         time.Duration
}

func New(ctx context.Context, cfg Config, log logger.Logger, collector *metrics.Collector) (*Adapter, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	api := &googleValues{svc: svc, spreadsheetID: cfg.SpreadsheetID}
	return newAdapter(api, cfg, log, collector), nil
}

func newAdapter(api valuesAPI, cfg Config, log logger.Logger, collector *metrics.Collector) *Adapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	a := &Adapter{
		api:     api,
		pool:    workerpool.New(cfg.Workers),
		timeout: timeout,
		logger:  log,
		metrics: collector,
	}
	a.cache = newDateCache(a, cfg.CacheTTL)
	return a
}

// Append adds a row to the bottom of the sheet. USER_ENTERED parsing is
// used upstream so dates and numbers render naturally.
func (a *Adapter) Append(ctx context.Context, sheet string, row []interface{}) error {
	rangeRef := RangeRef(sheet, "A1")

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := a.pool.Do(ctx, func() error {
		bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
		return backoff.Retry(func() error {
			return a.api.Append(ctx, rangeRef, row)
		}, bo)
	})
	if err != nil {
		a.metrics.SheetWrites.WithLabelValues("error").Inc()
		a.logger.Error("Sheet append failed", "sheet", sheet, "error", err)
		return fmt.Errorf("appending to %s: %w", sheet, err)
	}
	a.metrics.SheetWrites.WithLabelValues("ok").Inc()
	return nil
}

// ReadRange reads a rectangular range of cells.
func (a *Adapter) ReadRange(ctx context.Context, sheet, cells string) ([][]interface{}, error) {
	rangeRef := RangeRef(sheet, cells)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var rows [][]interface{}
	err := a.pool.Do(ctx, func() error {
		var err error
		rows, err = a.api.Get(ctx, rangeRef)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s!%s: %w", sheet, cells, err)
	}
	return rows, nil
}

// ClearCell blanks a single cell, e.g. a museum date slot being removed.
func (a *Adapter) ClearCell(ctx context.Context, sheet, cellRef string) error {
	rangeRef := RangeRef(sheet, cellRef)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := a.pool.Do(ctx, func() error {
		return a.api.Clear(ctx, rangeRef)
	})
	if err != nil {
		return fmt.Errorf("clearing %s!%s: %w", sheet, cellRef, err)
	}
	return nil
}

// MuseumDates returns the current excursion slot list through the TTL
// cache. Rows are returned with their 1-based sheet row number so admin
// deletion can reference the exact cell.
func (a *Adapter) MuseumDates(ctx context.Context) ([]DateSlot, error) {
	return a.cache.get(ctx)
}

// InvalidateMuseumDates drops the cached slot list after a mutation.
func (a *Adapter) InvalidateMuseumDates() {
	a.cache.invalidate()
}

// Close releases the worker pool.
func (a *Adapter) Close() {
	a.pool.Close()
}

type googleValues struct {
	svc           *sheetsapi.Service
	spreadsheetID string
}

func (g *googleValues) Append(ctx context.Context, rangeRef string, row []interface{}) error {
	vr := &sheetsapi.ValueRange{Values: [][]interface{}{row}}
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, rangeRef, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return err
}

func (g *googleValues) Get(ctx context.Context, rangeRef string) ([][]interface{}, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, rangeRef).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g *googleValues) Clear(ctx context.Context, rangeRef string) error {
	_, err := g.svc.Spreadsheets.Values.Clear(g.spreadsheetID, rangeRef, &sheetsapi.ClearValuesRequest{}).
		Context(ctx).Do()
	return err
}
