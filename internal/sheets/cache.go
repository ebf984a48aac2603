package sheets

import (
	"context"
	"fmt"
	"time"

	"github.com/bluele/gcache"
)

// DateSlot is one excursion date as listed in the MuseumDates sheet.
// Row is the 1-based sheet row, kept so admin deletion can clear the
// exact cell.
type DateSlot struct {
	Row   int
	Value string
}

const dateCacheKey = "museum_dates"

// dateCache is a read-through TTL cache over the museum date list. Menu
// navigation and broadcast would otherwise hammer the spreadsheet.
type dateCache struct {
	cache gcache.Cache
}

func newDateCache(a *Adapter, ttl time.Duration) *dateCache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	c := gcache.New(1).
		LRU().
		LoaderExpireFunc(func(key interface{}) (interface{}, *time.Duration, error) {
			slots, err := loadDates(a)
			if err != nil {
				return nil, nil, err
			}
			return slots, &ttl, nil
		}).
		Build()
	return &dateCache{cache: c}
}

func loadDates(a *Adapter) ([]DateSlot, error) {
	// The loader runs inside gcache without a caller context; the
	// adapter applies its own per-call timeout.
	rows, err := a.ReadRange(context.Background(), SheetMuseumDates, "A1:A100")
	if err != nil {
		return nil, fmt.Errorf("loading museum dates: %w", err)
	}
	slots := make([]DateSlot, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		value, ok := row[0].(string)
		if !ok || value == "" {
			continue
		}
		slots = append(slots, DateSlot{Row: i + 1, Value: value})
	}
	return slots, nil
}

func (c *dateCache) get(ctx context.Context) ([]DateSlot, error) {
	v, err := c.cache.Get(dateCacheKey)
	if err != nil {
		return nil, err
	}
	slots, ok := v.([]DateSlot)
	if !ok {
		return nil, fmt.Errorf("unexpected cache value type %T", v)
	}
	return slots, nil
}

func (c *dateCache) invalidate() {
	c.cache.Remove(dateCacheKey)
}
