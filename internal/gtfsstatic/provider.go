package gtfsstatic

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ogettransport/oget-bot/internal/common/logger"
	"github.com/ogettransport/oget-bot/internal/metrics"
)

// Provider owns the current snapshot generation and refreshes it on a
// schedule. A failed refresh keeps the previous generation in place.
type Provider struct {
	fetcher  Fetcher
	interval time.Duration
	logger   logger.Logger
	metrics  *metrics.Collector

	snapshot atomic.Pointer[Snapshot]
}

func NewProvider(fetcher Fetcher, interval time.Duration, log logger.Logger, collector *metrics.Collector) *Provider {
	return &Provider{
		fetcher:  fetcher,
		interval: interval,
		logger:   log,
		metrics:  collector,
	}
}

// Snapshot returns the current generation, or nil before the first
// successful refresh.
func (p *Provider) Snapshot() *Snapshot {
	return p.snapshot.Load()
}

// Refresh downloads and parses the feed, then atomically publishes the
// new generation.
func (p *Provider) Refresh(ctx context.Context) (*Snapshot, error) {
	data, err := p.fetcher.Fetch(ctx)
	if err != nil {
		p.metrics.StaticRefreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetching static feed: %w", err)
	}

	f, err := parseZip(data)
	if err != nil {
		p.metrics.StaticRefreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("parsing static feed: %w", err)
	}

	snap := buildSnapshot(f, time.Now())
	p.snapshot.Store(snap)
	p.metrics.StaticRefreshes.WithLabelValues("ok").Inc()

	p.logger.Info("Static snapshot published",
		"routes", len(f.Routes),
		"stops", len(f.Stops),
		"trips", len(f.Trips),
		"vehicles", len(f.Vehicles))

	return snap, nil
}

// RefreshWithRetry is the startup path: the process cannot serve
// without a snapshot, so the first refresh retries for a bounded time
// before giving up.
func (p *Provider) RefreshWithRetry(ctx context.Context, maxElapsed time.Duration) (*Snapshot, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed

	var snap *Snapshot
	operation := func() error {
		var err error
		snap, err = p.Refresh(ctx)
		if err != nil {
			p.logger.Warn("Startup refresh attempt failed", "error", err)
		}
		return err
	}
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return snap, nil
}

// Run refreshes the snapshot on the configured interval until the
// context is cancelled. Failures are logged; the previous generation
// stays published.
func (p *Provider) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Static refresh scheduler started", "interval", p.interval)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Static refresh scheduler stopped")
			return
		case <-ticker.C:
			if _, err := p.Refresh(ctx); err != nil {
				p.logger.Error("Scheduled static refresh failed, keeping previous snapshot", "error", err)
			}
		}
	}
}
