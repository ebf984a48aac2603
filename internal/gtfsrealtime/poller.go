package gtfsrealtime

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/ogettransport/oget-bot/internal/common/logger"
	"github.com/ogettransport/oget-bot/internal/metrics"
	"github.com/ogettransport/oget-bot/internal/stopmatch"
	"github.com/ogettransport/oget-bot/pkg/gtfs/models"
)

const headerAPIKey = "ApiKey"

// VehicleInfo is one accessible vehicle as presented to users.
type VehicleInfo struct {
	Label       string
	NearestStop string
	Latitude    float64
	Longitude   float64
	SeenAt      time.Time
}

// Config for the poller.
type Config struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
	// InsecureTLS relaxes certificate verification; the upstream
	// realtime endpoint serves an unreliable chain.
	InsecureTLS bool
}

// Poller maintains a near-current map of accessible vehicles per route.
// It publishes a fresh map after every successful poll; a failed poll
// keeps the previous map.
type Poller struct {
	cfg      Config
	url      string
	client   *http.Client
	snapshot stopmatch.SnapshotSource
	matcher  *stopmatch.Matcher
	logger   logger.Logger
	metrics  *metrics.Collector

	data       atomic.Pointer[map[string][]VehicleInfo]
	lastPollAt atomic.Int64 // unix seconds of last successful poll
}

func NewPoller(cfg Config, snapshot stopmatch.SnapshotSource, matcher *stopmatch.Matcher, log logger.Logger, collector *metrics.Collector) *Poller {
	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Poller{
		cfg: cfg,
		url: cfg.BaseURL + "/gtfs-rt-vehicles-pr.pb",
		client: &http.Client{
			Timeout:   cfg.PollInterval,
			Transport: transport,
		},
		snapshot: snapshot,
		matcher:  matcher,
		logger:   log,
		metrics:  collector,
	}
}

// AccessibleOnRoute returns the accessible vehicles last seen on a
// route. It returns nothing before the first successful poll.
func (p *Poller) AccessibleOnRoute(routeID string) []VehicleInfo {
	m := p.data.Load()
	if m == nil {
		return nil
	}
	return (*m)[routeID]
}

// LastPollAt returns the time of the last successful poll.
func (p *Poller) LastPollAt() time.Time {
	sec := p.lastPollAt.Load()
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// Start polls on the configured cadence until ctx is cancelled.
// Per-poll errors are logged and never stop the loop.
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Realtime poller started",
		"url", p.url,
		"interval", p.cfg.PollInterval,
		"insecure_tls", p.cfg.InsecureTLS)

	if err := p.poll(ctx); err != nil {
		p.logger.Error("Realtime poll failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Realtime poller stopped")
			return
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				p.logger.Error("Realtime poll failed", "error", err)
			}
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	// A stalled fetch must be abandoned before the next cycle starts.
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PollInterval)
	defer cancel()

	feed, err := p.fetch(ctx)
	if err != nil {
		p.metrics.RealtimePolls.WithLabelValues("error").Inc()
		return err
	}

	snap := p.snapshot.Snapshot()
	if snap == nil {
		p.metrics.RealtimePolls.WithLabelValues("error").Inc()
		return fmt.Errorf("no static snapshot available")
	}

	now := time.Now()
	fresh := make(map[string][]VehicleInfo)
	total := 0
	for _, entity := range feed.GetEntity() {
		v := entity.GetVehicle()
		if v == nil {
			continue
		}
		label := v.GetVehicle().GetLabel()
		if label == "" {
			label = v.GetVehicle().GetId()
		}
		if snap.VehicleAccessibility(label) != models.AccessibilityAccessible {
			continue
		}
		routeID := v.GetTrip().GetRouteId()
		if routeID == "" {
			continue
		}
		lat := float64(v.GetPosition().GetLatitude())
		lon := float64(v.GetPosition().GetLongitude())

		info := VehicleInfo{
			Label:     label,
			Latitude:  lat,
			Longitude: lon,
			SeenAt:    now,
		}
		if stop, ok := p.matcher.NearestStop(lat, lon); ok {
			info.NearestStop = stop.StopName
		}
		fresh[routeID] = append(fresh[routeID], info)
		total++
	}

	p.data.Store(&fresh)
	p.lastPollAt.Store(now.Unix())
	p.metrics.RealtimePolls.WithLabelValues("ok").Inc()
	p.metrics.AccessibleVehicles.Set(float64(total))

	p.logger.Debug("Realtime poll completed",
		"entities", len(feed.GetEntity()),
		"accessible", total)

	return nil
}

func (p *Poller) fetch(ctx context.Context) (*gtfsrtpb.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(headerAPIKey, p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(body, &fm); err != nil {
		return nil, fmt.Errorf("decoding feed message: %w", err)
	}
	return &fm, nil
}
