package gtfsrealtime

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/ogettransport/oget-bot/internal/common/logger"
	"github.com/ogettransport/oget-bot/internal/gtfsstatic"
	"github.com/ogettransport/oget-bot/internal/metrics"
	"github.com/ogettransport/oget-bot/internal/stopmatch"
)

type zipFetcher struct{ data []byte }

func (f *zipFetcher) Fetch(ctx context.Context) ([]byte, error) { return f.data, nil }

func staticProvider(t *testing.T) *gtfsstatic.Provider {
	t.Helper()

	members := map[string]string{
		"routes.txt": "route_id,route_short_name,route_long_name,route_type\nr103,103,Line,800\n",
		"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
			"s1,Railway Station,46.4700,30.7400\n" +
			"s2,City Garden,46.4800,30.7450\n",
		"trips.txt":      "trip_id,route_id,direction_id,trip_headsign\nt1,r103,0,Center\n",
		"stop_times.txt": "trip_id,stop_id,stop_sequence\nt1,s1,1\nt1,s2,2\n",
		"vehicles.txt": "vehicle_id,wheelchair_accessible\n" +
			"4567,1\n" +
			"1111,2\n",
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range members {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	log := logger.New(logger.ParseLogLevel("error"))
	p := gtfsstatic.NewProvider(&zipFetcher{data: buf.Bytes()}, time.Hour, log, metrics.NewCollector())
	if _, err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return p
}

func vehicleEntity(id, label, routeID string, lat, lon float32) *gtfsrtpb.FeedEntity {
	return &gtfsrtpb.FeedEntity{
		Id: proto.String(id),
		Vehicle: &gtfsrtpb.VehiclePosition{
			Vehicle:  &gtfsrtpb.VehicleDescriptor{Id: proto.String(id), Label: proto.String(label)},
			Trip:     &gtfsrtpb.TripDescriptor{RouteId: proto.String(routeID), TripId: proto.String("t1")},
			Position: &gtfsrtpb.Position{Latitude: proto.Float32(lat), Longitude: proto.Float32(lon)},
		},
	}
}

func feedServer(t *testing.T, entities ...*gtfsrtpb.FeedEntity) *httptest.Server {
	t.Helper()

	fm := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
		},
		Entity: entities,
	}
	body, err := proto.Marshal(fm)
	if err != nil {
		t.Fatalf("marshaling feed: %v", err)
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("ApiKey") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write(body)
	}))
}

func newTestPoller(t *testing.T, url string) *Poller {
	t.Helper()
	provider := staticProvider(t)
	log := logger.New(logger.ParseLogLevel("error"))
	return NewPoller(Config{
		BaseURL:      url,
		APIKey:       "test-key",
		PollInterval: 15 * time.Second,
	}, provider, stopmatch.New(provider), log, metrics.NewCollector())
}

func TestPollFiltersAccessibleVehicles(t *testing.T) {
	srv := feedServer(t,
		vehicleEntity("1", "4567", "r103", 46.47, 30.74), // accessible
		vehicleEntity("2", "1111", "r103", 46.48, 30.745), // not accessible
		vehicleEntity("3", "2222", "r103", 46.48, 30.745), // unknown
	)
	defer srv.Close()

	p := newTestPoller(t, srv.URL)
	if err := p.poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	vehicles := p.AccessibleOnRoute("r103")
	if len(vehicles) != 1 {
		t.Fatalf("expected 1 accessible vehicle, got %d", len(vehicles))
	}
	if vehicles[0].Label != "4567" {
		t.Errorf("expected label 4567, got %s", vehicles[0].Label)
	}
	if vehicles[0].NearestStop != "Railway Station" {
		t.Errorf("expected nearest stop Railway Station, got %q", vehicles[0].NearestStop)
	}
}

func TestPollEmptyBeforeFirstSuccess(t *testing.T) {
	p := newTestPoller(t, "http://127.0.0.1:1")

	if got := p.AccessibleOnRoute("r103"); got != nil {
		t.Errorf("expected nil before any poll, got %v", got)
	}
	if !p.LastPollAt().IsZero() {
		t.Error("expected zero LastPollAt before any poll")
	}
}

func TestFailedPollKeepsPreviousMap(t *testing.T) {
	srv := feedServer(t, vehicleEntity("1", "4567", "r103", 46.47, 30.74))
	p := newTestPoller(t, srv.URL)

	if err := p.poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	srv.Close()

	if err := p.poll(context.Background()); err == nil {
		t.Fatal("expected error after server shutdown")
	}

	vehicles := p.AccessibleOnRoute("r103")
	if len(vehicles) != 1 || vehicles[0].Label != "4567" {
		t.Errorf("previous map must survive a failed poll, got %v", vehicles)
	}
}

func TestPollRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := newTestPoller(t, srv.URL)
	if err := p.poll(context.Background()); err == nil {
		t.Error("expected error for HTTP 500")
	}
}
