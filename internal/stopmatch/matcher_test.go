package stopmatch

import (
	"archive/zip"
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/ogettransport/oget-bot/internal/common/logger"
	"github.com/ogettransport/oget-bot/internal/gtfsstatic"
	"github.com/ogettransport/oget-bot/internal/metrics"
)

type zipFetcher struct{ data []byte }

func (f *zipFetcher) Fetch(ctx context.Context) ([]byte, error) { return f.data, nil }

// Stops A..D run north along a line ~550 m apart.
const testFeed = `routes.txt
route_id,route_short_name,route_long_name,route_type
r103,103,Test Line,800
trips.txt
trip_id,route_id,direction_id,trip_headsign
t-fwd,r103,0,North
t-back,r103,1,South
stops.txt
stop_id,stop_name,stop_lat,stop_lon
A,Stop A,46.4700,30.7400
B,Stop B,46.4750,30.7400
C,Stop C,46.4800,30.7400
D,Stop D,46.4850,30.7400
stop_times.txt
trip_id,stop_id,stop_sequence
t-fwd,A,1
t-fwd,B,2
t-fwd,C,3
t-fwd,D,4
t-back,D,1
t-back,C,2
t-back,B,3
t-back,A,4
`

func buildMatcher(t *testing.T) (*Matcher, *gtfsstatic.Provider) {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	var name string
	var content bytes.Buffer
	flush := func() {
		if name == "" {
			return
		}
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write(content.Bytes()); err != nil {
			t.Fatal(err)
		}
	}
	for _, line := range bytes.Split([]byte(testFeed), []byte("\n")) {
		s := string(line)
		if len(s) > 4 && s[len(s)-4:] == ".txt" {
			flush()
			name = s
			content.Reset()
			continue
		}
		content.WriteString(s)
		content.WriteString("\n")
	}
	flush()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	log := logger.New(logger.ParseLogLevel("error"))
	p := gtfsstatic.NewProvider(&zipFetcher{data: buf.Bytes()}, time.Hour, log, metrics.NewCollector())
	if _, err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return New(p), p
}

func TestNearestStopExactMatch(t *testing.T) {
	m, p := buildMatcher(t)

	for _, stop := range p.Snapshot().Stops() {
		got, ok := m.NearestStop(stop.StopLat, stop.StopLon)
		if !ok {
			t.Fatalf("no match at stop %s's own coordinates", stop.StopID)
		}
		if got.StopID != stop.StopID {
			t.Errorf("expected %s, got %s", stop.StopID, got.StopID)
		}
	}
}

func TestNearestStopBeyondRadiusIsUnknown(t *testing.T) {
	m, _ := buildMatcher(t)

	// ~5 km east of the line.
	if _, ok := m.NearestStop(46.4700, 30.8000); ok {
		t.Error("expected no match far from every stop")
	}
}

func TestDistanceMeters(t *testing.T) {
	// One degree of latitude is ~111.2 km.
	d := DistanceMeters(46.0, 30.0, 47.0, 30.0)
	if math.Abs(d-111200) > 1000 {
		t.Errorf("unexpected distance: %f", d)
	}
}

func TestClassifyProgression(t *testing.T) {
	m, _ := buildMatcher(t)

	// Reference stop B; realtime direction 1 maps to static 0.
	cases := []struct {
		name     string
		lat, lon float64
		want     Progress
	}{
		{"vehicle at A is approaching", 46.4700, 30.7400, ProgressApproaching},
		{"vehicle at B is arriving", 46.4750, 30.7400, ProgressArriving},
		{"vehicle at C has passed", 46.4800, 30.7400, ProgressPassed},
		{"vehicle at D has passed", 46.4850, 30.7400, ProgressPassed},
	}
	for _, tc := range cases {
		if got := m.Classify("B", tc.lat, tc.lon, "103", 1); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestClassifyDirectionTwoMapsToReverse(t *testing.T) {
	m, _ := buildMatcher(t)

	// Direction 2 maps to static 1 whose representative runs D->A, so a
	// vehicle at D sits before reference B in that sequence.
	if got := m.Classify("B", 46.4850, 30.7400, "103", 2); got != ProgressApproaching {
		t.Errorf("expected approaching in reverse direction, got %v", got)
	}
}

func TestClassifyUnknownRoute(t *testing.T) {
	m, _ := buildMatcher(t)

	if got := m.Classify("B", 46.4750, 30.7400, "42", 1); got != ProgressUnknown {
		t.Errorf("expected unknown for missing route, got %v", got)
	}
}

func TestClassifyVehicleOffRoute(t *testing.T) {
	m, _ := buildMatcher(t)

	if got := m.Classify("B", 46.0, 29.0, "103", 1); got != ProgressUnknown {
		t.Errorf("expected unknown for vehicle far from the sequence, got %v", got)
	}
}
