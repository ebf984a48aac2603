package stopmatch

import (
	"math"

	"github.com/ogettransport/oget-bot/internal/gtfsstatic"
	"github.com/ogettransport/oget-bot/pkg/gtfs/models"
)

// DefaultRadiusDeg is the match radius in degrees (~650 m at this
// latitude). The service area is municipal, so squared-degree distance
// is a good enough metric for matching.
const DefaultRadiusDeg = 0.006

const earthRadiusM = 6371000.0

// Progress classifies a vehicle's position along a route relative to a
// reference stop.
type Progress int

const (
	ProgressUnknown Progress = iota
	ProgressApproaching
	ProgressArriving
	ProgressPassed
)

func (p Progress) String() string {
	switch p {
	case ProgressApproaching:
		return "approaching"
	case ProgressArriving:
		return "arriving"
	case ProgressPassed:
		return "passed"
	default:
		return "unknown"
	}
}

// SnapshotSource yields the current static generation.
type SnapshotSource interface {
	Snapshot() *gtfsstatic.Snapshot
}

type Matcher struct {
	source     SnapshotSource
	radiusDeg2 float64
}

func New(source SnapshotSource) *Matcher {
	return &Matcher{source: source, radiusDeg2: DefaultRadiusDeg * DefaultRadiusDeg}
}

// NearestStop returns the stop closest to the point, or false when no
// stop lies within the match radius.
func (m *Matcher) NearestStop(lat, lon float64) (*models.Stop, bool) {
	snap := m.source.Snapshot()
	if snap == nil {
		return nil, false
	}
	return nearestInList(snap.Stops(), lat, lon, m.radiusDeg2)
}

func nearestInList(stops []*models.Stop, lat, lon, radiusDeg2 float64) (*models.Stop, bool) {
	var best *models.Stop
	bestDist := math.MaxFloat64
	for _, s := range stops {
		d := squaredDegrees(lat, lon, s.StopLat, s.StopLon)
		if d < bestDist {
			bestDist = d
			best = s
		}
	}
	if best == nil || bestDist > radiusDeg2 {
		return nil, false
	}
	return best, true
}

func squaredDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := lat1 - lat2
	dLon := lon1 - lon2
	return dLat*dLat + dLon*dLon
}

// DistanceMeters is the great-circle distance, used only for
// user-facing distance messages.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Classify locates the reference stop and the vehicle within the
// representative stop sequence of the route and compares their indexes.
// rtDirection uses the realtime service's 1/2 encoding; the static feed
// uses 0/1. The mapping is heuristic, so the opposite mapping is tried
// once before answering unknown.
func (m *Matcher) Classify(refStopID string, vehLat, vehLon float64, routeShortName string, rtDirection int) Progress {
	snap := m.source.Snapshot()
	if snap == nil {
		return ProgressUnknown
	}

	direction := rtDirection - 1
	if direction != 0 && direction != 1 {
		direction = 0
	}

	if p := m.classifyInDirection(snap, refStopID, vehLat, vehLon, routeShortName, direction); p != ProgressUnknown {
		return p
	}
	return m.classifyInDirection(snap, refStopID, vehLat, vehLon, routeShortName, 1-direction)
}

func (m *Matcher) classifyInDirection(snap *gtfsstatic.Snapshot, refStopID string, vehLat, vehLon float64, routeShortName string, direction int) Progress {
	_, seq, ok := snap.RepresentativeTrip(routeShortName, direction)
	if !ok {
		return ProgressUnknown
	}

	refIdx := -1
	for i, stopID := range seq {
		if stopID == refStopID {
			refIdx = i
			break
		}
	}
	if refIdx < 0 {
		return ProgressUnknown
	}

	vehIdx := -1
	bestDist := math.MaxFloat64
	for i, stopID := range seq {
		stop, ok := snap.StopByID(stopID)
		if !ok {
			continue
		}
		d := squaredDegrees(vehLat, vehLon, stop.StopLat, stop.StopLon)
		if d < bestDist {
			bestDist = d
			vehIdx = i
		}
	}
	if vehIdx < 0 || bestDist > m.radiusDeg2 {
		return ProgressUnknown
	}

	switch {
	case vehIdx > refIdx:
		return ProgressPassed
	case vehIdx == refIdx:
		return ProgressArriving
	default:
		return ProgressApproaching
	}
}
