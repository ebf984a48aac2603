package gtfsstatic

import (
	"sort"
	"time"

	"github.com/ogettransport/oget-bot/pkg/gtfs/models"
)

// Snapshot is one immutable generation of the static feed. It is built
// once per refresh and published by pointer swap; readers never see a
// partially built generation.
type Snapshot struct {
	GeneratedAt time.Time

	routes         map[string]*models.Route
	stops          map[string]*models.Stop
	trips          map[string]*models.Trip
	stopSeqByTrip  map[string][]string
	representative map[representativeKey]string
	accessibility  map[string]models.Accessibility
	stopList       []*models.Stop
	routeNames     map[string]struct{}
}

type representativeKey struct {
	routeShortName string
	direction      int
}

func buildSnapshot(f *feed, now time.Time) *Snapshot {
	s := &Snapshot{
		GeneratedAt:    now,
		routes:         make(map[string]*models.Route, len(f.Routes)),
		stops:          make(map[string]*models.Stop, len(f.Stops)),
		trips:          make(map[string]*models.Trip, len(f.Trips)),
		stopSeqByTrip:  make(map[string][]string, len(f.Trips)),
		representative: make(map[representativeKey]string),
		accessibility:  make(map[string]models.Accessibility, len(f.Vehicles)),
		stopList:       make([]*models.Stop, 0, len(f.Stops)),
		routeNames:     make(map[string]struct{}, len(f.Routes)),
	}

	for i := range f.Routes {
		r := &f.Routes[i]
		s.routes[r.RouteID] = r
		s.routeNames[r.RouteShortName] = struct{}{}
	}
	for i := range f.Stops {
		st := &f.Stops[i]
		s.stops[st.StopID] = st
		s.stopList = append(s.stopList, st)
	}
	for i := range f.Trips {
		t := &f.Trips[i]
		s.trips[t.TripID] = t
	}

	// Group stop_times into per-trip ordered stop lists.
	sort.SliceStable(f.StopTimes, func(i, j int) bool {
		a, b := f.StopTimes[i], f.StopTimes[j]
		if a.TripID != b.TripID {
			return a.TripID < b.TripID
		}
		return a.StopSequence < b.StopSequence
	})
	for _, st := range f.StopTimes {
		s.stopSeqByTrip[st.TripID] = append(s.stopSeqByTrip[st.TripID], st.StopID)
	}

	// First-encountered trip per (route short name, direction) is the
	// representative for progress classification.
	for i := range f.Trips {
		t := &f.Trips[i]
		route, ok := s.routes[t.RouteID]
		if !ok {
			continue
		}
		if len(s.stopSeqByTrip[t.TripID]) == 0 {
			continue
		}
		key := representativeKey{routeShortName: route.RouteShortName, direction: t.DirectionID}
		if _, exists := s.representative[key]; !exists {
			s.representative[key] = t.TripID
		}
	}

	for _, v := range f.Vehicles {
		s.accessibility[v.VehicleID] = v.Accessibility
	}

	return s
}

func (s *Snapshot) RouteByID(routeID string) (*models.Route, bool) {
	r, ok := s.routes[routeID]
	return r, ok
}

func (s *Snapshot) StopByID(stopID string) (*models.Stop, bool) {
	st, ok := s.stops[stopID]
	return st, ok
}

func (s *Snapshot) TripByID(tripID string) (*models.Trip, bool) {
	t, ok := s.trips[tripID]
	return t, ok
}

// StopSequence returns the ordered stop ids of a trip.
func (s *Snapshot) StopSequence(tripID string) []string {
	return s.stopSeqByTrip[tripID]
}

// RepresentativeTrip returns the canonical trip for a route short name
// and direction, together with its stop sequence.
func (s *Snapshot) RepresentativeTrip(routeShortName string, direction int) (*models.Trip, []string, bool) {
	tripID, ok := s.representative[representativeKey{routeShortName: routeShortName, direction: direction}]
	if !ok {
		return nil, nil, false
	}
	return s.trips[tripID], s.stopSeqByTrip[tripID], true
}

// VehicleAccessibility reports whether a vehicle board number is
// wheelchair accessible. Missing vehicles answer unknown.
func (s *Snapshot) VehicleAccessibility(vehicleLabel string) models.Accessibility {
	return s.accessibility[vehicleLabel]
}

// Stops returns all stops for geo scans. Callers must not mutate.
func (s *Snapshot) Stops() []*models.Stop {
	return s.stopList
}

// HasRouteName reports whether a line number exists in the feed, used
// to validate user-entered route numbers.
func (s *Snapshot) HasRouteName(shortName string) bool {
	_, ok := s.routeNames[shortName]
	return ok
}

// RouteIDsByShortName returns all feed route ids sharing one display
// line number. Feeds commonly split a line into one route per
// direction or service variant.
func (s *Snapshot) RouteIDsByShortName(shortName string) []string {
	var ids []string
	for id, r := range s.routes {
		if r.RouteShortName == shortName {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Routes returns route display names grouped by kind, sorted.
func (s *Snapshot) RouteNamesByKind(kind models.RouteKind) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, r := range s.routes {
		if r.Kind != kind {
			continue
		}
		if _, dup := seen[r.RouteShortName]; dup {
			continue
		}
		seen[r.RouteShortName] = struct{}{}
		names = append(names, r.RouteShortName)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}
