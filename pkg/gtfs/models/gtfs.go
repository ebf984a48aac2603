package models

import "time"

// RouteKind is the vehicle class of a route as displayed to users.
type RouteKind int

const (
	RouteKindUnknown RouteKind = iota
	RouteKindTram
	RouteKindTrolleybus
)

func (k RouteKind) String() string {
	switch k {
	case RouteKindTram:
		return "tram"
	case RouteKindTrolleybus:
		return "trolleybus"
	default:
		return "unknown"
	}
}

// RouteKindFromGTFSType maps a GTFS route_type to a RouteKind.
// 0 is tram/light rail, 11 and the extended 800 block are trolleybus.
func RouteKindFromGTFSType(routeType int) RouteKind {
	switch routeType {
	case 0, 900:
		return RouteKindTram
	case 11, 800:
		return RouteKindTrolleybus
	default:
		return RouteKindUnknown
	}
}

// Accessibility is the tri-state wheelchair accessibility of a vehicle,
// following the GTFS wheelchair_accessible encoding ('0' unknown, '1'
// accessible, '2' not accessible).
type Accessibility int

const (
	AccessibilityUnknown Accessibility = iota
	AccessibilityAccessible
	AccessibilityNotAccessible
)

func AccessibilityFromGTFS(value string) Accessibility {
	switch value {
	case "1":
		return AccessibilityAccessible
	case "2":
		return AccessibilityNotAccessible
	default:
		return AccessibilityUnknown
	}
}

type Route struct {
	RouteID        string
	RouteShortName string
	RouteLongName  string
	Kind           RouteKind
}

type Stop struct {
	StopID   string
	StopName string
	StopLat  float64
	StopLon  float64
}

type Trip struct {
	TripID       string
	RouteID      string
	DirectionID  int
	TripHeadsign string
}

type StopTime struct {
	TripID       string
	StopID       string
	StopSequence int
}

// Vehicle is one row of the optional vehicles.txt member: a physical
// board (bortovoy) number with its accessibility flag.
type Vehicle struct {
	VehicleID     string
	Accessibility Accessibility
}

// VehiclePosition is one realtime observation of a vehicle.
type VehiclePosition struct {
	VehicleID string
	Label     string
	RouteID   string
	TripID    string
	Latitude  float64
	Longitude float64
	SeenAt    time.Time
}
