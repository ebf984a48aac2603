package gtfsstatic

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ogettransport/oget-bot/pkg/gtfs/models"
)

// feed holds the raw parsed members of one static feed archive.
type feed struct {
	Routes    []models.Route
	Stops     []models.Stop
	Trips     []models.Trip
	StopTimes []models.StopTime
	Vehicles  []models.Vehicle
}

// parseZip opens the archive in memory and parses the tabular members.
// vehicles.txt is optional; its absence downgrades accessibility answers
// to unknown rather than failing the refresh.
func parseZip(data []byte) (*feed, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening zip archive: %w", err)
	}

	fileMap := make(map[string]*zip.File)
	for _, file := range reader.File {
		fileMap[strings.ToLower(file.Name)] = file
	}

	f := &feed{}

	required := []struct {
		name  string
		parse func(rows []row) error
	}{
		{"routes.txt", f.parseRoutes},
		{"stops.txt", f.parseStops},
		{"trips.txt", f.parseTrips},
		{"stop_times.txt", f.parseStopTimes},
	}
	for _, member := range required {
		file, ok := fileMap[member.name]
		if !ok {
			return nil, fmt.Errorf("missing required member %s", member.name)
		}
		rows, err := readCSVMember(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", member.name, err)
		}
		if err := member.parse(rows); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", member.name, err)
		}
	}

	if file, ok := fileMap["vehicles.txt"]; ok {
		rows, err := readCSVMember(file)
		if err != nil {
			return nil, fmt.Errorf("reading vehicles.txt: %w", err)
		}
		if err := f.parseVehicles(rows); err != nil {
			return nil, fmt.Errorf("parsing vehicles.txt: %w", err)
		}
	}

	return f, nil
}

// row is one CSV record with access by column name.
type row struct {
	header map[string]int
	fields []string
}

func (r row) get(column string) string {
	idx, ok := r.header[column]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

func readCSVMember(file *zip.File) ([]row, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("opening member: %w", err)
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.FieldsPerRecord = -1

	headerFields, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := make(map[string]int, len(headerFields))
	for i, name := range headerFields {
		// Some feeds carry a UTF-8 BOM on the first column name.
		header[strings.TrimPrefix(strings.TrimSpace(name), "\uFEFF")] = i
	}

	var rows []row
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading record: %w", err)
		}
		rows = append(rows, row{header: header, fields: fields})
	}
	return rows, nil
}

func (f *feed) parseRoutes(rows []row) error {
	f.Routes = make([]models.Route, 0, len(rows))
	for _, r := range rows {
		routeType, _ := strconv.Atoi(r.get("route_type"))
		f.Routes = append(f.Routes, models.Route{
			RouteID:        r.get("route_id"),
			RouteShortName: r.get("route_short_name"),
			RouteLongName:  r.get("route_long_name"),
			Kind:           models.RouteKindFromGTFSType(routeType),
		})
	}
	return nil
}

func (f *feed) parseStops(rows []row) error {
	f.Stops = make([]models.Stop, 0, len(rows))
	for _, r := range rows {
		lat, err := strconv.ParseFloat(r.get("stop_lat"), 64)
		if err != nil {
			return fmt.Errorf("stop %s: invalid stop_lat: %w", r.get("stop_id"), err)
		}
		lon, err := strconv.ParseFloat(r.get("stop_lon"), 64)
		if err != nil {
			return fmt.Errorf("stop %s: invalid stop_lon: %w", r.get("stop_id"), err)
		}
		f.Stops = append(f.Stops, models.Stop{
			StopID:   r.get("stop_id"),
			StopName: r.get("stop_name"),
			StopLat:  lat,
			StopLon:  lon,
		})
	}
	return nil
}

func (f *feed) parseTrips(rows []row) error {
	f.Trips = make([]models.Trip, 0, len(rows))
	for _, r := range rows {
		direction, _ := strconv.Atoi(r.get("direction_id"))
		f.Trips = append(f.Trips, models.Trip{
			TripID:       r.get("trip_id"),
			RouteID:      r.get("route_id"),
			DirectionID:  direction,
			TripHeadsign: r.get("trip_headsign"),
		})
	}
	return nil
}

func (f *feed) parseStopTimes(rows []row) error {
	f.StopTimes = make([]models.StopTime, 0, len(rows))
	for _, r := range rows {
		seq, err := strconv.Atoi(r.get("stop_sequence"))
		if err != nil {
			return fmt.Errorf("trip %s: invalid stop_sequence: %w", r.get("trip_id"), err)
		}
		f.StopTimes = append(f.StopTimes, models.StopTime{
			TripID:       r.get("trip_id"),
			StopID:       r.get("stop_id"),
			StopSequence: seq,
		})
	}
	return nil
}

func (f *feed) parseVehicles(rows []row) error {
	f.Vehicles = make([]models.Vehicle, 0, len(rows))
	for _, r := range rows {
		f.Vehicles = append(f.Vehicles, models.Vehicle{
			VehicleID:     r.get("vehicle_id"),
			Accessibility: models.AccessibilityFromGTFS(r.get("wheelchair_accessible")),
		})
	}
	return nil
}
