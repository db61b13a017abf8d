package domain

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/samber/lo"
)

// TransportType is a mode of travel a user can rank.
type TransportType string

const (
	TransportBus   TransportType = "bus"
	TransportTrain TransportType = "train"
	TransportPlane TransportType = "plane"
	TransportShip  TransportType = "ship"
	TransportWalk  TransportType = "walk"
)

// TransportTypes lists every known transport type in canonical order.
var TransportTypes = []TransportType{TransportBus, TransportTrain, TransportPlane, TransportShip, TransportWalk}

// ParseTransportType maps a wire value onto a known TransportType.
func ParseTransportType(s string) (TransportType, bool) {
	t := TransportType(strings.ToLower(strings.TrimSpace(s)))
	return t, lo.Contains(TransportTypes, t)
}

// FieldID names a required field of TravelEntities.
type FieldID string

const (
	FieldOrigin        FieldID = "origin"
	FieldDestination   FieldID = "destination"
	FieldDepartureDate FieldID = "departure_date"
)

// RequiredFields is the fixed order in which missing fields are reported.
var RequiredFields = []FieldID{FieldOrigin, FieldDestination, FieldDepartureDate}

// TravelEntities is the structured trip request accumulated over a dialogue.
// Empty strings and a nil date mean "not known yet".
type TravelEntities struct {
	Origin            string          `json:"origin,omitempty"`
	Destination       string          `json:"destination,omitempty"`
	DepartureDate     *civil.Date     `json:"departure_date,omitempty"`
	TransportPriority []TransportType `json:"transport_priority,omitempty"`
	Waypoints         []string        `json:"intermediate_waypoints,omitempty"`
}

// IsComplete reports whether origin, destination and departure date are all known.
func (e TravelEntities) IsComplete() bool {
	return len(e.MissingFields()) == 0
}

// MissingFields returns the absent required fields in origin, destination,
// departure_date order.
func (e TravelEntities) MissingFields() []FieldID {
	missing := make([]FieldID, 0, len(RequiredFields))
	if strings.TrimSpace(e.Origin) == "" {
		missing = append(missing, FieldOrigin)
	}
	if strings.TrimSpace(e.Destination) == "" {
		missing = append(missing, FieldDestination)
	}
	if e.DepartureDate == nil {
		missing = append(missing, FieldDepartureDate)
	}
	return missing
}

// IsEmpty reports whether e carries no facts at all.
func (e TravelEntities) IsEmpty() bool {
	return strings.TrimSpace(e.Origin) == "" &&
		strings.TrimSpace(e.Destination) == "" &&
		e.DepartureDate == nil &&
		len(e.TransportPriority) == 0 &&
		len(e.Waypoints) == 0
}

// Clone returns a deep copy of e.
func (e TravelEntities) Clone() TravelEntities {
	out := e
	if e.DepartureDate != nil {
		d := *e.DepartureDate
		out.DepartureDate = &d
	}
	out.TransportPriority = append([]TransportType(nil), e.TransportPriority...)
	out.Waypoints = append([]string(nil), e.Waypoints...)
	return out
}

// Route renders the known stops as "origin → waypoint → destination".
func (e TravelEntities) Route() string {
	stops := make([]string, 0, len(e.Waypoints)+2)
	stops = append(stops, lo.Ternary(e.Origin == "", "?", e.Origin))
	stops = append(stops, e.Waypoints...)
	stops = append(stops, lo.Ternary(e.Destination == "", "?", e.Destination))
	return strings.Join(stops, " → ")
}

// Merge folds update into base and returns the result; neither input is
// modified.
//
// Scalars are replaced only by non-empty update values. Transport types named
// by the update move to the front in update order, followed by the base-only
// types in their previous order. Waypoints are appended when not already
// present by exact string match.
func Merge(base, update TravelEntities) TravelEntities {
	out := base.Clone()

	if v := strings.TrimSpace(update.Origin); v != "" {
		out.Origin = v
	}
	if v := strings.TrimSpace(update.Destination); v != "" {
		out.Destination = v
	}
	if update.DepartureDate != nil {
		d := *update.DepartureDate
		out.DepartureDate = &d
	}

	if len(update.TransportPriority) > 0 {
		ranked := lo.Uniq(update.TransportPriority)
		rest := lo.Filter(out.TransportPriority, func(t TransportType, _ int) bool {
			return !lo.Contains(ranked, t)
		})
		out.TransportPriority = append(ranked, rest...)
	}

	for _, w := range update.Waypoints {
		w = strings.TrimSpace(w)
		if w == "" || lo.Contains(out.Waypoints, w) {
			continue
		}
		out.Waypoints = append(out.Waypoints, w)
	}
	return out
}
