package usecase

import (
	"context"
	"errors"
	"slices"
	"time"

	"travel-agent/internal/domain"
)

// PreviewPlanner produces placeholder options without calling a schedule
// provider. It is wired when no provider key is configured so that local
// dialogues still reach the schedule step.
type PreviewPlanner struct {
	Location *time.Location
}

var previewDefaults = []domain.TransportType{domain.TransportBus, domain.TransportTrain}

func (p PreviewPlanner) Plan(_ context.Context, e domain.TravelEntities) ([]domain.ScheduleObject, error) {
	if !e.IsComplete() {
		return nil, errors.New("usecase: preview planner needs complete entities")
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	kinds := e.TransportPriority
	if len(kinds) == 0 {
		kinds = slices.Clone(previewDefaults)
	}
	if len(e.Waypoints) > 0 && len(e.TransportPriority) == 0 {
		kinds = append(kinds, domain.TransportPlane)
	}

	start := e.DepartureDate.In(loc).Add(9 * time.Hour)
	out := make([]domain.ScheduleObject, 0, len(kinds))
	for i, kind := range kinds {
		dep := start.Add(time.Duration(i) * 30 * time.Minute)
		out = append(out, domain.ScheduleObject{
			Type:         kind,
			TimeStartUTC: dep.Unix(),
			TimeEndUTC:   dep.Add(time.Hour).Unix(),
			PlaceStart:   e.Origin,
			PlaceFinish:  e.Destination,
		})
	}
	return out, nil
}
