package rasp

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"cloud.google.com/go/civil"
	"github.com/samber/lo"

	"travel-agent/internal/domain"
)

// DefaultMaxOptions is the number of alternatives offered for a direct trip.
const DefaultMaxOptions = 4

// ErrNoRoute is returned when no segment connects the requested places.
var ErrNoRoute = errors.New("rasp: no route found")

// yandex transport names that have a domain counterpart.
var transportTypes = map[string]domain.TransportType{
	"plane":    domain.TransportPlane,
	"train":    domain.TransportTrain,
	"suburban": domain.TransportTrain,
	"bus":      domain.TransportBus,
	"water":    domain.TransportShip,
}

type segmentSearcher interface {
	StationCode(ctx context.Context, title string) (string, error)
	Search(ctx context.Context, fromCode, toCode string, date civil.Date) ([]Segment, error)
}

// Planner turns complete trip entities into schedule options.
type Planner struct {
	api        segmentSearcher
	maxOptions int
	logger     *slog.Logger
}

type PlannerOption func(*Planner)

func WithMaxOptions(n int) PlannerOption {
	return func(p *Planner) {
		if n > 0 {
			p.maxOptions = n
		}
	}
}

func WithLogger(logger *slog.Logger) PlannerOption {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPlanner(api segmentSearcher, opts ...PlannerOption) (*Planner, error) {
	if api == nil {
		return nil, errors.New("rasp: segment searcher is required")
	}
	p := &Planner{
		api:        api,
		maxOptions: DefaultMaxOptions,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Plan returns schedule options for a direct trip, or one object per leg when
// the trip has waypoints.
func (p *Planner) Plan(ctx context.Context, e domain.TravelEntities) ([]domain.ScheduleObject, error) {
	if !e.IsComplete() {
		return nil, fmt.Errorf("rasp: incomplete trip, missing %v", e.MissingFields())
	}
	stops := make([]string, 0, len(e.Waypoints)+2)
	stops = append(stops, e.Origin)
	stops = append(stops, e.Waypoints...)
	stops = append(stops, e.Destination)

	codes := make([]string, len(stops))
	for i, stop := range stops {
		code, err := p.api.StationCode(ctx, stop)
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}

	if len(codes) == 2 {
		return p.direct(ctx, codes[0], codes[1], *e.DepartureDate, e.TransportPriority)
	}
	return p.multiLeg(ctx, codes, *e.DepartureDate, e.TransportPriority)
}

func (p *Planner) direct(ctx context.Context, from, to string, date civil.Date, priority []domain.TransportType) ([]domain.ScheduleObject, error) {
	segments, err := p.api.Search(ctx, from, to, date)
	if err != nil {
		return nil, err
	}
	options := toOptions(segments, p.logger)
	if len(options) == 0 {
		return nil, ErrNoRoute
	}
	picked := pickOptions(options, priority, p.maxOptions)
	return lo.Map(picked, func(o option, _ int) domain.ScheduleObject { return o.schedule() }), nil
}

// multiLeg picks one segment per leg. Each leg departs no earlier than the
// previous one arrives; a missing leg fails the whole route.
func (p *Planner) multiLeg(ctx context.Context, codes []string, date civil.Date, priority []domain.TransportType) ([]domain.ScheduleObject, error) {
	legs := make([]domain.ScheduleObject, 0, len(codes)-1)
	var readyAt time.Time
	for i := 0; i+1 < len(codes); i++ {
		segments, err := p.api.Search(ctx, codes[i], codes[i+1], date)
		if err != nil {
			return nil, err
		}
		candidates := lo.Filter(toOptions(segments, p.logger), func(o option, _ int) bool {
			return !o.departure.Before(readyAt)
		})
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w: leg %d has no connection", ErrNoRoute, i+1)
		}
		best := pickOptions(candidates, priority, 1)[0]
		legs = append(legs, best.schedule())

		readyAt = best.arrival
		date = civil.DateOf(best.arrival)
	}
	return legs, nil
}

type option struct {
	kind      domain.TransportType
	departure time.Time
	arrival   time.Time
	duration  time.Duration
	from, to  string
}

func (o option) schedule() domain.ScheduleObject {
	return domain.ScheduleObject{
		Type:         o.kind,
		TimeStartUTC: o.departure.Unix(),
		TimeEndUTC:   o.arrival.Unix(),
		PlaceStart:   o.from,
		PlaceFinish:  o.to,
	}
}

func toOptions(segments []Segment, logger *slog.Logger) []option {
	out := make([]option, 0, len(segments))
	for _, s := range segments {
		kind, ok := transportTypes[s.Thread.TransportType]
		if !ok {
			continue
		}
		dep, err := time.Parse(time.RFC3339, s.Departure)
		if err != nil {
			logger.Debug("rasp: skip segment", "thread", s.Thread.Number, "err", err)
			continue
		}
		arr, err := time.Parse(time.RFC3339, s.Arrival)
		if err != nil {
			logger.Debug("rasp: skip segment", "thread", s.Thread.Number, "err", err)
			continue
		}
		dur := time.Duration(s.Duration * float64(time.Second))
		if dur <= 0 {
			dur = arr.Sub(dep)
		}
		out = append(out, option{
			kind:      kind,
			departure: dep,
			arrival:   arr,
			duration:  dur,
			from:      s.From.Title,
			to:        s.To.Title,
		})
	}
	return out
}

// pickOptions returns the fastest option of each transport type, preferred
// types first, then fills up to limit with the fastest of the rest. Types the
// user did not ask for are used only when no preferred type is available.
func pickOptions(options []option, priority []domain.TransportType, limit int) []option {
	sorted := slices.Clone(options)
	slices.SortStableFunc(sorted, func(a, b option) int {
		return cmp.Compare(a.duration, b.duration)
	})

	if len(priority) > 0 {
		preferred := lo.Filter(sorted, func(o option, _ int) bool {
			return slices.Contains(priority, o.kind)
		})
		if len(preferred) > 0 {
			sorted = preferred
		}
	}

	order := slices.Clone(priority)
	for _, o := range sorted {
		if !slices.Contains(order, o.kind) {
			order = append(order, o.kind)
		}
	}

	picked := make([]option, 0, limit)
	taken := make(map[int]bool)
	for _, kind := range order {
		if len(picked) == limit {
			break
		}
		if idx := slices.IndexFunc(sorted, func(o option) bool { return o.kind == kind }); idx >= 0 {
			picked = append(picked, sorted[idx])
			taken[idx] = true
		}
	}
	for i, o := range sorted {
		if len(picked) == limit {
			break
		}
		if !taken[i] {
			picked = append(picked, o)
		}
	}
	return picked
}
