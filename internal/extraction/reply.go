package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/samber/lo"

	"travel-agent/internal/domain"
)

type extractionReply struct {
	Origin            string   `json:"origin"`
	Destination       string   `json:"destination"`
	DepartureDate     string   `json:"departure_date"`
	TransportPriority []string `json:"transport_priority"`
	Waypoints         []string `json:"intermediate_waypoints"`
}

// parseExtractionReply decodes exactly one JSON object. Unknown keys,
// trailing data and unparseable dates are rejected; unknown transport
// names are dropped.
func parseExtractionReply(raw string) (domain.TravelEntities, error) {
	cleaned := cleanJSONString(raw)
	if cleaned == "" {
		return domain.TravelEntities{}, errors.New("extraction: empty reply")
	}

	var out extractionReply
	dec := json.NewDecoder(bytes.NewBufferString(cleaned))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return domain.TravelEntities{}, fmt.Errorf("extraction: decode reply: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return domain.TravelEntities{}, errors.New("extraction: decode reply: multiple JSON values")
		}
		return domain.TravelEntities{}, fmt.Errorf("extraction: decode reply trailing data: %w", err)
	}

	update := domain.TravelEntities{
		Origin:      strings.TrimSpace(out.Origin),
		Destination: strings.TrimSpace(out.Destination),
		TransportPriority: lo.Uniq(lo.FilterMap(out.TransportPriority, func(s string, _ int) (domain.TransportType, bool) {
			return domain.ParseTransportType(s)
		})),
		Waypoints: lo.Uniq(lo.Compact(lo.Map(out.Waypoints, func(s string, _ int) string {
			return strings.TrimSpace(s)
		}))),
	}
	if len(update.TransportPriority) == 0 {
		update.TransportPriority = nil
	}
	if len(update.Waypoints) == 0 {
		update.Waypoints = nil
	}

	if ds := strings.TrimSpace(out.DepartureDate); ds != "" {
		d, err := parseReplyDate(ds)
		if err != nil {
			return domain.TravelEntities{}, err
		}
		update.DepartureDate = &d
	}
	return update, nil
}

// parseReplyDate accepts ISO dates and the DD.MM.YYYY form models fall back to.
func parseReplyDate(s string) (civil.Date, error) {
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	t, err := time.Parse("02.01.2006", s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("extraction: departure_date %q is not a date", s)
	}
	return civil.DateOf(t), nil
}

func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
