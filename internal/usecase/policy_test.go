package usecase

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"

	"travel-agent/internal/domain"
)

func TestPolicy_AsksFirstMissingField(t *testing.T) {
	d := civil.Date{Year: 2025, Month: time.July, Day: 20}
	cases := []struct {
		name     string
		entities domain.TravelEntities
		missing  domain.FieldID
		question string
	}{
		{"empty", domain.TravelEntities{}, domain.FieldOrigin, "Where are you traveling from?"},
		{"destination only", domain.TravelEntities{Destination: "Париж"}, domain.FieldOrigin, "Where are you traveling from?"},
		{"origin only", domain.TravelEntities{Origin: "Москва"}, domain.FieldDestination, "Where are you headed?"},
		{"no date", domain.TravelEntities{Origin: "Москва", Destination: "Сочи"}, domain.FieldDepartureDate, "When would you like to travel?"},
		{"date only", domain.TravelEntities{DepartureDate: &d}, domain.FieldOrigin, "Where are you traveling from?"},
	}
	p := NewPolicy(nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Decide(tc.entities)
			require.Equal(t, StateIncomplete, got.State)
			require.Equal(t, tc.missing, got.Missing)
			require.Equal(t, tc.question, got.Question)
		})
	}
}

func TestPolicy_CompleteIsIdempotent(t *testing.T) {
	d := civil.Date{Year: 2025, Month: time.July, Day: 20}
	e := domain.TravelEntities{Origin: "Москва", Destination: "Сочи", DepartureDate: &d}
	p := NewPolicy(nil)

	first := p.Decide(e)
	second := p.Decide(e)
	require.Equal(t, Decision{State: StateComplete}, first)
	require.Equal(t, first, second)
}

func TestNewPolicy_OverridesTemplates(t *testing.T) {
	p := NewPolicy(map[domain.FieldID]string{
		domain.FieldOrigin:      "Откуда едем?",
		domain.FieldDestination: "",
	})
	require.Equal(t, "Откуда едем?", p.Decide(domain.TravelEntities{}).Question)
	require.Equal(t, "Where are you headed?", p.Decide(domain.TravelEntities{Origin: "Москва"}).Question)
	require.Equal(t, "Where are you traveling from?", DefaultQuestions[domain.FieldOrigin])
}
