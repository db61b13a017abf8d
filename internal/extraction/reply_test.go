package extraction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseExtractionReply_FencedJSON(t *testing.T) {
	got, err := parseExtractionReply("```json\n{\"origin\":\" Казань \",\"destination\":\"\",\"departure_date\":\"20.07.2025\",\"transport_priority\":[],\"intermediate_waypoints\":[\"\",\"Тверь\",\"Тверь\"]}\n```")
	require.NoError(t, err)
	require.Equal(t, "Казань", got.Origin)
	require.Empty(t, got.Destination)
	require.Equal(t, day(2025, time.July, 20), got.DepartureDate)
	require.Nil(t, got.TransportPriority)
	require.Equal(t, []string{"Тверь"}, got.Waypoints)
}

func TestParseExtractionReply_NullsAreEmpty(t *testing.T) {
	got, err := parseExtractionReply(`{"origin":null,"destination":null,"departure_date":null,"transport_priority":null,"intermediate_waypoints":null}`)
	require.NoError(t, err)
	require.True(t, got.IsEmpty())
}

func TestParseExtractionReply_TrailingData(t *testing.T) {
	_, err := parseExtractionReply(`{"origin":"Москва"} trailing`)
	require.Error(t, err)
}
