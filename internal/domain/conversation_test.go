package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func timeMonth(m int) time.Month { return time.Month(m) }

func TestConversationState_AppendAndWindow(t *testing.T) {
	s := NewConversationState("conv-1")
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := s.AppendTurn("в Москву", false, now)
	second := s.AppendTurn("Where are you traveling from?", true, now.Add(time.Second))
	third := s.AppendTurn("из Питера", false, now.Add(2*time.Second))

	require.Equal(t, 1, first.Seq)
	require.Equal(t, 2, second.Seq)
	require.Equal(t, 3, third.Seq)
	require.Equal(t, now.Add(2*time.Second), s.UpdatedAt)

	require.Equal(t, []Turn{second, third}, s.Window(2))
	require.Len(t, s.Window(10), 3)
	require.Nil(t, s.Window(0))
}

func TestConversationState_Unpersisted(t *testing.T) {
	s := NewConversationState("conv-1")
	now := time.Now()
	s.AppendTurn("a", false, now)
	s.AppendTurn("b", true, now)
	s.Persisted = 2
	s.AppendTurn("c", false, now)

	got := s.Unpersisted()
	require.Len(t, got, 1)
	require.Equal(t, "c", got[0].Text)
}

func TestConversationState_SequenceContinuesAfterTrim(t *testing.T) {
	s := &ConversationState{ID: "conv-1", Persisted: 40}
	turn := s.AppendTurn("hello", false, time.Now())
	require.Equal(t, 41, turn.Seq)
}

func TestConversationState_CloneIsDeep(t *testing.T) {
	s := NewConversationState("conv-1")
	s.AppendTurn("a", false, time.Now())
	s.Entities.Waypoints = []string{"Воронеж"}

	c := s.Clone()
	c.History[0].Text = "changed"
	c.Entities.Waypoints[0] = "Ростов"

	require.Equal(t, "a", s.History[0].Text)
	require.Equal(t, "Воронеж", s.Entities.Waypoints[0])
}
