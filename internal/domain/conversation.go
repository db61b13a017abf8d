package domain

import "time"

// Turn is a single message in a conversation, either from the user or the bot.
type Turn struct {
	Seq   int       `json:"seq"`
	Text  string    `json:"text"`
	IsBot bool      `json:"is_bot"`
	At    time.Time `json:"at"`
}

// ConversationState is everything remembered about one conversation.
// Persisted is the highest turn sequence already written by the store.
type ConversationState struct {
	ID        string         `json:"id"`
	Entities  TravelEntities `json:"entities"`
	History   []Turn         `json:"history"`
	Persisted int            `json:"persisted"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewConversationState returns an empty state for id.
func NewConversationState(id string) *ConversationState {
	return &ConversationState{ID: id}
}

// LastSeq returns the sequence number of the newest turn, or zero.
func (s *ConversationState) LastSeq() int {
	if len(s.History) == 0 {
		return s.Persisted
	}
	return s.History[len(s.History)-1].Seq
}

// AppendTurn adds a turn with the next sequence number and returns it.
func (s *ConversationState) AppendTurn(text string, isBot bool, at time.Time) Turn {
	t := Turn{Seq: s.LastSeq() + 1, Text: text, IsBot: isBot, At: at.UTC()}
	s.History = append(s.History, t)
	s.UpdatedAt = t.At
	return t
}

// Window returns at most the n most recent turns, oldest first.
func (s *ConversationState) Window(n int) []Turn {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if n > len(s.History) {
		n = len(s.History)
	}
	return append([]Turn(nil), s.History[len(s.History)-n:]...)
}

// Unpersisted returns the turns a store has not written yet.
func (s *ConversationState) Unpersisted() []Turn {
	var out []Turn
	for _, t := range s.History {
		if t.Seq > s.Persisted {
			out = append(out, t)
		}
	}
	return out
}

// Clone returns a deep copy of s.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.Entities = s.Entities.Clone()
	out.History = append([]Turn(nil), s.History...)
	return &out
}
