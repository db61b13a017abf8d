package usecase

import (
	"maps"

	"travel-agent/internal/domain"
)

// DialogueState is the completion class of a set of entities.
type DialogueState string

const (
	StateIncomplete DialogueState = "incomplete"
	StateComplete   DialogueState = "complete"
)

// DefaultQuestions are asked for the first missing field.
var DefaultQuestions = map[domain.FieldID]string{
	domain.FieldOrigin:        "Where are you traveling from?",
	domain.FieldDestination:   "Where are you headed?",
	domain.FieldDepartureDate: "When would you like to travel?",
}

// Decision is the policy outcome for one turn. Question and Missing are set
// only when the state is incomplete.
type Decision struct {
	State    DialogueState
	Missing  domain.FieldID
	Question string
}

// Policy maps merged entities to the next dialogue step. It is a pure
// function of its input.
type Policy struct {
	questions map[domain.FieldID]string
}

// NewPolicy overlays questions on DefaultQuestions. Blank templates are
// ignored.
func NewPolicy(questions map[domain.FieldID]string) Policy {
	q := maps.Clone(DefaultQuestions)
	for field, text := range questions {
		if text != "" {
			q[field] = text
		}
	}
	return Policy{questions: q}
}

func (p Policy) Decide(e domain.TravelEntities) Decision {
	missing := e.MissingFields()
	if len(missing) == 0 {
		return Decision{State: StateComplete}
	}
	first := missing[0]
	return Decision{
		State:    StateIncomplete,
		Missing:  first,
		Question: p.questions[first],
	}
}
