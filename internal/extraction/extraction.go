// Package extraction turns free-form trip requests into partial
// domain.TravelEntities updates.
//
// Two extractors are provided: Remote, which asks a language model, and
// Pattern, which applies deterministic marker, date and keyword rules. The
// Orchestrator prefers the remote path and falls back to the pattern path on
// any remote failure, so extraction as a whole never fails.
package extraction

import (
	"context"
	"time"

	"travel-agent/internal/domain"
)

// Provenance records which extractor produced an update.
type Provenance string

const (
	ProvenanceRemote  Provenance = "remote"
	ProvenancePattern Provenance = "pattern"
)

// Request is the input to a single extraction.
type Request struct {
	// Text is the latest user message.
	Text string
	// History holds prior turns, oldest first, excluding Text.
	History []domain.Turn
	// Known is what the conversation already knows.
	Known domain.TravelEntities
	// Now anchors relative dates. Zero means time.Now at call time.
	Now time.Time
}

// Result is a partial update plus the extractor that produced it.
type Result struct {
	Update     domain.TravelEntities
	Provenance Provenance
}

// Extractor produces a partial update from a request.
type Extractor interface {
	Extract(ctx context.Context, req Request) (domain.TravelEntities, error)
}
