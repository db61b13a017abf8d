package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"travel-agent/internal/domain"
)

// Orchestrator runs the remote extractor and falls back to the pattern
// extractor on any failure. Run never fails.
type Orchestrator struct {
	remote  Extractor
	pattern Extractor
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type OrchestratorOption func(*Orchestrator)

func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(m *Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// NewOrchestrator wires the two extraction paths. remote may be nil, in
// which case every message goes straight to the pattern extractor.
func NewOrchestrator(remote, pattern Extractor, opts ...OrchestratorOption) (*Orchestrator, error) {
	if pattern == nil {
		return nil, errors.New("extraction: pattern extractor must not be nil")
	}
	o := &Orchestrator{
		remote:  remote,
		pattern: pattern,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run extracts an update from req and merges it into req.Known.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, domain.TravelEntities) {
	if req.Now.IsZero() {
		req.Now = o.now()
	}
	res := o.extract(ctx, req)
	o.metrics.observeExtraction(res.Provenance)
	return res, domain.Merge(req.Known, res.Update)
}

func (o *Orchestrator) extract(ctx context.Context, req Request) Result {
	if o.remote != nil {
		update, err := o.callRemote(ctx, req)
		if err == nil {
			return Result{Update: update, Provenance: ProvenanceRemote}
		}
		kind := KindOf(err)
		o.metrics.observeRemoteFailure(kind)
		o.logger.WarnContext(ctx, "remote extraction failed, falling back to pattern rules",
			"failure", string(kind), "err", err)
	}

	update, err := o.pattern.Extract(ctx, Request{Text: req.Text, Known: req.Known, Now: req.Now})
	if err != nil {
		o.logger.ErrorContext(ctx, "pattern extraction returned an error", "err", err)
		update = domain.TravelEntities{}
	}
	return Result{Update: update, Provenance: ProvenancePattern}
}

func (o *Orchestrator) callRemote(ctx context.Context, req Request) (update domain.TravelEntities, err error) {
	defer func() {
		if r := recover(); r != nil {
			update = domain.TravelEntities{}
			err = &RemoteError{Kind: FailureUnavailable, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return o.remote.Extract(ctx, req)
}
