package extraction

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"golang.org/x/time/rate"

	"travel-agent/internal/domain"
)

const (
	DefaultRemoteTimeout = 5 * time.Second
	DefaultHistoryWindow = 10
)

// Completer sends a chat prompt to a language model and returns the raw
// reply text.
type Completer interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// Remote extracts entities by asking a language model. Every failure is
// reported as a *RemoteError and no call is retried.
type Remote struct {
	llm     Completer
	timeout time.Duration
	window  int
	limiter *rate.Limiter
	loc     *time.Location
	now     func() time.Time
}

var _ Extractor = (*Remote)(nil)

type RemoteOption func(*Remote)

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithHistoryWindow sets how many prior turns are sent as context.
func WithHistoryWindow(n int) RemoteOption {
	return func(r *Remote) {
		if n >= 0 {
			r.window = n
		}
	}
}

// WithRateLimit caps model calls per second. Calls over budget fail
// immediately as FailureUnavailable instead of waiting.
func WithRateLimit(perSecond float64, burst int) RemoteOption {
	return func(r *Remote) {
		if perSecond > 0 && burst > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithRemoteLocation sets the time zone used for "today" in the prompt.
func WithRemoteLocation(loc *time.Location) RemoteOption {
	return func(r *Remote) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func NewRemote(llm Completer, opts ...RemoteOption) (*Remote, error) {
	if llm == nil {
		return nil, errors.New("extraction: completer must not be nil")
	}
	r := &Remote{
		llm:     llm,
		timeout: DefaultRemoteTimeout,
		window:  DefaultHistoryWindow,
		loc:     time.UTC,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Remote) Extract(ctx context.Context, req Request) (domain.TravelEntities, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return domain.TravelEntities{}, &RemoteError{Kind: FailureUnavailable, Err: errors.New("empty message")}
	}
	if r.limiter != nil && !r.limiter.Allow() {
		return domain.TravelEntities{}, &RemoteError{Kind: FailureUnavailable, Err: ErrRateLimited}
	}

	now := req.Now
	if now.IsZero() {
		now = r.now()
	}
	messages := buildExtractionMessages(text, r.recent(req.History), req.Known, civil.DateOf(now.In(r.loc)))

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.llm.Complete(callCtx, messages)
	if err != nil {
		kind := classifyCallError(err)
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			kind = FailureTimeout
		}
		return domain.TravelEntities{}, &RemoteError{Kind: kind, Err: err}
	}

	update, err := parseExtractionReply(raw)
	if err != nil {
		return domain.TravelEntities{}, &RemoteError{Kind: FailureMalformed, Err: err}
	}
	return update, nil
}

func (r *Remote) recent(history []domain.Turn) []domain.Turn {
	if r.window <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) > r.window {
		history = history[len(history)-r.window:]
	}
	return history
}
