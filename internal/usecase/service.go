package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"travel-agent/internal/domain"
	"travel-agent/internal/extraction"
	"travel-agent/internal/repository"
)

const (
	defaultHistoryWindow = extraction.DefaultHistoryWindow
	defaultMaxTextLen    = 1000

	DefaultApology = "Sorry, something went wrong on our side. Please try again in a moment."
	DefaultNoRoute = "I couldn't find a route for this trip. Try another date, different places or other transport."
)

// ConversationStore loads and saves conversation state. Get returns
// repository.ErrNotFound for unknown conversations.
type ConversationStore interface {
	Get(ctx context.Context, conversationID string) (*domain.ConversationState, error)
	Put(ctx context.Context, state *domain.ConversationState) error
}

// EntityExtractor extracts and merges entities for one message.
type EntityExtractor interface {
	Run(ctx context.Context, req extraction.Request) (extraction.Result, domain.TravelEntities)
}

// Planner computes schedule options for complete entities.
type Planner interface {
	Plan(ctx context.Context, e domain.TravelEntities) ([]domain.ScheduleObject, error)
}

type Input struct {
	ConversationID string
	Text           string
}

// Service handles one user message per call. Turns for the same conversation
// run one at a time; different conversations run in parallel.
type Service struct {
	store     ConversationStore
	extractor EntityExtractor
	planner   Planner
	policy    Policy
	locks     *keyedLocker

	historyWindow int
	maxTextLen    int
	apology       string
	noRoute       string

	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

func WithHistoryWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyWindow = n
		}
	}
}

func WithMaxTextLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTextLen = n
		}
	}
}

// WithMessages overrides the apology and no-route texts. Empty values keep
// the defaults.
func WithMessages(apology, noRoute string) Option {
	return func(s *Service) {
		if apology != "" {
			s.apology = apology
		}
		if noRoute != "" {
			s.noRoute = noRoute
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store ConversationStore, extractor EntityExtractor, planner Planner, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if extractor == nil {
		return nil, errors.New("usecase: extractor must not be nil")
	}
	if planner == nil {
		return nil, errors.New("usecase: planner must not be nil")
	}
	s := &Service{
		store:         store,
		extractor:     extractor,
		planner:       planner,
		policy:        NewPolicy(nil),
		locks:         newKeyedLocker(),
		historyWindow: defaultHistoryWindow,
		maxTextLen:    defaultMaxTextLen,
		apology:       DefaultApology,
		noRoute:       DefaultNoRoute,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// HandleMessage runs one dialogue turn. The returned error is non-nil only
// for invalid input; every other failure becomes a message response.
func (s *Service) HandleMessage(ctx context.Context, in Input) (resp domain.Response, err error) {
	id := strings.TrimSpace(in.ConversationID)
	text := strings.TrimSpace(in.Text)
	if id == "" {
		return domain.Response{}, newError(ErrorInvalidInput, "empty_conversation_id", nil)
	}
	if text == "" {
		return domain.Response{}, newError(ErrorInvalidInput, "empty_text", nil)
	}
	if utf8.RuneCountInString(text) > s.maxTextLen {
		return domain.Response{}, newError(ErrorInvalidInput, "text_too_long", nil)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "turn panicked",
				"conversation_id", id,
				"err", newError(ErrorInternal, "panic", fmt.Errorf("%v", r)),
				"stack", string(debug.Stack()))
			s.metrics.observeTurn(outcomePanic)
			resp, err = domain.NewMessageResponse(s.apology), nil
		}
	}()

	resp, outcome := s.turn(ctx, id, text)
	s.metrics.observeTurn(outcome)
	return resp, nil
}

func (s *Service) turn(ctx context.Context, id, text string) (domain.Response, string) {
	state, err := s.load(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load conversation",
			"conversation_id", id, "err", newError(ErrorStorage, "load_state", err))
		return domain.NewMessageResponse(s.apology), outcomeStorageFailure
	}

	now := s.now()
	prior := state.Window(s.historyWindow)
	state.AppendTurn(text, false, now)

	result, merged := s.extractor.Run(ctx, extraction.Request{
		Text:    text,
		History: prior,
		Known:   state.Entities,
		Now:     now,
	})
	state.Entities = merged

	decision := s.policy.Decide(merged)
	resp, outcome := s.respond(ctx, id, decision, merged)
	state.AppendTurn(transcript(resp, merged), true, s.now())

	if err := s.store.Put(ctx, state); err != nil {
		s.logger.ErrorContext(ctx, "failed to save conversation",
			"conversation_id", id, "err", newError(ErrorStorage, "save_state", err))
		return domain.NewMessageResponse(s.apology), outcomeStorageFailure
	}

	s.logger.InfoContext(ctx, "turn handled",
		"conversation_id", id,
		"provenance", string(result.Provenance),
		"state", string(decision.State),
		"outcome", outcome,
		"route", merged.Route())
	return resp, outcome
}

func (s *Service) load(ctx context.Context, id string) (*domain.ConversationState, error) {
	state, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NewConversationState(id), nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Service) respond(ctx context.Context, id string, d Decision, e domain.TravelEntities) (domain.Response, string) {
	if d.State == StateIncomplete {
		return domain.NewMessageResponse(d.Question), outcomeQuestion
	}

	objects, err := s.planner.Plan(ctx, e)
	if err == nil && len(objects) == 0 {
		err = errors.New("planner returned no options")
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "planning failed",
			"conversation_id", id, "route", e.Route(), "err", newError(ErrorPlanning, "plan", err))
		return domain.NewMessageResponse(s.noRoute), outcomePlanningFailure
	}
	return domain.NewScheduleResponse(objects), outcomeSchedule
}

// transcript is the bot turn stored in history for a response.
func transcript(resp domain.Response, e domain.TravelEntities) string {
	if resp.Type == domain.ResponseSchedule {
		return fmt.Sprintf("Found %d option(s) for %s on %s.", len(resp.Objects), e.Route(), e.DepartureDate)
	}
	return resp.Text
}
