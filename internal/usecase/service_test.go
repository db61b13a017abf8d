package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"travel-agent/internal/domain"
	"travel-agent/internal/extraction"
	"travel-agent/internal/repository"
)

var fixedNow = time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	*repository.MemoryStore
	getErr error
	putErr error
	puts   atomic.Int32
}

func (f *fakeStore) Get(ctx context.Context, id string) (*domain.ConversationState, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.MemoryStore.Get(ctx, id)
}

func (f *fakeStore) Put(ctx context.Context, state *domain.ConversationState) error {
	f.puts.Add(1)
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryStore.Put(ctx, state)
}

type stubPlanner struct {
	objects []domain.ScheduleObject
	err     error
	panics  bool
	calls   int
	got     domain.TravelEntities
}

func (p *stubPlanner) Plan(_ context.Context, e domain.TravelEntities) ([]domain.ScheduleObject, error) {
	p.calls++
	p.got = e
	if p.panics {
		panic("planner exploded")
	}
	return p.objects, p.err
}

type stubRemote struct {
	err error
}

func (s stubRemote) Extract(context.Context, extraction.Request) (domain.TravelEntities, error) {
	return domain.TravelEntities{}, s.err
}

type fixture struct {
	svc     *Service
	store   *fakeStore
	planner *stubPlanner
	metrics *Metrics
}

func newFixture(t *testing.T, remote extraction.Extractor) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pattern := extraction.NewPattern(extraction.WithClock(func() time.Time { return fixedNow }))
	orch, err := extraction.NewOrchestrator(remote, pattern, extraction.WithLogger(logger))
	require.NoError(t, err)

	f := &fixture{
		store: &fakeStore{MemoryStore: repository.NewMemoryStore(0)},
		planner: &stubPlanner{objects: []domain.ScheduleObject{{
			Type: domain.TransportTrain, PlaceStart: "Москва", PlaceFinish: "Сочи",
		}}},
		metrics: NewMetrics(nil),
	}
	f.svc, err = NewService(f.store, orch, f.planner, WithLogger(logger), WithMetrics(f.metrics))
	require.NoError(t, err)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) send(t *testing.T, id, text string) domain.Response {
	t.Helper()
	resp, err := f.svc.HandleMessage(context.Background(), Input{ConversationID: id, Text: text})
	require.NoError(t, err)
	return resp
}

func (f *fixture) state(t *testing.T, id string) *domain.ConversationState {
	t.Helper()
	s, err := f.store.MemoryStore.Get(context.Background(), id)
	require.NoError(t, err)
	return s
}

func TestNewService_ValidatesDependencies(t *testing.T) {
	store := repository.NewMemoryStore(0)
	pattern := extraction.NewPattern()
	orch, err := extraction.NewOrchestrator(nil, pattern)
	require.NoError(t, err)

	_, err = NewService(nil, orch, &stubPlanner{})
	require.Error(t, err)
	_, err = NewService(store, nil, &stubPlanner{})
	require.Error(t, err)
	_, err = NewService(store, orch, nil)
	require.Error(t, err)
}

func TestHandleMessage_InvalidInput(t *testing.T) {
	f := newFixture(t, nil)
	cases := []struct {
		in     Input
		reason string
	}{
		{Input{ConversationID: " ", Text: "hi"}, "empty_conversation_id"},
		{Input{ConversationID: "c1", Text: "  "}, "empty_text"},
		{Input{ConversationID: "c1", Text: string(make([]rune, defaultMaxTextLen+1))}, "text_too_long"},
	}
	for _, tc := range cases {
		_, err := f.svc.HandleMessage(context.Background(), tc.in)
		var uerr *Error
		require.True(t, errors.As(err, &uerr))
		require.Equal(t, ErrorInvalidInput, uerr.Code)
		require.Equal(t, tc.reason, uerr.Reason)
	}
	require.Zero(t, f.store.puts.Load())
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestHandleMessage_CompleteInOneMessage(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.send(t, "c1", "Из Москвы в Сочи 20.07")

	require.Equal(t, domain.ResponseSchedule, resp.Type)
	require.Len(t, resp.Objects, 1)
	require.Equal(t, 1, f.planner.calls)
	require.Equal(t, "Москва", f.planner.got.Origin)
	require.Equal(t, "Сочи", f.planner.got.Destination)
	require.Equal(t, civil.Date{Year: 2025, Month: time.July, Day: 20}, *f.planner.got.DepartureDate)

	st := f.state(t, "c1")
	require.Len(t, st.History, 2)
	require.False(t, st.History[0].IsBot)
	require.True(t, st.History[1].IsBot)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.turns.WithLabelValues(outcomeSchedule)))
}

func TestHandleMessage_AsksForOrigin(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.send(t, "c1", "Хочу в Париж")

	require.Equal(t, domain.NewMessageResponse("Where are you traveling from?"), resp)
	require.Zero(t, f.planner.calls)

	st := f.state(t, "c1")
	require.Equal(t, "Париж", st.Entities.Destination)
	require.Equal(t, "Where are you traveling from?", st.History[1].Text)
}

func TestHandleMessage_MultiTurnMerge(t *testing.T) {
	f := newFixture(t, nil)

	first := f.send(t, "c1", "Из Петербурга")
	require.Equal(t, "Where are you headed?", first.Text)

	second := f.send(t, "c1", "В Москву 15 июня")
	require.Equal(t, domain.ResponseSchedule, second.Type)
	require.Equal(t, "Петербург", f.planner.got.Origin)
	require.Equal(t, "Москва", f.planner.got.Destination)
	require.Equal(t, civil.Date{Year: 2025, Month: time.June, Day: 15}, *f.planner.got.DepartureDate)

	st := f.state(t, "c1")
	require.Len(t, st.History, 4)
	require.Equal(t, 4, st.Persisted)
}

func TestHandleMessage_PoliteFollowUpKeepsRoute(t *testing.T) {
	f := newFixture(t, nil)

	f.send(t, "c1", "Из Москвы в Сочи 20.07")
	resp := f.send(t, "c1", "Спасибо, Анна!")

	require.Equal(t, domain.ResponseSchedule, resp.Type)
	require.Equal(t, 2, f.planner.calls)
	require.Equal(t, "Москва", f.planner.got.Origin)
	require.Equal(t, "Сочи", f.planner.got.Destination)

	st := f.state(t, "c1")
	require.Equal(t, "Москва", st.Entities.Origin)
	require.Equal(t, "Сочи", st.Entities.Destination)
}

func TestHandleMessage_RemoteTimeoutFallsBack(t *testing.T) {
	remote := stubRemote{err: &extraction.RemoteError{Kind: extraction.FailureTimeout, Err: context.DeadlineExceeded}}
	f := newFixture(t, remote)

	resp := f.send(t, "c1", "Из Москвы в Сочи 20.07")
	require.Equal(t, domain.ResponseSchedule, resp.Type)
	require.Equal(t, "Москва", f.planner.got.Origin)
}

// ---------------------------------------------------------------------------
// Failures
// ---------------------------------------------------------------------------

func TestHandleMessage_PlanningFailureKeepsEntities(t *testing.T) {
	f := newFixture(t, nil)
	f.planner.err = errors.New("rasp: no route found")

	resp := f.send(t, "c1", "Из Москвы в Сочи 20.07")
	require.Equal(t, domain.NewMessageResponse(DefaultNoRoute), resp)

	st := f.state(t, "c1")
	require.True(t, st.Entities.IsComplete())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.turns.WithLabelValues(outcomePlanningFailure)))
}

func TestHandleMessage_EmptyPlanIsPlanningFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.planner.objects = nil

	resp := f.send(t, "c1", "Из Москвы в Сочи 20.07")
	require.Equal(t, DefaultNoRoute, resp.Text)
}

func TestHandleMessage_StorageLoadFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.store.getErr = errors.New("dynamodb down")

	resp := f.send(t, "c1", "Из Москвы")
	require.Equal(t, domain.NewMessageResponse(DefaultApology), resp)
	require.Zero(t, f.store.puts.Load())
}

func TestHandleMessage_StorageSaveFailureIsNotPersisted(t *testing.T) {
	f := newFixture(t, nil)
	f.store.putErr = errors.New("throttled")

	resp := f.send(t, "c1", "Из Москвы")
	require.Equal(t, DefaultApology, resp.Text)

	_, err := f.store.MemoryStore.Get(context.Background(), "c1")
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.turns.WithLabelValues(outcomeStorageFailure)))
}

func TestHandleMessage_PanicBecomesApology(t *testing.T) {
	f := newFixture(t, nil)
	f.planner.panics = true

	resp, err := f.svc.HandleMessage(context.Background(), Input{ConversationID: "c1", Text: "Из Москвы в Сочи 20.07"})
	require.NoError(t, err)
	require.Equal(t, DefaultApology, resp.Text)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.turns.WithLabelValues(outcomePanic)))

	// the lock was released
	resp = f.send(t, "c2", "Хочу в Париж")
	require.Equal(t, domain.ResponseMessage, resp.Type)
}

func TestHandleMessage_CustomMessages(t *testing.T) {
	f := newFixture(t, nil)
	WithMessages("Извините", "")(f.svc)
	f.store.getErr = errors.New("boom")

	resp := f.send(t, "c1", "Из Москвы")
	require.Equal(t, "Извините", resp.Text)
	require.Equal(t, DefaultNoRoute, f.svc.noRoute)
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestHandleMessage_SerializesSameConversation(t *testing.T) {
	f := newFixture(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.svc.HandleMessage(context.Background(), Input{
				ConversationID: "shared",
				Text:           fmt.Sprintf("сообщение %d", i),
			})
		}(i)
	}
	wg.Wait()

	st := f.state(t, "shared")
	require.Len(t, st.History, 16)
	for i, turn := range st.History {
		require.Equal(t, i+1, turn.Seq)
		require.Equal(t, i%2 == 1, turn.IsBot)
	}
	require.Zero(t, f.svc.locks.size())
}

func TestHandleMessage_ParallelConversations(t *testing.T) {
	f := newFixture(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.svc.HandleMessage(context.Background(), Input{
				ConversationID: fmt.Sprintf("c%d", i),
				Text:           "Хочу в Париж",
			})
		}(i)
	}
	wg.Wait()
	require.Equal(t, 10, f.store.Len())
}

func TestPreviewPlanner(t *testing.T) {
	d := civil.Date{Year: 2025, Month: time.July, Day: 20}
	e := domain.TravelEntities{Origin: "Москва", Destination: "Сочи", DepartureDate: &d}

	got, err := PreviewPlanner{}.Plan(context.Background(), e)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, domain.TransportBus, got[0].Type)
	require.Equal(t, time.Date(2025, 7, 20, 9, 0, 0, 0, time.UTC).Unix(), got[0].TimeStartUTC)

	e.Waypoints = []string{"Ростов"}
	got, err = PreviewPlanner{}.Plan(context.Background(), e)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Len(t, previewDefaults, 2)

	_, err = PreviewPlanner{}.Plan(context.Background(), domain.TravelEntities{})
	require.Error(t, err)
}
