package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"travel-agent/internal/domain"
	"travel-agent/internal/usecase"
)

type stubService struct {
	out    domain.Response
	err    error
	panics bool
	in     usecase.Input
}

func (s *stubService) HandleMessage(_ context.Context, in usecase.Input) (domain.Response, error) {
	s.in = in
	if s.panics {
		panic("boom")
	}
	return s.out, s.err
}

func newTestRouter(t *testing.T, svc MessageHandler, reg *prometheus.Registry) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := NewServer(ServerDeps{
		Service:  svc,
		Gatherer: reg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return s.Routes()
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/request", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewServer_RequiresService(t *testing.T) {
	_, err := NewServer(ServerDeps{})
	require.Error(t, err)
}

func TestRequest_MessageResponse(t *testing.T) {
	svc := &stubService{out: domain.NewMessageResponse("Where are you headed?")}
	h := newTestRouter(t, svc, prometheus.NewRegistry())

	w := post(t, h, `{"id":"c1","text":"Из Москвы"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, usecase.Input{ConversationID: "c1", Text: "Из Москвы"}, svc.in)
	require.JSONEq(t, `{"type":"message","text":"Where are you headed?"}`, w.Body.String())
	require.NotEmpty(t, w.Header().Get("X-Correlation-Id"))
}

func TestRequest_ConversationIDAlias(t *testing.T) {
	svc := &stubService{out: domain.NewMessageResponse("ok")}
	h := newTestRouter(t, svc, prometheus.NewRegistry())

	w := post(t, h, `{"conversation_id":"c9","text":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "c9", svc.in.ConversationID)
}

func TestRequest_Schedule(t *testing.T) {
	svc := &stubService{out: domain.NewScheduleResponse([]domain.ScheduleObject{{
		Type: domain.TransportPlane, TimeStartUTC: 1, TimeEndUTC: 2, PlaceStart: "A", PlaceFinish: "B",
	}})}
	h := newTestRouter(t, svc, prometheus.NewRegistry())

	w := post(t, h, `{"id":"c1","text":"Из Москвы в Сочи 20.07"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var out domain.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, domain.ResponseSchedule, out.Type)
	require.Equal(t, domain.TransportPlane, out.Objects[0].Type)
}

func TestRequest_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"malformed json", `{`, nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"invalid input", `{"id":"c1","text":""}`, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_text"}, http.StatusBadRequest, "INVALID_INPUT"},
		{"unexpected", `{"id":"c1","text":"x"}`, errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestRouter(t, &stubService{err: tc.err}, prometheus.NewRegistry())
			w := post(t, h, tc.body)
			require.Equal(t, tc.status, w.Code)
			require.JSONEq(t, `{"error":"`+tc.code+`"}`, w.Body.String())
		})
	}
}

func TestRequest_PanicRecovered(t *testing.T) {
	h := newTestRouter(t, &stubService{panics: true}, prometheus.NewRegistry())
	w := post(t, h, `{"id":"c1","text":"x"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCorrelationID_Echoed(t *testing.T) {
	h := newTestRouter(t, &stubService{out: domain.NewMessageResponse("ok")}, prometheus.NewRegistry())
	req := httptest.NewRequest(http.MethodPost, "/api/request", strings.NewReader(`{"id":"c1","text":"x"}`))
	req.Header.Set("X-Correlation-Id", "corr-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, "corr-1", w.Header().Get("X-Correlation-Id"))
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "travel_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()
	h := newTestRouter(t, &stubService{}, reg)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "travel_test_total 1")
}
