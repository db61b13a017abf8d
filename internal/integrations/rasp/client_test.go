package rasp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"
)

const stationsBody = `{
  "countries": [{
    "regions": [{
      "settlements": [
        {"title": "Москва", "codes": {"yandex_code": "c213"}},
        {"title": "Санкт-Петербург", "codes": {"yandex_code": "c2"}},
        {"title": "Орёл", "codes": {"yandex_code": "c10"}},
        {"title": "", "codes": {"yandex_code": "c0"}}
      ]
    }]
  }]
}`

const searchBody = `{
  "segments": [{
    "thread": {"number": "752А", "title": "Москва — Санкт-Петербург", "transport_type": "train"},
    "from": {"title": "Ленинградский вокзал"},
    "to": {"title": "Московский вокзал"},
    "departure": "2025-07-20T05:40:00+03:00",
    "arrival": "2025-07-20T09:40:00+03:00",
    "duration": 14400
  }]
}`

func newTestServer(t *testing.T, stationsHits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		require.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/stations_list/":
			atomic.AddInt32(stationsHits, 1)
			_, _ = w.Write([]byte(stationsBody))
		case "/search/":
			require.Equal(t, "c213", r.URL.Query().Get("from"))
			require.Equal(t, "c2", r.URL.Query().Get("to"))
			require.Equal(t, "2025-07-20", r.URL.Query().Get("date"))
			_, _ = w.Write([]byte(searchBody))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
}

func TestStationCode_CaseInsensitiveAndCached(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	c, err := NewClient("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	code, err := c.StationCode(context.Background(), "москва")
	require.NoError(t, err)
	require.Equal(t, "c213", code)

	code, err = c.StationCode(context.Background(), "Орел")
	require.NoError(t, err)
	require.Equal(t, "c10", code)

	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestStationCode_Unknown(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	c, err := NewClient("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.StationCode(context.Background(), "Атлантида")
	require.ErrorIs(t, err, ErrUnknownPlace)
}

func TestSearch_DecodesSegments(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	c, err := NewClient("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	segs, err := c.Search(context.Background(), "c213", "c2", civil.Date{Year: 2025, Month: 7, Day: 20})
	require.NoError(t, err)
	require.Len(t, segs, 1)
	require.Equal(t, "train", segs[0].Thread.TransportType)
	require.Equal(t, "Ленинградский вокзал", segs[0].From.Title)
	require.Equal(t, 14400.0, segs[0].Duration)
}

func TestSearch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "c213", "c2", civil.Date{Year: 2025, Month: 7, Day: 20})
	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusUnauthorized, statusErr.HTTPStatusCode())
}
