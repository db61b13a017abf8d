// Package rasp talks to the Yandex Rasp v3 schedule API and turns completed
// trip requests into schedule options.
package rasp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/patrickmn/go-cache"
)

const (
	DefaultBaseURL = "https://api.rasp.yandex.net/v3.0/"
	defaultLang    = "ru_RU"
	stationsKey    = "settlements"
	stationsTTL    = 24 * time.Hour
)

// ErrUnknownPlace is returned when a settlement title has no Rasp code.
var ErrUnknownPlace = errors.New("rasp: unknown place")

// HTTPStatusError captures non-2xx responses from the API.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("rasp: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Segment is one direct trip returned by the search endpoint.
type Segment struct {
	Thread struct {
		Number        string `json:"number"`
		Title         string `json:"title"`
		TransportType string `json:"transport_type"`
	} `json:"thread"`
	From struct {
		Title string `json:"title"`
	} `json:"from"`
	To struct {
		Title string `json:"title"`
	} `json:"to"`
	Departure string  `json:"departure"`
	Arrival   string  `json:"arrival"`
	Duration  float64 `json:"duration"`
}

type searchResponse struct {
	Segments []Segment `json:"segments"`
}

type stationsResponse struct {
	Countries []struct {
		Regions []struct {
			Settlements []struct {
				Title string `json:"title"`
				Codes struct {
					YandexCode string `json:"yandex_code"`
				} `json:"codes"`
			} `json:"settlements"`
		} `json:"regions"`
	} `json:"countries"`
}

// Client is a minimal Rasp API client. Settlement codes are loaded once from
// stations_list and cached for a day.
type Client struct {
	baseURL    string
	apiKey     string
	lang       string
	httpClient *http.Client

	cache  *cache.Cache
	loadMu sync.Mutex
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if b := strings.TrimSpace(baseURL); b != "" {
			c.baseURL = b
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithLang(lang string) Option {
	return func(c *Client) {
		if l := strings.TrimSpace(lang); l != "" {
			c.lang = l
		}
	}
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("rasp: api key must not be empty")
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		lang:       defaultLang,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		cache:      cache.New(stationsTTL, time.Hour),
	}
	for _, opt := range opts {
		opt(c)
	}
	if !strings.HasSuffix(c.baseURL, "/") {
		c.baseURL += "/"
	}
	return c, nil
}

// StationCode returns the yandex_code of the settlement titled title,
// compared case-insensitively.
func (c *Client) StationCode(ctx context.Context, title string) (string, error) {
	index, err := c.settlements(ctx)
	if err != nil {
		return "", err
	}
	code, ok := index[titleKey(title)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlace, title)
	}
	return code, nil
}

// Search lists direct segments between two codes on date.
func (c *Client) Search(ctx context.Context, fromCode, toCode string, date civil.Date) ([]Segment, error) {
	q := url.Values{}
	q.Set("from", fromCode)
	q.Set("to", toCode)
	q.Set("date", date.String())
	q.Set("page", "1")

	var out searchResponse
	if err := c.getJSON(ctx, "search/", q, &out); err != nil {
		return nil, err
	}
	return out.Segments, nil
}

func (c *Client) settlements(ctx context.Context) (map[string]string, error) {
	if v, ok := c.cache.Get(stationsKey); ok {
		return v.(map[string]string), nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if v, ok := c.cache.Get(stationsKey); ok {
		return v.(map[string]string), nil
	}

	var out stationsResponse
	if err := c.getJSON(ctx, "stations_list/", url.Values{}, &out); err != nil {
		return nil, err
	}
	index := make(map[string]string)
	for _, country := range out.Countries {
		for _, region := range country.Regions {
			for _, s := range region.Settlements {
				key := titleKey(s.Title)
				if key == "" || s.Codes.YandexCode == "" {
					continue
				}
				if _, dup := index[key]; !dup {
					index[key] = s.Codes.YandexCode
				}
			}
		}
	}
	c.cache.Set(stationsKey, index, cache.DefaultExpiration)
	return index, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	q.Set("apikey", c.apiKey)
	q.Set("format", "json")
	q.Set("lang", c.lang)
	endpoint := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("rasp: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rasp: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}
	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		return fmt.Errorf("rasp: decode %s: %w", path, err)
	}
	return nil
}

func titleKey(title string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(title)), "ё", "е")
}
