// Package geocode resolves free-text queries to candidate locations through
// the HERE Geocoding API, with pluggable caching and an outbound call limit.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/geolote/internal/resilience"
)

// Status is the outcome of one geocoding call. Only StatusOK carries candidates.
type Status string

const (
	StatusOK        Status = "OK"
	StatusNotFound  Status = "NOT_FOUND"
	StatusAPIError  Status = "API_ERROR"
	StatusNoKey     Status = "NO_KEY"
	StatusException Status = "EXCEPTION"
)

// Client geocodes a single query string. Failures are reported through the
// status, never as an error: callers move on to their next query.
type Client interface {
	Geocode(ctx context.Context, query string) ([]Candidate, Status)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, query string) ([]Candidate, Status)

// Geocode implements Client.
func (f ClientFunc) Geocode(ctx context.Context, query string) ([]Candidate, Status) {
	return f(ctx, query)
}

// Position is a WGS84 coordinate.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// FieldScore holds the provider's per-field confidence in [0, 1].
type FieldScore struct {
	City        float64   `json:"city,omitempty"`
	District    float64   `json:"district,omitempty"`
	HouseNumber float64   `json:"houseNumber,omitempty"`
	Streets     []float64 `json:"streets,omitempty"`
}

// Candidate is one location returned for a query.
type Candidate struct {
	Label       string     `json:"label"`
	Street      string     `json:"street,omitempty"`
	District    string     `json:"district,omitempty"`
	City        string     `json:"city,omitempty"`
	HouseNumber string     `json:"houseNumber,omitempty"`
	PostalCode  string     `json:"postalCode,omitempty"`
	Position    Position   `json:"position"`
	FieldScore  FieldScore `json:"fieldScore"`
	ResultType  string     `json:"resultType,omitempty"`
}

// StreetScore returns the best street confidence, or 0 when absent.
func (c Candidate) StreetScore() float64 {
	if len(c.FieldScore.Streets) == 0 {
		return 0
	}
	return c.FieldScore.Streets[0]
}

// Option configures the HERE client.
type Option func(*geocoder)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithBaseURL overrides the API root (default https://geocode.search.hereapi.com/v1).
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		if u != "" {
			g.baseURL = u
		}
	}
}

// WithRateLimit caps requests per second.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithCountry restricts results to an ISO 3166-1 alpha-3 country code.
func WithCountry(code string) Option {
	return func(g *geocoder) {
		g.country = code
	}
}

// WithLang sets the preferred response language.
func WithLang(lang string) Option {
	return func(g *geocoder) {
		g.lang = lang
	}
}

// WithLimit caps the number of candidates per response.
func WithLimit(n int) Option {
	return func(g *geocoder) {
		if n > 0 {
			g.maxItems = n
		}
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(g *geocoder) {
		g.retry = cfg
	}
}

// WithCircuitBreaker guards calls with cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(g *geocoder) {
		g.breaker = cb
	}
}

type geocoder struct {
	apiKey     string
	baseURL    string
	country    string
	lang       string
	maxItems   int
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
}

// NewClient creates a HERE Geocoding client. An empty apiKey yields a client
// that answers every query with StatusNoKey.
func NewClient(apiKey string, opts ...Option) Client {
	g := &geocoder{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		country:    "BRA",
		lang:       "pt-BR",
		maxItems:   5,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(20, 20),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.breaker == nil {
		g.breaker = resilience.NewCircuitBreaker("here", resilience.DefaultCircuitBreakerConfig())
	}
	return g
}
