package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geolote/internal/resilience"
)

// DefaultBaseURL is the HERE Geocoding & Search v1 root.
const DefaultBaseURL = "https://geocode.search.hereapi.com/v1"

type hereResponse struct {
	Items []hereItem `json:"items"`
}

type hereItem struct {
	Title      string `json:"title"`
	ResultType string `json:"resultType"`
	Address    struct {
		Label       string `json:"label"`
		City        string `json:"city"`
		District    string `json:"district"`
		Street      string `json:"street"`
		HouseNumber string `json:"houseNumber"`
		PostalCode  string `json:"postalCode"`
	} `json:"address"`
	Position Position `json:"position"`
	Scoring  struct {
		QueryScore float64    `json:"queryScore"`
		FieldScore FieldScore `json:"fieldScore"`
	} `json:"scoring"`
}

func (it hereItem) candidate() Candidate {
	return Candidate{
		Label:       it.Address.Label,
		Street:      it.Address.Street,
		District:    it.Address.District,
		City:        it.Address.City,
		HouseNumber: it.Address.HouseNumber,
		PostalCode:  it.Address.PostalCode,
		Position:    it.Position,
		FieldScore:  it.Scoring.FieldScore,
		ResultType:  it.ResultType,
	}
}

// errHTTPStatus marks a non-200 reply so it can be reported as StatusAPIError.
var errHTTPStatus = errors.New("geocode: here http status")

// Geocode implements Client.
func (g *geocoder) Geocode(ctx context.Context, query string) ([]Candidate, Status) {
	if g.apiKey == "" {
		return nil, StatusNoKey
	}
	if strings.TrimSpace(query) == "" {
		return nil, StatusNotFound
	}

	resp, err := resilience.Execute(ctx, g.breaker, func(ctx context.Context) (*hereResponse, error) {
		return resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*hereResponse, error) {
			return g.fetch(ctx, query)
		})
	})
	if err != nil {
		status := StatusException
		if errors.Is(err, errHTTPStatus) || errors.Is(err, resilience.ErrCircuitOpen) {
			status = StatusAPIError
		}
		zap.L().Warn("here geocode failed",
			zap.String("query", query),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return nil, status
	}

	if len(resp.Items) == 0 {
		return nil, StatusNotFound
	}

	candidates := make([]Candidate, len(resp.Items))
	for i, it := range resp.Items {
		candidates[i] = it.candidate()
	}
	return candidates, StatusOK
}

func (g *geocoder) fetch(ctx context.Context, query string) (*hereResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: here rate limit")
	}

	params := url.Values{
		"q":      {query},
		"apiKey": {g.apiKey},
		"limit":  {strconv.Itoa(g.maxItems)},
	}
	if g.country != "" {
		params.Set("in", "countryCode:"+g.country)
	}
	if g.lang != "" {
		params.Set("lang", g.lang)
	}

	reqURL := strings.TrimRight(g.baseURL, "/") + "/geocode?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: here build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: here request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Join(errHTTPStatus, resilience.StatusError("geocode: here", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: here read body")
	}

	var out hereResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "geocode: here parse response")
	}
	return &out, nil
}
