// Package hint asks an optional language model to structure an address the
// rule-based normalizer could not fully decompose.
package hint

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/geolote/pkg/anthropic"
)

// Hint is the structured reading of one raw address. Empty fields are unknown.
type Hint struct {
	Street   string `json:"street"`
	Quadra   string `json:"quadra"`
	Lote     string `json:"lote"`
	District string `json:"district"`
}

// Empty reports whether the hint carries nothing usable.
func (h Hint) Empty() bool {
	return h.Street == "" && h.Quadra == "" && h.Lote == "" && h.District == ""
}

// Provider returns a hint for raw, or ok=false. Implementations never fail
// loudly: errors, timeouts and malformed replies all mean "no hint".
type Provider interface {
	Hint(ctx context.Context, raw string) (*Hint, bool)
}

// Noop is the default provider; it never has a hint.
type Noop struct{}

// Hint implements Provider.
func (Noop) Hint(context.Context, string) (*Hint, bool) { return nil, false }

const systemPrompt = `You structure Brazilian addresses that use the quadra/lote convention.
Reply with a single JSON object and nothing else:
{"street": "", "quadra": "", "lote": "", "district": ""}
street is the street name with its type (RUA, AVENIDA, ALAMEDA), quadra and lote are the bare block and lot numbers, district is the neighborhood. Leave unknown fields empty.`

// DefaultTimeout bounds one hint request.
const DefaultTimeout = 8 * time.Second

// Anthropic asks a Claude model for hints.
type Anthropic struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

// NewAnthropic creates a provider. An empty model uses anthropic.DefaultModel.
func NewAnthropic(client anthropic.Client, model string, timeout time.Duration) *Anthropic {
	if model == "" {
		model = anthropic.DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Anthropic{client: client, model: model, timeout: timeout}
}

// Hint implements Provider.
func (a *Anthropic) Hint(ctx context.Context, raw string) (*Hint, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	temp := 0.0
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   256,
		System:      []anthropic.SystemBlock{{Text: systemPrompt, CacheControl: &anthropic.CacheControl{TTL: "1h"}}},
		Messages:    []anthropic.Message{{Role: "user", Content: raw}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Debug("address hint unavailable", zap.String("raw", raw), zap.Error(err))
		return nil, false
	}
	resp.Usage.LogCost(a.model, "address_hint")

	h, ok := Parse(resp.Text())
	if !ok {
		zap.L().Debug("address hint unreadable", zap.String("raw", raw))
	}
	return h, ok
}

// Parse reads the first JSON object in text. Numbers in quadra/lote lose
// their leading zeros.
func Parse(text string) (*Hint, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var h Hint
	if err := json.Unmarshal([]byte(text[start:end+1]), &h); err != nil {
		return nil, false
	}
	h.Street = strings.TrimSpace(h.Street)
	h.District = strings.TrimSpace(h.District)
	h.Quadra = trimZeros(h.Quadra)
	h.Lote = trimZeros(h.Lote)
	if h.Empty() {
		return nil, false
	}
	return &h, true
}

func trimZeros(s string) string {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return strings.TrimLeft(s, "0")
}
