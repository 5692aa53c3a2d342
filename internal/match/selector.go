package match

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/geolote/internal/address"
	"github.com/sells-group/geolote/internal/model"
	"github.com/sells-group/geolote/pkg/geocode"
)

// Config holds every threshold and weight the selector applies.
type Config struct {
	CitySimilarity      float64
	StreetSimilarity    float64
	ShortcutStreet      float64
	NeighborhoodCutoff  float64
	MinStreetLen        int
	ScoreQuadra         int
	ScoreStreet         int
	PenaltyNeighborhood int
	Algorithm           string
}

// DefaultConfig returns the canonical threshold set.
func DefaultConfig() Config {
	return Config{
		CitySimilarity:      0.80,
		StreetSimilarity:    0.80,
		ShortcutStreet:      0.83,
		NeighborhoodCutoff:  0.40,
		MinStreetLen:        5,
		ScoreQuadra:         100,
		ScoreStreet:         30,
		PenaltyNeighborhood: 30,
		Algorithm:           AlgorithmTokenSet,
	}
}

// Target describes the location a row asks for. Built once per row.
type Target struct {
	Street       string
	Neighborhood string
	City         string
	Quadra       string
	Lote         string
}

// NewTarget builds a Target from a normalized address.
func NewTarget(addr address.NormalizedAddress, neighborhood, city string) Target {
	return Target{
		Street:       strings.ToUpper(addr.Street),
		Neighborhood: neighborhood,
		City:         city,
		Quadra:       addr.Quadra,
		Lote:         addr.Lote,
	}
}

// Selection is the accepted candidate of one candidate list. Quadra is the
// quadra read off the candidate, "" when it carries none.
type Selection struct {
	Candidate             geocode.Candidate
	Score                 int
	Quadra                string
	QuadraConfirmed       bool
	NeighborhoodConfirmed bool
	Shortcut              bool
	Partial               bool
	Status                model.MatchStatus
}

// Exact reports whether the selection reached the top score tier.
func (s Selection) Exact() bool { return !s.Partial }

// QuadraAgrees reports whether the candidate's quadra, when it has one,
// equals quadra.
func (s Selection) QuadraAgrees(quadra string) bool {
	return s.Quadra == "" || s.Quadra == quadra
}

var (
	quadraSuffix = regexp.MustCompile(`\bQUADRA\b.*$`)
	digitRun     = regexp.MustCompile(`\d+`)
)

// Selector picks the best candidate of a geocoder response.
type Selector struct {
	cfg  Config
	sim  Similarity
	plot *address.PlotExtractor
}

// NewSelector creates a selector. plot is used to read quadra numbers out of
// candidate labels; nil uses the default extractor.
func NewSelector(cfg Config, plot *address.PlotExtractor) *Selector {
	if plot == nil {
		plot = address.NewPlotExtractor(address.DefaultPlotCeiling, address.DefaultRules().InvalidValues)
	}
	return &Selector{cfg: cfg, sim: SimilarityFor(cfg.Algorithm), plot: plot}
}

// Config returns the selector's thresholds.
func (s *Selector) Config() Config { return s.cfg }

// Select scores candidates in order and returns the best survivor.
// ok is false when every candidate was rejected.
func (s *Selector) Select(candidates []geocode.Candidate, t Target) (best Selection, ok bool) {
	for _, c := range candidates {
		if s.shortcut(c) {
			return Selection{
				Candidate:             c,
				Score:                 s.cfg.ScoreQuadra,
				Quadra:                s.candidateQuadra(c),
				NeighborhoodConfirmed: true,
				Shortcut:              true,
				Status:                model.StatusExact,
			}, true
		}

		sel, accepted := s.score(c, t)
		if !accepted {
			continue
		}
		if !ok || sel.Score > best.Score {
			best, ok = sel, true
		}
	}
	return best, ok
}

func (s *Selector) shortcut(c geocode.Candidate) bool {
	fs := c.FieldScore
	return fs.City == 1.0 && fs.HouseNumber == 1.0 && c.StreetScore() >= s.cfg.ShortcutStreet
}

func (s *Selector) score(c geocode.Candidate, t Target) (Selection, bool) {
	if t.City != "" && !Contained(t.City, c.City) && s.sim(t.City, c.City) < s.cfg.CitySimilarity {
		return Selection{}, false
	}

	street := CandidateStreet(c.Street)
	if !Contained(streetKey(t.Street), streetKey(street)) &&
		s.sim(streetKey(t.Street), streetKey(street)) < s.cfg.StreetSimilarity {
		return Selection{}, false
	}

	if !sharesDigits(t.Street, street) {
		return Selection{}, false
	}

	foundQuadra := s.candidateQuadra(c)
	if t.Quadra != "" && foundQuadra != "" && t.Quadra != foundQuadra {
		return Selection{}, false
	}
	quadraConfirmed := t.Quadra != "" && foundQuadra == t.Quadra

	neighborhoodOK := true
	if t.Neighborhood != "" {
		ns := s.neighborhoodScore(c, t.Neighborhood)
		if ns < s.cfg.NeighborhoodCutoff {
			if len(t.Street) < s.cfg.MinStreetLen {
				return Selection{}, false
			}
			neighborhoodOK = false
		}
	}

	sel := Selection{
		Candidate:             c,
		Quadra:                foundQuadra,
		QuadraConfirmed:       quadraConfirmed,
		NeighborhoodConfirmed: neighborhoodOK,
	}
	if quadraConfirmed {
		sel.Score = s.cfg.ScoreQuadra
		sel.Status = model.StatusExact
	} else {
		sel.Score = s.cfg.ScoreStreet
		sel.Status = model.StatusStreetNoQuadra
	}
	if !neighborhoodOK {
		sel.Score -= s.cfg.PenaltyNeighborhood
		sel.Status = model.StatusBairroMismatch
	}
	sel.Partial = !(sel.Score >= s.cfg.ScoreQuadra && neighborhoodOK)
	return sel, true
}

// candidateQuadra reads the quadra from the label, then the street, then the
// house number.
func (s *Selector) candidateQuadra(c geocode.Candidate) string {
	for _, text := range []string{c.Label, c.Street, c.HouseNumber} {
		if q := s.plot.Extract(text).Quadra; q != "" {
			return q
		}
	}
	return ""
}

func (s *Selector) neighborhoodScore(c geocode.Candidate, neighborhood string) float64 {
	if ContainsWords(c.Label, neighborhood) || ContainsWords(c.District, neighborhood) {
		return 1
	}
	return s.sim(neighborhood, c.District)
}

// CandidateStreet drops a trailing "QUADRA ..." fragment from a provider
// street name.
func CandidateStreet(street string) string {
	return strings.TrimSpace(quadraSuffix.ReplaceAllString(address.Fold(street), ""))
}

// streetKey makes coded streets comparable: "RUA RC-011" and "Rua RC 11"
// both become "RUA RC 11".
func streetKey(s string) string {
	words := Words(s)
	for i, w := range words {
		if n, err := strconv.Atoi(w); err == nil {
			words[i] = strconv.Itoa(n)
		}
	}
	return strings.Join(words, " ")
}

// sharesDigits rejects "RC-011" vs "RC 31": when both streets embed numbers,
// at least one must be common.
func sharesDigits(target, found string) bool {
	tn := numbers(target)
	if len(tn) == 0 {
		return true
	}
	fn := numbers(found)
	if len(fn) == 0 {
		return true
	}
	for n := range tn {
		if fn[n] {
			return true
		}
	}
	return false
}

func numbers(s string) map[int]bool {
	out := make(map[int]bool)
	for _, d := range digitRun.FindAllString(s, -1) {
		if n, err := strconv.Atoi(d); err == nil {
			out[n] = true
		}
	}
	return out
}
