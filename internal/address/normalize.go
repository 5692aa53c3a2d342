package address

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// CondominiumSentinel is the canonical form of every condominium address.
const CondominiumSentinel = "Condominio"

// NormalizedAddress is the canonical decomposition of one raw address.
type NormalizedAddress struct {
	Street      string
	Quadra      string
	Lote        string
	Condominium bool
}

// String assembles the canonical text: "STREET, Q-L", "STREET, Q-Q" when only
// the quadra is known, the bare street, or the condominium sentinel.
func (a NormalizedAddress) String() string {
	switch {
	case a.Condominium:
		return CondominiumSentinel
	case a.Quadra != "" && a.Lote != "":
		return a.Street + ", " + a.Quadra + "-" + a.Lote
	case a.Quadra != "":
		return a.Street + ", Q-" + a.Quadra
	default:
		return a.Street
	}
}

// ParseError reports raw input that could not be normalized.
type ParseError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("address: %s: %q: %v", e.Reason, e.Raw, e.Err)
	}
	return fmt.Sprintf("address: %s: %q", e.Reason, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

// rewrite is one entry of the ordered normalization table.
type rewrite struct {
	name  string
	apply func(string) string
}

var (
	digitSlash    = regexp.MustCompile(`(\d)\s*/\s*(\d)`)
	streetPrefixR = regexp.MustCompile(`^R(?:\.\s*|\s+)`)
	avenuePrefix  = regexp.MustCompile(`(^|\s)AV(?:\.\s*|\s+)`)
	codedStreet   = regexp.MustCompile(`\b([A-Z]{1,4})\s*-?\s*(\d+)\b`)
	strayPlot     = regexp.MustCompile(`\b(?:QD|LT|QU|QR)\s*\d+\b`)
	leadingDash   = regexp.MustCompile(`^\s*-\s*\d`)
)

var placeholders = map[string]bool{"": true, "NAN": true, "NONE": true, "NULL": true, "-": true}

// Normalizer rewrites raw addresses into NormalizedAddress values.
type Normalizer struct {
	plot       *PlotExtractor
	condo      *regexp.Regexp
	exceptions *regexp.Regexp
	separators *regexp.Regexp
	numbered   *regexp.Regexp
	reserved   map[string]bool
	unpadded   map[string]bool
	rewrites   []rewrite
}

// NewNormalizer compiles rules. A nil plot extractor gets the default ceiling.
func NewNormalizer(rules *Rules, plot *PlotExtractor) *Normalizer {
	if rules == nil {
		rules = DefaultRules()
	}
	if plot == nil {
		plot = NewPlotExtractor(DefaultPlotCeiling, rules.InvalidValues)
	}

	n := &Normalizer{
		plot:       plot,
		condo:      phraseRegexp(rules.Condominium.Keywords),
		exceptions: phraseRegexp(rules.Condominium.Exceptions),
		separators: separatorRegexp(rules.Separators),
		reserved:   set(rules.ReservedWords),
		unpadded:   set(rules.UnpaddedCodes),
	}
	if alt := alternation(rules.StreetTypes); alt != "" {
		n.numbered = regexp.MustCompile(`^(` + alt + `)\s+(\d{1,2})\b`)
	}

	n.rewrites = []rewrite{
		{"cleanup", cleanup},
		{"split", splitLettersDigits},
		{"street_prefix", func(s string) string { return streetPrefixR.ReplaceAllString(s, "RUA ") }},
		{"avenue_prefix", func(s string) string { return avenuePrefix.ReplaceAllString(s, "${1}AVENIDA ") }},
		{"coded_street", n.formatCodes},
		{"numeral", n.spellNumber},
	}
	return n
}

// IsCondominium reports whether raw or neighborhood names a gated complex.
func (n *Normalizer) IsCondominium(raw, neighborhood string) bool {
	if n.condo == nil {
		return false
	}
	text := PrepareText(raw + " " + neighborhood)
	if !n.condo.MatchString(text) {
		return false
	}
	return n.exceptions == nil || !n.exceptions.MatchString(text)
}

// Normalize decomposes raw. Unusable input yields a *ParseError; the
// condominium case is a valid result, not an error.
func (n *Normalizer) Normalize(raw, neighborhood string) (addr NormalizedAddress, err error) {
	defer func() {
		if r := recover(); r != nil {
			addr = NormalizedAddress{}
			err = &ParseError{Raw: raw, Reason: "internal fault", Err: eris.New(fmt.Sprint(r))}
		}
	}()

	if placeholders[strings.TrimSpace(Fold(raw))] {
		return NormalizedAddress{}, &ParseError{Raw: raw, Reason: "empty address"}
	}

	if n.IsCondominium(raw, neighborhood) {
		return NormalizedAddress{Condominium: true}, nil
	}

	text := n.Clean(raw)
	plot := n.plot.Extract(text)

	street := n.streetBase(plot)
	if street == "" {
		return NormalizedAddress{}, &ParseError{Raw: raw, Reason: "no street name"}
	}

	return NormalizedAddress{Street: street, Quadra: plot.Quadra, Lote: plot.Lote}, nil
}

// Canonical returns the canonical string for raw, or "" when it cannot be
// normalized.
func (n *Normalizer) Canonical(raw, neighborhood string) string {
	addr, err := n.Normalize(raw, neighborhood)
	if err != nil {
		return ""
	}
	return addr.String()
}

// Extract exposes the plot extractor used by the normalizer.
func (n *Normalizer) Extract(text string) Plot {
	return n.plot.Extract(text)
}

// Clean applies the rewrite table in order.
func (n *Normalizer) Clean(raw string) string {
	s := Fold(raw)
	for _, rw := range n.rewrites {
		s = rw.apply(s)
	}
	return s
}

func (n *Normalizer) streetBase(plot Plot) string {
	text := plot.Text
	street := n.cut(text, plot.Start())

	// The address opens with the plot ("QD 5 LT 7 RUA X"): drop the plot
	// tokens and read the street from what remains.
	if street == "" {
		var b strings.Builder
		last := 0
		for _, s := range orderedSpans(plot) {
			if s.Start < last {
				continue
			}
			b.WriteString(text[last:s.Start])
			b.WriteByte(' ')
			last = s.End
		}
		b.WriteString(text[last:])
		rest := strings.TrimLeft(b.String(), " ,-.")
		street = n.cut(rest, -1)
	}

	street = strayPlot.ReplaceAllString(street, "")
	return strings.Trim(collapseSpaces(street), " ,-./")
}

// cut truncates text at the earliest separator or at plotStart.
func (n *Normalizer) cut(text string, plotStart int) string {
	end := len(text)
	if plotStart >= 0 {
		end = plotStart
	}
	if n.separators != nil {
		if loc := n.separators.FindStringIndex(text); loc != nil && loc[0] < end {
			end = loc[0]
		}
	}
	return strings.Trim(collapseSpaces(text[:end]), " ,-./")
}

func orderedSpans(p Plot) []Span {
	spans := make([]Span, 0, 3)
	for _, s := range []Span{p.QuadraSpan, p.LoteSpan, p.PairSpan} {
		if s.Found() {
			spans = append(spans, s)
		}
	}
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].Start < spans[j-1].Start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
	return spans
}

func cleanup(s string) string {
	s = digitSlash.ReplaceAllString(s, "$1-$2")
	s = strings.ReplaceAll(s, "/", " ")
	return collapseSpaces(s)
}

func splitLettersDigits(s string) string {
	s = letterDigit.ReplaceAllString(s, "$1 $2")
	return digitLetter.ReplaceAllString(s, "$1 $2")
}

// formatCodes rewrites "RC 11" as "RC-011" and "MDV 13" as "MDV-13".
func (n *Normalizer) formatCodes(s string) string {
	matches := codedStreet.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		code, digits := s[m[2]:m[3]], s[m[4]:m[5]]
		if n.reserved[code] {
			continue
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(n.formatCode(code, digits))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func (n *Normalizer) formatCode(code, digits string) string {
	v, err := strconv.Atoi(digits)
	if err != nil {
		return code + "-" + digits
	}
	if n.unpadded[code] {
		return code + "-" + strconv.Itoa(v)
	}
	return fmt.Sprintf("%s-%03d", code, v)
}

// spellNumber rewrites a street named by a bare number ("RUA 9" -> "RUA NOVE").
func (n *Normalizer) spellNumber(s string) string {
	if n.numbered == nil {
		return s
	}
	m := n.numbered.FindStringSubmatchIndex(s)
	if m == nil || leadingDash.MatchString(s[m[1]:]) {
		return s
	}
	v, err := strconv.Atoi(s[m[4]:m[5]])
	if err != nil {
		return s
	}
	word := Cardinal(v)
	if word == "" {
		return s
	}
	return s[:m[4]] + word + s[m[5]:]
}
