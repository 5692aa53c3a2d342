package address

import (
	"regexp"
	"strconv"
)

// DefaultPlotCeiling is the largest number accepted from an untagged "N-N" pair.
const DefaultPlotCeiling = 2000

var (
	quadraPattern = regexp.MustCompile(`\b(?:QUADRA|QUAD|QDR|QDA|QD|QU|QR|Q)[.:\-]?\s*0*(\d+)\b`)
	lotePattern   = regexp.MustCompile(`\b(?:LOTE|LOT|LTO|LT|LO|L)[.:\-]?\s*0*(\d+)\b`)

	// Tagged placeholders ("QD SN", "LT S/N", "QD NULL") mark the plot position
	// without a value. Bare Q and L are left out: "RUA L S/N" names a street.
	quadraBlank = regexp.MustCompile(`\b(?:QUADRA|QUAD|QDR|QDA|QD|QU|QR)[.:\-]?\s*(S\s*/?\s*N|NULL)\b`)
	loteBlank   = regexp.MustCompile(`\b(?:LOTE|LOT|LTO|LT|LO)[.:\-]?\s*(S\s*/?\s*N|NULL)\b`)

	pairPattern = regexp.MustCompile(`\b(\d{1,4})\s*[-/]\s*(\d{1,4})\b`)

	letterDigit = regexp.MustCompile(`([A-Z])(\d)`)
	digitLetter = regexp.MustCompile(`(\d)([A-Z])`)
)

// Span is a half-open byte range [Start, End) into Plot.Text. A zero Span
// (End == 0) means no match.
type Span struct {
	Start int
	End   int
}

// Found reports whether the span refers to a match.
func (s Span) Found() bool { return s.End > 0 }

// Plot holds the quadra/lote identifiers extracted from one text.
type Plot struct {
	Quadra string // canonical, "" when absent
	Lote   string // canonical, "" when absent

	// Text is the prepared text the spans index into.
	Text       string
	QuadraSpan Span
	LoteSpan   Span
	PairSpan   Span
}

// Complete reports whether both identifiers are known.
func (p Plot) Complete() bool { return p.Quadra != "" && p.Lote != "" }

// Start returns the offset of the earliest plot marker in Text, or -1.
func (p Plot) Start() int {
	start := -1
	for _, s := range []Span{p.QuadraSpan, p.LoteSpan, p.PairSpan} {
		if s.Found() && (start == -1 || s.Start < start) {
			start = s.Start
		}
	}
	return start
}

// PlotExtractor finds quadra and lote numbers across the abbreviation
// families seen in hand-typed addresses.
type PlotExtractor struct {
	ceiling int
	invalid map[string]bool
}

// NewPlotExtractor returns an extractor that ignores untagged pairs whose
// numbers exceed ceiling. invalid lists values that mean "no value".
func NewPlotExtractor(ceiling int, invalid []string) *PlotExtractor {
	if ceiling <= 0 {
		ceiling = DefaultPlotCeiling
	}
	return &PlotExtractor{ceiling: ceiling, invalid: set(invalid)}
}

// PrepareText folds and upper-cases s and separates glued letters and digits
// ("QD05LT7" -> "QD 05 LT 7"). It is idempotent.
func PrepareText(s string) string {
	s = Fold(s)
	s = letterDigit.ReplaceAllString(s, "$1 $2")
	s = digitLetter.ReplaceAllString(s, "$1 $2")
	return s
}

// Extract returns the plot identifiers found in text. Tagged quadra and lote
// win; an untagged "N-N" pair only fills whichever half is missing.
func (e *PlotExtractor) Extract(text string) Plot {
	p := Plot{Text: PrepareText(text)}

	p.QuadraSpan, p.Quadra = e.tagged(p.Text, quadraPattern, quadraBlank)
	p.LoteSpan, p.Lote = e.tagged(p.Text, lotePattern, loteBlank)

	if p.Complete() {
		return p
	}

	for pos := 0; pos < len(p.Text); {
		m := pairPattern.FindStringSubmatchIndex(p.Text[pos:])
		if m == nil {
			break
		}
		for i := range m {
			m[i] += pos
		}
		// Resume at the second number so "RC-011 - 5-7" still finds "5-7".
		pos = m[4]

		// "RC-011 - 5" would otherwise read the street code as a quadra.
		if m[0] > 0 && p.Text[m[0]-1] == '-' {
			continue
		}
		first, second := p.Text[m[2]:m[3]], p.Text[m[4]:m[5]]
		if e.exceedsCeiling(first) || e.exceedsCeiling(second) {
			continue
		}

		switch {
		case p.Quadra == "" && p.Lote == "":
			p.Quadra = e.Canonical(first)
			p.Lote = e.Canonical(second)
		case p.Quadra != "":
			p.Lote = e.Canonical(second)
		default:
			p.Quadra = e.Canonical(first)
		}
		p.PairSpan = Span{Start: m[0], End: m[1]}
		break
	}

	return p
}

// tagged finds a numeric tagged value, falling back to a tagged placeholder
// whose span is kept but whose value is "".
func (e *PlotExtractor) tagged(text string, numeric, blank *regexp.Regexp) (Span, string) {
	if m := numeric.FindStringSubmatchIndex(text); m != nil {
		return Span{Start: m[0], End: m[1]}, e.Canonical(text[m[2]:m[3]])
	}
	if m := blank.FindStringIndex(text); m != nil {
		return Span{Start: m[0], End: m[1]}, ""
	}
	return Span{}, ""
}

// Canonical strips leading zeros from a numeric identifier and maps invalid
// placeholders ("0", "SN", "NULL", ...) to "".
func (e *PlotExtractor) Canonical(v string) string {
	folded := Fold(v)
	if folded == "" || e.invalid[folded] {
		return ""
	}
	n, err := strconv.Atoi(folded)
	if err != nil {
		return ""
	}
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func (e *PlotExtractor) exceedsCeiling(v string) bool {
	n, err := strconv.Atoi(v)
	return err != nil || n > e.ceiling
}
