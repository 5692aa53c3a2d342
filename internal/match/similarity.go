// Package match scores geocoder candidates against the address a row asked for.
package match

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"

	"github.com/sells-group/geolote/internal/address"
)

// Similarity returns a score in [0, 1] for two strings.
type Similarity func(a, b string) float64

// Algorithm names accepted by SimilarityFor.
const (
	AlgorithmTokenSet    = "token_set"
	AlgorithmJaroWinkler = "jaro_winkler"
)

// SimilarityFor returns the similarity function for name, defaulting to TokenSet.
func SimilarityFor(name string) Similarity {
	if name == AlgorithmJaroWinkler {
		return JaroWinkler
	}
	return TokenSet
}

// Ratio is 1 - levenshtein(a, b) / max(len(a), len(b)) on folded text.
func Ratio(a, b string) float64 {
	a, b = address.Fold(a), address.Fold(b)
	return ratio(a, b)
}

func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

// TokenSet compares the word sets of a and b: shared words count fully, so
// "SETOR BUENO" and "BUENO SETOR" score 1, as does any subset of the other.
// Either side empty scores 0.
func TokenSet(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for w := range ta {
		if tb[w] {
			common = append(common, w)
		} else {
			onlyA = append(onlyA, w)
		}
	}
	for w := range tb {
		if !ta[w] {
			onlyB = append(onlyB, w)
		}
	}

	if len(common) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 1
	}

	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := ratio(withA, withB)
	if base != "" {
		best = max(best, ratio(base, withA), ratio(base, withB))
	}
	return best
}

// JaroWinkler compares folded a and b with the Jaro-Winkler metric.
func JaroWinkler(a, b string) float64 {
	a, b = address.Fold(strings.TrimSpace(a)), address.Fold(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}

// Words splits folded s into alphanumeric words.
func Words(s string) []string {
	return strings.FieldsFunc(address.Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tokenSet(s string) map[string]bool {
	words := Words(s)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// ContainsWords reports whether the words of needle appear contiguously in
// hay. An empty needle or hay never matches.
func ContainsWords(hay, needle string) bool {
	h, n := Words(hay), Words(needle)
	if len(n) == 0 || len(h) < len(n) {
		return false
	}
outer:
	for i := 0; i+len(n) <= len(h); i++ {
		for j := range n {
			if h[i+j] != n[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

// Contained reports word-level containment in either direction.
func Contained(a, b string) bool {
	return ContainsWords(a, b) || ContainsWords(b, a)
}
