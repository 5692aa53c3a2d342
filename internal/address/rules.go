package address

import (
	_ "embed"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed data/rules.yaml
var rulesYAML []byte

// CondominiumRules lists the keywords that mark a row as a gated complex.
type CondominiumRules struct {
	Keywords   []string `yaml:"keywords"`
	Exceptions []string `yaml:"exceptions"`
}

// Rules is the normalization vocabulary. The embedded defaults can be
// replaced list by list from a YAML file with the same layout.
type Rules struct {
	Condominium   CondominiumRules `yaml:"condominium"`
	ReservedWords []string         `yaml:"reserved_words"`
	UnpaddedCodes []string         `yaml:"unpadded_codes"`
	Separators    []string         `yaml:"separators"`
	InvalidValues []string         `yaml:"invalid_values"`
	StreetTypes   []string         `yaml:"street_types"`
}

// DefaultRules returns the embedded rule set.
func DefaultRules() *Rules {
	r := &Rules{}
	if err := yaml.Unmarshal(rulesYAML, r); err != nil {
		panic("address: embedded rules.yaml is invalid: " + err.Error())
	}
	return r
}

// LoadRules returns the embedded rules overlaid with the lists defined in the
// YAML file at path. An empty path returns the defaults.
func LoadRules(path string) (*Rules, error) {
	r := DefaultRules()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "address: read rules %s", path)
	}

	var override Rules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, eris.Wrapf(err, "address: parse rules %s", path)
	}

	overlay(&r.Condominium.Keywords, override.Condominium.Keywords)
	overlay(&r.Condominium.Exceptions, override.Condominium.Exceptions)
	overlay(&r.ReservedWords, override.ReservedWords)
	overlay(&r.UnpaddedCodes, override.UnpaddedCodes)
	overlay(&r.Separators, override.Separators)
	overlay(&r.InvalidValues, override.InvalidValues)
	overlay(&r.StreetTypes, override.StreetTypes)
	return r, nil
}

func overlay(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}

// set upper-cases and indexes a word list.
func set(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[Fold(strings.TrimSpace(w))] = true
	}
	return m
}

// phraseRegexp compiles a whole-word alternation of phrases. Spaces inside a
// phrase match any whitespace run. Returns nil for an empty list.
func phraseRegexp(phrases []string) *regexp.Regexp {
	alt := alternation(phrases)
	if alt == "" {
		return nil
	}
	return regexp.MustCompile(`\b(?:` + alt + `)\b`)
}

func alternation(phrases []string) string {
	parts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		words := strings.Fields(Fold(p))
		if len(words) == 0 {
			continue
		}
		for i := range words {
			words[i] = regexp.QuoteMeta(words[i])
		}
		parts = append(parts, strings.Join(words, `\s+`))
	}
	return strings.Join(parts, "|")
}

// separatorRegexp compiles the street-cut separators. Alphabetic separators
// are word-bounded; punctuation separators match literally.
func separatorRegexp(seps []string) *regexp.Regexp {
	parts := make([]string, 0, len(seps))
	for _, s := range seps {
		if s == "" {
			continue
		}
		folded := Fold(s)
		if isAlpha(strings.TrimSpace(folded)) {
			parts = append(parts, `\b`+regexp.QuoteMeta(strings.TrimSpace(folded))+`\b`)
			continue
		}
		parts = append(parts, regexp.QuoteMeta(folded))
	}
	if len(parts) == 0 {
		return nil
	}
	return regexp.MustCompile(strings.Join(parts, "|"))
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
