// Package strategy builds the ordered geocoder queries tried for one address.
package strategy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/geolote/internal/address"
)

// Tag names the shape of a query.
type Tag string

const (
	TagCodedPadded Tag = "CODED_PADDED"
	TagCodedPlain  Tag = "CODED_PLAIN"
	TagStrict      Tag = "STRICT"
	TagContext     Tag = "CONTEXT"
	TagStreetOnly  Tag = "STREET_ONLY"
)

// DefaultRegion is appended to strict queries after the city.
const DefaultRegion = "Goiás"

// Strategy is one query to submit, ranked from 1 (most specific).
type Strategy struct {
	Query string
	Tag   Tag
	Rank  int
}

var codedStreet = regexp.MustCompile(`\b(RUA|AV|ALAMEDA|AVENIDA)\s+([A-Z]{1,3})[-\s]*0*(\d+)\b`)

// Builder produces strategy lists.
type Builder struct {
	region string
}

// NewBuilder creates a builder. An empty region uses DefaultRegion.
func NewBuilder(region string) *Builder {
	if strings.TrimSpace(region) == "" {
		region = DefaultRegion
	}
	return &Builder{region: region}
}

// Build returns the strategies for addr, most specific first. Queries that
// repeat an earlier one are dropped. A condominium or empty address yields nil.
func (b *Builder) Build(addr address.NormalizedAddress, neighborhood, city string) []Strategy {
	if addr.Condominium || strings.TrimSpace(addr.Street) == "" {
		return nil
	}
	neighborhood = strings.TrimSpace(neighborhood)
	city = strings.TrimSpace(city)

	var out []Strategy
	seen := make(map[string]bool)
	add := func(tag Tag, parts ...string) {
		q := join(parts...)
		if q == "" || seen[q] {
			return
		}
		seen[q] = true
		out = append(out, Strategy{Query: q, Tag: tag, Rank: len(out) + 1})
	}

	plot := ""
	if addr.Quadra != "" && addr.Lote != "" {
		plot = addr.Quadra + "-" + addr.Lote
	}

	if m := codedStreet.FindStringSubmatch(strings.ToUpper(addr.Street)); m != nil && plot != "" {
		if n, err := strconv.Atoi(m[3]); err == nil {
			add(TagCodedPadded, fmt.Sprintf("%s %s-%03d", m[1], m[2], n), plot, b.cityRegion(city))
			add(TagCodedPlain, fmt.Sprintf("%s %s-%d", m[1], m[2], n), plot, b.cityRegion(city))
		}
	}

	normalized := addr.String()
	add(TagStrict, normalized, b.cityRegion(city))
	add(TagContext, normalized, neighborhood)
	add(TagStreetOnly, StreetOnly(addr.Street), neighborhood, city)
	return out
}

// Neighbor builds the probe query for a shifted lote.
func Neighbor(street, quadra string, lote int, neighborhood, city string) string {
	return join(street, quadra+"-"+strconv.Itoa(lote), neighborhood, city)
}

// StreetOnly strips plot markers and dashes from a street base so the
// provider sees a plain street name.
func StreetOnly(street string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(street, "-", " ")), " ")
}

func (b *Builder) cityRegion(city string) string {
	if city == "" {
		return b.region
	}
	return city + " - " + b.region
}

// join concatenates the non-empty parts with ", ".
func join(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
