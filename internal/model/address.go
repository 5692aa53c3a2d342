package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// NotFound is the literal written into lat/lng for rows that could not be resolved.
const NotFound = "Não encontrado"

// MatchStatus tags how a row was resolved.
type MatchStatus string

const (
	StatusExact          MatchStatus = "EXACT_MATCH"
	StatusStreetNoQuadra MatchStatus = "STREET_FOUND_NO_QUADRA"
	StatusBairroMismatch MatchStatus = "BAIRRO_MISMATCH"
	StatusCondominium    MatchStatus = "CONDOMINIO_DETECTED"
	StatusFailed         MatchStatus = "FAILED"
	StatusManualFix      MatchStatus = "MANUAL_FIX"
)

// neighborPrefix is the status prefix for matches found on an adjacent lot.
const neighborPrefix = "NEIGHBOR_LOTE_"

// NeighborStatus returns the status for a match found at the given lote offset.
func NeighborStatus(offset int) MatchStatus {
	return MatchStatus(neighborPrefix + strconv.Itoa(offset))
}

// Category buckets a result the way the exported workbook groups rows.
type Category string

const (
	CategoryFound       Category = "found"
	CategoryPartial     Category = "partial"
	CategoryCondominium Category = "condominium"
	CategoryNotFound    Category = "not_found"
)

// RawAddressRecord is one input row of a batch.
type RawAddressRecord struct {
	Index        int    `json:"idx"`
	Address      string `json:"address"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	PostalCode   string `json:"postal_code,omitempty"`
}

// Coordinate is either a numeric degree value or a literal placeholder
// ("" for condominiums, NotFound for failures). It marshals to a JSON number
// or string accordingly.
type Coordinate struct {
	Value float64
	Text  string
	Valid bool
}

// Coord wraps a numeric coordinate.
func Coord(v float64) Coordinate {
	return Coordinate{Value: v, Valid: true}
}

// NotFoundCoord is the coordinate placeholder for unresolved rows.
func NotFoundCoord() Coordinate {
	return Coordinate{Text: NotFound}
}

// String renders the coordinate for tabular exports.
func (c Coordinate) String() string {
	if c.Valid {
		return strconv.FormatFloat(c.Value, 'f', -1, 64)
	}
	return c.Text
}

// MarshalJSON implements json.Marshaler.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	if c.Valid {
		return json.Marshal(c.Value)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*c = Coord(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("coordinate: expected number or string, got %s", data)
	}
	*c = Coordinate{Text: s}
	return nil
}

// MatchResult is the outcome of resolving one row.
type MatchResult struct {
	Index       int         `json:"idx"`
	Lat         Coordinate  `json:"Geo_Latitude"`
	Lng         Coordinate  `json:"Geo_Longitude"`
	Partial     bool        `json:"Partial_Match"`
	Condominium bool        `json:"Cond_Match"`
	Status      MatchStatus `json:"Status_Log"`
	Normalized  string      `json:"Normalized_Address"`
	Strategy    string      `json:"Strategy,omitempty"`
	Offset      int         `json:"Lote_Offset,omitempty"`
}

// CondominiumResult is the terminal result for condominium rows.
func CondominiumResult(idx int, normalized string) MatchResult {
	return MatchResult{
		Index:       idx,
		Condominium: true,
		Status:      StatusCondominium,
		Normalized:  normalized,
	}
}

// FailedResult is the terminal result when every strategy was exhausted.
func FailedResult(idx int, normalized string) MatchResult {
	return MatchResult{
		Index:      idx,
		Lat:        NotFoundCoord(),
		Lng:        NotFoundCoord(),
		Status:     StatusFailed,
		Normalized: normalized,
	}
}

// Found reports whether the result carries numeric coordinates.
func (r MatchResult) Found() bool {
	return r.Lat.Valid && r.Lng.Valid
}

// Category classifies the result: condominium first, then partial, then found.
func (r MatchResult) Category() Category {
	switch {
	case r.Condominium:
		return CategoryCondominium
	case r.Partial:
		return CategoryPartial
	case r.Found():
		return CategoryFound
	default:
		return CategoryNotFound
	}
}
