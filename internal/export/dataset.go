// Package export renders resolved batches as JSON rows, XLSX workbooks,
// Circuit route CSV, GeoJSON, and shapefiles.
package export

import (
	"errors"

	"github.com/sells-group/geolote/internal/model"
	"github.com/sells-group/geolote/internal/sheet"
)

// Result columns appended to every exported row.
const (
	ColLatitude   = "Geo_Latitude"
	ColLongitude  = "Geo_Longitude"
	ColPartial    = "Partial_Match"
	ColCondo      = "Cond_Match"
	ColStatus     = "Status_Log"
	ColNormalized = "Normalized_Address"
)

// ResultColumns lists the appended columns in output order.
var ResultColumns = []string{ColLatitude, ColLongitude, ColPartial, ColCondo, ColStatus, ColNormalized}

// ErrNothingToExport is returned when a format has no eligible rows.
var ErrNothingToExport = errors.New("export: nothing to export")

// Dataset pairs the original rows with their results. Results[i] belongs to
// Rows[i].
type Dataset struct {
	Headers []string
	Rows    [][]string
	Results []model.MatchResult
}

// NewDataset joins a parsed table with its results.
func NewDataset(tbl *sheet.Table, results []model.MatchResult) *Dataset {
	return &Dataset{Headers: tbl.Headers, Rows: tbl.Rows, Results: results}
}

// Columns returns the original headers followed by the result columns. An
// original column that shares a result column's name is replaced.
func (d *Dataset) Columns() []string {
	out := make([]string, 0, len(d.Headers)+len(ResultColumns))
	for _, h := range d.Headers {
		if !isResultColumn(h) {
			out = append(out, h)
		}
	}
	return append(out, ResultColumns...)
}

// Records merges each original row with its result fields, for JSON output.
func (d *Dataset) Records() []map[string]any {
	out := make([]map[string]any, len(d.Results))
	for i, res := range d.Results {
		rec := make(map[string]any, len(d.Headers)+len(ResultColumns))
		for j, h := range d.Headers {
			if h == "" || isResultColumn(h) {
				continue
			}
			rec[h] = d.cell(i, j)
		}
		rec[ColLatitude] = res.Lat
		rec[ColLongitude] = res.Lng
		rec[ColPartial] = res.Partial
		rec[ColCondo] = res.Condominium
		rec[ColStatus] = res.Status
		rec[ColNormalized] = res.Normalized
		out[i] = rec
	}
	return out
}

// values returns row i as strings in Columns() order.
func (d *Dataset) values(i int) []string {
	res := d.Results[i]
	out := make([]string, 0, len(d.Headers)+len(ResultColumns))
	for j, h := range d.Headers {
		if !isResultColumn(h) {
			out = append(out, d.cell(i, j))
		}
	}
	return append(out,
		res.Lat.String(),
		res.Lng.String(),
		boolText(res.Partial),
		boolText(res.Condominium),
		string(res.Status),
		res.Normalized,
	)
}

func (d *Dataset) cell(i, j int) string {
	if i >= len(d.Rows) || j < 0 || j >= len(d.Rows[i]) {
		return ""
	}
	return d.Rows[i][j]
}

func isResultColumn(h string) bool {
	for _, c := range ResultColumns {
		if h == c {
			return true
		}
	}
	return false
}

func boolText(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
