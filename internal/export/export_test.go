package export

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/geolote/internal/model"
	"github.com/sells-group/geolote/internal/sheet"
)

func found(lat, lng float64, normalized string) model.MatchResult {
	return model.MatchResult{
		Lat:        model.Coord(lat),
		Lng:        model.Coord(lng),
		Status:     model.StatusExact,
		Normalized: normalized,
	}
}

func sampleDataset() *Dataset {
	partial := found(-16.7, -49.3, "RUA X, 1-2")
	partial.Partial = true
	partial.Status = model.StatusStreetNoQuadra

	tbl := &sheet.Table{
		Headers: []string{"Stop", "Destination Address", "Bairro"},
		Rows: [][]string{
			{"1", "Rua RC 11 Qd 5 Lt 7", "Setor Central"},
			{"2", "Rua X Qd 1 Lt 2", "Centro"},
			{"3", "Condomínio Alphaville", ""},
			{"4", "Rua Nenhuma", ""},
			{"5", "Rua RC 11 Qd 5 Lt 8", "Setor Central"},
		},
	}
	return NewDataset(tbl, []model.MatchResult{
		found(-16.6869, -49.2648, "RUA RC-011, 5-7"),
		partial,
		model.CondominiumResult(2, "Condominio"),
		model.FailedResult(3, "RUA NENHUMA"),
		found(-16.6869, -49.2648, "RUA RC-011, 5-8"),
	})
}

func TestDataset_Columns(t *testing.T) {
	t.Parallel()

	d := &Dataset{Headers: []string{"A", "Geo_Latitude", "B"}}
	assert.Equal(t, []string{"A", "B", "Geo_Latitude", "Geo_Longitude", "Partial_Match", "Cond_Match", "Status_Log", "Normalized_Address"}, d.Columns())
}

func TestDataset_Records(t *testing.T) {
	t.Parallel()

	recs := sampleDataset().Records()
	require.Len(t, recs, 5)

	data, err := json.Marshal(recs[0])
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Rua RC 11 Qd 5 Lt 7", got["Destination Address"])
	assert.InDelta(t, -16.6869, got["Geo_Latitude"], 1e-9)
	assert.Equal(t, false, got["Partial_Match"])
	assert.Equal(t, "EXACT_MATCH", got["Status_Log"])
	assert.Equal(t, "RUA RC-011, 5-7", got["Normalized_Address"])

	data, err = json.Marshal(recs[3])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, model.NotFound, got["Geo_Latitude"])
	assert.Equal(t, "FAILED", got["Status_Log"])

	data, err = json.Marshal(recs[2])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "", got["Geo_Longitude"])
	assert.Equal(t, true, got["Cond_Match"])
}

func TestWriteXLSX_SplitsByCategory(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleDataset()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)

	var names []string
	for _, sh := range f.Sheets {
		names = append(names, sh.Name)
	}
	assert.Equal(t, []string{SheetFound, SheetPartial, SheetCondominium, SheetNotFound}, names)

	foundSheet := f.Sheet[SheetFound]
	require.Len(t, foundSheet.Rows, 3)
	assert.Equal(t, "Stop", foundSheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Geo_Latitude", foundSheet.Rows[0].Cells[3].String())
	assert.Equal(t, "5", foundSheet.Rows[2].Cells[0].String())
	lat, err := foundSheet.Rows[1].Cells[3].Float()
	require.NoError(t, err)
	assert.InDelta(t, -16.6869, lat, 1e-9)

	notFound := f.Sheet[SheetNotFound]
	require.Len(t, notFound.Rows, 2)
	assert.Equal(t, model.NotFound, notFound.Rows[1].Cells[3].String())
	assert.Equal(t, "FAILED", notFound.Rows[1].Cells[7].String())
}

func TestWriteXLSX_OmitsEmptySheets(t *testing.T) {
	t.Parallel()

	d := &Dataset{
		Headers: []string{"Destination Address"},
		Rows:    [][]string{{"Rua 1"}},
		Results: []model.MatchResult{found(-16, -49, "RUA UM")},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, d))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	assert.Equal(t, SheetFound, f.Sheets[0].Name)
}

func TestWriteXLSX_Empty(t *testing.T) {
	t.Parallel()

	err := WriteXLSX(&bytes.Buffer{}, &Dataset{})
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestWriteCircuit(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteCircuit(&buf, sampleDataset().Results))

	want := "Geo_Latitude,Observacoes\n" +
		"-16.6869, -49.2648,\"1, 5 - Quadra:5 - Lote:7\"\n" +
		"-16.7, -49.3,\"2 - Quadra:1 - Lote:2\"\n"
	assert.Equal(t, want, buf.String())
}

func TestStops_NoPlot(t *testing.T) {
	t.Parallel()

	stops := Stops([]model.MatchResult{found(-1, -2, "AVENIDA ANHANGUERA")})
	require.Len(t, stops, 1)
	assert.Equal(t, "1 - Quadra: - Lote:", stops[0].Observation())
}

func TestWriteCircuit_NothingLocated(t *testing.T) {
	t.Parallel()

	err := WriteCircuit(&bytes.Buffer{}, []model.MatchResult{model.FailedResult(0, "")})
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestWriteGeoJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, sampleDataset()))

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 3)
	assert.Equal(t, "Point", doc.Features[0].Geometry.Type)
	assert.InDeltaSlice(t, []float64{-49.2648, -16.6869}, doc.Features[0].Geometry.Coordinates, 1e-9)
	assert.InDelta(t, 2, doc.Features[1].Properties["row"], 0)
	assert.Equal(t, "STREET_FOUND_NO_QUADRA", doc.Features[1].Properties["Status_Log"])
}

func TestWriteShapefile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "rota.shp")
	require.NoError(t, WriteShapefile(path, sampleDataset(), "Destination Address"))

	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		assert.FileExists(t, strings.TrimSuffix(path, ".shp")+ext)
	}
	assert.NoFileExists(t, strings.TrimSuffix(path, ".shp")+"dbf")

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	var points []*shp.Point
	var normalized []string
	for r.Next() {
		n, s := r.Shape()
		p, ok := s.(*shp.Point)
		require.True(t, ok)
		points = append(points, p)
		normalized = append(normalized, strings.TrimSpace(r.ReadAttribute(n, 2)))
	}

	require.Len(t, points, 3)
	assert.InDelta(t, -49.2648, points[0].X, 1e-9)
	assert.InDelta(t, -16.6869, points[0].Y, 1e-9)
	assert.Equal(t, []string{"RUA RC-011, 5-7", "RUA X, 1-2", "RUA RC-011, 5-8"}, normalized)
}

func TestWriteShapefile_NothingLocated(t *testing.T) {
	t.Parallel()

	d := &Dataset{Results: []model.MatchResult{model.FailedResult(0, "")}}
	err := WriteShapefile(filepath.Join(t.TempDir(), "x.shp"), d, "")
	assert.ErrorIs(t, err, ErrNothingToExport)
}
