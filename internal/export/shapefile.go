package export

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
)

// DBF attribute columns. Names are capped at 10 characters by the format.
var shapeFields = []shp.Field{
	shp.NumberField("ROW", 9),
	shp.StringField("ADDRESS", 254),
	shp.StringField("NORMALIZED", 254),
	shp.StringField("STATUS", 32),
	shp.StringField("QUADRA", 8),
	shp.StringField("LOTE", 8),
	shp.FloatField("LAT", 18, 8),
	shp.FloatField("LNG", 18, 8),
}

// WriteShapefile writes located rows as POINT shapes to path (.shp), with
// the .shx and .dbf siblings beside it. addressCol names the original column
// copied into ADDRESS; it may be empty.
func WriteShapefile(path string, d *Dataset, addressCol string) error {
	addrIdx := -1
	for j, h := range d.Headers {
		if strings.EqualFold(h, addressCol) {
			addrIdx = j
		}
	}

	var rows []int
	for i, res := range d.Results {
		if res.Found() {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return ErrNothingToExport
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "export: create shapefile dir")
		}
	}

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrap(err, "export: create shapefile")
	}
	if err := writeShapes(w, d, rows, addrIdx); err != nil {
		w.Close()
		return err
	}
	w.Close()

	// go-shp names the attribute table "<base>dbf" without the dot.
	base := path
	if strings.HasSuffix(strings.ToLower(base), ".shp") {
		base = base[:len(base)-4]
	}
	if _, err := os.Stat(base + "dbf"); err == nil {
		if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
			return eris.Wrap(err, "export: rename shapefile dbf")
		}
	}
	return nil
}

func writeShapes(w *shp.Writer, d *Dataset, rows []int, addrIdx int) error {
	if err := w.SetFields(shapeFields); err != nil {
		return eris.Wrap(err, "export: set shapefile fields")
	}

	for _, i := range rows {
		res := d.Results[i]
		n := int(w.Write(&shp.Point{X: res.Lng.Value, Y: res.Lat.Value}))

		var quadra, lote string
		if m := plotPair.FindStringSubmatch(res.Normalized); m != nil {
			quadra, lote = m[1], m[2]
		}
		attrs := []any{
			i + 1,
			d.cell(i, addrIdx),
			res.Normalized,
			string(res.Status),
			quadra,
			lote,
			res.Lat.Value,
			res.Lng.Value,
		}
		for f, v := range attrs {
			if err := w.WriteAttribute(n, f, v); err != nil {
				return eris.Wrapf(err, "export: write shapefile attribute %d", f)
			}
		}
	}
	return nil
}
