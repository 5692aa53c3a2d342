package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// FeatureCollection builds one point feature per located row. Properties
// carry the original columns plus the result columns.
func FeatureCollection(d *Dataset) *geojson.FeatureCollection {
	records := d.Records()
	fc := &geojson.FeatureCollection{}
	for i, res := range d.Results {
		if !res.Found() {
			continue
		}
		props := records[i]
		props["row"] = i + 1
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{res.Lng.Value, res.Lat.Value}),
			Properties: props,
		})
	}
	return fc
}

// WriteGeoJSON writes the located rows as a FeatureCollection.
func WriteGeoJSON(w io.Writer, d *Dataset) error {
	fc := FeatureCollection(d)
	if len(fc.Features) == 0 {
		return ErrNothingToExport
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "export: write geojson")
	}
	return nil
}
