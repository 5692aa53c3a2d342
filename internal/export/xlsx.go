package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/geolote/internal/model"
)

// Workbook sheet names, in output order.
const (
	SheetFound       = "Encontrados"
	SheetPartial     = "Encontrados Parcialmente"
	SheetCondominium = "Condominios Identificados"
	SheetNotFound    = "Nao Encontrados - Erros"
)

var sheetOrder = []struct {
	name     string
	category model.Category
}{
	{SheetFound, model.CategoryFound},
	{SheetPartial, model.CategoryPartial},
	{SheetCondominium, model.CategoryCondominium},
	{SheetNotFound, model.CategoryNotFound},
}

// Split groups row indexes by result category.
func (d *Dataset) Split() map[model.Category][]int {
	out := make(map[model.Category][]int, len(sheetOrder))
	for i, res := range d.Results {
		out[res.Category()] = append(out[res.Category()], i)
	}
	return out
}

// WriteXLSX writes one sheet per non-empty category.
func WriteXLSX(w io.Writer, d *Dataset) error {
	groups := d.Split()
	cols := d.Columns()

	f := xlsx.NewFile()
	for _, s := range sheetOrder {
		idx := groups[s.category]
		if len(idx) == 0 {
			continue
		}

		sh, err := f.AddSheet(s.name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", s.name)
		}

		header := sh.AddRow()
		for _, c := range cols {
			header.AddCell().SetString(c)
		}

		latCol := len(cols) - len(ResultColumns)
		for _, i := range idx {
			row := sh.AddRow()
			res := d.Results[i]
			for j, v := range d.values(i) {
				cell := row.AddCell()
				switch j {
				case latCol:
					setCoord(cell, res.Lat)
				case latCol + 1:
					setCoord(cell, res.Lng)
				case latCol + 2:
					cell.SetBool(res.Partial)
				case latCol + 3:
					cell.SetBool(res.Condominium)
				default:
					cell.SetString(v)
				}
			}
		}
	}

	if len(f.Sheets) == 0 {
		return ErrNothingToExport
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

func setCoord(cell *xlsx.Cell, c model.Coordinate) {
	if c.Valid {
		cell.SetFloat(c.Value)
		return
	}
	cell.SetString(c.Text)
}
