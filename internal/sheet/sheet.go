// Package sheet reads uploaded address workbooks into batch records.
package sheet

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/geolote/internal/model"
)

// Default column names of the delivery-route export.
const (
	DefaultAddressColumn      = "Destination Address"
	DefaultNeighborhoodColumn = "Bairro"
	DefaultCityColumn         = "City"
	DefaultPostalCodeColumn   = "Zipcode/Postal code"
)

// Columns names the input columns. Only Address is required.
type Columns struct {
	Address      string
	Neighborhood string
	City         string
	PostalCode   string
}

// DefaultColumns returns the standard column names.
func DefaultColumns() Columns {
	return Columns{
		Address:      DefaultAddressColumn,
		Neighborhood: DefaultNeighborhoodColumn,
		City:         DefaultCityColumn,
		PostalCode:   DefaultPostalCodeColumn,
	}
}

// Options configures parsing.
type Options struct {
	Columns    Columns
	SheetIndex int
	// DefaultCity fills records whose city cell is empty.
	DefaultCity string
}

// ErrorKind classifies a BatchError.
type ErrorKind int

const (
	// KindUnreadable means the payload is not a workbook we can open.
	KindUnreadable ErrorKind = iota
	// KindMissingColumn means a required column header is absent.
	KindMissingColumn
)

// BatchError rejects a whole upload before any row is resolved.
type BatchError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *BatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sheet: %s: %v", e.Message, e.Err)
	}
	return "sheet: " + e.Message
}

func (e *BatchError) Unwrap() error { return e.Err }

// HTTPStatus maps the error to a response code: 400 for unreadable input,
// 422 for a missing column.
func (e *BatchError) HTTPStatus() int {
	if e.Kind == KindMissingColumn {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

// Table is a parsed upload. Rows keep every original cell so exports can
// echo them back; Records[i] belongs to Rows[i].
type Table struct {
	Headers []string
	Rows    [][]string
	Records []model.RawAddressRecord
}

// ReadFile reads and decodes a workbook from disk.
func ReadFile(path string, opts Options) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sheet: read %s", path)
	}
	return ReadXLSX(data, opts)
}

// ReadXLSX parses an XLSX payload.
func ReadXLSX(data []byte, opts Options) (*Table, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, &BatchError{Kind: KindUnreadable, Message: "could not read workbook", Err: err}
	}
	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, &BatchError{
			Kind:    KindUnreadable,
			Message: fmt.Sprintf("sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets)),
		}
	}

	sh := f.Sheets[opts.SheetIndex]
	raw := make([][]string, 0, len(sh.Rows))
	for _, row := range sh.Rows {
		if row == nil {
			raw = append(raw, nil)
			continue
		}
		raw = append(raw, rowToStrings(row))
	}
	return build(raw, opts)
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// build turns a header row plus data rows into a Table.
func build(raw [][]string, opts Options) (*Table, error) {
	cols := opts.Columns
	if cols.Address == "" {
		cols = DefaultColumns()
	}

	if len(raw) == 0 {
		return nil, &BatchError{Kind: KindMissingColumn, Message: fmt.Sprintf("required column %q is missing", cols.Address)}
	}

	headers := make([]string, len(raw[0]))
	for i, h := range raw[0] {
		headers[i] = strings.TrimSpace(h)
	}
	// Trailing blank header cells are formatting noise.
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}

	addrCol := columnIndex(headers, cols.Address)
	if addrCol < 0 {
		return nil, &BatchError{Kind: KindMissingColumn, Message: fmt.Sprintf("required column %q is missing", cols.Address)}
	}
	hoodCol := columnIndex(headers, cols.Neighborhood)
	cityCol := columnIndex(headers, cols.City)
	zipCol := columnIndex(headers, cols.PostalCode)

	t := &Table{Headers: headers}
	for _, cells := range raw[1:] {
		if blank(cells) {
			continue
		}
		row := make([]string, len(headers))
		copy(row, cells)

		city := cell(row, cityCol)
		if city == "" {
			city = opts.DefaultCity
		}
		t.Records = append(t.Records, model.RawAddressRecord{
			Index:        len(t.Rows),
			Address:      cell(row, addrCol),
			Neighborhood: cell(row, hoodCol),
			City:         city,
			PostalCode:   cell(row, zipCol),
		})
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func columnIndex(headers []string, name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1
	}
	for i, h := range headers {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
