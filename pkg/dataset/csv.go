package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/datastash/datastash/pkg/types"
)

// CSVOptions configures CSV loading.
type CSVOptions struct {
	// Comma is the field delimiter; zero means ','
	Comma rune

	// Comment, when set, skips lines starting with this rune
	Comment rune
}

// LoadCSV reads delimited text into a dataset. The first record names the
// columns. Cell values are inferred per column, trying int64, then float64,
// then bool, then falling back to string; a type must parse every non-empty
// cell in the column to be chosen. Empty cells load as nil.
func LoadCSV(r io.Reader, opt CSVOptions) (*Dataset, error) {
	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	if opt.Comment != 0 {
		cr.Comment = opt.Comment
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset: %w: CSV input has no header row", types.ErrInvalidArgument)
	}

	header := records[0]
	body := records[1:]

	columns := make([]Column, 0, len(header))
	for i, name := range header {
		cells := make([]string, len(body))
		for j, record := range body {
			cells[j] = record[i]
		}
		values := convertCells(cells, inferCellKind(cells))
		col, err := NewColumn(name, values)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return New(columns...)
}

// cellKind is the parse target chosen for a CSV column.
type cellKind int

const (
	cellInt cellKind = iota
	cellFloat
	cellBool
	cellString
)

// inferCellKind picks the strictest kind that parses every non-empty cell.
func inferCellKind(cells []string) cellKind {
	intOK, floatOK, boolOK := true, true, true
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		if intOK {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				intOK = false
			}
		}
		if floatOK {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				floatOK = false
			}
		}
		if boolOK {
			if _, err := strconv.ParseBool(cell); err != nil {
				boolOK = false
			}
		}
	}
	switch {
	case intOK:
		return cellInt
	case floatOK:
		return cellFloat
	case boolOK:
		return cellBool
	default:
		return cellString
	}
}

// convertCells parses cells under the chosen kind; empty cells become nil.
func convertCells(cells []string, kind cellKind) []interface{} {
	values := make([]interface{}, len(cells))
	for i, cell := range cells {
		if cell == "" {
			continue
		}
		switch kind {
		case cellInt:
			n, _ := strconv.ParseInt(cell, 10, 64)
			values[i] = n
		case cellFloat:
			f, _ := strconv.ParseFloat(cell, 64)
			values[i] = f
		case cellBool:
			b, _ := strconv.ParseBool(cell)
			values[i] = b
		default:
			values[i] = cell
		}
	}
	return values
}
