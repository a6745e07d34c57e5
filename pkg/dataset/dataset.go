// Package dataset provides in-memory columnar datasets and the loaders that
// produce them from CSV and FASTA sources. A Dataset is the bridge between
// raw files and table descriptors: columns carry inferred element types, and
// descriptors derived from a dataset feed the database materializer.
package dataset

import (
	"fmt"

	"github.com/datastash/datastash/pkg/types"
)

// Column is a named, typed slice of values. A nil value marks an absent
// entry and drives nullable detection downstream.
type Column struct {
	Name   string
	Type   types.ElementType
	Values []interface{}
}

// NewColumn builds a column, inferring the element type from the values.
// Integer kinds widen to 64 bits when mixed, integers mixed with floats
// become float64, and anything mixed with strings becomes string. A column
// of only nil values defaults to string.
func NewColumn(name string, values []interface{}) (Column, error) {
	if name == "" {
		return Column{}, fmt.Errorf("dataset: %w: column needs a name", types.ErrInvalidArgument)
	}
	t, err := inferElementType(values)
	if err != nil {
		return Column{}, fmt.Errorf("dataset: column %q: %w", name, err)
	}
	return Column{Name: name, Type: t, Values: values}, nil
}

// inferElementType scans values and joins their element types through the
// promotion lattice. nil values are skipped.
func inferElementType(values []interface{}) (types.ElementType, error) {
	current := types.ElementInvalid
	for _, v := range values {
		if v == nil {
			continue
		}
		t, err := types.ElementTypeOf(v)
		if err != nil {
			return types.ElementInvalid, err
		}
		current = promote(current, t)
	}
	if current == types.ElementInvalid {
		return types.ElementString, nil
	}
	return current, nil
}

// promote joins two element types into the narrowest type holding both.
func promote(a, b types.ElementType) types.ElementType {
	switch {
	case a == types.ElementInvalid:
		return b
	case a == b:
		return a
	case a == types.ElementString || b == types.ElementString:
		return types.ElementString
	case isFloat(a) && isNumeric(b), isFloat(b) && isNumeric(a):
		return types.ElementFloat64
	case isInteger(a) && isInteger(b):
		if isSigned(a) || isSigned(b) {
			return types.ElementInt64
		}
		return types.ElementUint64
	default:
		// bool against any non-bool, or anything else irreconcilable
		return types.ElementString
	}
}

func isInteger(t types.ElementType) bool {
	switch t {
	case types.ElementInt, types.ElementInt8, types.ElementInt16, types.ElementInt32, types.ElementInt64,
		types.ElementUint8, types.ElementUint16, types.ElementUint32, types.ElementUint64:
		return true
	}
	return false
}

func isSigned(t types.ElementType) bool {
	switch t {
	case types.ElementInt, types.ElementInt8, types.ElementInt16, types.ElementInt32, types.ElementInt64:
		return true
	}
	return false
}

func isFloat(t types.ElementType) bool {
	return t == types.ElementFloat32 || t == types.ElementFloat64
}

func isNumeric(t types.ElementType) bool {
	return isInteger(t) || isFloat(t)
}

// Dataset is an ordered collection of equal-length columns.
type Dataset struct {
	columns []Column
	rows    int
}

// New assembles a dataset from columns, enforcing equal lengths and unique
// names. Column order is preserved.
func New(columns ...Column) (*Dataset, error) {
	d := &Dataset{}
	if len(columns) == 0 {
		return d, nil
	}

	d.rows = len(columns[0].Values)
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("dataset: %w: column needs a name", types.ErrInvalidArgument)
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("dataset: %w: duplicate column %q", types.ErrInvalidArgument, c.Name)
		}
		seen[c.Name] = struct{}{}
		if len(c.Values) != d.rows {
			return nil, fmt.Errorf("dataset: %w: column %q has %d values, want %d",
				types.ErrInvalidArgument, c.Name, len(c.Values), d.rows)
		}
	}
	d.columns = columns
	return d, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return d.rows
}

// Columns returns the dataset's columns in source order. Callers must not
// modify the returned slice.
func (d *Dataset) Columns() []Column {
	return d.columns
}

// Column returns the named column.
func (d *Dataset) Column(name string) (Column, bool) {
	for _, c := range d.columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Rows zips the columns row-major, preserving source order. Absent entries
// surface as nil.
func (d *Dataset) Rows() [][]interface{} {
	rows := make([][]interface{}, d.rows)
	for i := range rows {
		row := make([]interface{}, len(d.columns))
		for j, c := range d.columns {
			row[j] = c.Values[i]
		}
		rows[i] = row
	}
	return rows
}
