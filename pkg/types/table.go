// Package types provides the shared data types and error taxonomy for datastash.
package types

import "fmt"

// ColumnDef defines a single column of a materialized table.
type ColumnDef struct {
	// Name is the column name
	Name string `json:"name"`

	// Type is the storage type: INTEGER, FLOAT, TEXT
	Type string `json:"type"`
}

// RowSource lazily produces the rows for one table. It is single-use: the
// materializer invokes it exactly once during a build and never on cache hits.
type RowSource func() ([][]interface{}, error)

// TableDef describes one table to materialize: ordered columns, optional
// primary key, nullability, secondary indices, and a deferred row producer.
type TableDef struct {
	// Name is the physical table name
	Name string `json:"name"`

	// Columns lists the columns in creation order
	Columns []ColumnDef `json:"columns"`

	// PrimaryKey names the primary-key column, empty for none
	PrimaryKey string `json:"primary_key,omitempty"`

	// Nullable marks the columns allowed to hold NULL
	Nullable map[string]bool `json:"nullable,omitempty"`

	// Indices lists column tuples to index after the rows are loaded
	Indices [][]string `json:"indices,omitempty"`

	// Rows produces the table's rows, aligned with Columns
	Rows RowSource `json:"-"`
}

// ColumnNames returns the column names in declared order.
func (t *TableDef) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// Validate checks the descriptor for internal consistency: a name, at least
// one uniquely named column, and primary key / nullable / index references
// that all resolve to declared columns.
func (t *TableDef) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: table name is empty", ErrInvalidArgument)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: table %q has no columns", ErrInvalidArgument, t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, col := range t.Columns {
		if col.Name == "" {
			return fmt.Errorf("%w: table %q has an unnamed column", ErrInvalidArgument, t.Name)
		}
		if seen[col.Name] {
			return fmt.Errorf("%w: table %q repeats column %q", ErrInvalidArgument, t.Name, col.Name)
		}
		seen[col.Name] = true
	}
	if t.PrimaryKey != "" && !seen[t.PrimaryKey] {
		return fmt.Errorf("%w: table %q primary key %q is not a column", ErrInvalidArgument, t.Name, t.PrimaryKey)
	}
	for name := range t.Nullable {
		if !seen[name] {
			return fmt.Errorf("%w: table %q nullable column %q is not a column", ErrInvalidArgument, t.Name, name)
		}
	}
	for _, tuple := range t.Indices {
		if len(tuple) == 0 {
			return fmt.Errorf("%w: table %q has an empty index tuple", ErrInvalidArgument, t.Name)
		}
		for _, name := range tuple {
			if !seen[name] {
				return fmt.Errorf("%w: table %q index column %q is not a column", ErrInvalidArgument, t.Name, name)
			}
		}
	}
	return nil
}
