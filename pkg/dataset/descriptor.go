package dataset

import (
	"fmt"
	"strings"

	"github.com/datastash/datastash/pkg/types"
)

// DescriptorFromDataset converts a dataset into a table descriptor for the
// materializer. Column names are normalized (spaces become underscores),
// storage types come from the closed element-type mapping, and a column
// holding any nil value is marked nullable. The descriptor's row source
// reads from the dataset lazily.
func DescriptorFromDataset(table string, ds *Dataset, primaryKey string, indices [][]string) (*types.TableDef, error) {
	if table == "" {
		return nil, fmt.Errorf("dataset: %w: descriptor needs a table name", types.ErrInvalidArgument)
	}
	if ds == nil || len(ds.Columns()) == 0 {
		return nil, fmt.Errorf("dataset: %w: descriptor needs at least one column", types.ErrInvalidArgument)
	}

	columns := make([]types.ColumnDef, 0, len(ds.Columns()))
	nullable := make(map[string]bool)
	for _, c := range ds.Columns() {
		storage, err := types.StorageType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("dataset: column %q: %w", c.Name, err)
		}
		name := NormalizeColumnName(c.Name)
		columns = append(columns, types.ColumnDef{Name: name, Type: storage})
		if hasNil(c.Values) {
			nullable[name] = true
		}
	}

	normalizedIndices := make([][]string, 0, len(indices))
	for _, idx := range indices {
		cols := make([]string, len(idx))
		for i, col := range idx {
			cols[i] = NormalizeColumnName(col)
		}
		normalizedIndices = append(normalizedIndices, cols)
	}

	def := &types.TableDef{
		Name:       table,
		Columns:    columns,
		PrimaryKey: NormalizeColumnName(primaryKey),
		Nullable:   nullable,
		Indices:    normalizedIndices,
		Rows: func() ([][]interface{}, error) {
			return ds.Rows(), nil
		},
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// NormalizeColumnName rewrites a dataset column name into a form usable as
// a database identifier: spaces become underscores.
func NormalizeColumnName(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

func hasNil(values []interface{}) bool {
	for _, v := range values {
		if v == nil {
			return true
		}
	}
	return false
}
