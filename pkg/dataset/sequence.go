package dataset

import (
	"fmt"

	"github.com/datastash/datastash/pkg/types"
)

// Default column names for sequence-backed tables.
const (
	DefaultSequenceKeyColumn   = "id"
	DefaultSequenceValueColumn = "sequence"
)

// SequenceRecord pairs a sequence identifier with its residues.
type SequenceRecord struct {
	ID       string
	Sequence string
}

// DescriptorFromSequences converts sequence records into a two-column TEXT
// table descriptor keyed by the identifier column. Record order is
// preserved. Repeated identifiers are a DuplicateKeyError.
func DescriptorFromSequences(table string, records []SequenceRecord, keyColumn, valueColumn string) (*types.TableDef, error) {
	if table == "" {
		return nil, fmt.Errorf("dataset: %w: descriptor needs a table name", types.ErrInvalidArgument)
	}
	if keyColumn == "" {
		keyColumn = DefaultSequenceKeyColumn
	}
	if valueColumn == "" {
		valueColumn = DefaultSequenceValueColumn
	}

	seen := make(map[string]struct{}, len(records))
	rows := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			return nil, fmt.Errorf("dataset: %w: sequence record needs an identifier", types.ErrInvalidArgument)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, &types.DuplicateKeyError{Key: rec.ID}
		}
		seen[rec.ID] = struct{}{}
		rows = append(rows, []interface{}{rec.ID, rec.Sequence})
	}

	def := &types.TableDef{
		Name: table,
		Columns: []types.ColumnDef{
			{Name: NormalizeColumnName(keyColumn), Type: types.StorageText},
			{Name: NormalizeColumnName(valueColumn), Type: types.StorageText},
		},
		PrimaryKey: NormalizeColumnName(keyColumn),
		Rows: func() ([][]interface{}, error) {
			return rows, nil
		},
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}
