package dataset

import (
	"errors"
	"reflect"
	"testing"

	"github.com/datastash/datastash/pkg/types"
)

func TestNewColumn_Inference(t *testing.T) {
	tests := []struct {
		name   string
		values []interface{}
		want   types.ElementType
	}{
		{"all int64", []interface{}{int64(1), int64(2)}, types.ElementInt64},
		{"all int", []interface{}{1, 2, 3}, types.ElementInt},
		{"mixed int widths", []interface{}{int8(1), int32(2)}, types.ElementInt64},
		{"unsigned only", []interface{}{uint8(1), uint16(2)}, types.ElementUint64},
		{"signed meets unsigned", []interface{}{int32(-1), uint8(2)}, types.ElementInt64},
		{"int meets float", []interface{}{1, 2.5}, types.ElementFloat64},
		{"float32 only", []interface{}{float32(1.5), float32(2.5)}, types.ElementFloat32},
		{"int meets string", []interface{}{1, "two"}, types.ElementString},
		{"bool only", []interface{}{true, false}, types.ElementBool},
		{"bool meets int", []interface{}{true, 1}, types.ElementString},
		{"nil values skipped", []interface{}{int64(1), nil, int64(2)}, types.ElementInt64},
		{"all nil", []interface{}{nil, nil}, types.ElementString},
		{"empty", nil, types.ElementString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, err := NewColumn("c", tt.values)
			if err != nil {
				t.Fatalf("NewColumn failed: %v", err)
			}
			if col.Type != tt.want {
				t.Errorf("inferred type mismatch: got %v, want %v", col.Type, tt.want)
			}
		})
	}
}

func TestNewColumn_UnsupportedValue(t *testing.T) {
	_, err := NewColumn("c", []interface{}{[]byte("raw")})
	if err == nil {
		t.Fatal("expected error for unsupported value type, got nil")
	}
	var unsupported *types.UnsupportedTypeError
	if !errors.As(err, &unsupported) {
		t.Errorf("expected UnsupportedTypeError, got %T: %v", err, err)
	}
}

func TestNewColumn_EmptyName(t *testing.T) {
	_, err := NewColumn("", []interface{}{1})
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNew_RaggedColumns(t *testing.T) {
	a, err := NewColumn("a", []interface{}{1, 2, 3})
	if err != nil {
		t.Fatalf("NewColumn failed: %v", err)
	}
	b, err := NewColumn("b", []interface{}{"x"})
	if err != nil {
		t.Fatalf("NewColumn failed: %v", err)
	}

	_, err = New(a, b)
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for ragged columns, got %v", err)
	}
}

func TestNew_DuplicateNames(t *testing.T) {
	a, _ := NewColumn("a", []interface{}{1})
	b, _ := NewColumn("a", []interface{}{2})

	_, err := New(a, b)
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for duplicate names, got %v", err)
	}
}

func TestDataset_Rows(t *testing.T) {
	numbers, err := NewColumn("numbers", []interface{}{int64(1), int64(2), int64(3)})
	if err != nil {
		t.Fatalf("NewColumn failed: %v", err)
	}
	strs, err := NewColumn("strings", []interface{}{"darkness", "light", nil})
	if err != nil {
		t.Fatalf("NewColumn failed: %v", err)
	}

	ds, err := New(numbers, strs)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if ds.Len() != 3 {
		t.Errorf("Len mismatch: got %d, want 3", ds.Len())
	}

	want := [][]interface{}{
		{int64(1), "darkness"},
		{int64(2), "light"},
		{int64(3), nil},
	}
	if got := ds.Rows(); !reflect.DeepEqual(got, want) {
		t.Errorf("Rows mismatch: got %v, want %v", got, want)
	}
}

func TestDataset_ColumnLookup(t *testing.T) {
	a, _ := NewColumn("a", []interface{}{1})
	ds, err := New(a)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	col, ok := ds.Column("a")
	if !ok {
		t.Fatal("expected column a to be found")
	}
	if col.Name != "a" {
		t.Errorf("column name mismatch: got %q", col.Name)
	}

	if _, ok := ds.Column("missing"); ok {
		t.Error("expected lookup of missing column to fail")
	}
}
