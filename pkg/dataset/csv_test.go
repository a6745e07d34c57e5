package dataset

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/datastash/datastash/pkg/types"
)

func TestLoadCSV_TypeInference(t *testing.T) {
	input := strings.Join([]string{
		"count,ratio,flag,label,mixed",
		"1,0.5,true,alpha,1",
		"2,1.25,false,beta,two",
		"3,2,true,gamma,3",
	}, "\n")

	ds, err := LoadCSV(strings.NewReader(input), CSVOptions{})
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("row count mismatch: got %d, want 3", ds.Len())
	}

	tests := []struct {
		column string
		want   types.ElementType
	}{
		{"count", types.ElementInt64},
		{"ratio", types.ElementFloat64},
		{"flag", types.ElementBool},
		{"label", types.ElementString},
		{"mixed", types.ElementString},
	}
	for _, tt := range tests {
		col, ok := ds.Column(tt.column)
		if !ok {
			t.Fatalf("column %q not found", tt.column)
		}
		if col.Type != tt.want {
			t.Errorf("column %q type mismatch: got %v, want %v", tt.column, col.Type, tt.want)
		}
	}

	ratio, _ := ds.Column("ratio")
	// "2" loads as 2.0 because the column as a whole is float
	if ratio.Values[2] != 2.0 {
		t.Errorf("expected whole-column float conversion, got %v", ratio.Values[2])
	}
	mixed, _ := ds.Column("mixed")
	if mixed.Values[0] != "1" {
		t.Errorf("expected mixed column to keep strings, got %v", mixed.Values[0])
	}
}

func TestLoadCSV_EmptyCellsBecomeNil(t *testing.T) {
	input := "numbers,strings\n1,darkness\n2,light\n3,\n"

	ds, err := LoadCSV(strings.NewReader(input), CSVOptions{})
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	strs, ok := ds.Column("strings")
	if !ok {
		t.Fatal("column strings not found")
	}
	want := []interface{}{"darkness", "light", nil}
	if !reflect.DeepEqual(strs.Values, want) {
		t.Errorf("values mismatch: got %v, want %v", strs.Values, want)
	}

	nums, _ := ds.Column("numbers")
	if nums.Type != types.ElementInt64 {
		t.Errorf("numbers type mismatch: got %v, want %v", nums.Type, types.ElementInt64)
	}
}

func TestLoadCSV_IntegersBeatBooleans(t *testing.T) {
	// 1 and 0 parse as both int and bool; int wins
	input := "bit\n1\n0\n"

	ds, err := LoadCSV(strings.NewReader(input), CSVOptions{})
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	col, _ := ds.Column("bit")
	if col.Type != types.ElementInt64 {
		t.Errorf("type mismatch: got %v, want %v", col.Type, types.ElementInt64)
	}
}

func TestLoadCSV_TabDelimited(t *testing.T) {
	input := "chrom\tstart\nchr1\t100\nchr2\t250\n"

	ds, err := LoadCSV(strings.NewReader(input), CSVOptions{Comma: '\t'})
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if ds.Len() != 2 {
		t.Errorf("row count mismatch: got %d, want 2", ds.Len())
	}
	start, ok := ds.Column("start")
	if !ok {
		t.Fatal("column start not found")
	}
	if start.Values[1] != int64(250) {
		t.Errorf("value mismatch: got %v, want 250", start.Values[1])
	}
}

func TestLoadCSV_CommentLines(t *testing.T) {
	input := "# generated fixture\na,b\n1,2\n"

	ds, err := LoadCSV(strings.NewReader(input), CSVOptions{Comment: '#'})
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if _, ok := ds.Column("a"); !ok {
		t.Error("expected comment line skipped and header parsed")
	}
}

func TestLoadCSV_HeaderOnly(t *testing.T) {
	ds, err := LoadCSV(strings.NewReader("a,b\n"), CSVOptions{})
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if ds.Len() != 0 {
		t.Errorf("expected zero rows, got %d", ds.Len())
	}
	if len(ds.Columns()) != 2 {
		t.Errorf("expected 2 columns, got %d", len(ds.Columns()))
	}
}

func TestLoadCSV_EmptyInput(t *testing.T) {
	_, err := LoadCSV(strings.NewReader(""), CSVOptions{})
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestLoadCSV_RaggedRecords(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("a,b\n1\n"), CSVOptions{})
	if err == nil {
		t.Error("expected error for ragged records, got nil")
	}
}
