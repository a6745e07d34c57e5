package integration

import (
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/datastash/datastash/internal/cachedir"
	"github.com/datastash/datastash/pkg/dataset"
	"github.com/datastash/datastash/pkg/stash"
)

// TestCSVDatabaseFlow tests the end-to-end CSV materialization flow:
// download → parse → build → reuse → version gate
func TestCSVDatabaseFlow(t *testing.T) {
	ctx := context.Background()

	// Setup test environment
	tempDir, err := os.MkdirTemp("", "datastash-csvdb-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)
	t.Setenv(cachedir.EnvOverride, tempDir)

	csvBody := "gene_id,symbol,tax_id\n1,TP53,9606\n2,BRCA1,9606\n3,Trp53,10090\n"
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(csvBody))
	}))
	defer srv.Close()

	url := srv.URL + "/genes.csv"

	db, path, err := stash.FetchCSVDB(ctx, stash.CSVDBParams{
		URL:        url,
		Table:      "genes",
		PrimaryKey: "gene_id",
		Subdir:     "genomes",
		Collection: "genomes",
		Version:    2,
	})
	if err != nil {
		t.Fatalf("failed to build CSV database: %v", err)
	}

	// Verify table contents
	rows, err := db.QueryContext(ctx, `SELECT gene_id, symbol, tax_id FROM genes ORDER BY gene_id`)
	if err != nil {
		t.Fatalf("failed to query genes: %v", err)
	}
	var got []string
	for rows.Next() {
		var id, tax int64
		var symbol string
		if err := rows.Scan(&id, &symbol, &tax); err != nil {
			t.Fatalf("failed to scan row: %v", err)
		}
		got = append(got, fmt.Sprintf("%d:%s:%d", id, symbol, tax))
	}
	rows.Close()
	want := []string{"1:TP53:9606", "2:BRCA1:9606", "3:Trp53:10090"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("genes = %v, want %v", got, want)
	}
	db.Close()

	// Second build reuses both the download and the artifact
	db2, path2, err := stash.FetchCSVDB(ctx, stash.CSVDBParams{
		URL:        url,
		Table:      "genes",
		PrimaryKey: "gene_id",
		Subdir:     "genomes",
		Collection: "genomes",
		Version:    2,
	})
	if err != nil {
		t.Fatalf("failed to rebuild CSV database: %v", err)
	}
	defer db2.Close()
	if path2 != path {
		t.Errorf("expected same artifact path, got %s vs %s", path2, path)
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("expected 1 request after artifact reuse, got %d", n)
	}

	// Only the exact version connects
	check, ok, err := stash.ConnectIfCorrectVersion(ctx, path, "genomes", 2)
	if err != nil {
		t.Fatalf("failed to connect at version 2: %v", err)
	}
	if !ok {
		t.Fatal("expected version 2 artifact to connect")
	}
	check.Close()

	if _, ok, err := stash.ConnectIfCorrectVersion(ctx, path, "genomes", 3); err != nil || ok {
		t.Errorf("expected version mismatch to refuse connection, got ok=%v err=%v", ok, err)
	}
}

// TestSequenceDatabaseFlow tests FASTA materialization into a keyed table.
func TestSequenceDatabaseFlow(t *testing.T) {
	ctx := context.Background()

	// Setup test environment
	tempDir, err := os.MkdirTemp("", "datastash-seqdb-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)
	t.Setenv(cachedir.EnvOverride, tempDir)

	fasta := ">seq1 first record\nACGT\nTTGG\n>seq2\nGGCC\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gz := gzip.NewWriter(w)
		gz.Write([]byte(fasta))
		gz.Close()
	}))
	defer srv.Close()

	db, path, err := stash.FetchSequenceDB(ctx, stash.SequenceDBParams{
		URL:        srv.URL + "/proteins.fa.gz",
		Table:      "sequences",
		Subdir:     "genomes",
		Collection: "genomes",
	})
	if err != nil {
		t.Fatalf("failed to build sequence database: %v", err)
	}
	defer db.Close()

	var seq string
	if err := db.QueryRowContext(ctx, `SELECT sequence FROM sequences WHERE id = 'seq1'`).Scan(&seq); err != nil {
		t.Fatalf("failed to query sequence: %v", err)
	}
	if seq != "ACGTTTGG" {
		t.Errorf("sequence = %q, want %q", seq, "ACGTTTGG")
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sequences`).Scan(&count); err != nil {
		t.Fatalf("failed to count sequences: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 sequences, got %d", count)
	}

	// Artifact name carries the record count
	if !strings.Contains(path, "_nrecords2") {
		t.Errorf("expected record count in artifact name, got %s", path)
	}
}

// TestMultiTableFlow tests several datasets materialized into one artifact.
func TestMultiTableFlow(t *testing.T) {
	ctx := context.Background()

	// Setup test environment
	tempDir, err := os.MkdirTemp("", "datastash-multi-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)
	t.Setenv(cachedir.EnvOverride, tempDir)

	mustColumn := func(name string, values []interface{}) dataset.Column {
		col, err := dataset.NewColumn(name, values)
		if err != nil {
			t.Fatalf("failed to build column %s: %v", name, err)
		}
		return col
	}

	genes, err := dataset.New(
		mustColumn("gene_id", []interface{}{int64(1), int64(2)}),
		mustColumn("symbol", []interface{}{"TP53", "BRCA1"}),
	)
	if err != nil {
		t.Fatalf("failed to build genes dataset: %v", err)
	}
	taxa, err := dataset.New(
		mustColumn("tax_id", []interface{}{int64(9606), int64(10090)}),
		mustColumn("name", []interface{}{"human", "mouse"}),
	)
	if err != nil {
		t.Fatalf("failed to build taxa dataset: %v", err)
	}

	db, path, err := stash.DBFromDatasets(ctx, stash.DatasetsDBParams{
		DBFilename:  "annotations.db",
		Datasets:    map[string]*dataset.Dataset{"genes": genes, "taxa": taxa},
		PrimaryKeys: map[string]string{"genes": "gene_id", "taxa": "tax_id"},
		Subdir:      "genomes",
		Collection:  "genomes",
		Version:     1,
	})
	if err != nil {
		t.Fatalf("failed to build multi-table database: %v", err)
	}
	db.Close()

	// Reconnect through the version gate and read the second table
	db2, ok, err := stash.ConnectIfCorrectVersion(ctx, path, "genomes", 1)
	if err != nil {
		t.Fatalf("failed to reconnect: %v", err)
	}
	if !ok {
		t.Fatal("expected current artifact to connect")
	}
	defer db2.Close()

	var name string
	if err := db2.QueryRowContext(ctx, `SELECT name FROM taxa WHERE tax_id = 9606`).Scan(&name); err != nil {
		t.Fatalf("failed to query taxa: %v", err)
	}
	if name != "human" {
		t.Errorf("name = %q, want %q", name, "human")
	}
}
