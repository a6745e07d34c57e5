package benchmark

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/datastash/datastash/internal/fetch"
	"github.com/datastash/datastash/pkg/types"
	"github.com/joho/godotenv"
)

// getBenchmarkSource returns a fetcher and a source URL to benchmark
// against. It respects DATASTASH_SOURCE_TYPE=s3 from .env or environment.
// For S3: DATASTASH_S3_URL must name an existing s3://bucket/key object.
// For Local (the default): a loopback HTTP server serves a generated CSV
// payload with the requested number of rows.
func getBenchmarkSource(b *testing.B, rows int) (types.Fetcher, string, func()) {
	// Try loading .env from project root (../../.env relative to test/benchmark)
	_ = godotenv.Load("../../.env")

	sourceType := os.Getenv("DATASTASH_SOURCE_TYPE")

	if sourceType == "s3" {
		// Map credentials
		if v := os.Getenv("DATASTASH_AWS_ACCESS_KEY_ID"); v != "" {
			os.Setenv("AWS_ACCESS_KEY_ID", v)
		}
		if v := os.Getenv("DATASTASH_AWS_SECRET_ACCESS_KEY"); v != "" {
			os.Setenv("AWS_SECRET_ACCESS_KEY", v)
		}

		url := os.Getenv("DATASTASH_S3_URL")
		if url == "" {
			b.Fatal("DATASTASH_S3_URL is required for s3 benchmark")
		}

		cfg := fetch.DefaultConfig()
		cfg.S3.Region = os.Getenv("DATASTASH_S3_REGION")
		cfg.S3.Endpoint = os.Getenv("DATASTASH_S3_ENDPOINT")
		cfg.S3.UsePathStyle = cfg.S3.Endpoint != ""

		b.Logf("Running benchmark against %s", url)

		// Cleanup is a no-op for S3: the object is caller-managed
		return fetch.New(cfg), url, func() {}
	}

	// Default to a local loopback server
	payload := generateCSV(rows)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write(payload)
	}))

	return fetch.New(fetch.DefaultConfig()), srv.URL + "/bench.csv", srv.Close
}

// generateCSV produces a header plus n data rows. The columns exercise the
// three storage types: integer id, text name, float score, bool active.
func generateCSV(n int) []byte {
	var sb strings.Builder
	sb.WriteString("id,name,score,active\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%d,item_%d,%g,%t\n", i, i, float64(i)*1.5, i%2 == 0)
	}
	return []byte(sb.String())
}

// generateRows produces n rows matching benchTableDef's columns.
func generateRows(n int) [][]interface{} {
	rows := make([][]interface{}, n)
	for i := 0; i < n; i++ {
		rows[i] = []interface{}{int64(i), fmt.Sprintf("item_%d", i), float64(i) * 1.5}
	}
	return rows
}

// benchTableDef describes the table the generated rows load into. No
// primary key: benchmarks insert the same rows repeatedly.
func benchTableDef(rows [][]interface{}) *types.TableDef {
	return &types.TableDef{
		Name: "events",
		Columns: []types.ColumnDef{
			{Name: "id", Type: types.StorageInteger},
			{Name: "name", Type: types.StorageText},
			{Name: "score", Type: types.StorageFloat},
		},
		Rows: func() ([][]interface{}, error) { return rows, nil },
	}
}
