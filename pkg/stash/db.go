package stash

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/datastash/datastash/internal/cachedir"
	"github.com/datastash/datastash/internal/database"
	"github.com/datastash/datastash/internal/names"
	"github.com/datastash/datastash/pkg/dataset"
	"github.com/datastash/datastash/pkg/types"
)

// DefaultVersion marks datasets built without explicit versioning.
const DefaultVersion = 1

// DatasetDBParams describes a single-table materialization.
type DatasetDBParams struct {
	// DBFilename names the artifact; empty means constructed from the
	// table name and dataset shape
	DBFilename string

	// Table is the table name inside the artifact
	Table string

	// Dataset holds the rows to materialize
	Dataset *dataset.Dataset

	// PrimaryKey and Indices pass through to the table descriptor
	PrimaryKey string
	Indices    [][]string

	// Subdir picks the cache subdirectory; Collection the logical grouping
	Subdir     string
	Collection string

	// Overwrite rebuilds even when a current artifact exists
	Overwrite bool

	// Version tags the build; zero means DefaultVersion
	Version int
}

// DBFromDataset materializes one dataset as one table in a cached SQLite
// artifact, reusing a previous build when it is complete and at the same
// version. It returns the open connection and the artifact path; the caller
// owns the connection.
func DBFromDataset(ctx context.Context, p DatasetDBParams) (*sql.DB, string, error) {
	def, err := dataset.DescriptorFromDataset(p.Table, p.Dataset, p.PrimaryKey, p.Indices)
	if err != nil {
		return nil, "", err
	}

	filename := p.DBFilename
	if filename == "" {
		filename, err = ConstructDBFilename(p.Table, p.Dataset)
		if err != nil {
			return nil, "", err
		}
	}
	return materializeTables(ctx, p.Subdir, filename, p.Collection, []*types.TableDef{def}, p.Version, p.Overwrite)
}

// DatasetsDBParams describes a multi-table materialization: several
// datasets in one artifact.
type DatasetsDBParams struct {
	// DBFilename names the artifact; required, since no single table can
	// name a multi-table build
	DBFilename string

	// Datasets maps table names to their data
	Datasets map[string]*dataset.Dataset

	// PrimaryKeys and Indices are keyed by table name
	PrimaryKeys map[string]string
	Indices     map[string][][]string

	Subdir     string
	Collection string
	Overwrite  bool
	Version    int
}

// DBFromDatasets materializes several datasets into one cached artifact.
// Tables build in sorted name order so repeated runs are deterministic.
func DBFromDatasets(ctx context.Context, p DatasetsDBParams) (*sql.DB, string, error) {
	if p.DBFilename == "" {
		return nil, "", fmt.Errorf("stash: %w: multi-table builds need an explicit filename", types.ErrInvalidArgument)
	}
	if len(p.Datasets) == 0 {
		return nil, "", fmt.Errorf("stash: %w: no datasets to materialize", types.ErrInvalidArgument)
	}

	tables := make([]string, 0, len(p.Datasets))
	for table := range p.Datasets {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	defs := make([]*types.TableDef, 0, len(tables))
	for _, table := range tables {
		def, err := dataset.DescriptorFromDataset(table, p.Datasets[table], p.PrimaryKeys[table], p.Indices[table])
		if err != nil {
			return nil, "", err
		}
		defs = append(defs, def)
	}
	return materializeTables(ctx, p.Subdir, p.DBFilename, p.Collection, defs, p.Version, p.Overwrite)
}

// CSVDBParams describes a fetch-then-materialize for one CSV source.
type CSVDBParams struct {
	// URL locates the CSV; archives are decompressed on download
	URL string

	// Table is the table name inside the artifact
	Table string

	// DBFilename names the artifact; empty means constructed from the
	// downloaded file and dataset shape
	DBFilename string

	// Filename overrides the derived download filename
	Filename string

	PrimaryKey string
	Indices    [][]string

	Subdir     string
	Collection string
	Overwrite  bool
	Version    int

	// Timeout bounds the download
	Timeout time.Duration

	// CSV adjusts parsing (delimiter, comments)
	CSV dataset.CSVOptions

	// Cache to fetch through; nil means a fresh cache for Subdir
	Cache *Cache
}

// FetchCSVDB downloads a CSV source through the cache, loads it into a
// dataset, and materializes it as a cached SQLite table.
func FetchCSVDB(ctx context.Context, p CSVDBParams) (*sql.DB, string, error) {
	if p.URL == "" {
		return nil, "", fmt.Errorf("stash: %w: empty URL", types.ErrInvalidArgument)
	}

	cache, err := resolveCache(p.Cache, p.Subdir)
	if err != nil {
		return nil, "", err
	}

	csvPath, err := cache.Fetch(ctx, p.URL, FetchOptions{
		Filename:   p.Filename,
		Decompress: true,
		Timeout:    p.Timeout,
	})
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return nil, "", fmt.Errorf("stash: opening %s: %w", csvPath, err)
	}
	ds, err := dataset.LoadCSV(f, p.CSV)
	f.Close()
	if err != nil {
		return nil, "", err
	}

	filename := p.DBFilename
	if filename == "" {
		base := strings.TrimSuffix(filepath.Base(csvPath), filepath.Ext(csvPath))
		filename, err = ConstructDBFilename(base, ds)
		if err != nil {
			return nil, "", err
		}
	}

	return DBFromDataset(ctx, DatasetDBParams{
		DBFilename: filename,
		Table:      p.Table,
		Dataset:    ds,
		PrimaryKey: p.PrimaryKey,
		Indices:    p.Indices,
		Subdir:     p.Subdir,
		Collection: p.Collection,
		Overwrite:  p.Overwrite,
		Version:    p.Version,
	})
}

// SequenceDBParams describes a fetch-then-materialize for one FASTA source.
type SequenceDBParams struct {
	// URL locates the FASTA file; archives are decompressed on download
	URL string

	// Table is the table name inside the artifact
	Table string

	// DBFilename names the artifact; empty means constructed from the
	// downloaded file and record count
	DBFilename string

	// Filename overrides the derived download filename
	Filename string

	// KeyColumn and ValueColumn name the two TEXT columns; empty means
	// the sequence defaults
	KeyColumn   string
	ValueColumn string

	Subdir     string
	Collection string
	Overwrite  bool
	Version    int

	Timeout time.Duration

	Cache *Cache
}

// FetchSequenceDB downloads a FASTA source through the cache, parses its
// records, and materializes them as a two-column keyed table.
func FetchSequenceDB(ctx context.Context, p SequenceDBParams) (*sql.DB, string, error) {
	if p.URL == "" {
		return nil, "", fmt.Errorf("stash: %w: empty URL", types.ErrInvalidArgument)
	}

	cache, err := resolveCache(p.Cache, p.Subdir)
	if err != nil {
		return nil, "", err
	}

	fastaPath, err := cache.Fetch(ctx, p.URL, FetchOptions{
		Filename:   p.Filename,
		Decompress: true,
		Timeout:    p.Timeout,
	})
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(fastaPath)
	if err != nil {
		return nil, "", fmt.Errorf("stash: opening %s: %w", fastaPath, err)
	}
	records, err := dataset.ParseFASTA(f)
	f.Close()
	if err != nil {
		return nil, "", err
	}

	def, err := dataset.DescriptorFromSequences(p.Table, records, p.KeyColumn, p.ValueColumn)
	if err != nil {
		return nil, "", err
	}

	filename := p.DBFilename
	if filename == "" {
		base := strings.TrimSuffix(filepath.Base(fastaPath), filepath.Ext(fastaPath))
		filename = names.Shorten(fmt.Sprintf("%s_nrecords%d.db", base, len(records)))
	}

	return materializeTables(ctx, p.Subdir, filename, p.Collection, []*types.TableDef{def}, p.Version, p.Overwrite)
}

// ConnectIfCorrectVersion opens an existing cached artifact only when it
// holds exactly the requested version; ok reports whether it did. No build
// happens either way.
func ConnectIfCorrectVersion(ctx context.Context, path, collection string, version int) (*sql.DB, bool, error) {
	db, ok, err := database.ConnectIfCorrectVersion(ctx, path, collection, version)
	if err != nil || !ok {
		return nil, false, err
	}
	return db.SQL(), true, nil
}

// ConstructDBFilename builds a deterministic artifact name from a base and
// the dataset's shape: row count plus each column's name and storage type.
// The dataset changing shape changes the filename, so incompatible builds
// never collide.
func ConstructDBFilename(base string, ds *dataset.Dataset) (string, error) {
	if ds == nil {
		return "", fmt.Errorf("stash: %w: nil dataset", types.ErrInvalidArgument)
	}

	var b strings.Builder
	b.WriteString(base)
	fmt.Fprintf(&b, "_nrows%d", ds.Len())
	for _, col := range ds.Columns() {
		storage, err := types.StorageType(col.Type)
		if err != nil {
			return "", fmt.Errorf("stash: column %q: %w", col.Name, err)
		}
		fmt.Fprintf(&b, ".%s_%s", dataset.NormalizeColumnName(col.Name), storage)
	}
	b.WriteString(".db")
	return names.Shorten(b.String()), nil
}

// materializeTables resolves the artifact path under the cache directory
// and hands the descriptors to the database layer.
func materializeTables(ctx context.Context, subdir, filename, collection string, tables []*types.TableDef, version int, overwrite bool) (*sql.DB, string, error) {
	dir, err := cachedir.Dir(subdir)
	if err != nil {
		return nil, "", fmt.Errorf("stash: resolving cache dir: %w", err)
	}
	if err := cachedir.Ensure(dir); err != nil {
		return nil, "", fmt.Errorf("stash: creating cache dir: %w", err)
	}

	if version == 0 {
		version = DefaultVersion
	}
	path := filepath.Join(dir, filename)

	db, err := database.Materialize(ctx, database.Spec{
		Path:       path,
		Collection: collection,
		Tables:     tables,
		Version:    version,
		Overwrite:  overwrite,
	})
	if err != nil {
		return nil, "", err
	}
	return db.SQL(), path, nil
}

// resolveCache returns the given cache or builds one for the subdir.
func resolveCache(c *Cache, subdir string) (*Cache, error) {
	if c != nil {
		return c, nil
	}
	return New(subdir)
}
