// Package database materializes datasets into versioned SQLite files.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/datastash/datastash/pkg/types"
)

const (
	// metadataTablePrefix is joined with the collection name to form the
	// reserved metadata table. Its presence is the witness that a build
	// committed completely.
	metadataTablePrefix = "_datastash_metadata"

	// DefaultCollection is used when the caller does not name a collection.
	DefaultCollection = "datastash"
)

// DB wraps one SQLite artifact holding the tables of a single collection.
// Mutations run on an explicit build transaction when one is open; nothing
// is auto-committed mid-build.
type DB struct {
	db         *sql.DB
	tx         *sql.Tx
	path       string
	collection string
}

// Open opens (or creates) the SQLite file at path for a collection.
func Open(path, collection string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database: %w: path is empty", types.ErrInvalidArgument)
	}
	if collection == "" {
		collection = DefaultCollection
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("database: failed to open %s: %w", path, err)
	}
	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &DB{db: db, path: path, collection: collection}, nil
}

// SQL exposes the underlying connection for callers that query the artifact.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Path returns the artifact's filesystem location.
func (d *DB) Path() string {
	return d.path
}

// Collection returns the collection name this handle is bound to.
func (d *DB) Collection() string {
	return d.collection
}

// MetadataTableName returns the reserved metadata table name for this
// collection.
func (d *DB) MetadataTableName() string {
	return metadataTablePrefix + "_" + d.collection
}

// TableExists reports whether a table with exactly this name exists.
func (d *DB) TableExists(ctx context.Context, name string) (bool, error) {
	var count int
	row := d.queryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("database: checking table %q: %w", name, err)
	}
	return count > 0, nil
}

// HasTables reports whether every named table exists.
func (d *DB) HasTables(ctx context.Context, names []string) (bool, error) {
	for _, name := range names {
		exists, err := d.TableExists(ctx, name)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, nil
		}
	}
	return true, nil
}

// TableNames returns all user table names in the artifact.
func (d *DB) TableNames(ctx context.Context) ([]string, error) {
	rows, err := d.queryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("database: listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("database: scanning table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: listing tables: %w", err)
	}
	return names, nil
}

// CollectionTableNames returns the tables that belong to this collection
// under the shared-file naming convention: names ending in the collection
// name, plus the metadata table.
func (d *DB) CollectionTableNames(ctx context.Context) ([]string, error) {
	all, err := d.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, name := range all {
		if strings.HasSuffix(name, d.collection) || name == d.MetadataTableName() {
			names = append(names, name)
		}
	}
	return names, nil
}

// HasVersion reports whether the metadata witness table exists.
func (d *DB) HasVersion(ctx context.Context) (bool, error) {
	return d.TableExists(ctx, d.MetadataTableName())
}

// Version returns the stored version, or zero when the metadata table or
// its row is absent.
func (d *DB) Version(ctx context.Context) (int, error) {
	has, err := d.HasVersion(ctx)
	if err != nil {
		return 0, err
	}
	if !has {
		return 0, nil
	}

	var version int
	row := d.queryRowContext(ctx,
		fmt.Sprintf("SELECT version FROM %s", quoteIdent(d.MetadataTableName())))
	if err := row.Scan(&version); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("database: reading version: %w", err)
	}
	return version, nil
}

// Begin opens the build transaction. Only one may be open at a time.
func (d *DB) Begin(ctx context.Context) error {
	if d.tx != nil {
		return fmt.Errorf("database: build transaction already open")
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("database: begin: %w", err)
	}
	d.tx = tx
	return nil
}

// Commit commits the build transaction.
func (d *DB) Commit() error {
	if d.tx == nil {
		return fmt.Errorf("database: no build transaction to commit")
	}
	err := d.tx.Commit()
	d.tx = nil
	if err != nil {
		return fmt.Errorf("database: commit: %w", err)
	}
	return nil
}

// Rollback abandons the build transaction. Calling it with no open
// transaction is a no-op, so it is safe on every exit path.
func (d *DB) Rollback() error {
	if d.tx == nil {
		return nil
	}
	err := d.tx.Rollback()
	d.tx = nil
	if err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("database: rollback: %w", err)
	}
	return nil
}

// CreateTable creates the descriptor's table: quoted identifiers, UNIQUE
// PRIMARY KEY on the key column, NOT NULL on everything not marked nullable.
func (d *DB) CreateTable(ctx context.Context, def *types.TableDef) error {
	if err := def.Validate(); err != nil {
		return err
	}

	decls := make([]string, len(def.Columns))
	for i, col := range def.Columns {
		decl := quoteIdent(col.Name) + " " + col.Type
		if col.Name == def.PrimaryKey {
			decl += " UNIQUE PRIMARY KEY"
		}
		if !def.Nullable[col.Name] {
			decl += " NOT NULL"
		}
		decls[i] = decl
	}

	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(def.Name), strings.Join(decls, ", "))
	if _, err := d.execContext(ctx, ddl); err != nil {
		return fmt.Errorf("database: creating table %q: %w", def.Name, err)
	}
	return nil
}

// InsertRows loads rows into a table through a prepared statement. Zero rows
// is an error; every row must have the first row's arity.
func (d *DB) InsertRows(ctx context.Context, table string, columns []string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return fmt.Errorf("database: table %q: %w", table, types.ErrEmptyRowSet)
	}
	if len(rows[0]) != len(columns) {
		return &types.RowArityError{Row: 0, Got: len(rows[0]), Want: len(columns)}
	}
	want := len(rows[0])
	for i, row := range rows {
		if len(row) != want {
			return &types.RowArityError{Row: i, Got: len(row), Want: want}
		}
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdent(col)
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	stmt, err := d.prepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("database: preparing insert for %q: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("database: inserting row %d into %q: %w", i, table, err)
		}
	}
	return nil
}

// CreateIndices creates one index per column tuple, named
// <table>_index_<columns joined by underscores>.
func (d *DB) CreateIndices(ctx context.Context, table string, indices [][]string) error {
	for _, tuple := range indices {
		if len(tuple) == 0 {
			return fmt.Errorf("database: %w: empty index tuple for table %q", types.ErrInvalidArgument, table)
		}
		name := fmt.Sprintf("%s_index_%s", table, strings.Join(tuple, "_"))
		quoted := make([]string, len(tuple))
		for i, col := range tuple {
			quoted[i] = quoteIdent(col)
		}
		indexSQL := fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
			quoteIdent(name), quoteIdent(table), strings.Join(quoted, ", "))
		if _, err := d.execContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("database: creating index %q: %w", name, err)
		}
	}
	return nil
}

// WriteVersion creates the metadata witness table and stores the version.
// The create is deliberately not idempotent: a second call for the same
// collection fails with a duplicate-table error.
func (d *DB) WriteVersion(ctx context.Context, version int) error {
	meta := quoteIdent(d.MetadataTableName())
	if _, err := d.execContext(ctx,
		fmt.Sprintf("CREATE TABLE %s (version INTEGER NOT NULL)", meta)); err != nil {
		return fmt.Errorf("database: creating metadata table: %w", err)
	}
	if _, err := d.execContext(ctx,
		fmt.Sprintf("INSERT INTO %s (version) VALUES (?)", meta), version); err != nil {
		return fmt.Errorf("database: writing version: %w", err)
	}
	return nil
}

// DropTables drops the named tables. Missing tables are logged and skipped.
func (d *DB) DropTables(ctx context.Context, names []string) error {
	for _, name := range names {
		exists, err := d.TableExists(ctx, name)
		if err != nil {
			return err
		}
		if !exists {
			log.Printf("database: [WARN] skipping drop of missing table %q", name)
			continue
		}
		if _, err := d.execContext(ctx, "DROP TABLE "+quoteIdent(name)); err != nil {
			return fmt.Errorf("database: dropping table %q: %w", name, err)
		}
	}
	return nil
}

// DropCollectionTables drops every table belonging to this collection,
// metadata included.
func (d *DB) DropCollectionTables(ctx context.Context) error {
	names, err := d.CollectionTableNames(ctx)
	if err != nil {
		return err
	}
	return d.DropTables(ctx, names)
}

// Close rolls back any open build transaction and closes the connection.
func (d *DB) Close() error {
	if d.tx != nil {
		if err := d.Rollback(); err != nil {
			log.Printf("database: [WARN] rollback on close: %v", err)
		}
	}
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("database: closing %s: %w", d.path, err)
	}
	return nil
}

// quoteIdent quotes an SQL identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// execContext routes statements through the build transaction when open.
func (d *DB) execContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if d.tx != nil {
		return d.tx.ExecContext(ctx, query, args...)
	}
	return d.db.ExecContext(ctx, query, args...)
}

// queryContext routes queries through the build transaction when open.
func (d *DB) queryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if d.tx != nil {
		return d.tx.QueryContext(ctx, query, args...)
	}
	return d.db.QueryContext(ctx, query, args...)
}

// queryRowContext routes single-row queries through the build transaction
// when open.
func (d *DB) queryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	if d.tx != nil {
		return d.tx.QueryRowContext(ctx, query, args...)
	}
	return d.db.QueryRowContext(ctx, query, args...)
}

// prepareContext prepares a statement on the build transaction when open.
func (d *DB) prepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	if d.tx != nil {
		return d.tx.PrepareContext(ctx, query)
	}
	return d.db.PrepareContext(ctx, query)
}
