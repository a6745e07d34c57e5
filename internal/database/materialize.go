package database

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/datastash/datastash/pkg/types"
)

// Spec describes one materialization request: where the artifact lives,
// which tables it must contain, and the version those tables represent.
type Spec struct {
	// Path is the resolved artifact location
	Path string

	// Collection is the logical grouping the tables belong to
	Collection string

	// Tables lists the descriptors to materialize, in build order
	Tables []*types.TableDef

	// Version is the dataset version the build represents
	Version int

	// Overwrite destroys an existing artifact before looking at it
	Overwrite bool
}

// Materialize opens the artifact for a collection, reusing it when it is
// complete and at the requested version, rebuilding it otherwise. The
// returned handle is open and readable. On a failed build the handle is
// closed and a fresh artifact is deleted; the caller gets a *BuildError
// wrapping the cause.
//
// A hit requires all descriptor tables, the metadata witness, and strict
// version equality. Row sources are only invoked on a miss, once each.
func Materialize(ctx context.Context, spec Spec) (*DB, error) {
	if len(spec.Tables) == 0 {
		return nil, fmt.Errorf("database: %w: no tables to materialize", types.ErrInvalidArgument)
	}
	for _, def := range spec.Tables {
		if err := def.Validate(); err != nil {
			return nil, err
		}
	}

	if spec.Overwrite {
		if err := removeArtifact(spec.Path); err != nil {
			return nil, fmt.Errorf("database: removing %s for overwrite: %w", spec.Path, err)
		}
	}
	existedBefore := fileExists(spec.Path)

	db, err := Open(spec.Path, spec.Collection)
	if err != nil {
		return nil, err
	}

	hit, err := isComplete(ctx, db, spec)
	if err != nil {
		return nil, failBuild(db, spec, existedBefore, err)
	}
	if hit {
		log.Printf("database: using cached collection %q at %s (version %d)",
			db.Collection(), spec.Path, spec.Version)
		return db, nil
	}

	log.Printf("database: building collection %q at %s (version %d)",
		db.Collection(), spec.Path, spec.Version)
	if err := build(ctx, db, spec); err != nil {
		return nil, failBuild(db, spec, existedBefore, err)
	}
	return db, nil
}

// ConnectIfCorrectVersion opens an existing artifact only when its witness
// is present and stores exactly the requested version. ok is false when the
// artifact is absent, incomplete, or at another version.
func ConnectIfCorrectVersion(ctx context.Context, path, collection string, version int) (*DB, bool, error) {
	if !fileExists(path) {
		return nil, false, nil
	}
	db, err := Open(path, collection)
	if err != nil {
		return nil, false, err
	}

	has, err := db.HasVersion(ctx)
	if err != nil {
		db.Close()
		return nil, false, err
	}
	stored, err := db.Version(ctx)
	if err != nil {
		db.Close()
		return nil, false, err
	}
	if !has || stored != version {
		if err := db.Close(); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return db, true, nil
}

// isComplete checks the admission conditions: every descriptor table exists,
// the witness exists, and the stored version equals the requested one.
func isComplete(ctx context.Context, db *DB, spec Spec) (bool, error) {
	names := make([]string, len(spec.Tables))
	for i, def := range spec.Tables {
		names[i] = def.Name
	}

	hasAll, err := db.HasTables(ctx, names)
	if err != nil {
		return false, err
	}
	if !hasAll {
		return false, nil
	}

	has, err := db.HasVersion(ctx)
	if err != nil {
		return false, err
	}
	if !has {
		return false, nil
	}

	stored, err := db.Version(ctx)
	if err != nil {
		return false, err
	}
	if stored != spec.Version {
		log.Printf("database: [WARN] collection %q has version %d, want %d, rebuilding",
			db.Collection(), stored, spec.Version)
		return false, nil
	}
	return true, nil
}

// build runs the whole miss path in one transaction: drop leftovers from
// partial prior attempts, create and load each table, create its indices,
// write the witness, commit. Each row source is invoked exactly once.
func build(ctx context.Context, db *DB, spec Spec) error {
	if err := db.Begin(ctx); err != nil {
		return err
	}

	if err := dropLeftovers(ctx, db, spec); err != nil {
		return err
	}

	for _, def := range spec.Tables {
		if def.Rows == nil {
			return fmt.Errorf("database: %w: table %q has no row source", types.ErrInvalidArgument, def.Name)
		}
		if err := db.CreateTable(ctx, def); err != nil {
			return err
		}
		rows, err := def.Rows()
		if err != nil {
			return fmt.Errorf("database: row source for table %q: %w", def.Name, err)
		}
		if err := db.InsertRows(ctx, def.Name, def.ColumnNames(), rows); err != nil {
			return err
		}
		if err := db.CreateIndices(ctx, def.Name, def.Indices); err != nil {
			return err
		}
	}

	if err := db.WriteVersion(ctx, spec.Version); err != nil {
		return err
	}
	if err := db.Commit(); err != nil {
		return err
	}
	return finalize(ctx, db)
}

// dropLeftovers removes any already-present descriptor, collection, or
// metadata tables so a partial prior attempt cannot collide with this build.
func dropLeftovers(ctx context.Context, db *DB, spec Spec) error {
	candidates := make(map[string]bool)
	for _, def := range spec.Tables {
		candidates[def.Name] = true
	}
	candidates[db.MetadataTableName()] = true
	collectionTables, err := db.CollectionTableNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range collectionTables {
		candidates[name] = true
	}

	var leftovers []string
	for name := range candidates {
		exists, err := db.TableExists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			leftovers = append(leftovers, name)
		}
	}
	if len(leftovers) == 0 {
		return nil
	}

	log.Printf("database: dropping %d leftover tables for collection %q", len(leftovers), db.Collection())
	return db.DropTables(ctx, leftovers)
}

// finalize checkpoints the WAL and switches to rollback journaling so the
// committed artifact is a single self-contained file.
func finalize(ctx context.Context, db *DB) error {
	if _, err := db.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("database: checkpointing %s: %w", db.path, err)
	}
	if _, err := db.db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return fmt.Errorf("database: finalizing journal mode for %s: %w", db.path, err)
	}
	return nil
}

// failBuild closes the handle, deletes the artifact unless it pre-existed,
// and wraps the cause.
func failBuild(db *DB, spec Spec, existedBefore bool, cause error) error {
	if err := db.Close(); err != nil {
		log.Printf("database: [WARN] closing after failed build: %v", err)
	}
	if !existedBefore {
		if err := removeArtifact(spec.Path); err != nil {
			log.Printf("database: [WARN] removing failed artifact %s: %v", spec.Path, err)
		}
	}
	return &types.BuildError{Collection: db.Collection(), Cause: cause}
}

// fileExists reports whether path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// removeArtifact deletes the SQLite file and its WAL sidecars, tolerating
// files that are already gone.
func removeArtifact(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
