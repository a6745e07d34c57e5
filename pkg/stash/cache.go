// Package stash is the public entry point: a local download cache for
// remote datasets plus the facade that materializes datasets into cached
// SQLite files. All state lives in explicit Cache values; there are no
// package-level caches.
package stash

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/datastash/datastash/internal/cachedir"
	"github.com/datastash/datastash/internal/fetch"
	"github.com/datastash/datastash/internal/names"
	"github.com/datastash/datastash/internal/observability"
	"github.com/datastash/datastash/pkg/types"
)

// statsWindow is how long an idle source stays in the transfer statistics
// before Prune drops it.
const statsWindow = 24 * time.Hour

// sourceKey identifies one cached download: the same URL fetched with and
// without decompression is two distinct entries.
type sourceKey struct {
	url        string
	decompress bool
}

// Cache tracks downloaded files for one cache subdirectory. Lookups verify
// the file still exists on disk and evict stale entries, so deleting cache
// files out from under a live Cache degrades to refetching.
type Cache struct {
	mu    sync.Mutex
	paths map[sourceKey]string

	dir     string
	fetcher types.Fetcher
	stats   *observability.TransferStats
}

// New creates a cache rooted at the resolved cache directory for subdir.
// The directory is created if missing.
func New(subdir string, opts ...Option) (*Cache, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = fetch.New(o.fetchConfig)
	}

	dir := o.dir
	if dir == "" {
		var err error
		dir, err = cachedir.Dir(subdir)
		if err != nil {
			return nil, fmt.Errorf("stash: resolving cache dir: %w", err)
		}
	}
	if err := cachedir.Ensure(dir); err != nil {
		return nil, fmt.Errorf("stash: creating cache dir: %w", err)
	}

	return &Cache{
		paths:   make(map[sourceKey]string),
		dir:     dir,
		fetcher: fetcher,
		stats:   observability.NewTransferStats(statsWindow),
	}, nil
}

// Stats returns the cache's transfer statistics tracker. Every Fetch
// records its outcome there, so callers can inspect hit rates and
// transfer volume for long-lived processes.
func (c *Cache) Stats() *observability.TransferStats {
	return c.stats
}

// Dir returns the cache's resolved directory.
func (c *Cache) Dir() string {
	return c.dir
}

// FetchOptions adjust a single Fetch call.
type FetchOptions struct {
	// Filename overrides the derived local filename
	Filename string

	// Decompress unpacks .gz/.zip/.sz sources into the cached file
	Decompress bool

	// Force refetches even when a cached copy exists
	Force bool

	// Timeout bounds the transfer; zero uses the fetcher default
	Timeout time.Duration
}

// Fetch returns the local path of a remote source, downloading it on first
// use. Later calls for the same URL return the recorded path without
// touching the network, as long as the file is still on disk. Force always
// refetches; the result is recorded under the normal key so subsequent
// non-force calls reuse it.
func (c *Cache) Fetch(ctx context.Context, url string, opt FetchOptions) (string, error) {
	if url == "" {
		return "", fmt.Errorf("stash: %w: empty URL", types.ErrInvalidArgument)
	}

	key := sourceKey{url: url, decompress: opt.Decompress}
	if !opt.Force {
		if path, ok := c.lookup(key); ok {
			c.stats.RecordAccess(url, observability.OutcomeLedgerHit)
			return path, nil
		}
		// A file from an earlier process is admitted without refetching
		path, err := names.Path(c.dir, url, opt.Filename, opt.Decompress)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(path); err == nil {
			c.record(key, path)
			c.stats.RecordAccess(url, observability.OutcomeDiskHit)
			return path, nil
		}
	}

	path, err := c.fetcher.Fetch(ctx, types.FetchRequest{
		URL:        url,
		Filename:   opt.Filename,
		Decompress: opt.Decompress,
		Dir:        c.dir,
		Timeout:    opt.Timeout,
	})
	if err != nil {
		c.stats.RecordAccess(url, observability.OutcomeFailure)
		return "", err
	}
	c.record(key, path)
	c.stats.RecordAccess(url, observability.OutcomeFetch)
	if info, err := os.Stat(path); err == nil {
		c.stats.RecordBytes(url, info.Size())
	}
	return path, nil
}

// lookup returns the recorded path for a key after verifying the file is
// still on disk. Stale entries are evicted.
func (c *Cache) lookup(key sourceKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path, ok := c.paths[key]
	if !ok {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		delete(c.paths, key)
		return "", false
	}
	return path, true
}

func (c *Cache) record(key sourceKey, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths[key] = path
}

// LocalFilename returns the filename a source would cache under, without
// touching the filesystem.
func (c *Cache) LocalFilename(url, filename string, decompress bool) (string, error) {
	return names.Derive(url, filename, decompress)
}

// LocalPath returns the full path a source would cache at, without touching
// the filesystem.
func (c *Cache) LocalPath(url, filename string, decompress bool) (string, error) {
	return names.Path(c.dir, url, filename, decompress)
}

// Exists reports whether a source's cached file is on disk.
func (c *Cache) Exists(url, filename string, decompress bool) (bool, error) {
	path, err := names.Path(c.dir, url, filename, decompress)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteURL removes a URL's cached files, both the plain and decompressed
// variants, and drops their ledger entries. Missing files are tolerated.
func (c *Cache) DeleteURL(url string) error {
	if url == "" {
		return fmt.Errorf("stash: %w: empty URL", types.ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, path := range c.paths {
		if key.url != url {
			continue
		}
		if err := removeIfExists(path); err != nil {
			return err
		}
		delete(c.paths, key)
	}

	// Cover files cached by an earlier process that this ledger never saw
	for _, decompress := range []bool{false, true} {
		path, err := names.Path(c.dir, url, "", decompress)
		if err != nil {
			return err
		}
		if err := removeIfExists(path); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAll clears the ledger and replaces the cache directory with an
// empty one.
func (c *Cache) DeleteAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.paths = make(map[sourceKey]string)
	if err := cachedir.Clear(c.dir); err != nil {
		return fmt.Errorf("stash: clearing cache dir: %w", err)
	}
	return nil
}

// FetchTransformed fetches a source and caches a derived artifact under
// transformedName. When the derived file already exists the transform is
// skipped entirely; Force reruns both the fetch and the transform.
func (c *Cache) FetchTransformed(ctx context.Context, url, transformedName string, transform func(src, dst string) error, opt FetchOptions) (string, error) {
	if transformedName == "" {
		return "", fmt.Errorf("stash: %w: empty transformed name", types.ErrInvalidArgument)
	}
	if transform == nil {
		return "", fmt.Errorf("stash: %w: nil transform", types.ErrInvalidArgument)
	}

	dst := filepath.Join(c.dir, names.Shorten(transformedName))
	if !opt.Force {
		if _, err := os.Stat(dst); err == nil {
			return dst, nil
		}
	}

	src, err := c.Fetch(ctx, url, opt)
	if err != nil {
		return "", err
	}
	if err := transform(src, dst); err != nil {
		return "", fmt.Errorf("stash: transforming %s: %w", src, err)
	}
	return dst, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
