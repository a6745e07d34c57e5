// Package fetch transfers remote datasets to local files. Transfers stage
// under a temporary name and rename into place, so a partial download never
// occupies the final path. Archive suffixes (.gz, .zip, .sz) are unpacked
// in-flight when the target name lacks them.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datastash/datastash/internal/names"
	"github.com/datastash/datastash/pkg/types"
)

const (
	// defaultHTTPTimeout bounds a transfer when the request carries no timeout
	defaultHTTPTimeout = 5 * time.Minute

	// defaultUserAgent identifies transfers to remote servers
	defaultUserAgent = "datastash"
)

// Config holds fetcher settings.
type Config struct {
	// HTTPTimeout bounds each HTTP transfer; zero means the default
	HTTPTimeout time.Duration

	// UserAgent is sent with HTTP requests; empty means the default
	UserAgent string

	// MaxRetries bounds retry attempts for transient S3 failures
	MaxRetries int

	// S3 configures the S3 client used for s3:// URLs
	S3 S3Config
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		HTTPTimeout: defaultHTTPTimeout,
		UserAgent:   defaultUserAgent,
		MaxRetries:  3,
	}
}

// Mux routes fetch requests by URL scheme: http/https, s3, and file (or
// bare local paths). The S3 client is built on first use.
type Mux struct {
	cfg  Config
	http *HTTPFetcher
	file *FileFetcher

	s3Once sync.Once
	s3     *S3Fetcher
	s3Err  error
}

// New creates the scheme-routing fetcher.
func New(cfg Config) *Mux {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Mux{
		cfg:  cfg,
		http: NewHTTPFetcher(cfg.HTTPTimeout, cfg.UserAgent),
		file: &FileFetcher{},
	}
}

// Fetch dispatches to the fetcher for the request's URL scheme.
func (m *Mux) Fetch(ctx context.Context, req types.FetchRequest) (string, error) {
	if req.URL == "" {
		return "", fmt.Errorf("fetch: %w: empty URL", types.ErrInvalidArgument)
	}
	if req.Dir == "" {
		return "", fmt.Errorf("fetch: %w: no destination directory", types.ErrInvalidArgument)
	}

	switch schemeOf(req.URL) {
	case "http", "https":
		return m.http.Fetch(ctx, req)
	case "s3":
		m.s3Once.Do(func() {
			m.s3, m.s3Err = NewS3Fetcher(ctx, m.cfg.S3, m.cfg.MaxRetries)
		})
		if m.s3Err != nil {
			return "", fmt.Errorf("fetch: initializing S3 client: %w", m.s3Err)
		}
		return m.s3.Fetch(ctx, req)
	case "file", "":
		return m.file.Fetch(ctx, req)
	default:
		return "", fmt.Errorf("fetch: %w: unsupported URL scheme in %q", types.ErrInvalidArgument, req.URL)
	}
}

// schemeOf returns the lowercased URL scheme, empty for bare paths.
func schemeOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// Exists reports whether the local file for a source is already on disk.
func Exists(dir, rawURL, filename string, decompress bool) (bool, error) {
	path, err := names.Path(dir, rawURL, filename, decompress)
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

// HTTPFetcher transfers http and https URLs.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

// NewHTTPFetcher creates an HTTP fetcher with the given default timeout.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{},
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// Fetch downloads the URL to its derived path under req.Dir.
func (f *HTTPFetcher) Fetch(ctx context.Context, req types.FetchRequest) (string, error) {
	target, err := names.Path(req.Dir, req.URL, req.Filename, req.Decompress)
	if err != nil {
		return "", err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: building request for %s: %w", req.URL, err)
	}
	httpReq.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return "", &types.TransportError{URL: req.URL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &types.TransportError{URL: req.URL, Cause: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	if err := writeLocal(resp.Body, sourcePathOf(req.URL), target); err != nil {
		return "", err
	}
	log.Printf("fetch: downloaded %s to %s", req.URL, target)
	return target, nil
}

// FileFetcher copies file:// URLs and bare local paths into the cache.
type FileFetcher struct{}

// Fetch copies the source file to its derived path under req.Dir.
func (f *FileFetcher) Fetch(ctx context.Context, req types.FetchRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target, err := names.Path(req.Dir, req.URL, req.Filename, req.Decompress)
	if err != nil {
		return "", err
	}

	source := strings.TrimPrefix(req.URL, "file://")
	src, err := os.Open(source)
	if err != nil {
		return "", &types.TransportError{URL: req.URL, Cause: err}
	}
	defer src.Close()

	if err := writeLocal(src, source, target); err != nil {
		return "", err
	}
	log.Printf("fetch: copied %s to %s", source, target)
	return target, nil
}

// sourcePathOf extracts the path component of a URL for suffix inspection,
// falling back to the raw string for unparseable input.
func sourcePathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}

// pendingArchiveSuffix returns the source's archive suffix when the target
// name does not carry it, meaning the transfer must unpack in-flight.
func pendingArchiveSuffix(sourcePath, target string) string {
	ext := strings.ToLower(filepath.Ext(sourcePath))
	switch ext {
	case ".gz", ".zip", ".sz":
		if !strings.HasSuffix(strings.ToLower(target), ext) {
			return ext
		}
	}
	return ""
}

// writeLocal streams src to target, staging under a temporary name and
// renaming once complete. The temporary file is removed on failure.
func writeLocal(src io.Reader, sourcePath, target string) (err error) {
	tmp := fmt.Sprintf("%s.partial.%s", target, uuid.New().String()[:8])
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	suffix := pendingArchiveSuffix(sourcePath, target)
	if suffix == ".zip" {
		return writeUnzipped(src, tmp, target)
	}

	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("fetch: creating %s: %w", tmp, err)
	}

	reader, closeReader, err := wrapDecompressor(src, suffix)
	if err != nil {
		out.Close()
		return err
	}

	_, err = io.Copy(out, reader)
	if cerr := closeReader(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		out.Close()
		return fmt.Errorf("fetch: writing %s: %w", tmp, err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("fetch: closing %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, target); err != nil {
		return fmt.Errorf("fetch: moving %s into place: %w", tmp, err)
	}
	return nil
}
