package stash

import (
	"time"

	"github.com/datastash/datastash/internal/fetch"
	"github.com/datastash/datastash/pkg/types"
)

// Option adjusts how a Cache is built.
type Option func(*options)

type options struct {
	fetcher     types.Fetcher
	fetchConfig fetch.Config
	dir         string
}

func defaultOptions() options {
	return options{fetchConfig: fetch.DefaultConfig()}
}

// WithFetcher injects a custom fetcher, replacing the default scheme mux.
func WithFetcher(f types.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithDir pins the cache to an explicit directory, skipping subdir
// resolution entirely.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithHTTPTimeout sets the default transfer timeout for HTTP fetches.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o *options) { o.fetchConfig.HTTPTimeout = d }
}

// WithUserAgent sets the User-Agent header sent on HTTP fetches.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.fetchConfig.UserAgent = ua }
}

// WithMaxRetries bounds retry attempts for transient S3 failures.
func WithMaxRetries(n int) Option {
	return func(o *options) { o.fetchConfig.MaxRetries = n }
}

// WithS3Region sets the region for s3:// fetches.
func WithS3Region(region string) Option {
	return func(o *options) { o.fetchConfig.S3.Region = region }
}

// WithS3Endpoint points s3:// fetches at an S3-compatible endpoint.
// Path-style addressing is what most local object stores expect.
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(o *options) {
		o.fetchConfig.S3.Endpoint = endpoint
		o.fetchConfig.S3.UsePathStyle = usePathStyle
	}
}
