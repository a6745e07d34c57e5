package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/datastash/datastash/internal/names"
	"github.com/datastash/datastash/pkg/types"
)

// S3Config holds settings for the S3 fetcher.
type S3Config struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// S3Fetcher transfers s3://bucket/key URLs.
type S3Fetcher struct {
	client     *s3.Client
	maxRetries int
}

// NewS3Fetcher creates an S3 fetcher from the ambient AWS credential chain.
// Endpoint and path-style addressing support S3-compatible stores.
func NewS3Fetcher(ctx context.Context, cfg S3Config, maxRetries int) (*S3Fetcher, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("fetch: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &S3Fetcher{client: client, maxRetries: maxRetries}, nil
}

// Fetch downloads the object to its derived path under req.Dir.
func (f *S3Fetcher) Fetch(ctx context.Context, req types.FetchRequest) (string, error) {
	bucket, key, err := splitS3URL(req.URL)
	if err != nil {
		return "", err
	}

	target, err := names.Path(req.Dir, req.URL, req.Filename, req.Decompress)
	if err != nil {
		return "", err
	}

	var out *s3.GetObjectOutput
	err = f.retryWithBackoff(ctx, func() error {
		var opErr error
		out, opErr = f.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		return opErr
	})
	if err != nil {
		var notFound *s3types.NoSuchKey
		if errors.As(err, &notFound) {
			return "", &types.TransportError{URL: req.URL, Cause: fmt.Errorf("object not found: s3://%s/%s", bucket, key)}
		}
		return "", &types.TransportError{URL: req.URL, Cause: err}
	}
	defer out.Body.Close()

	if err := writeLocal(out.Body, key, target); err != nil {
		return "", err
	}
	return target, nil
}

// retryWithBackoff runs op with exponential backoff between attempts.
func (f *S3Fetcher) retryWithBackoff(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// splitS3URL parses s3://bucket/key into its bucket and key parts.
func splitS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("fetch: %w: parsing %q: %v", types.ErrInvalidArgument, rawURL, err)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("fetch: %w: S3 URL %q needs bucket and key", types.ErrInvalidArgument, rawURL)
	}
	return bucket, key, nil
}
