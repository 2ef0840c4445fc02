package scorecard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"

	"github.com/justapithecus/screener/log"
	"github.com/justapithecus/screener/metrics"
)

// Storage backends.
const (
	BackendFS     = "fs"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// DefaultPath is the filesystem root used when none is configured.
const DefaultPath = "./.screener/scorecards"

// Config selects and configures a storage backend.
type Config struct {
	// Backend is "fs" (default), "s3" or "memory".
	Backend string
	// Path is the fs root, or "bucket/prefix" for s3.
	Path string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	UsePathStyle bool
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// Open creates a Store for the configured backend.
func Open(ctx context.Context, cfg Config, logger *log.Logger, collector *metrics.Collector) (*Store, error) {
	factory, err := storeFactory(ctx, cfg)
	if err != nil {
		return nil, wrapError("open", err)
	}

	ds, err := NewDataset(factory)
	if err != nil {
		return nil, wrapError("open", fmt.Errorf("create dataset: %w", err))
	}

	logger.Debug("scorecard store opened", map[string]any{
		"backend": backendName(cfg.Backend),
		"path":    cfg.Path,
	})
	return NewStore(ds, logger, collector), nil
}

func backendName(b string) string {
	if b == "" {
		return BackendFS
	}
	return b
}

func storeFactory(ctx context.Context, cfg Config) (lode.StoreFactory, error) {
	switch backendName(cfg.Backend) {
	case BackendFS:
		root := cfg.Path
		if root == "" {
			root = DefaultPath
		}
		return lode.NewFSFactory(root), nil
	case BackendMemory:
		store := lode.NewMemory()
		return func() (lode.Store, error) { return store, nil }, nil
	case BackendS3:
		return s3Factory(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown scorecard backend %q (want fs, s3 or memory)", cfg.Backend)
	}
}

// s3Factory builds a Lode S3 store factory.
// Uses AWS SDK default credential chain (env vars, shared config, IAM role).
func s3Factory(ctx context.Context, cfg Config) (lode.StoreFactory, error) {
	bucket, prefix := ParseS3Path(cfg.Path)
	if bucket == "" {
		return nil, errors.New("S3 bucket is required (path: bucket/prefix)")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsConfig, s3Opts...)

	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: bucket,
			Prefix: prefix,
		})
	}, nil
}
