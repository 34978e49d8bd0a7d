// Package cloud copies dump files to and from object storage (S3 and
// compatible services, Azure Blob Storage, Google Cloud Storage).
package cloud

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Store is a bucket of dump files addressed by key
type Store interface {
	// Upload copies localPath to key, recording its SHA-256 as object metadata
	Upload(ctx context.Context, localPath, key string) error

	// Download copies key to localPath
	Download(ctx context.Context, key, localPath string) error

	// List returns the objects whose key starts with prefix
	List(ctx context.Context, prefix string) ([]Object, error)

	// Delete removes key
	Delete(ctx context.Context, key string) error

	// Name returns the provider name ("s3", "azure", "gs")
	Name() string
}

// Object describes one stored dump
type Object struct {
	Key          string
	Name         string // base name of Key
	Size         int64
	LastModified time.Time
	SHA256       string // empty when the object carries no checksum metadata
}

// Config selects a provider and bucket. Credentials are optional; each
// provider falls back to its SDK's default chain.
type Config struct {
	Provider  string // "s3", "minio", "b2", "azure", "gs"
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string // account name for Azure, credentials file for GCS
	SecretKey string
	PathStyle bool
}

// Validate checks provider-specific requirements
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket name is required")
	}
	switch c.Provider {
	case "s3":
	case "minio", "b2":
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint is required for %s", c.Provider)
		}
	case "azure":
		if c.Endpoint == "" && (c.AccessKey == "" || c.SecretKey == "") {
			return fmt.Errorf("azure requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
		}
	case "gs":
	default:
		return fmt.Errorf("unsupported cloud provider: %s (supported: s3, minio, b2, azure, gs)", c.Provider)
	}
	return nil
}

// ApplyEnv fills credentials and endpoints from the provider's usual
// environment variables when they are not already set
func (c *Config) ApplyEnv() {
	set := func(dst *string, keys ...string) {
		for _, key := range keys {
			if *dst != "" {
				return
			}
			*dst = os.Getenv(key)
		}
	}

	switch c.Provider {
	case "s3", "minio", "b2":
		set(&c.Region, "AWS_REGION", "AWS_DEFAULT_REGION")
		set(&c.Endpoint, "AWS_ENDPOINT_URL_S3", "AWS_ENDPOINT_URL")
		set(&c.AccessKey, "AWS_ACCESS_KEY_ID")
		set(&c.SecretKey, "AWS_SECRET_ACCESS_KEY")
		if c.Region == "" {
			c.Region = "us-east-1"
		}
	case "azure":
		set(&c.AccessKey, "AZURE_STORAGE_ACCOUNT")
		set(&c.SecretKey, "AZURE_STORAGE_KEY")
		set(&c.Endpoint, "AZURE_STORAGE_ENDPOINT")
	case "gs":
		set(&c.AccessKey, "GOOGLE_APPLICATION_CREDENTIALS")
		set(&c.Endpoint, "STORAGE_EMULATOR_HOST")
	}
}

// NewStore opens the store described by cfg
func NewStore(ctx context.Context, cfg *Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cloud config: %w", err)
	}

	switch cfg.Provider {
	case "s3", "minio", "b2":
		return NewS3Store(ctx, cfg)
	case "azure":
		return NewAzureStore(cfg)
	default:
		return NewGCSStore(ctx, cfg)
	}
}

// OpenURI parses uri and opens its store with credentials from the
// environment. The returned URI carries the object path within the bucket.
func OpenURI(ctx context.Context, uri string) (Store, *URI, error) {
	u, err := ParseURI(uri)
	if err != nil {
		return nil, nil, err
	}
	cfg := u.Config()
	cfg.ApplyEnv()

	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return store, u, nil
}
