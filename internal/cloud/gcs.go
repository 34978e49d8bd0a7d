package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"dbmanager/internal/security"
)

// GCSStore stores dumps in a Google Cloud Storage bucket
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a client. An endpoint targets an emulator without
// authentication; AccessKey names a service account key file.
func NewGCSStore(ctx context.Context, cfg *Config) (*GCSStore, error) {
	var opts []option.ClientOption
	switch {
	case cfg.Endpoint != "":
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	case cfg.AccessKey != "":
		opts = append(opts, option.WithCredentialsFile(cfg.AccessKey))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: cfg.Bucket}, nil
}

// Name returns the backend name
func (g *GCSStore) Name() string {
	return "gs"
}

// Upload streams localPath in 16MB chunks
func (g *GCSStore) Upload(ctx context.Context, localPath, key string) error {
	sum, err := security.ChecksumFile(localPath)
	if err != nil {
		return err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ChunkSize = 16 * 1024 * 1024
	w.Metadata = map[string]string{"sha256": sum}

	if _, err := io.Copy(w, file); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload of %s: %w", key, err)
	}
	return nil
}

// Download fetches key into localPath
func (g *GCSStore) Download(ctx context.Context, key, localPath string) error {
	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("gs://%s/%s: %w", g.bucket, key, os.ErrNotExist)
		}
		return fmt.Errorf("failed to download object %s: %w", key, err)
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// List returns the objects under prefix with their checksum metadata
func (g *GCSStore) List(ctx context.Context, prefix string) ([]Object, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var objects []Object
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		objects = append(objects, Object{
			Key:          attrs.Name,
			Name:         path.Base(attrs.Name),
			Size:         attrs.Size,
			LastModified: attrs.Updated,
			SHA256:       attrs.Metadata["sha256"],
		})
	}
	return objects, nil
}

// Delete removes key
func (g *GCSStore) Delete(ctx context.Context, key string) error {
	if err := g.client.Bucket(g.bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}
