package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"dbmanager/internal/logger"
	"dbmanager/internal/metadata"
)

// Fetched is a dump available on the local filesystem
type Fetched struct {
	Path     string
	Remote   string // source URI or URL; empty for local files
	Verified bool   // checksum matched the remote sidecar
	tempDir  string
}

// Cleanup removes downloaded files. It is a no-op for local files.
func (f *Fetched) Cleanup() {
	if f.tempDir != "" {
		os.RemoveAll(f.tempDir)
	}
}

// Fetcher resolves dump sources (local paths, http(s) URLs, cloud URIs)
// to local files
type Fetcher struct {
	HTTPClient *http.Client
	TempDir    string
	Log        logger.Logger

	// Open resolves cloud URIs; defaults to OpenURI
	Open func(ctx context.Context, uri string) (Store, *URI, error)
}

// NewFetcher returns a fetcher using http.DefaultClient and the system
// temp directory
func NewFetcher(log logger.Logger) *Fetcher {
	return &Fetcher{HTTPClient: http.DefaultClient, Log: log, Open: OpenURI}
}

// IsRemote reports whether src needs downloading
func IsRemote(src string) bool {
	return IsURI(src) || strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Fetch makes src available locally. Callers must call Cleanup on the
// result once done.
func (f *Fetcher) Fetch(ctx context.Context, src string) (*Fetched, error) {
	if !IsRemote(src) {
		if _, err := os.Stat(src); err != nil {
			return nil, fmt.Errorf("dump file not found: %w", err)
		}
		return &Fetched{Path: src}, nil
	}

	dir, err := os.MkdirTemp(f.TempDir, "dbmanager-download-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	fetched := &Fetched{Remote: src, tempDir: dir}

	if IsURI(src) {
		err = f.fetchObject(ctx, src, dir, fetched)
	} else {
		err = f.fetchURL(ctx, src, dir, fetched)
	}
	if err != nil {
		fetched.Cleanup()
		return nil, err
	}
	return fetched, nil
}

func (f *Fetcher) fetchURL(ctx context.Context, rawURL, dir string, fetched *Fetched) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	name := path.Base(parsed.Path)
	if name == "/" || name == "." {
		name = "dump"
	}
	fetched.Path = filepath.Join(dir, name)

	f.Log.Info("Downloading dump", "url", rawURL)
	return f.download(ctx, rawURL, fetched.Path)
}

func (f *Fetcher) download(ctx context.Context, rawURL, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: %s", rawURL, resp.Status)
	}

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (f *Fetcher) fetchObject(ctx context.Context, uri, dir string, fetched *Fetched) error {
	open := f.Open
	if open == nil {
		open = OpenURI
	}
	store, u, err := open(ctx, uri)
	if err != nil {
		return err
	}
	if u.Path == "" {
		return fmt.Errorf("URI must name an object: %s", uri)
	}
	fetched.Path = filepath.Join(dir, u.BaseName())

	f.Log.Info("Downloading dump", "provider", store.Name(), "bucket", u.Bucket, "key", u.Path)
	if err := store.Download(ctx, u.Path, fetched.Path); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	// The sidecar is optional; without it the dump is used unverified
	if err := store.Download(ctx, u.Path+metadata.Suffix, fetched.Path+metadata.Suffix); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.Log.Warn("Failed to download metadata", "error", err)
		}
		return nil
	}

	meta, err := metadata.Load(fetched.Path)
	if err != nil {
		f.Log.Warn("Failed to load metadata for verification", "error", err)
		return nil
	}
	if meta.SHA256 == "" {
		return nil
	}
	meta.Path = fetched.Path
	if err := meta.Verify(); err != nil {
		return err
	}
	fetched.Verified = true
	f.Log.Info("Checksum verified successfully", "sha256", meta.SHA256)
	return nil
}
