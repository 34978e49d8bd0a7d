package cloud

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// URI is a parsed object URI such as s3://bucket/backups/prod.zip
type URI struct {
	Provider string
	Bucket   string
	Path     string // key within the bucket, no leading slash
	Region   string
	Endpoint string
	raw      string
}

var schemes = map[string]string{
	"s3":    "s3",
	"minio": "minio",
	"b2":    "b2",
	"azure": "azure",
	"gs":    "gs",
	"gcs":   "gs",
}

// ParseURI parses a cloud URI. Supported forms:
//   - s3://bucket/path/file.zip
//   - s3://bucket.s3.eu-west-1.amazonaws.com/path/file.zip
//   - minio://host:9000/bucket/path/file.zip
//   - azure://container/path/file.zip
//   - gs://bucket/path/file.zip
func ParseURI(raw string) (*URI, error) {
	if raw == "" {
		return nil, fmt.Errorf("URI cannot be empty")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URI: %w", err)
	}

	provider, ok := schemes[strings.ToLower(parsed.Scheme)]
	if !ok {
		return nil, fmt.Errorf("unsupported URI scheme %q (supported: s3, minio, b2, azure, gs)", parsed.Scheme)
	}

	u := &URI{Provider: provider, Bucket: parsed.Host, raw: raw}
	if u.Bucket == "" {
		return nil, fmt.Errorf("URI must specify a bucket (e.g., %s://bucket/path)", parsed.Scheme)
	}
	key := strings.TrimPrefix(parsed.Path, "/")

	switch {
	case strings.HasSuffix(u.Bucket, ".amazonaws.com"):
		// bucket.s3.region.amazonaws.com or bucket.s3-region.amazonaws.com
		parts := strings.Split(u.Bucket, ".")
		u.Bucket = parts[0]
		for i, part := range parts {
			if part == "s3" && i+1 < len(parts) && parts[i+1] != "amazonaws" {
				u.Region = parts[i+1]
				break
			}
			if strings.HasPrefix(part, "s3-") {
				u.Region = strings.TrimPrefix(part, "s3-")
				break
			}
		}
	case provider == "minio" || (provider == "s3" && strings.ContainsAny(u.Bucket, ".:")):
		// host[:port]/bucket/key
		u.Endpoint = u.Bucket
		bucket, rest, _ := strings.Cut(key, "/")
		if bucket == "" {
			return nil, fmt.Errorf("URI must specify a bucket after the endpoint host")
		}
		u.Bucket = bucket
		key = rest
	}

	u.Path = key
	return u, nil
}

// IsURI reports whether s uses one of the supported cloud schemes
func IsURI(s string) bool {
	scheme, _, ok := strings.Cut(s, "://")
	if !ok {
		return false
	}
	_, known := schemes[strings.ToLower(scheme)]
	return known
}

// String returns the URI as given to ParseURI
func (u *URI) String() string {
	return u.raw
}

// BaseName returns the last path element
func (u *URI) BaseName() string {
	return path.Base(u.Path)
}

// Key returns the object key for name inside the URI's path, which is
// treated as a directory
func (u *URI) Key(name string) string {
	if u.Path == "" || u.Path == "." {
		return name
	}
	return path.Join(u.Path, name)
}

// Config returns a provider config for the URI's bucket
func (u *URI) Config() *Config {
	cfg := &Config{
		Provider: u.Provider,
		Bucket:   u.Bucket,
		Region:   u.Region,
		Endpoint: u.Endpoint,
	}
	switch u.Provider {
	case "minio", "b2":
		cfg.PathStyle = true
	}
	if cfg.Endpoint != "" && !strings.Contains(cfg.Endpoint, "://") {
		cfg.Endpoint = "https://" + cfg.Endpoint
	}
	return cfg
}
