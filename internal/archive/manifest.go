package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ManifestName is the archive member holding the Manifest
const ManifestName = "manifest.json"

// Manifest describes the application state a zip dump was taken from
type Manifest struct {
	Marker       string            `json:"odoo_dump"`
	DBName       string            `json:"db_name"`
	Version      string            `json:"version"`
	VersionInfo  []any             `json:"version_info"`
	MajorVersion string            `json:"major_version"`
	PGVersion    string            `json:"pg_version"`
	Modules      map[string]string `json:"modules"`
}

// NewManifest builds a manifest for dbname at the given application version
func NewManifest(dbname, appVersion, pgVersion string, modules map[string]string) *Manifest {
	if modules == nil {
		modules = map[string]string{}
	}
	return &Manifest{
		Marker:       "1",
		DBName:       dbname,
		Version:      appVersion,
		VersionInfo:  versionInfo(appVersion),
		MajorVersion: majorVersion(appVersion),
		PGVersion:    pgVersion,
		Modules:      modules,
	}
}

// Write stores the manifest as indented JSON at path
func (m *Manifest) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest decodes a manifest from r
func ReadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// versionInfo splits "17.0" or "17.0.1" into [17, 0, ..., "final", 0, ""]
func versionInfo(version string) []any {
	var info []any
	for _, part := range strings.Split(strings.TrimPrefix(version, "saas~"), ".") {
		if n, err := strconv.Atoi(part); err == nil {
			info = append(info, n)
		} else {
			info = append(info, part)
		}
	}
	for len(info) < 3 {
		info = append(info, 0)
	}
	return append(info, "final", 0, "")
}

func majorVersion(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}
