// Package archive reads and writes the zip dump layout: dump.sql,
// manifest.json and an optional filestore/ tree.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dbmanager/internal/security"
)

const (
	// DumpName is the archive member holding the plain SQL dump
	DumpName = "dump.sql"

	// FilestoreDir is the archive prefix of file store members
	FilestoreDir = "filestore"
)

// ErrNoDump is returned when a zip archive has no dump.sql member
var ErrNoDump = errors.New("archive contains no dump.sql")

// WriteDir zips every regular file below dir into w. dump.sql is written
// last so the manifest and file store can be read without scanning past it.
func WriteDir(w io.Writer, dir string) error {
	var members []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		members = append(members, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan dump directory: %w", err)
	}

	sortMembers(members)

	zw := zip.NewWriter(w)
	for _, name := range members {
		if err := addFile(zw, filepath.Join(dir, filepath.FromSlash(name)), name); err != nil {
			zw.Close()
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

// sortMembers orders names lexically with dump.sql moved to the end
func sortMembers(members []string) {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i] == DumpName, members[j] == DumpName
		if a != b {
			return b
		}
		return members[i] < members[j]
	})
}

func addFile(zw *zip.Writer, path, name string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, file)
	return err
}

// Extracted describes the members unpacked from a zip dump
type Extracted struct {
	Dir       string
	DumpPath  string
	Filestore string // empty when the archive has no file store
	Manifest  *Manifest
}

// Extract unpacks dump.sql and filestore/ members of the zip at src into
// dest. Every other member is ignored; manifest.json is decoded in memory.
func Extract(src, dest string) (*Extracted, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer zr.Close()

	result := &Extracted{Dir: dest}
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")

		switch {
		case name == ManifestName:
			m, err := readManifestMember(f)
			if err != nil {
				return nil, err
			}
			result.Manifest = m
			continue
		case name == DumpName:
		case strings.HasPrefix(name, FilestoreDir+"/"):
		default:
			continue
		}

		target, err := security.SafeJoin(dest, name)
		if err != nil {
			return nil, err
		}

		if f.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, err
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}
		if err := extractFile(f, target); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", name, err)
		}

		if name == DumpName {
			result.DumpPath = target
		} else {
			result.Filestore = filepath.Join(dest, FilestoreDir)
		}
	}

	if result.DumpPath == "" {
		return nil, ErrNoDump
	}
	return result, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func readManifestMember(f *zip.File) (*Manifest, error) {
	in, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer in.Close()
	return ReadManifest(in)
}

// ReadArchiveManifest returns the manifest of the zip at src, or nil when it has none
func ReadArchiveManifest(src string) (*Manifest, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == ManifestName {
			return readManifestMember(f)
		}
	}
	return nil, nil
}
