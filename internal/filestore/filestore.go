// Package filestore manages the per-database attachment directories kept
// beside each PostgreSQL database.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"dbmanager/internal/logger"
)

// Store resolves and mutates file store directories under a common root
type Store struct {
	root string
	log  logger.Logger
}

// New creates a Store rooted at root, typically <data_dir>/filestore
func New(root string, log logger.Logger) *Store {
	return &Store{root: root, log: log}
}

// Root returns the directory holding every file store
func (s *Store) Root() string {
	return s.root
}

// Path returns the file store directory for a database
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

// Exists reports whether the file store directory for name exists
func (s *Store) Exists(name string) bool {
	return isDir(s.Path(name))
}

// Copy duplicates src's file store as dst's. Nothing happens when src has no
// file store or dst already has one; copied reports whether a copy was made.
func (s *Store) Copy(src, dst string) (copied bool, err error) {
	from, to := s.Path(src), s.Path(dst)
	if !isDir(from) || exists(to) {
		s.log.Debug("Skipping file store copy", "source", from, "target", to)
		return false, nil
	}

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return false, fmt.Errorf("failed to create file store root: %w", err)
	}
	if err := CopyTree(from, to); err != nil {
		return false, fmt.Errorf("failed to copy file store %s to %s: %w", src, dst, err)
	}
	s.log.Info("Copied file store", "source", from, "target", to)
	return true, nil
}

// Move renames src's file store to dst's under the same guards as Copy
func (s *Store) Move(src, dst string) (moved bool, err error) {
	from, to := s.Path(src), s.Path(dst)
	if !isDir(from) || exists(to) {
		s.log.Debug("Skipping file store move", "source", from, "target", to)
		return false, nil
	}

	if err := MoveTree(from, to); err != nil {
		return false, fmt.Errorf("failed to move file store %s to %s: %w", src, dst, err)
	}
	s.log.Info("Moved file store", "source", from, "target", to)
	return true, nil
}

// Remove deletes name's file store. A missing directory is not an error.
func (s *Store) Remove(name string) error {
	path := s.Path(name)
	if !exists(path) {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove file store %s: %w", path, err)
	}
	s.log.Info("Removed file store", "path", path)
	return nil
}

// Import moves an extracted directory into place as name's file store.
// An existing file store is never overwritten.
func (s *Store) Import(dir, name string) (imported bool, err error) {
	to := s.Path(name)
	if !isDir(dir) {
		return false, nil
	}
	if exists(to) {
		return false, fmt.Errorf("file store %s already exists", to)
	}

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return false, fmt.Errorf("failed to create file store root: %w", err)
	}
	if err := MoveTree(dir, to); err != nil {
		return false, fmt.Errorf("failed to import file store into %s: %w", to, err)
	}
	s.log.Info("Imported file store", "path", to)
	return true, nil
}

// CopyTree recursively copies src into dst, which must not exist yet
func CopyTree(src, dst string) error {
	if exists(dst) {
		return fmt.Errorf("destination %s already exists", dst)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			// sockets, devices and pipes have no place in a file store
			return nil
		}
	})
}

// MoveTree renames src to dst, copying then deleting when they sit on
// different filesystems
func MoveTree(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	if err := CopyTree(src, dst); err != nil {
		os.RemoveAll(dst)
		return err
	}
	return os.RemoveAll(src)
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
