package security

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// CleanPath sanitizes a file path to prevent path traversal attacks
func CleanPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	// Clean the path (removes .., ., //)
	cleaned := filepath.Clean(p)

	// Detect path traversal attempts
	for _, part := range strings.Split(filepath.ToSlash(cleaned), "/") {
		if part == ".." {
			return "", fmt.Errorf("path traversal detected: %s", p)
		}
	}

	return cleaned, nil
}

// SafeJoin resolves an archive member name below root. Absolute names and
// names escaping root are rejected.
func SafeJoin(root, member string) (string, error) {
	if member == "" {
		return "", fmt.Errorf("empty archive member name")
	}

	name := strings.ReplaceAll(member, "\\", "/")
	if path.IsAbs(name) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("absolute archive member path: %s", member)
	}

	cleaned := path.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path traversal detected: %s", member)
	}

	target := filepath.Join(root, filepath.FromSlash(cleaned))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %s", member)
	}

	return target, nil
}

// ValidateDumpPath ensures a dump output path is safe and returns it absolute
func ValidateDumpPath(p string) (string, error) {
	cleaned, err := CleanPath(p)
	if err != nil {
		return "", err
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}
