package database

import (
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
)

var validName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]+$`)

// QuoteIdentifier quotes name for direct interpolation into DDL
func QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// ValidateName rejects names that could not have been created by this tool
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q (allowed characters are alphanumerics, underscore, hyphen and dot)", ErrInvalidName, name)
	}
	return nil
}
