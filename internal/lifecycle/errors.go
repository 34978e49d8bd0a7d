package lifecycle

import (
	"errors"
	"fmt"

	"dbmanager/internal/database"
)

var (
	// ErrPermissionDenied is returned when database management is disabled
	ErrPermissionDenied = database.ErrPermissionDenied

	// ErrInvalidName is returned for unsafe database names
	ErrInvalidName = database.ErrInvalidName

	// ErrAlreadyExists is returned when an operation needs an absent database
	ErrAlreadyExists = errors.New("database already exists")

	// ErrNotExist is returned when an operation needs an existing database
	ErrNotExist = errors.New("database does not exist")

	// ErrNotZipArchive is returned when a zip dump was expected
	ErrNotZipArchive = errors.New("not a zip dump archive")

	// ErrRestoreFailed is returned when the native loader exits unsuccessfully
	ErrRestoreFailed = errors.New("couldn't restore database")
)

// OpError records the operation and database an error occurred on
type OpError struct {
	Op       string
	Database string
	Err      error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Database, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op, name string, err error) error {
	if err == nil {
		return nil
	}
	var existing *OpError
	if errors.As(err, &existing) {
		return err
	}
	return &OpError{Op: op, Database: name, Err: err}
}
