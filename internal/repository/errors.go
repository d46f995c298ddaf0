// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as handlers
// to distinguish between different failure scenarios.
package repository

import (
	"errors"
	"strings"

	"github.com/iliyamo/microwire-quality/internal/database"
)

// ErrNotFound is returned when the requested row does not exist.  Handlers
// translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate it into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write violates a uniqueness constraint or
// conflicts with existing state.  Handlers translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrEmailExists and ErrUsernameExists refine ErrConflict for users.
var (
	ErrEmailExists    = errors.New("email already exists")
	ErrUsernameExists = errors.New("username already exists")
)

// uniqueViolation maps a duplicate-key error to the sentinel registered for
// the violated index name, or ErrConflict when no name matches.  Other
// errors are returned unchanged.
func uniqueViolation(err error, byIndex map[string]error) error {
	if err == nil || !database.IsDuplicateKey(err) {
		return err
	}
	msg := err.Error()
	for idx, sentinel := range byIndex {
		if strings.Contains(msg, idx) {
			return sentinel
		}
	}
	return ErrConflict
}

// ErrInvalidReference is returned when a foreign key points at a missing
// row, for example a batch naming an unknown scenario.
var ErrInvalidReference = errors.New("invalid reference")
