package sharing

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("invalid share parameters")
	ErrLinkNotFound    = errors.New("link not found")
	ErrLinkExpired     = errors.New("link expired")
	ErrLinkDeactivated = errors.New("link deactivated")
	ErrNotOwner        = errors.New("file is not owned by the issuing user")
	ErrFileQuarantined = errors.New("file failed the virus scan and cannot be shared")
	ErrStorage         = errors.New("link storage unavailable")

	// ErrTokenCollision is returned by a LinkStore when an insert hits an
	// existing token. The issuer regenerates once before giving up.
	ErrTokenCollision = errors.New("token already exists")
)

// ValidationError names the issuance parameter that broke a constraint.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StorageError wraps a failure of the persistence collaborator. Callers may
// retry the whole request; the core never retries on its own.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
