// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repository/service/handler layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the principal resolved but lacks permission
	// for the specific operation.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated indicates no principal where one is required.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidArgument indicates a malformed enum, criteria or body.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStorageFailure indicates artifact persistence failed.
	ErrStorageFailure = errors.New("storage failure")
)

// EntityError wraps a sentinel with the uid of the offending entity so callers
// receive the error kind plus the id, and nothing else.
type EntityError struct {
	Kind error  // one of the sentinels above
	UID  string // App/Version/Review uid
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.UID)
}

func (e *EntityError) Unwrap() error {
	return e.Kind
}

// NotFound returns an ErrNotFound carrying the entity uid.
func NotFound(uid string) error {
	return &EntityError{Kind: ErrNotFound, UID: uid}
}

// Forbidden returns an ErrForbidden carrying the entity uid.
func Forbidden(uid string) error {
	return &EntityError{Kind: ErrForbidden, UID: uid}
}

// UIDOf extracts the entity uid from an error chain, if present.
func UIDOf(err error) string {
	var ee *EntityError
	if errors.As(err, &ee) {
		return ee.UID
	}
	return ""
}
