package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid entity")
	ErrConflict = errors.New("conflict")
	ErrInternal = errors.New("internal error")

	ErrBuildFailed      = errors.New("build failed")
	ErrMigrationFailed  = errors.New("migration failed")
	ErrChecksumConflict = errors.New("migration checksum conflict")
	ErrHealthTimeout    = errors.New("health check timed out")
	ErrRollbackFailed   = errors.New("rollback failed")
)

// TransportError wraps a push/pull/activate failure. Transient
// failures were retried before surfacing; permanent ones (auth,
// not-found) were not.
type TransportError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *TransportError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("transport %s: %s failure: %v", e.Op, kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
