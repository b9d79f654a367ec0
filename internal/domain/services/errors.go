package services

import (
	"errors"
	"fmt"

	"github.com/newworld-app/worldcore/internal/domain/entities"
)

var (
	// ErrMissingWorldScope is returned when an operation that resolves or
	// creates entities is called without a world id.
	ErrMissingWorldScope = errors.New("world scope is required")

	// ErrMissingOwner is returned when an operation that creates entities is
	// called without an owner id.
	ErrMissingOwner = errors.New("owner is required")

	// ErrUnknownKind is returned when a kind is not declared in the
	// relationship schema.
	ErrUnknownKind = errors.New("unknown entity kind")

	// ErrEmptyName is returned for an empty or whitespace-only entity name.
	ErrEmptyName = errors.New("entity name is empty")

	// ErrNotFound is returned when an entity or world does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNameTaken is returned when a (kind, world, name) combination
	// already exists.
	ErrNameTaken = errors.New("name already in use in this world")
)

// PersistenceError wraps a store failure, including timeouts and context
// cancellation observed during a store call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// RefOp identifies a single inverse-reference update: add or remove Ref in
// the Field list of the PeerID document in Kind's collection.
type RefOp struct {
	Kind   entities.Kind
	PeerID string
	Field  string
	Ref    string
	Add    bool
}

func (op RefOp) String() string {
	verb := "remove"
	if op.Add {
		verb = "add"
	}
	return fmt.Sprintf("%s %s %s.%s[%s]", verb, op.Ref, op.Kind, op.Field, op.PeerID)
}

// RefOpFailure pairs a failed inverse update with its cause.
type RefOpFailure struct {
	Op  RefOp
	Err error
}

// PartialSyncError reports that some but not all inverse updates succeeded.
// Already-applied updates are not rolled back; the failed subset is listed
// so the caller can retry it.
type PartialSyncError struct {
	Applied []RefOp
	Failed  []RefOpFailure
}

func (e *PartialSyncError) Error() string {
	return fmt.Sprintf("partial sync: %d inverse updates applied, %d failed", len(e.Applied), len(e.Failed))
}

// CleanupTarget names one (source kind, field) pair processed by cascade
// cleanup.
type CleanupTarget struct {
	Kind  entities.Kind
	Field string
}

// CleanupFailure pairs a failed cascade pull with its cause. Documents of
// Target.Kind may still hold dangling references in Target.Field.
type CleanupFailure struct {
	Target CleanupTarget
	Err    error
}

// PartialCleanupError reports that some but not all cascade pulls succeeded.
type PartialCleanupError struct {
	Cleaned []CleanupTarget
	Failed  []CleanupFailure
}

func (e *PartialCleanupError) Error() string {
	return fmt.Sprintf("partial cleanup: %d targets cleaned, %d failed", len(e.Cleaned), len(e.Failed))
}
