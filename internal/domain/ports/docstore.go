package ports

import (
	"context"

	"github.com/newworld-app/worldcore/internal/domain/entities"
)

// DocumentStore defines typed CRUD access to the per-kind entity
// collections, the worlds collection, and the audit log. The store keeps no
// referential integrity of its own; relationship consistency lives entirely
// in the services that call it. Implementations must be safe for concurrent
// use by multiple engine invocations.
type DocumentStore interface {
	// EnsureSchema creates the storage layout if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the underlying connection.
	Close() error

	// Entity documents

	// Insert persists a new entity document. It fails if the id or the
	// (world, normalized name) pair already exists in the kind's collection.
	Insert(ctx context.Context, e *entities.Entity) error

	// FindByID returns the entity with the given id, or nil if absent.
	FindByID(ctx context.Context, kind entities.Kind, id string) (*entities.Entity, error)

	// FindByNameInWorld returns the entity whose normalized name matches the
	// given name within the world, or nil if absent.
	FindByNameInWorld(ctx context.Context, kind entities.Kind, worldID, name string) (*entities.Entity, error)

	// Update rewrites an existing entity document (name, attrs, refs).
	Update(ctx context.Context, e *entities.Entity) error

	// List returns entities of a kind in a world, ordered by name.
	List(ctx context.Context, kind entities.Kind, worldID string, limit, offset int) ([]*entities.Entity, error)

	// Count returns the number of entities of a kind in a world.
	Count(ctx context.Context, kind entities.Kind, worldID string) (int, error)

	// AddRef adds ref to the named list field on each listed document,
	// with set-union semantics: re-adding a present id is a no-op. A listed
	// document that does not exist is an error.
	AddRef(ctx context.Context, kind entities.Kind, ids []string, field, ref string) error

	// RemoveRef removes ref from the named list field on each listed
	// document. Removing an absent id is a no-op.
	RemoveRef(ctx context.Context, kind entities.Kind, ids []string, field, ref string) error

	// PullRef removes ref from the named field across every document of the
	// kind, returning the number of documents changed.
	PullRef(ctx context.Context, kind entities.Kind, field, ref string) (int, error)

	// Delete removes an entity document by id.
	Delete(ctx context.Context, kind entities.Kind, id string) error

	// DeleteByWorld removes every document of a kind in a world, returning
	// the number removed.
	DeleteByWorld(ctx context.Context, kind entities.Kind, worldID string) (int, error)

	// Worlds

	// InsertWorld persists a new world.
	InsertWorld(ctx context.Context, w *entities.World) error

	// FindWorldByID returns the world with the given id, or nil if absent.
	FindWorldByID(ctx context.Context, id string) (*entities.World, error)

	// FindWorldByName returns the owner's world with the given normalized
	// name, or nil if absent.
	FindWorldByName(ctx context.Context, ownerID, name string) (*entities.World, error)

	// ListWorlds returns all worlds of an owner, ordered by name.
	ListWorlds(ctx context.Context, ownerID string) ([]*entities.World, error)

	// DeleteWorld removes a world record by id.
	DeleteWorld(ctx context.Context, id string) error

	// Audit log

	// LogAction appends an audit entry.
	LogAction(ctx context.Context, action, entityID string, details map[string]any) error

	// FindAuditLog returns audit entries for an entity, newest first.
	FindAuditLog(ctx context.Context, entityID string) ([]entities.AuditEntry, error)
}
