package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/newworld-app/worldcore/internal/domain/entities"
	"github.com/newworld-app/worldcore/internal/domain/ports"
)

// CascadePolicy decides what happens to the entity document when cascade
// cleanup does not fully succeed.
type CascadePolicy string

const (
	// DeleteAlways removes the document even if some inbound references
	// could not be cleaned. This matches the historical behavior and is the
	// default; the partial cleanup error is still surfaced.
	DeleteAlways CascadePolicy = "delete-always"

	// DeleteIfClean keeps the document when cleanup partially fails, so the
	// caller can retry the cleanup and only then delete.
	DeleteIfClean CascadePolicy = "delete-if-clean"
)

// ParseCascadePolicy converts a string to a CascadePolicy. The empty string
// selects the default. The second return value reports whether the string
// named a known policy.
func ParseCascadePolicy(s string) (CascadePolicy, bool) {
	switch CascadePolicy(s) {
	case "":
		return DeleteAlways, true
	case DeleteAlways:
		return DeleteAlways, true
	case DeleteIfClean:
		return DeleteIfClean, true
	}
	return "", false
}

const (
	syncRetryAttempts = 3
	syncRetryBase     = 50 * time.Millisecond
)

// CreateInput carries the payload for creating an entity. RawRefs holds
// free-text relationship values keyed by field name ("Fire Magic, Ice
// Magic"); Refs holds pre-resolved identifier lists for callers that
// already know the ids.
type CreateInput struct {
	Kind    entities.Kind
	WorldID string
	OwnerID string
	Name    string
	Attrs   map[string]any
	RawRefs map[string]string
	Refs    map[string][]string
}

// UpdateInput carries a partial update. Only the supplied attrs and
// relationship fields change; Name is applied when non-empty.
type UpdateInput struct {
	Name    string
	Attrs   map[string]any
	RawRefs map[string]string
	Refs    map[string][]string
}

// SaveResult reports the outcome of a create or update: the persisted
// entity, the entities implicitly created while resolving references, and
// the inverse updates issued.
type SaveResult struct {
	Entity  *entities.Entity
	Created []Resolution
	Sync    *SyncReport
}

// EntityService orchestrates the engine end to end: resolve free-text
// references, persist the entity, propagate inverse links, and on delete
// run cascade cleanup before removing the document. The entity write is
// never undone when relationship propagation partially fails; the partial
// error is surfaced alongside the result.
type EntityService struct {
	store    ports.DocumentStore
	schema   *entities.Schema
	resolver *Resolver
	sync     *SyncEngine
	cascade  *CascadeCleaner
	policy   CascadePolicy
	logger   *zap.Logger
}

// NewEntityService creates a new EntityService with the given cascade
// policy.
func NewEntityService(store ports.DocumentStore, schema *entities.Schema, policy CascadePolicy, logger *zap.Logger) *EntityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == "" {
		policy = DeleteAlways
	}
	return &EntityService{
		store:    store,
		schema:   schema,
		resolver: NewResolver(store, schema, logger),
		sync:     NewSyncEngine(store, schema, logger),
		cascade:  NewCascadeCleaner(store, schema, logger),
		policy:   policy,
		logger:   logger,
	}
}

// Resolver exposes the service's reference resolver.
func (s *EntityService) Resolver() *Resolver { return s.resolver }

// Create resolves the input's references, persists the entity, and
// establishes inverse links on every referenced peer, including peers that
// were just created by resolution. The returned error may be a
// *PartialSyncError while the result still carries the saved entity.
func (s *EntityService) Create(ctx context.Context, in CreateInput) (*SaveResult, error) {
	if in.WorldID == "" {
		return nil, ErrMissingWorldScope
	}
	if in.OwnerID == "" {
		return nil, ErrMissingOwner
	}
	if !s.schema.HasKind(in.Kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, in.Kind)
	}
	name := in.Name
	if entities.NormalizeName(name) == "" {
		return nil, ErrEmptyName
	}

	existing, err := s.store.FindByNameInWorld(ctx, in.Kind, in.WorldID, name)
	if err != nil {
		return nil, &PersistenceError{Op: "uniqueness check", Err: err}
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s %q", ErrNameTaken, in.Kind, name)
	}

	refs, created, resolveErr := s.resolver.ResolveRefs(ctx, in.Kind, in.RawRefs, in.WorldID, in.OwnerID)
	if refs == nil {
		refs = make(entities.RefState)
	}
	for field, ids := range in.Refs {
		if _, ok := s.schema.Relation(in.Kind, field); !ok {
			return nil, fmt.Errorf("field %q: not a relationship field of %s", field, in.Kind)
		}
		refs[field] = append([]string(nil), ids...)
	}

	now := time.Now()
	entity := &entities.Entity{
		ID:             uuid.New().String(),
		Kind:           in.Kind,
		WorldID:        in.WorldID,
		OwnerID:        in.OwnerID,
		Name:           name,
		NormalizedName: entities.NormalizeName(name),
		Attrs:          in.Attrs,
		Refs:           refs,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Insert(ctx, entity); err != nil {
		return nil, &PersistenceError{Op: "insert entity", Err: err}
	}

	s.logger.Info("entity created",
		zap.String("kind", string(in.Kind)),
		zap.String("entity_id", entity.ID),
		zap.String("world_id", in.WorldID))

	report, syncErr := s.syncWithRetry(ctx, entity.ID, in.Kind, nil, entity.RefState())
	result := &SaveResult{Entity: entity, Created: created, Sync: report}
	return result, errors.Join(resolveErr, syncErr)
}

// Update applies a partial update to an entity and propagates the
// relationship delta to affected peers. Unchanged fields issue no writes.
func (s *EntityService) Update(ctx context.Context, kind entities.Kind, id string, in UpdateInput) (*SaveResult, error) {
	entity, err := s.store.FindByID(ctx, kind, id)
	if err != nil {
		return nil, &PersistenceError{Op: "find entity", Err: err}
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}

	prev := entity.RefState()

	// A rename must not collide with another entity of the kind in the same
	// world. Checked before resolution so a conflict has no side effects.
	if in.Name != "" && entities.NormalizeName(in.Name) != entity.NormalizedName {
		existing, err := s.store.FindByNameInWorld(ctx, kind, entity.WorldID, in.Name)
		if err != nil {
			return nil, &PersistenceError{Op: "uniqueness check", Err: err}
		}
		if existing != nil && existing.ID != entity.ID {
			return nil, fmt.Errorf("%w: %s %q", ErrNameTaken, kind, in.Name)
		}
	}

	refs, created, resolveErr := s.resolver.ResolveRefs(ctx, kind, in.RawRefs, entity.WorldID, entity.OwnerID)
	if entity.Refs == nil {
		entity.Refs = make(map[string][]string)
	}
	for field, ids := range refs {
		entity.Refs[field] = ids
	}
	for field, ids := range in.Refs {
		if _, ok := s.schema.Relation(kind, field); !ok {
			return nil, fmt.Errorf("field %q: not a relationship field of %s", field, kind)
		}
		entity.Refs[field] = append([]string(nil), ids...)
	}

	if in.Name != "" {
		entity.Name = in.Name
		entity.NormalizedName = entities.NormalizeName(in.Name)
	}
	if len(in.Attrs) > 0 {
		if entity.Attrs == nil {
			entity.Attrs = make(map[string]any, len(in.Attrs))
		}
		for k, v := range in.Attrs {
			entity.Attrs[k] = v
		}
	}
	entity.UpdatedAt = time.Now()

	if err := s.store.Update(ctx, entity); err != nil {
		return nil, &PersistenceError{Op: "update entity", Err: err}
	}

	report, syncErr := s.syncWithRetry(ctx, entity.ID, kind, prev, entity.RefState())
	result := &SaveResult{Entity: entity, Created: created, Sync: report}
	return result, errors.Join(resolveErr, syncErr)
}

// Get returns an entity by id.
func (s *EntityService) Get(ctx context.Context, kind entities.Kind, id string) (*entities.Entity, error) {
	entity, err := s.store.FindByID(ctx, kind, id)
	if err != nil {
		return nil, &PersistenceError{Op: "find entity", Err: err}
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return entity, nil
}

// GetByName returns an entity by its case-insensitive name within a world.
func (s *EntityService) GetByName(ctx context.Context, kind entities.Kind, worldID, name string) (*entities.Entity, error) {
	if worldID == "" {
		return nil, ErrMissingWorldScope
	}
	entity, err := s.store.FindByNameInWorld(ctx, kind, worldID, name)
	if err != nil {
		return nil, &PersistenceError{Op: "find entity", Err: err}
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
	}
	return entity, nil
}

// List returns entities of a kind in a world with pagination.
func (s *EntityService) List(ctx context.Context, kind entities.Kind, worldID string, limit, offset int) ([]*entities.Entity, error) {
	if worldID == "" {
		return nil, ErrMissingWorldScope
	}
	if !s.schema.HasKind(kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return s.store.List(ctx, kind, worldID, limit, offset)
}

// Count returns the number of entities of a kind in a world.
func (s *EntityService) Count(ctx context.Context, kind entities.Kind, worldID string) (int, error) {
	return s.store.Count(ctx, kind, worldID)
}

// DeleteReport reports the outcome of a delete: the cascade cleanup result
// and whether the entity document was actually removed. Deleted is false
// only under DeleteIfClean when cleanup partially failed, or when the
// document removal itself failed.
type DeleteReport struct {
	Cleanup *CleanupReport
	Deleted bool
}

// Delete runs cascade cleanup for the entity and then removes its document.
// Under DeleteAlways the document is removed even when cleanup partially
// failed and the *PartialCleanupError is returned with the report; under
// DeleteIfClean the document is kept in that case and the report says so.
func (s *EntityService) Delete(ctx context.Context, kind entities.Kind, id string) (*DeleteReport, error) {
	entity, err := s.store.FindByID(ctx, kind, id)
	if err != nil {
		return nil, &PersistenceError{Op: "find entity", Err: err}
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}

	cleanup, cleanupErr := s.cascade.Cleanup(ctx, id, kind)
	report := &DeleteReport{Cleanup: cleanup}
	if cleanupErr != nil && s.policy == DeleteIfClean {
		s.logger.Warn("entity kept after incomplete cleanup",
			zap.String("kind", string(kind)),
			zap.String("entity_id", id))
		return report, cleanupErr
	}

	if err := s.store.Delete(ctx, kind, id); err != nil {
		return report, &PersistenceError{Op: "delete entity", Err: err}
	}
	report.Deleted = true

	s.logger.Info("entity deleted",
		zap.String("kind", string(kind)),
		zap.String("entity_id", id),
		zap.Int("references_removed", cleanup.Removed))
	return report, cleanupErr
}

// syncWithRetry runs a sync and retries only the failed subset with capped
// exponential backoff before surfacing a partial error.
func (s *EntityService) syncWithRetry(ctx context.Context, entityID string, kind entities.Kind, prev, next entities.RefState) (*SyncReport, error) {
	report, err := s.sync.Sync(ctx, entityID, kind, prev, next)
	var partial *PartialSyncError
	if !errors.As(err, &partial) {
		return report, err
	}

	backoff := retry.WithMaxRetries(syncRetryAttempts, retry.NewExponential(syncRetryBase))
	retryErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ops := make([]RefOp, len(report.Failed))
		for i, failure := range report.Failed {
			ops[i] = failure.Op
		}
		attempt, applyErr := s.sync.Apply(ctx, ops)
		report.merge(attempt)
		if applyErr != nil {
			return retry.RetryableError(applyErr)
		}
		return nil
	})
	if retryErr != nil {
		return report, &PartialSyncError{Applied: report.Applied, Failed: report.Failed}
	}
	return report, nil
}
