package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newworld-app/worldcore/internal/domain/entities"
	"github.com/newworld-app/worldcore/internal/domain/ports"
)

// auditActionAutoCreated marks entities created as a side effect of being
// mentioned by name on another entity.
const auditActionAutoCreated = "entity.autocreated"

// Resolution is the outcome of resolving one free-text reference. Created
// distinguishes a graph-mutating resolve from a pure lookup: a newly created
// target has empty relationship fields, so the caller must establish its
// inverse link immediately rather than rely on a later diff.
type Resolution struct {
	ID      string
	Name    string
	Created bool
}

// Resolver converts user-supplied free-text relationship values into
// canonical entity identifiers, creating minimal entities on demand.
type Resolver struct {
	store  ports.DocumentStore
	schema *entities.Schema
	logger *zap.Logger
}

// NewResolver creates a new Resolver.
func NewResolver(store ports.DocumentStore, schema *entities.Schema, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:  store,
		schema: schema,
		logger: logger,
	}
}

// Resolve turns a single name into a canonical entity id within a world.
// On a case-insensitive match the existing id is returned with no side
// effect; on a miss a minimal entity is created, audited, and returned with
// Created set.
func (r *Resolver) Resolve(ctx context.Context, kind entities.Kind, rawText, worldID, ownerID string) (Resolution, error) {
	if worldID == "" {
		return Resolution{}, ErrMissingWorldScope
	}
	if ownerID == "" {
		return Resolution{}, ErrMissingOwner
	}
	if !r.schema.HasKind(kind) {
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	name := strings.TrimSpace(rawText)
	if name == "" {
		return Resolution{}, ErrEmptyName
	}

	existing, err := r.store.FindByNameInWorld(ctx, kind, worldID, name)
	if err != nil {
		return Resolution{}, &PersistenceError{Op: "find by name", Err: err}
	}
	if existing != nil {
		return Resolution{ID: existing.ID, Name: existing.Name}, nil
	}

	now := time.Now()
	created := &entities.Entity{
		ID:             uuid.New().String(),
		Kind:           kind,
		WorldID:        worldID,
		OwnerID:        ownerID,
		Name:           name,
		NormalizedName: entities.NormalizeName(name),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.store.Insert(ctx, created); err != nil {
		return Resolution{}, &PersistenceError{Op: "insert resolved entity", Err: err}
	}

	if err := r.store.LogAction(ctx, auditActionAutoCreated, created.ID, map[string]any{
		"kind":  string(kind),
		"name":  name,
		"world": worldID,
	}); err != nil {
		r.logger.Warn("audit log write failed",
			zap.String("entity_id", created.ID),
			zap.Error(err))
	}

	r.logger.Info("auto-created entity from reference",
		zap.String("kind", string(kind)),
		zap.String("entity_id", created.ID),
		zap.String("name", name),
		zap.String("world_id", worldID))

	return Resolution{ID: created.ID, Name: name, Created: true}, nil
}

// ResolveList resolves a comma-separated list of names. Empty tokens are
// discarded and duplicate names collapse to one identifier, so resolving
// "Silver Hand, Silver Hand" yields a single resolution. Identifiers are
// returned in resolution order. A failing token does not abort its
// siblings; the joined error is returned alongside the successes.
func (r *Resolver) ResolveList(ctx context.Context, kind entities.Kind, rawCsv, worldID, ownerID string) ([]Resolution, error) {
	var (
		result []Resolution
		errs   []error
		seen   = make(map[string]bool)
	)
	for _, token := range strings.Split(rawCsv, ",") {
		name := strings.TrimSpace(token)
		if name == "" {
			continue
		}
		normalized := entities.NormalizeName(name)
		if seen[normalized] {
			continue
		}
		seen[normalized] = true

		res, err := r.Resolve(ctx, kind, name, worldID, ownerID)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolving %q: %w", name, err))
			continue
		}
		result = append(result, res)
	}
	return result, errors.Join(errs...)
}

// ResolveRefs resolves a map of free-text relationship values, keyed by
// relationship field name, into a reference state for the source kind. For
// single-cardinality fields the whole raw value is treated as one name.
// A failing field does not abort its siblings: the partial state and the
// list of entities created along the way are returned together with the
// joined per-field errors.
func (r *Resolver) ResolveRefs(ctx context.Context, kind entities.Kind, raw map[string]string, worldID, ownerID string) (entities.RefState, []Resolution, error) {
	if len(raw) == 0 {
		return nil, nil, nil
	}
	if !r.schema.HasKind(kind) {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	state := make(entities.RefState)
	var createdAll []Resolution
	var errs []error

	for field, rawValue := range raw {
		rel, ok := r.schema.Relation(kind, field)
		if !ok {
			errs = append(errs, fmt.Errorf("field %q: not a relationship field of %s", field, kind))
			continue
		}
		if strings.TrimSpace(rawValue) == "" {
			state[field] = nil
			continue
		}

		var resolutions []Resolution
		var err error
		if rel.Cardinality == entities.CardinalityOne {
			var res Resolution
			res, err = r.Resolve(ctx, rel.Target, rawValue, worldID, ownerID)
			if err == nil {
				resolutions = []Resolution{res}
			}
		} else {
			resolutions, err = r.ResolveList(ctx, rel.Target, rawValue, worldID, ownerID)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", field, err))
		}

		ids := make([]string, 0, len(resolutions))
		for _, res := range resolutions {
			ids = append(ids, res.ID)
			if res.Created {
				createdAll = append(createdAll, res)
			}
		}
		if len(ids) > 0 || err == nil {
			state[field] = ids
		}
	}

	return state, createdAll, errors.Join(errs...)
}
