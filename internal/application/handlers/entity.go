// Package handlers adapts the domain services to the CLI surface. Handlers
// translate partial-failure errors into warnings so a save whose entity
// write succeeded is reported as a success even when some reference
// resolutions or inverse updates did not land.
package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/newworld-app/worldcore/internal/domain/entities"
	"github.com/newworld-app/worldcore/internal/domain/services"
)

// EntityResult is the outcome of a create or update as shown to the user.
type EntityResult struct {
	Entity   *entities.Entity
	Created  []services.Resolution
	Warnings []string
}

// DeleteResult is the outcome of a delete as shown to the user.
type DeleteResult struct {
	ReferencesRemoved int
	Deleted           bool
	Warnings          []string
}

// EntityHandler handles entity operations.
type EntityHandler struct {
	service *services.EntityService
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(service *services.EntityService) *EntityHandler {
	return &EntityHandler{
		service: service,
	}
}

// HandleCreate creates an entity. When the entity itself was saved, any
// resolution or sync failures downgrade to warnings; when it was not, the
// error is fatal.
func (h *EntityHandler) HandleCreate(ctx context.Context, in services.CreateInput) (*EntityResult, error) {
	result, err := h.service.Create(ctx, in)
	if result == nil {
		return nil, err
	}
	return &EntityResult{
		Entity:   result.Entity,
		Created:  result.Created,
		Warnings: saveWarnings(err),
	}, nil
}

// HandleUpdate updates an entity, with the same warning semantics as
// HandleCreate.
func (h *EntityHandler) HandleUpdate(ctx context.Context, kind entities.Kind, id string, in services.UpdateInput) (*EntityResult, error) {
	result, err := h.service.Update(ctx, kind, id, in)
	if result == nil {
		return nil, err
	}
	return &EntityResult{
		Entity:   result.Entity,
		Created:  result.Created,
		Warnings: saveWarnings(err),
	}, nil
}

// HandleShow returns an entity by id, falling back to a name lookup within
// the world.
func (h *EntityHandler) HandleShow(ctx context.Context, kind entities.Kind, worldID, idOrName string) (*entities.Entity, error) {
	entity, err := h.service.Get(ctx, kind, idOrName)
	if err == nil {
		return entity, nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}
	byName, nameErr := h.service.GetByName(ctx, kind, worldID, idOrName)
	if nameErr != nil {
		return nil, err
	}
	return byName, nil
}

// HandleList returns entities of a kind in a world.
func (h *EntityHandler) HandleList(ctx context.Context, kind entities.Kind, worldID string, limit, offset int) ([]*entities.Entity, error) {
	return h.service.List(ctx, kind, worldID, limit, offset)
}

// HandleDelete deletes an entity after cascade cleanup. A partial cleanup
// downgrades to warnings only when the document was actually removed; when
// the service keeps the entity the error is fatal.
func (h *EntityHandler) HandleDelete(ctx context.Context, kind entities.Kind, id string) (*DeleteResult, error) {
	report, err := h.service.Delete(ctx, kind, id)

	var partial *services.PartialCleanupError
	if errors.As(err, &partial) && report.Deleted {
		result := &DeleteResult{
			ReferencesRemoved: report.Cleanup.Removed,
			Deleted:           true,
		}
		for _, failure := range partial.Failed {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("references to the deleted entity may remain in %s.%s: %v",
					failure.Target.Kind, failure.Target.Field, failure.Err))
		}
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	return &DeleteResult{ReferencesRemoved: report.Cleanup.Removed, Deleted: true}, nil
}

// saveWarnings turns the non-fatal error of a successful save into warning
// lines. Sync failures are listed per inverse update; anything else in the
// joined error is reported as-is.
func saveWarnings(err error) []string {
	if err == nil {
		return nil
	}
	var partial *services.PartialSyncError
	if errors.As(err, &partial) {
		warnings := make([]string, 0, len(partial.Failed))
		for _, failure := range partial.Failed {
			warnings = append(warnings,
				fmt.Sprintf("inverse update not applied (%s): %v", failure.Op, failure.Err))
		}
		return warnings
	}
	return []string{err.Error()}
}
