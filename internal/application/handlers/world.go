package handlers

import (
	"context"

	"github.com/newworld-app/worldcore/internal/domain/entities"
	"github.com/newworld-app/worldcore/internal/domain/services"
)

// WorldHandler handles world operations.
type WorldHandler struct {
	service *services.WorldService
}

// NewWorldHandler creates a new WorldHandler.
func NewWorldHandler(service *services.WorldService) *WorldHandler {
	return &WorldHandler{
		service: service,
	}
}

// HandleCreate creates a world for an owner.
func (h *WorldHandler) HandleCreate(ctx context.Context, ownerID, name, description string) (*entities.World, error) {
	return h.service.Create(ctx, ownerID, name, description)
}

// HandleShow returns an owner's world by name.
func (h *WorldHandler) HandleShow(ctx context.Context, ownerID, name string) (*entities.World, error) {
	return h.service.Find(ctx, ownerID, name)
}

// HandleList returns all worlds of an owner.
func (h *WorldHandler) HandleList(ctx context.Context, ownerID string) ([]*entities.World, error) {
	return h.service.List(ctx, ownerID)
}

// HandleDelete removes a world and every entity in it, returning the number
// of removed entities.
func (h *WorldHandler) HandleDelete(ctx context.Context, ownerID, name string) (int, error) {
	world, err := h.service.Find(ctx, ownerID, name)
	if err != nil {
		return 0, err
	}
	return h.service.Delete(ctx, world.ID)
}
