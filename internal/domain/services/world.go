package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newworld-app/worldcore/internal/domain/entities"
	"github.com/newworld-app/worldcore/internal/domain/ports"
)

// WorldService manages world records. Worlds are the scoping boundary for
// name-based resolution; deleting a world removes every entity document in
// it.
type WorldService struct {
	store  ports.DocumentStore
	logger *zap.Logger
}

// NewWorldService creates a new WorldService.
func NewWorldService(store ports.DocumentStore, logger *zap.Logger) *WorldService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorldService{
		store:  store,
		logger: logger,
	}
}

// Create creates a world for an owner. World names are unique per owner,
// case-insensitively.
func (s *WorldService) Create(ctx context.Context, ownerID, name, description string) (*entities.World, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	if entities.NormalizeName(name) == "" {
		return nil, ErrEmptyName
	}

	existing, err := s.store.FindWorldByName(ctx, ownerID, name)
	if err != nil {
		return nil, &PersistenceError{Op: "find world", Err: err}
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: world %q", ErrNameTaken, name)
	}

	world := &entities.World{
		ID:             uuid.New().String(),
		OwnerID:        ownerID,
		Name:           name,
		NormalizedName: entities.NormalizeName(name),
		Description:    description,
		CreatedAt:      time.Now(),
	}
	if err := s.store.InsertWorld(ctx, world); err != nil {
		return nil, &PersistenceError{Op: "insert world", Err: err}
	}

	s.logger.Info("world created",
		zap.String("world_id", world.ID),
		zap.String("name", name))
	return world, nil
}

// Find returns an owner's world by name.
func (s *WorldService) Find(ctx context.Context, ownerID, name string) (*entities.World, error) {
	world, err := s.store.FindWorldByName(ctx, ownerID, name)
	if err != nil {
		return nil, &PersistenceError{Op: "find world", Err: err}
	}
	if world == nil {
		return nil, fmt.Errorf("%w: world %q", ErrNotFound, name)
	}
	return world, nil
}

// List returns all worlds of an owner.
func (s *WorldService) List(ctx context.Context, ownerID string) ([]*entities.World, error) {
	return s.store.ListWorlds(ctx, ownerID)
}

// Delete removes a world and every entity document scoped to it.
func (s *WorldService) Delete(ctx context.Context, id string) (int, error) {
	world, err := s.store.FindWorldByID(ctx, id)
	if err != nil {
		return 0, &PersistenceError{Op: "find world", Err: err}
	}
	if world == nil {
		return 0, fmt.Errorf("%w: world %s", ErrNotFound, id)
	}

	removed := 0
	for _, kind := range entities.Kinds() {
		n, err := s.store.DeleteByWorld(ctx, kind, id)
		if err != nil {
			return removed, &PersistenceError{Op: fmt.Sprintf("delete %s documents", kind), Err: err}
		}
		removed += n
	}

	if err := s.store.DeleteWorld(ctx, id); err != nil {
		return removed, &PersistenceError{Op: "delete world", Err: err}
	}

	s.logger.Info("world deleted",
		zap.String("world_id", id),
		zap.Int("entities_removed", removed))
	return removed, nil
}
