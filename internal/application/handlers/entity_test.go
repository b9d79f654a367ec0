package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newworld-app/worldcore/internal/domain/entities"
	"github.com/newworld-app/worldcore/internal/domain/mocks"
	"github.com/newworld-app/worldcore/internal/domain/services"
)

func setupEntityHandler() (*EntityHandler, *mocks.DocumentStore) {
	return setupEntityHandlerWithPolicy("")
}

func setupEntityHandlerWithPolicy(policy services.CascadePolicy) (*EntityHandler, *mocks.DocumentStore) {
	store := mocks.NewDocumentStore()
	svc := services.NewEntityService(store, entities.DefaultSchema(), policy, nil)
	return NewEntityHandler(svc), store
}

func seedEntity(store *mocks.DocumentStore, kind entities.Kind, id, worldID, name string) *entities.Entity {
	e := &entities.Entity{
		ID:             id,
		Kind:           kind,
		WorldID:        worldID,
		OwnerID:        "owner-1",
		Name:           name,
		NormalizedName: entities.NormalizeName(name),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	store.Seed(e)
	return e
}

func TestEntityHandler_HandleCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("clean save has no warnings", func(t *testing.T) {
		handler, _ := setupEntityHandler()

		result, err := handler.HandleCreate(ctx, services.CreateInput{
			Kind: entities.KindCharacter, WorldID: "world-1", OwnerID: "owner-1", Name: "Aria",
			RawRefs: map[string]string{"factions": "Silver Hand"},
		})
		require.NoError(t, err)
		assert.Empty(t, result.Warnings)
		assert.Len(t, result.Created, 1)
	})

	t.Run("partial sync is a success with warnings", func(t *testing.T) {
		handler, store := setupEntityHandler()
		seedEntity(store, entities.KindFaction, "fac-1", "world-1", "Silver Hand")
		store.RefErr = func(kind entities.Kind, id, field string) error {
			if id == "fac-ghost" {
				return errors.New("write timeout")
			}
			return nil
		}

		result, err := handler.HandleCreate(ctx, services.CreateInput{
			Kind: entities.KindCharacter, WorldID: "world-1", OwnerID: "owner-1", Name: "Aria",
			Refs: map[string][]string{"factions": {"fac-1", "fac-ghost"}},
		})
		require.NoError(t, err)
		require.NotNil(t, result.Entity)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "inverse update not applied")
	})

	t.Run("validation failure is fatal", func(t *testing.T) {
		handler, _ := setupEntityHandler()

		_, err := handler.HandleCreate(ctx, services.CreateInput{
			Kind: entities.KindCharacter, OwnerID: "owner-1", Name: "Aria",
		})
		assert.ErrorIs(t, err, services.ErrMissingWorldScope)
	})
}

func TestEntityHandler_HandleShow(t *testing.T) {
	ctx := context.Background()
	handler, store := setupEntityHandler()
	seedEntity(store, entities.KindCharacter, "char-1", "world-1", "Aria")

	t.Run("by id", func(t *testing.T) {
		got, err := handler.HandleShow(ctx, entities.KindCharacter, "world-1", "char-1")
		require.NoError(t, err)
		assert.Equal(t, "Aria", got.Name)
	})

	t.Run("falls back to name lookup", func(t *testing.T) {
		got, err := handler.HandleShow(ctx, entities.KindCharacter, "world-1", "aria")
		require.NoError(t, err)
		assert.Equal(t, "char-1", got.ID)
	})

	t.Run("unknown id and name", func(t *testing.T) {
		_, err := handler.HandleShow(ctx, entities.KindCharacter, "world-1", "nobody")
		assert.ErrorIs(t, err, services.ErrNotFound)
	})
}

func TestEntityHandler_HandleDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("reports removed references", func(t *testing.T) {
		handler, store := setupEntityHandler()
		seedEntity(store, entities.KindFaction, "fac-1", "world-1", "Silver Hand")
		c := seedEntity(store, entities.KindCharacter, "char-1", "world-1", "Aria")
		c.Refs = map[string][]string{"factions": {"fac-1"}}
		store.Seed(c)

		result, err := handler.HandleDelete(ctx, entities.KindFaction, "fac-1")
		require.NoError(t, err)
		assert.True(t, result.Deleted)
		assert.Equal(t, 1, result.ReferencesRemoved)
		assert.Empty(t, result.Warnings)
	})

	t.Run("partial cleanup downgrades to warnings", func(t *testing.T) {
		handler, store := setupEntityHandler()
		seedEntity(store, entities.KindFaction, "fac-1", "world-1", "Silver Hand")
		store.RefErr = func(kind entities.Kind, id, field string) error {
			if kind == entities.KindCharacter && field == "factions" {
				return errors.New("write timeout")
			}
			return nil
		}

		result, err := handler.HandleDelete(ctx, entities.KindFaction, "fac-1")
		require.NoError(t, err)
		assert.True(t, result.Deleted)
		require.NotEmpty(t, result.Warnings)
		assert.Contains(t, result.Warnings[0], "character.factions")
	})

	t.Run("delete-if-clean keeps the entity and fails on partial cleanup", func(t *testing.T) {
		handler, store := setupEntityHandlerWithPolicy(services.DeleteIfClean)
		seedEntity(store, entities.KindFaction, "fac-1", "world-1", "Silver Hand")
		c := seedEntity(store, entities.KindCharacter, "char-1", "world-1", "Aria")
		c.Refs = map[string][]string{"factions": {"fac-1"}}
		store.Seed(c)
		store.RefErr = func(kind entities.Kind, id, field string) error {
			if kind == entities.KindCharacter && field == "factions" {
				return errors.New("write timeout")
			}
			return nil
		}

		_, err := handler.HandleDelete(ctx, entities.KindFaction, "fac-1")
		var partial *services.PartialCleanupError
		require.ErrorAs(t, err, &partial)
		assert.NotNil(t, store.Get(entities.KindFaction, "fac-1"))
	})

	t.Run("unknown entity is fatal", func(t *testing.T) {
		handler, _ := setupEntityHandler()
		_, err := handler.HandleDelete(ctx, entities.KindFaction, "nope")
		assert.ErrorIs(t, err, services.ErrNotFound)
	})
}
