package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newworld-app/worldcore/internal/domain/entities"
	"github.com/newworld-app/worldcore/internal/domain/mocks"
)

func setupWorldTest() (*WorldService, *mocks.DocumentStore) {
	store := mocks.NewDocumentStore()
	return NewWorldService(store, nil), store
}

func TestWorldService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a world", func(t *testing.T) {
		svc, _ := setupWorldTest()

		world, err := svc.Create(ctx, "owner-1", "Aetheria", "a high-magic realm")
		require.NoError(t, err)
		assert.NotEmpty(t, world.ID)
		assert.Equal(t, "aetheria", world.NormalizedName)
	})

	t.Run("name is unique per owner", func(t *testing.T) {
		svc, _ := setupWorldTest()

		_, err := svc.Create(ctx, "owner-1", "Aetheria", "")
		require.NoError(t, err)

		_, err = svc.Create(ctx, "owner-1", "AETHERIA", "")
		assert.ErrorIs(t, err, ErrNameTaken)

		_, err = svc.Create(ctx, "owner-2", "Aetheria", "")
		assert.NoError(t, err)
	})

	t.Run("owner and name are required", func(t *testing.T) {
		svc, _ := setupWorldTest()

		_, err := svc.Create(ctx, "", "Aetheria", "")
		assert.ErrorIs(t, err, ErrMissingOwner)

		_, err = svc.Create(ctx, "owner-1", "  ", "")
		assert.ErrorIs(t, err, ErrEmptyName)
	})
}

func TestWorldService_Find(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupWorldTest()

	created, err := svc.Create(ctx, "owner-1", "Aetheria", "")
	require.NoError(t, err)

	found, err := svc.Find(ctx, "owner-1", "aetheria")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = svc.Find(ctx, "owner-1", "Nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorldService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the world and every scoped document", func(t *testing.T) {
		svc, store := setupWorldTest()
		world, err := svc.Create(ctx, "owner-1", "Aetheria", "")
		require.NoError(t, err)

		seedEntity(store, entities.KindCharacter, "char-1", world.ID, "Aria")
		seedEntity(store, entities.KindFaction, "fac-1", world.ID, "Silver Hand")
		seedEntity(store, entities.KindCharacter, "char-2", "other-world", "Bren")

		removed, err := svc.Delete(ctx, world.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)
		assert.Nil(t, store.Get(entities.KindCharacter, "char-1"))
		assert.NotNil(t, store.Get(entities.KindCharacter, "char-2"))

		_, err = svc.Find(ctx, "owner-1", "Aetheria")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown world", func(t *testing.T) {
		svc, _ := setupWorldTest()
		_, err := svc.Delete(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
