package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newworld-app/worldcore/internal/domain/entities"
	"github.com/newworld-app/worldcore/internal/domain/mocks"
)

func setupResolverTest() (*Resolver, *mocks.DocumentStore) {
	store := mocks.NewDocumentStore()
	return NewResolver(store, entities.DefaultSchema(), nil), store
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

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("existing name returns id without writes", func(t *testing.T) {
		resolver, store := setupResolverTest()
		seedEntity(store, entities.KindFaction, "fac-1", "world-1", "Silver Hand")

		res, err := resolver.Resolve(ctx, entities.KindFaction, "Silver Hand", "world-1", "owner-1")
		require.NoError(t, err)
		assert.Equal(t, "fac-1", res.ID)
		assert.False(t, res.Created)
		assert.Zero(t, store.WriteCalls())
		assert.Empty(t, store.Audit)
	})

	t.Run("match is case-insensitive and trims whitespace", func(t *testing.T) {
		resolver, store := setupResolverTest()
		seedEntity(store, entities.KindFaction, "fac-1", "world-1", "Silver Hand")

		res, err := resolver.Resolve(ctx, entities.KindFaction, "  sIlVeR hAnD  ", "world-1", "owner-1")
		require.NoError(t, err)
		assert.Equal(t, "fac-1", res.ID)
		assert.False(t, res.Created)
	})

	t.Run("miss creates a minimal entity and audits it", func(t *testing.T) {
		resolver, store := setupResolverTest()

		res, err := resolver.Resolve(ctx, entities.KindAbility, "Fire Magic", "world-1", "owner-1")
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.NotEmpty(t, res.ID)

		saved := store.Get(entities.KindAbility, res.ID)
		require.NotNil(t, saved)
		assert.Equal(t, "Fire Magic", saved.Name)
		assert.Equal(t, "fire magic", saved.NormalizedName)
		assert.Equal(t, "world-1", saved.WorldID)
		assert.Equal(t, "owner-1", saved.OwnerID)
		assert.Empty(t, saved.Refs)

		require.Len(t, store.Audit, 1)
		assert.Equal(t, "entity.autocreated", store.Audit[0].Action)
		assert.Equal(t, res.ID, store.Audit[0].EntityID)
	})

	t.Run("resolve is idempotent", func(t *testing.T) {
		resolver, _ := setupResolverTest()

		first, err := resolver.Resolve(ctx, entities.KindAbility, "Fire Magic", "world-1", "owner-1")
		require.NoError(t, err)
		second, err := resolver.Resolve(ctx, entities.KindAbility, "fire magic", "world-1", "owner-1")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.True(t, first.Created)
		assert.False(t, second.Created)
	})

	t.Run("same name in different worlds resolves separately", func(t *testing.T) {
		resolver, _ := setupResolverTest()

		a, err := resolver.Resolve(ctx, entities.KindCharacter, "Aria", "world-1", "owner-1")
		require.NoError(t, err)
		b, err := resolver.Resolve(ctx, entities.KindCharacter, "Aria", "world-2", "owner-1")
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("missing world scope", func(t *testing.T) {
		resolver, _ := setupResolverTest()
		_, err := resolver.Resolve(ctx, entities.KindCharacter, "Aria", "", "owner-1")
		assert.ErrorIs(t, err, ErrMissingWorldScope)
	})

	t.Run("missing owner", func(t *testing.T) {
		resolver, _ := setupResolverTest()
		_, err := resolver.Resolve(ctx, entities.KindCharacter, "Aria", "world-1", "")
		assert.ErrorIs(t, err, ErrMissingOwner)
	})

	t.Run("unknown kind", func(t *testing.T) {
		resolver, _ := setupResolverTest()
		_, err := resolver.Resolve(ctx, entities.Kind("dragonzord"), "Aria", "world-1", "owner-1")
		assert.ErrorIs(t, err, ErrUnknownKind)
	})

	t.Run("blank name", func(t *testing.T) {
		resolver, _ := setupResolverTest()
		_, err := resolver.Resolve(ctx, entities.KindCharacter, "   ", "world-1", "owner-1")
		assert.ErrorIs(t, err, ErrEmptyName)
	})

	t.Run("store failure wraps as persistence error", func(t *testing.T) {
		resolver, store := setupResolverTest()
		store.Err = errors.New("disk full")

		_, err := resolver.Resolve(ctx, entities.KindCharacter, "Aria", "world-1", "owner-1")
		var perr *PersistenceError
		require.ErrorAs(t, err, &perr)
	})
}

func TestResolver_ResolveList(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves each name in order", func(t *testing.T) {
		resolver, store := setupResolverTest()
		seedEntity(store, entities.KindAbility, "ab-1", "world-1", "Fire Magic")

		res, err := resolver.ResolveList(ctx, entities.KindAbility, "Fire Magic, Ice Magic", "world-1", "owner-1")
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "ab-1", res[0].ID)
		assert.False(t, res[0].Created)
		assert.True(t, res[1].Created)
	})

	t.Run("duplicate names collapse to one id", func(t *testing.T) {
		resolver, _ := setupResolverTest()

		res, err := resolver.ResolveList(ctx, entities.KindFaction, "Silver Hand, silver hand", "world-1", "owner-1")
		require.NoError(t, err)
		require.Len(t, res, 1)
	})

	t.Run("empty tokens are discarded", func(t *testing.T) {
		resolver, _ := setupResolverTest()

		res, err := resolver.ResolveList(ctx, entities.KindFaction, " , Silver Hand, ,, ", "world-1", "owner-1")
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "Silver Hand", res[0].Name)
	})

	t.Run("empty input yields nothing", func(t *testing.T) {
		resolver, store := setupResolverTest()

		res, err := resolver.ResolveList(ctx, entities.KindFaction, "  ", "world-1", "owner-1")
		require.NoError(t, err)
		assert.Empty(t, res)
		assert.Zero(t, store.WriteCalls())
	})
}

func TestResolver_ResolveRefs(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves every field against its target kind", func(t *testing.T) {
		resolver, store := setupResolverTest()
		seedEntity(store, entities.KindFaction, "fac-1", "world-1", "Silver Hand")

		state, created, err := resolver.ResolveRefs(ctx, entities.KindCharacter, map[string]string{
			"factions":  "Silver Hand",
			"abilities": "Fire Magic, Ice Magic",
		}, "world-1", "owner-1")
		require.NoError(t, err)

		assert.Equal(t, []string{"fac-1"}, state["factions"])
		assert.Len(t, state["abilities"], 2)
		assert.Len(t, created, 2)
		for _, res := range created {
			assert.True(t, res.Created)
		}
	})

	t.Run("single-cardinality field takes the raw value as one name", func(t *testing.T) {
		resolver, _ := setupResolverTest()

		state, created, err := resolver.ResolveRefs(ctx, entities.KindItem, map[string]string{
			"createdBy": "Smith, the Elder",
		}, "world-1", "owner-1")
		require.NoError(t, err)
		require.Len(t, state["createdBy"], 1)
		require.Len(t, created, 1)
		assert.Equal(t, "Smith, the Elder", created[0].Name)
	})

	t.Run("blank raw value clears the field", func(t *testing.T) {
		resolver, _ := setupResolverTest()

		state, created, err := resolver.ResolveRefs(ctx, entities.KindCharacter, map[string]string{
			"factions": "  ",
		}, "world-1", "owner-1")
		require.NoError(t, err)
		ids, ok := state["factions"]
		assert.True(t, ok)
		assert.Empty(t, ids)
		assert.Empty(t, created)
	})

	t.Run("unknown field fails without aborting siblings", func(t *testing.T) {
		resolver, _ := setupResolverTest()

		state, _, err := resolver.ResolveRefs(ctx, entities.KindCharacter, map[string]string{
			"bogus":    "Anything",
			"factions": "Silver Hand",
		}, "world-1", "owner-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bogus")
		assert.Len(t, state["factions"], 1)
	})

	t.Run("empty map resolves to nothing", func(t *testing.T) {
		resolver, _ := setupResolverTest()

		state, created, err := resolver.ResolveRefs(ctx, entities.KindCharacter, nil, "world-1", "owner-1")
		require.NoError(t, err)
		assert.Nil(t, state)
		assert.Empty(t, created)
	})
}
