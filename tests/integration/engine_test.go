// Package integration exercises the full engine against a real SQLite
// database: resolve free-text references, mirror them on both sides,
// update deltas, and cascade cleanup on delete.
package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newworld-app/worldcore/internal/domain/entities"
	"github.com/newworld-app/worldcore/internal/domain/services"
	"github.com/newworld-app/worldcore/internal/infrastructure/config"
	"github.com/newworld-app/worldcore/internal/infrastructure/docstore/sqlite"
)

func setupEngine(t *testing.T) (*services.EntityService, *services.WorldService, *sqlite.Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dbPath := filepath.Join(t.TempDir(), "test.db")
	repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.EnsureSchema(context.Background()))

	schema := entities.DefaultSchema()
	return services.NewEntityService(repo, schema, "", nil), services.NewWorldService(repo, nil), repo
}

func TestEngine_Integration_Lifecycle(t *testing.T) {
	entitySvc, worldSvc, repo := setupEngine(t)
	ctx := context.Background()

	world, err := worldSvc.Create(ctx, "owner-1", "Aetheria", "")
	require.NoError(t, err)

	// Create a character mentioning entities that don't exist yet.
	created, err := entitySvc.Create(ctx, services.CreateInput{
		Kind:    entities.KindCharacter,
		WorldID: world.ID,
		OwnerID: "owner-1",
		Name:    "Aria",
		RawRefs: map[string]string{
			"factions":  "Silver Hand",
			"abilities": "Fire Magic, Ice Magic",
		},
	})
	require.NoError(t, err)
	require.Len(t, created.Created, 3)
	aria := created.Entity

	// Every auto-created peer carries the mirrored reference and an audit
	// trail.
	for _, res := range created.Created {
		kind := entities.KindFaction
		if res.Name != "Silver Hand" {
			kind = entities.KindAbility
		}
		peer, err := repo.FindByID(ctx, kind, res.ID)
		require.NoError(t, err)
		require.NotNil(t, peer, res.Name)
		assert.Equal(t, []string{aria.ID}, peer.Refs["characters"], res.Name)

		audit, err := repo.FindAuditLog(ctx, res.ID)
		require.NoError(t, err)
		require.NotEmpty(t, audit)
		assert.Equal(t, "entity.autocreated", audit[0].Action)
	}

	// A second character naming the same faction reuses it.
	second, err := entitySvc.Create(ctx, services.CreateInput{
		Kind:    entities.KindCharacter,
		WorldID: world.ID,
		OwnerID: "owner-1",
		Name:    "Bren",
		RawRefs: map[string]string{"factions": "silver hand"},
	})
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, aria.Refs["factions"], second.Entity.Refs["factions"])

	facID := aria.Refs["factions"][0]
	fac, err := repo.FindByID(ctx, entities.KindFaction, facID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{aria.ID, second.Entity.ID}, fac.Refs["characters"])

	// Dropping an ability on update removes its mirrored reference only.
	iceID := ""
	for _, res := range created.Created {
		if res.Name == "Ice Magic" {
			iceID = res.ID
		}
	}
	fireID := ""
	for _, res := range created.Created {
		if res.Name == "Fire Magic" {
			fireID = res.ID
		}
	}
	_, err = entitySvc.Update(ctx, entities.KindCharacter, aria.ID, services.UpdateInput{
		Refs: map[string][]string{"abilities": {fireID}},
	})
	require.NoError(t, err)

	ice, err := repo.FindByID(ctx, entities.KindAbility, iceID)
	require.NoError(t, err)
	assert.Empty(t, ice.Refs["characters"])
	fire, err := repo.FindByID(ctx, entities.KindAbility, fireID)
	require.NoError(t, err)
	assert.Equal(t, []string{aria.ID}, fire.Refs["characters"])

	// Deleting the faction strips it from both characters.
	report, err := entitySvc.Delete(ctx, entities.KindFaction, facID)
	require.NoError(t, err)
	assert.True(t, report.Deleted)
	assert.Equal(t, 2, report.Cleanup.Removed)

	for _, id := range []string{aria.ID, second.Entity.ID} {
		char, err := repo.FindByID(ctx, entities.KindCharacter, id)
		require.NoError(t, err)
		assert.Empty(t, char.Refs["factions"], id)
	}
	gone, err := repo.FindByID(ctx, entities.KindFaction, facID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	audit, err := repo.FindAuditLog(ctx, facID)
	require.NoError(t, err)
	require.NotEmpty(t, audit)
	assert.Equal(t, "entity.cascade_cleanup", audit[0].Action)
}

func TestEngine_Integration_WorldScoping(t *testing.T) {
	entitySvc, worldSvc, _ := setupEngine(t)
	ctx := context.Background()

	first, err := worldSvc.Create(ctx, "owner-1", "Aetheria", "")
	require.NoError(t, err)
	other, err := worldSvc.Create(ctx, "owner-1", "Umbra", "")
	require.NoError(t, err)

	a, err := entitySvc.Create(ctx, services.CreateInput{
		Kind: entities.KindFaction, WorldID: first.ID, OwnerID: "owner-1", Name: "Silver Hand",
	})
	require.NoError(t, err)

	// The same name resolves to a fresh entity in the other world.
	b, err := entitySvc.Create(ctx, services.CreateInput{
		Kind:    entities.KindCharacter,
		WorldID: other.ID,
		OwnerID: "owner-1",
		Name:    "Aria",
		RawRefs: map[string]string{"factions": "Silver Hand"},
	})
	require.NoError(t, err)
	require.Len(t, b.Created, 1)
	assert.NotEqual(t, a.Entity.ID, b.Created[0].ID)

	// Deleting a world removes its entities and nothing else.
	removed, err := worldSvc.Delete(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	kept, err := entitySvc.Get(ctx, entities.KindFaction, a.Entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "Silver Hand", kept.Name)
}
