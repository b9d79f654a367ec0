package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchema(t *testing.T) {
	schema := DefaultSchema()

	t.Run("declares fields for all fourteen kinds", func(t *testing.T) {
		for _, kind := range Kinds() {
			assert.True(t, schema.HasKind(kind), "kind %s has no relationship fields", kind)
			assert.NotEmpty(t, schema.FieldsOf(kind))
		}
	})

	t.Run("field lookup", func(t *testing.T) {
		rel, ok := schema.Relation(KindCharacter, "factions")
		require.True(t, ok)
		assert.Equal(t, KindFaction, rel.Target)
		assert.Equal(t, CardinalityMany, rel.Cardinality)
		assert.Equal(t, "characters", rel.Inverse)
		assert.True(t, rel.Bidirectional())

		_, ok = schema.Relation(KindCharacter, "bogus")
		assert.False(t, ok)
	})

	t.Run("single-cardinality item fields", func(t *testing.T) {
		for _, field := range []string{"createdBy", "currentOwnerCharacter"} {
			rel, ok := schema.Relation(KindItem, field)
			require.True(t, ok, field)
			assert.Equal(t, CardinalityOne, rel.Cardinality)
			assert.Equal(t, KindCharacter, rel.Target)
		}
	})

	t.Run("symmetric self-kind fields point back at themselves", func(t *testing.T) {
		for _, field := range []string{"family", "friends", "enemies", "romance"} {
			rel, ok := schema.Relation(KindCharacter, field)
			require.True(t, ok, field)
			assert.Equal(t, KindCharacter, rel.Target)
			assert.Equal(t, field, rel.Inverse)
		}
	})

	t.Run("one-directional fields have no inverse", func(t *testing.T) {
		rel, ok := schema.Relation(KindLocation, "factions")
		require.True(t, ok)
		assert.Equal(t, InverseNone, rel.Inverse)
		assert.False(t, rel.Bidirectional())
	})

	t.Run("every declared inverse points back", func(t *testing.T) {
		for _, kind := range Kinds() {
			for _, rel := range schema.FieldsOf(kind) {
				if rel.Inverse == InverseNone {
					continue
				}
				inv, ok := schema.Relation(rel.Target, rel.Inverse)
				require.True(t, ok, "%s.%s inverse %s.%s", rel.Kind, rel.Field, rel.Target, rel.Inverse)
				assert.Equal(t, rel.Kind, inv.Target)
			}
		}
	})

	t.Run("inbound covers each pair once", func(t *testing.T) {
		seen := make(map[string]bool)
		for _, rel := range schema.Inbound(KindFaction) {
			key := string(rel.Kind) + "." + rel.Field
			assert.False(t, seen[key], "duplicate inbound pair %s", key)
			seen[key] = true
			assert.Equal(t, KindFaction, rel.Target)
		}
		assert.True(t, seen["character.factions"])
		assert.True(t, seen["faction.allies"])
		assert.True(t, seen["faction.enemies"])
		assert.True(t, seen["location.factions"])
	})
}

func TestBuildSchema_Validation(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		_, err := buildSchema([]Relation{
			{Kind: "wizard", Field: "spells", Target: KindAbility, Cardinality: CardinalityMany},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown kind")
	})

	t.Run("unknown target", func(t *testing.T) {
		_, err := buildSchema([]Relation{
			{Kind: KindCharacter, Field: "spells", Target: "spell", Cardinality: CardinalityMany},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown target")
	})

	t.Run("empty field name", func(t *testing.T) {
		_, err := buildSchema([]Relation{
			{Kind: KindCharacter, Field: "", Target: KindAbility, Cardinality: CardinalityMany},
		})
		require.Error(t, err)
	})

	t.Run("invalid cardinality", func(t *testing.T) {
		_, err := buildSchema([]Relation{
			{Kind: KindCharacter, Field: "abilities", Target: KindAbility, Cardinality: "several"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cardinality")
	})

	t.Run("duplicate field", func(t *testing.T) {
		_, err := buildSchema([]Relation{
			{Kind: KindCharacter, Field: "abilities", Target: KindAbility, Cardinality: CardinalityMany},
			{Kind: KindCharacter, Field: "abilities", Target: KindAbility, Cardinality: CardinalityMany},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("dangling inverse", func(t *testing.T) {
		_, err := buildSchema([]Relation{
			{Kind: KindCharacter, Field: "abilities", Target: KindAbility, Cardinality: CardinalityMany, Inverse: "characters"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not declared")
	})

	t.Run("inverse pointing at the wrong kind", func(t *testing.T) {
		_, err := buildSchema([]Relation{
			{Kind: KindCharacter, Field: "abilities", Target: KindAbility, Cardinality: CardinalityMany, Inverse: "stories"},
			{Kind: KindAbility, Field: "stories", Target: KindStory, Cardinality: CardinalityMany},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "targets")
	})
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("power_system")
	assert.True(t, ok)
	assert.Equal(t, KindPowerSystem, k)

	_, ok = ParseKind("wizard")
	assert.False(t, ok)
}
