package entities

import "fmt"

// Cardinality says whether a relationship field holds one reference or a
// list of them.
type Cardinality string

const (
	CardinalityOne  Cardinality = "one"
	CardinalityMany Cardinality = "many"
)

// InverseNone marks a one-directional relationship field: the target kind
// keeps no mirrored back-reference and inverse propagation is skipped.
const InverseNone = ""

// Relation is one row of the relationship schema: a single relationship
// field declared on a kind.
type Relation struct {
	Kind        Kind
	Field       string
	Target      Kind
	Cardinality Cardinality
	Inverse     string // field on Target holding the back-reference, or InverseNone
}

// Bidirectional reports whether the field has a declared inverse.
func (r Relation) Bidirectional() bool {
	return r.Inverse != InverseNone
}

// relations is the full relationship table, one row per (kind, field).
// Inverse names follow the convention of the stored documents: the mirrored
// field on the target kind is the plural of the source kind. Fields whose
// target kind carries no such back-field are one-directional.
var relations = []Relation{
	// Character
	{KindCharacter, "family", KindCharacter, CardinalityMany, "family"},
	{KindCharacter, "friends", KindCharacter, CardinalityMany, "friends"},
	{KindCharacter, "enemies", KindCharacter, CardinalityMany, "enemies"},
	{KindCharacter, "romance", KindCharacter, CardinalityMany, "romance"},
	{KindCharacter, "abilities", KindAbility, CardinalityMany, "characters"},
	{KindCharacter, "items", KindItem, CardinalityMany, InverseNone},
	{KindCharacter, "languages", KindLanguage, CardinalityMany, "characters"},
	{KindCharacter, "races", KindRace, CardinalityMany, "characters"},
	{KindCharacter, "factions", KindFaction, CardinalityMany, "characters"},
	{KindCharacter, "locations", KindLocation, CardinalityMany, "characters"},
	{KindCharacter, "powerSystems", KindPowerSystem, CardinalityMany, "characters"},
	{KindCharacter, "religions", KindReligion, CardinalityMany, "characters"},
	{KindCharacter, "creatures", KindCreature, CardinalityMany, "characters"},
	{KindCharacter, "economies", KindEconomy, CardinalityMany, "characters"},
	{KindCharacter, "stories", KindStory, CardinalityMany, "characters"},

	// Faction
	{KindFaction, "characters", KindCharacter, CardinalityMany, "factions"},
	{KindFaction, "allies", KindFaction, CardinalityMany, "allies"},
	{KindFaction, "enemies", KindFaction, CardinalityMany, "enemies"},
	{KindFaction, "headquarters", KindLocation, CardinalityMany, "factions"},
	{KindFaction, "territory", KindLocation, CardinalityMany, "factions"},
	{KindFaction, "events", KindEvent, CardinalityMany, "factions"},
	{KindFaction, "items", KindItem, CardinalityMany, "factions"},
	{KindFaction, "stories", KindStory, CardinalityMany, "factions"},
	{KindFaction, "religions", KindReligion, CardinalityMany, "factions"},
	{KindFaction, "languages", KindLanguage, CardinalityMany, "factions"},
	{KindFaction, "powerSystems", KindPowerSystem, CardinalityMany, "factions"},

	// Item
	{KindItem, "createdBy", KindCharacter, CardinalityOne, "items"},
	{KindItem, "usedBy", KindCharacter, CardinalityMany, "items"},
	{KindItem, "currentOwnerCharacter", KindCharacter, CardinalityOne, "items"},
	{KindItem, "factions", KindFaction, CardinalityMany, "items"},
	{KindItem, "events", KindEvent, CardinalityMany, "items"},
	{KindItem, "stories", KindStory, CardinalityMany, "items"},
	{KindItem, "locations", KindLocation, CardinalityMany, "items"},
	{KindItem, "religions", KindReligion, CardinalityMany, InverseNone},
	{KindItem, "powerSystems", KindPowerSystem, CardinalityMany, InverseNone},
	{KindItem, "languages", KindLanguage, CardinalityMany, InverseNone},
	{KindItem, "abilities", KindAbility, CardinalityMany, "items"},

	// Location
	{KindLocation, "locations", KindLocation, CardinalityMany, "locations"},
	{KindLocation, "factions", KindFaction, CardinalityMany, InverseNone},
	{KindLocation, "events", KindEvent, CardinalityMany, "locations"},
	{KindLocation, "characters", KindCharacter, CardinalityMany, "locations"},
	{KindLocation, "items", KindItem, CardinalityMany, "locations"},
	{KindLocation, "creatures", KindCreature, CardinalityMany, "locations"},
	{KindLocation, "stories", KindStory, CardinalityMany, "locations"},
	{KindLocation, "languages", KindLanguage, CardinalityMany, "locations"},
	{KindLocation, "religions", KindReligion, CardinalityMany, "locations"},

	// Event
	{KindEvent, "characters", KindCharacter, CardinalityMany, InverseNone},
	{KindEvent, "factions", KindFaction, CardinalityMany, "events"},
	{KindEvent, "locations", KindLocation, CardinalityMany, "events"},
	{KindEvent, "items", KindItem, CardinalityMany, "events"},
	{KindEvent, "abilities", KindAbility, CardinalityMany, "events"},
	{KindEvent, "stories", KindStory, CardinalityMany, "events"},
	{KindEvent, "powerSystems", KindPowerSystem, CardinalityMany, "events"},
	{KindEvent, "creatures", KindCreature, CardinalityMany, "events"},
	{KindEvent, "religions", KindReligion, CardinalityMany, "events"},

	// Ability
	{KindAbility, "characters", KindCharacter, CardinalityMany, "abilities"},
	{KindAbility, "powerSystems", KindPowerSystem, CardinalityMany, "abilities"},
	{KindAbility, "stories", KindStory, CardinalityMany, "abilities"},
	{KindAbility, "events", KindEvent, CardinalityMany, "abilities"},
	{KindAbility, "items", KindItem, CardinalityMany, "abilities"},
	{KindAbility, "technologies", KindTechnology, CardinalityMany, InverseNone},
	{KindAbility, "creatures", KindCreature, CardinalityMany, "abilities"},
	{KindAbility, "religions", KindReligion, CardinalityMany, InverseNone},
	{KindAbility, "races", KindRace, CardinalityMany, InverseNone},

	// PowerSystem
	{KindPowerSystem, "characters", KindCharacter, CardinalityMany, "powerSystems"},
	{KindPowerSystem, "abilities", KindAbility, CardinalityMany, "powerSystems"},
	{KindPowerSystem, "factions", KindFaction, CardinalityMany, "powerSystems"},
	{KindPowerSystem, "events", KindEvent, CardinalityMany, "powerSystems"},
	{KindPowerSystem, "stories", KindStory, CardinalityMany, "powerSystems"},
	{KindPowerSystem, "creatures", KindCreature, CardinalityMany, "powerSystems"},
	{KindPowerSystem, "religions", KindReligion, CardinalityMany, "powerSystems"},

	// Religion
	{KindReligion, "characters", KindCharacter, CardinalityMany, "religions"},
	{KindReligion, "factions", KindFaction, CardinalityMany, "religions"},
	{KindReligion, "locations", KindLocation, CardinalityMany, "religions"},
	{KindReligion, "creatures", KindCreature, CardinalityMany, "religions"},
	{KindReligion, "events", KindEvent, CardinalityMany, "religions"},
	{KindReligion, "powerSystems", KindPowerSystem, CardinalityMany, "religions"},
	{KindReligion, "stories", KindStory, CardinalityMany, "religions"},

	// Creature
	{KindCreature, "characters", KindCharacter, CardinalityMany, "creatures"},
	{KindCreature, "abilities", KindAbility, CardinalityMany, "creatures"},
	{KindCreature, "factions", KindFaction, CardinalityMany, InverseNone},
	{KindCreature, "events", KindEvent, CardinalityMany, "creatures"},
	{KindCreature, "stories", KindStory, CardinalityMany, "creatures"},
	{KindCreature, "locations", KindLocation, CardinalityMany, "creatures"},
	{KindCreature, "powerSystems", KindPowerSystem, CardinalityMany, "creatures"},
	{KindCreature, "religions", KindReligion, CardinalityMany, "creatures"},

	// Economy
	{KindEconomy, "characters", KindCharacter, CardinalityMany, "economies"},
	{KindEconomy, "factions", KindFaction, CardinalityMany, InverseNone},
	{KindEconomy, "locations", KindLocation, CardinalityMany, InverseNone},
	{KindEconomy, "items", KindItem, CardinalityMany, InverseNone},
	{KindEconomy, "races", KindRace, CardinalityMany, InverseNone},
	{KindEconomy, "stories", KindStory, CardinalityMany, "economies"},

	// Story
	{KindStory, "characters", KindCharacter, CardinalityMany, "stories"},
	{KindStory, "locations", KindLocation, CardinalityMany, "stories"},
	{KindStory, "items", KindItem, CardinalityMany, "stories"},
	{KindStory, "events", KindEvent, CardinalityMany, "stories"},
	{KindStory, "factions", KindFaction, CardinalityMany, "stories"},
	{KindStory, "abilities", KindAbility, CardinalityMany, "stories"},
	{KindStory, "powerSystems", KindPowerSystem, CardinalityMany, "stories"},
	{KindStory, "creatures", KindCreature, CardinalityMany, "stories"},
	{KindStory, "religions", KindReligion, CardinalityMany, "stories"},
	{KindStory, "technologies", KindTechnology, CardinalityMany, "stories"},
	{KindStory, "races", KindRace, CardinalityMany, "stories"},
	{KindStory, "economies", KindEconomy, CardinalityMany, "stories"},

	// Race
	{KindRace, "languages", KindLanguage, CardinalityMany, "races"},
	{KindRace, "characters", KindCharacter, CardinalityMany, "races"},
	{KindRace, "locations", KindLocation, CardinalityMany, InverseNone},
	{KindRace, "religions", KindReligion, CardinalityMany, InverseNone},
	{KindRace, "stories", KindStory, CardinalityMany, "races"},
	{KindRace, "events", KindEvent, CardinalityMany, InverseNone},
	{KindRace, "powerSystems", KindPowerSystem, CardinalityMany, InverseNone},

	// Language
	{KindLanguage, "races", KindRace, CardinalityMany, "languages"},
	{KindLanguage, "factions", KindFaction, CardinalityMany, "languages"},
	{KindLanguage, "characters", KindCharacter, CardinalityMany, "languages"},
	{KindLanguage, "locations", KindLocation, CardinalityMany, "languages"},
	{KindLanguage, "stories", KindStory, CardinalityMany, InverseNone},
	{KindLanguage, "religions", KindReligion, CardinalityMany, InverseNone},

	// Technology
	{KindTechnology, "creators", KindCharacter, CardinalityMany, InverseNone},
	{KindTechnology, "characters", KindCharacter, CardinalityMany, InverseNone},
	{KindTechnology, "factions", KindFaction, CardinalityMany, InverseNone},
	{KindTechnology, "items", KindItem, CardinalityMany, InverseNone},
	{KindTechnology, "events", KindEvent, CardinalityMany, InverseNone},
	{KindTechnology, "stories", KindStory, CardinalityMany, "technologies"},
	{KindTechnology, "locations", KindLocation, CardinalityMany, InverseNone},
	{KindTechnology, "powerSystems", KindPowerSystem, CardinalityMany, InverseNone},
}

// Schema is the validated relationship table with lookup indexes. It is
// built once and never mutated; every component reads the same instance.
type Schema struct {
	byKind  map[Kind][]Relation
	byField map[Kind]map[string]Relation
	inbound map[Kind][]Relation
}

var defaultSchema = mustBuildSchema(relations)

// DefaultSchema returns the process-wide relationship schema.
func DefaultSchema() *Schema {
	return defaultSchema
}

func mustBuildSchema(rows []Relation) *Schema {
	s, err := buildSchema(rows)
	if err != nil {
		panic(err)
	}
	return s
}

func buildSchema(rows []Relation) (*Schema, error) {
	s := &Schema{
		byKind:  make(map[Kind][]Relation),
		byField: make(map[Kind]map[string]Relation),
		inbound: make(map[Kind][]Relation),
	}

	for _, row := range rows {
		if !ValidKind(row.Kind) {
			return nil, fmt.Errorf("schema row %s.%s: unknown kind %q", row.Kind, row.Field, row.Kind)
		}
		if !ValidKind(row.Target) {
			return nil, fmt.Errorf("schema row %s.%s: unknown target kind %q", row.Kind, row.Field, row.Target)
		}
		if row.Field == "" {
			return nil, fmt.Errorf("schema row on kind %s: empty field name", row.Kind)
		}
		if row.Cardinality != CardinalityOne && row.Cardinality != CardinalityMany {
			return nil, fmt.Errorf("schema row %s.%s: invalid cardinality %q", row.Kind, row.Field, row.Cardinality)
		}
		fields, ok := s.byField[row.Kind]
		if !ok {
			fields = make(map[string]Relation)
			s.byField[row.Kind] = fields
		}
		if _, dup := fields[row.Field]; dup {
			return nil, fmt.Errorf("schema row %s.%s: duplicate declaration", row.Kind, row.Field)
		}
		fields[row.Field] = row
		s.byKind[row.Kind] = append(s.byKind[row.Kind], row)
		s.inbound[row.Target] = append(s.inbound[row.Target], row)
	}

	// Every declared inverse must exist on the target kind and point back.
	for _, row := range rows {
		if row.Inverse == InverseNone {
			continue
		}
		inv, ok := s.byField[row.Target][row.Inverse]
		if !ok {
			return nil, fmt.Errorf("schema row %s.%s: inverse field %s.%s is not declared",
				row.Kind, row.Field, row.Target, row.Inverse)
		}
		if inv.Target != row.Kind {
			return nil, fmt.Errorf("schema row %s.%s: inverse field %s.%s targets %s, want %s",
				row.Kind, row.Field, row.Target, row.Inverse, inv.Target, row.Kind)
		}
	}

	return s, nil
}

// FieldsOf returns every relationship field declared on the kind.
func (s *Schema) FieldsOf(k Kind) []Relation {
	return s.byKind[k]
}

// Relation looks up the schema row for a field on a kind.
func (s *Schema) Relation(k Kind, field string) (Relation, bool) {
	row, ok := s.byField[k][field]
	return row, ok
}

// Inbound returns every schema row whose target is the given kind: the
// complete set of (source kind, field) pairs that may hold a reference to an
// entity of that kind. Each pair appears exactly once, including fields on
// the kind itself.
func (s *Schema) Inbound(k Kind) []Relation {
	return s.inbound[k]
}

// HasKind reports whether the schema declares any relationship fields for
// the kind. All fourteen kinds carry at least one field, so this doubles as
// a kind existence check for resolution.
func (s *Schema) HasKind(k Kind) bool {
	return len(s.byKind[k]) > 0
}
