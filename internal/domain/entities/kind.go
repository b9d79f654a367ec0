package entities

// Kind identifies one of the entity document types. Each kind is stored in
// its own collection; the relationship schema is keyed by kind.
type Kind string

const (
	KindCharacter   Kind = "character"
	KindFaction     Kind = "faction"
	KindItem        Kind = "item"
	KindLocation    Kind = "location"
	KindEvent       Kind = "event"
	KindAbility     Kind = "ability"
	KindPowerSystem Kind = "power_system"
	KindReligion    Kind = "religion"
	KindCreature    Kind = "creature"
	KindEconomy     Kind = "economy"
	KindStory       Kind = "story"
	KindRace        Kind = "race"
	KindLanguage    Kind = "language"
	KindTechnology  Kind = "technology"
)

// allKinds lists every known kind in display order.
var allKinds = []Kind{
	KindCharacter,
	KindFaction,
	KindItem,
	KindLocation,
	KindEvent,
	KindAbility,
	KindPowerSystem,
	KindReligion,
	KindCreature,
	KindEconomy,
	KindStory,
	KindRace,
	KindLanguage,
	KindTechnology,
}

// Kinds returns every known entity kind.
func Kinds() []Kind {
	result := make([]Kind, len(allKinds))
	copy(result, allKinds)
	return result
}

// ParseKind converts a string to a Kind. The second return value reports
// whether the string named a known kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	for _, known := range allKinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// ValidKind reports whether k is a known entity kind.
func ValidKind(k Kind) bool {
	_, ok := ParseKind(string(k))
	return ok
}
