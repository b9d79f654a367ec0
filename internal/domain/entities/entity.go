package entities

import (
	"strings"
	"time"
)

// Entity is one document in a kind's collection. Scalar fields specific to
// the kind live in Attrs; relationship fields live in Refs as lists of peer
// identifiers. Single-cardinality relationship fields are stored as a
// zero-or-one element list so delta computation is uniform.
type Entity struct {
	ID             string              `json:"id"`
	Kind           Kind                `json:"kind"`
	WorldID        string              `json:"world_id"`
	OwnerID        string              `json:"owner_id"`
	Name           string              `json:"name"`
	NormalizedName string              `json:"normalized_name"` // lowercase, for matching
	Attrs          map[string]any      `json:"attrs,omitempty"`
	Refs           map[string][]string `json:"refs,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// NormalizeName converts a name to lowercase for case-insensitive matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RefState is a snapshot of an entity's relationship-field values, keyed by
// field name. A nil RefState is the state of an entity that does not exist
// yet (or, on delete, no longer exists).
type RefState map[string][]string

// RefState returns a deep copy of the entity's relationship fields.
func (e *Entity) RefState() RefState {
	if e == nil || e.Refs == nil {
		return nil
	}
	state := make(RefState, len(e.Refs))
	for field, ids := range e.Refs {
		state[field] = append([]string(nil), ids...)
	}
	return state
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Attrs != nil {
		clone.Attrs = make(map[string]any, len(e.Attrs))
		for k, v := range e.Attrs {
			clone.Attrs[k] = v
		}
	}
	if e.Refs != nil {
		clone.Refs = make(map[string][]string, len(e.Refs))
		for field, ids := range e.Refs {
			clone.Refs[field] = append([]string(nil), ids...)
		}
	}
	return &clone
}
