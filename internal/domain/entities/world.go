package entities

import "time"

// World is the scoping container for name-based entity resolution. Two
// entities of the same kind may share a name across worlds but not within
// one.
type World struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
