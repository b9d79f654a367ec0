package entities

import "time"

// AuditEntry represents a logged action in the system. The engine records
// every implicitly created entity and every cascade cleanup here so the
// side-effecting paths stay auditable.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	EntityID  string         `json:"entity_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
