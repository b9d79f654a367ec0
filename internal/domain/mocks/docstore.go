// Package mocks provides in-memory implementations of the domain ports for
// tests.
package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/newworld-app/worldcore/internal/domain/entities"
)

// DocumentStore is a mock implementation of ports.DocumentStore backed by
// maps. Err, when set, is returned by every method. RefErr, when set, is
// consulted by AddRef/RemoveRef/PullRef so tests can fail selected
// reference updates.
type DocumentStore struct {
	mu     sync.Mutex
	Docs   map[entities.Kind]map[string]*entities.Entity
	Worlds map[string]*entities.World
	Audit  []entities.AuditEntry
	Calls  []string

	Err    error
	RefErr func(kind entities.Kind, id, field string) error
}

// NewDocumentStore creates an empty mock store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		Docs:   make(map[entities.Kind]map[string]*entities.Entity),
		Worlds: make(map[string]*entities.World),
	}
}

func (m *DocumentStore) record(call string) {
	m.Calls = append(m.Calls, call)
}

// WriteCalls returns how many mutating entity calls were recorded.
func (m *DocumentStore) WriteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		switch c {
		case "Insert", "Update", "AddRef", "RemoveRef", "PullRef", "Delete":
			n++
		}
	}
	return n
}

// Seed inserts an entity directly, bypassing error injection.
func (m *DocumentStore) Seed(e *entities.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(e)
}

func (m *DocumentStore) put(e *entities.Entity) {
	kindDocs, ok := m.Docs[e.Kind]
	if !ok {
		kindDocs = make(map[string]*entities.Entity)
		m.Docs[e.Kind] = kindDocs
	}
	kindDocs[e.ID] = e.Clone()
}

// Get returns a copy of a stored entity, or nil.
func (m *DocumentStore) Get(kind entities.Kind, id string) *entities.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Docs[kind][id].Clone()
}

// EnsureSchema creates the storage layout if it doesn't exist.
func (m *DocumentStore) EnsureSchema(_ context.Context) error { return m.Err }

// Close closes the store.
func (m *DocumentStore) Close() error { return nil }

// Insert persists a new entity document.
func (m *DocumentStore) Insert(_ context.Context, e *entities.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Insert")
	if m.Err != nil {
		return m.Err
	}
	if m.Docs[e.Kind][e.ID] != nil {
		return fmt.Errorf("duplicate id: %s", e.ID)
	}
	for _, doc := range m.Docs[e.Kind] {
		if doc.WorldID == e.WorldID && doc.NormalizedName == e.NormalizedName {
			return fmt.Errorf("duplicate name %q in world %s", e.Name, e.WorldID)
		}
	}
	m.put(e)
	return nil
}

// FindByID returns the entity with the given id, or nil.
func (m *DocumentStore) FindByID(_ context.Context, kind entities.Kind, id string) (*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("FindByID")
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Docs[kind][id].Clone(), nil
}

// FindByNameInWorld returns the entity matching the normalized name, or nil.
func (m *DocumentStore) FindByNameInWorld(_ context.Context, kind entities.Kind, worldID, name string) (*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("FindByNameInWorld")
	if m.Err != nil {
		return nil, m.Err
	}
	normalized := entities.NormalizeName(name)
	for _, doc := range m.Docs[kind] {
		if doc.WorldID == worldID && doc.NormalizedName == normalized {
			return doc.Clone(), nil
		}
	}
	return nil, nil
}

// Update rewrites an existing entity document.
func (m *DocumentStore) Update(_ context.Context, e *entities.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Update")
	if m.Err != nil {
		return m.Err
	}
	if m.Docs[e.Kind][e.ID] == nil {
		return fmt.Errorf("entity not found: %s", e.ID)
	}
	m.put(e)
	return nil
}

// List returns entities of a kind in a world, ordered by name.
func (m *DocumentStore) List(_ context.Context, kind entities.Kind, worldID string, limit, offset int) ([]*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("List")
	if m.Err != nil {
		return nil, m.Err
	}
	var result []*entities.Entity
	for _, doc := range m.Docs[kind] {
		if doc.WorldID == worldID {
			result = append(result, doc.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	if offset > len(result) {
		offset = len(result)
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// Count returns the number of entities of a kind in a world.
func (m *DocumentStore) Count(_ context.Context, kind entities.Kind, worldID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Count")
	if m.Err != nil {
		return 0, m.Err
	}
	n := 0
	for _, doc := range m.Docs[kind] {
		if doc.WorldID == worldID {
			n++
		}
	}
	return n, nil
}

// AddRef adds ref to the named list field on each listed document.
func (m *DocumentStore) AddRef(_ context.Context, kind entities.Kind, ids []string, field, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("AddRef")
	if m.Err != nil {
		return m.Err
	}
	for _, id := range ids {
		if m.RefErr != nil {
			if err := m.RefErr(kind, id, field); err != nil {
				return err
			}
		}
		doc := m.Docs[kind][id]
		if doc == nil {
			return fmt.Errorf("peer not found: %s %s", kind, id)
		}
		if doc.Refs == nil {
			doc.Refs = make(map[string][]string)
		}
		present := false
		for _, existing := range doc.Refs[field] {
			if existing == ref {
				present = true
				break
			}
		}
		if !present {
			doc.Refs[field] = append(doc.Refs[field], ref)
		}
	}
	return nil
}

// RemoveRef removes ref from the named list field on each listed document.
func (m *DocumentStore) RemoveRef(_ context.Context, kind entities.Kind, ids []string, field, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("RemoveRef")
	if m.Err != nil {
		return m.Err
	}
	for _, id := range ids {
		if m.RefErr != nil {
			if err := m.RefErr(kind, id, field); err != nil {
				return err
			}
		}
		doc := m.Docs[kind][id]
		if doc == nil {
			return fmt.Errorf("peer not found: %s %s", kind, id)
		}
		if doc.Refs != nil {
			doc.Refs[field] = remove(doc.Refs[field], ref)
		}
	}
	return nil
}

// PullRef removes ref from the named field across every document of the
// kind.
func (m *DocumentStore) PullRef(_ context.Context, kind entities.Kind, field, ref string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("PullRef")
	if m.Err != nil {
		return 0, m.Err
	}
	if m.RefErr != nil {
		if err := m.RefErr(kind, "", field); err != nil {
			return 0, err
		}
	}
	changed := 0
	for _, doc := range m.Docs[kind] {
		before := len(doc.Refs[field])
		if before == 0 {
			continue
		}
		doc.Refs[field] = remove(doc.Refs[field], ref)
		if len(doc.Refs[field]) != before {
			changed++
		}
	}
	return changed, nil
}

// Delete removes an entity document by id.
func (m *DocumentStore) Delete(_ context.Context, kind entities.Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Delete")
	if m.Err != nil {
		return m.Err
	}
	if m.Docs[kind][id] == nil {
		return fmt.Errorf("entity not found: %s", id)
	}
	delete(m.Docs[kind], id)
	return nil
}

// DeleteByWorld removes every document of a kind in a world.
func (m *DocumentStore) DeleteByWorld(_ context.Context, kind entities.Kind, worldID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeleteByWorld")
	if m.Err != nil {
		return 0, m.Err
	}
	removed := 0
	for id, doc := range m.Docs[kind] {
		if doc.WorldID == worldID {
			delete(m.Docs[kind], id)
			removed++
		}
	}
	return removed, nil
}

// InsertWorld persists a new world.
func (m *DocumentStore) InsertWorld(_ context.Context, w *entities.World) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("InsertWorld")
	if m.Err != nil {
		return m.Err
	}
	copied := *w
	m.Worlds[w.ID] = &copied
	return nil
}

// FindWorldByID returns the world with the given id, or nil.
func (m *DocumentStore) FindWorldByID(_ context.Context, id string) (*entities.World, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	w, ok := m.Worlds[id]
	if !ok {
		return nil, nil
	}
	copied := *w
	return &copied, nil
}

// FindWorldByName returns the owner's world with the given name, or nil.
func (m *DocumentStore) FindWorldByName(_ context.Context, ownerID, name string) (*entities.World, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	normalized := entities.NormalizeName(name)
	for _, w := range m.Worlds {
		if w.OwnerID == ownerID && w.NormalizedName == normalized {
			copied := *w
			return &copied, nil
		}
	}
	return nil, nil
}

// ListWorlds returns all worlds of an owner, ordered by name.
func (m *DocumentStore) ListWorlds(_ context.Context, ownerID string) ([]*entities.World, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []*entities.World
	for _, w := range m.Worlds {
		if w.OwnerID == ownerID {
			copied := *w
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// DeleteWorld removes a world record by id.
func (m *DocumentStore) DeleteWorld(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.Worlds, id)
	return nil
}

// LogAction appends an audit entry.
func (m *DocumentStore) LogAction(_ context.Context, action, entityID string, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Audit = append(m.Audit, entities.AuditEntry{
		ID:        int64(len(m.Audit) + 1),
		Action:    action,
		EntityID:  entityID,
		Details:   details,
		CreatedAt: time.Now(),
	})
	return nil
}

// FindAuditLog returns audit entries for an entity, newest first.
func (m *DocumentStore) FindAuditLog(_ context.Context, entityID string) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.AuditEntry
	for i := len(m.Audit) - 1; i >= 0; i-- {
		if m.Audit[i].EntityID == entityID {
			result = append(result, m.Audit[i])
		}
	}
	return result, nil
}

func remove(ids []string, ref string) []string {
	result := ids[:0]
	for _, id := range ids {
		if id != ref {
			result = append(result, id)
		}
	}
	return result
}
