// Package sqlite provides a SQLite implementation of the DocumentStore
// interface. Each entity kind gets its own table; the kind-specific
// attributes and the relationship fields are stored as one JSON document
// per row so the schema never changes when a kind grows a field.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/newworld-app/worldcore/internal/domain/entities"
	"github.com/newworld-app/worldcore/internal/infrastructure/config"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// reFieldName matches valid relationship field names. Field names come from
// the relationship schema, never from user input, but the JSON path is
// interpolated into SQL so they are checked anyway.
var reFieldName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*$`)

// docPayload is the JSON document stored per entity row.
type docPayload struct {
	Attrs map[string]any      `json:"attrs,omitempty"`
	Refs  map[string][]string `json:"refs,omitempty"`
}

// Repository implements ports.DocumentStore using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// tableName returns the table for a kind. It fails on unknown kinds so a
// kind string never reaches SQL unvalidated.
func tableName(kind entities.Kind) (string, error) {
	if !entities.ValidKind(kind) {
		return "", fmt.Errorf("unknown entity kind: %q", kind)
	}
	return "entity_" + string(kind), nil
}

// refPath returns the JSON path of a relationship field inside the stored
// document.
func refPath(field string) (string, error) {
	if !reFieldName.MatchString(field) {
		return "", fmt.Errorf("invalid relationship field name: %q", field)
	}
	return "$.refs." + field, nil
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Worlds (scoping boundary for name resolution)
	CREATE TABLE IF NOT EXISTS worlds (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		normalized_name TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(owner_id, normalized_name)
	);
	CREATE INDEX IF NOT EXISTS idx_worlds_owner ON worlds(owner_id);

	-- Audit log (implicit creations and cascade cleanups)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		entity_id TEXT,
		details TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_id);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	// One table per kind, all identical in shape.
	for _, kind := range entities.Kinds() {
		table, err := tableName(kind)
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			normalized_name TEXT NOT NULL,
			doc TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(world_id, normalized_name)
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_world ON %[1]s(world_id);
		`, table)
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating %s table: %w", table, err)
		}
	}
	return nil
}

// Insert persists a new entity document.
func (r *Repository) Insert(ctx context.Context, e *entities.Entity) error {
	table, err := tableName(e.Kind)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(docPayload{Attrs: e.Attrs, Refs: e.Refs})
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, world_id, owner_id, name, normalized_name, doc, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, table),
		e.ID, e.WorldID, e.OwnerID, e.Name, e.NormalizedName, string(doc),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting %s: %w", e.Kind, err)
	}
	return nil
}

// FindByID returns the entity with the given id, or nil if absent.
func (r *Repository) FindByID(ctx context.Context, kind entities.Kind, id string) (*entities.Entity, error) {
	table, err := tableName(kind)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, world_id, owner_id, name, normalized_name, doc, created_at, updated_at
			FROM %s WHERE id = ?`, table), id)
	return scanEntity(row, kind)
}

// FindByNameInWorld returns the entity matching the normalized name within
// the world, or nil if absent.
func (r *Repository) FindByNameInWorld(ctx context.Context, kind entities.Kind, worldID, name string) (*entities.Entity, error) {
	table, err := tableName(kind)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, world_id, owner_id, name, normalized_name, doc, created_at, updated_at
			FROM %s WHERE world_id = ? AND normalized_name = ?`, table),
		worldID, entities.NormalizeName(name))
	return scanEntity(row, kind)
}

// Update rewrites an existing entity document.
func (r *Repository) Update(ctx context.Context, e *entities.Entity) error {
	table, err := tableName(e.Kind)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(docPayload{Attrs: e.Attrs, Refs: e.Refs})
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET name = ?, normalized_name = ?, doc = ?, updated_at = ? WHERE id = ?`, table),
		e.Name, e.NormalizedName, string(doc), formatTime(e.UpdatedAt), e.ID)
	if err != nil {
		return fmt.Errorf("updating %s: %w", e.Kind, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("entity not found: %s %s", e.Kind, e.ID)
	}
	return nil
}

// List returns entities of a kind in a world, ordered by name.
func (r *Repository) List(ctx context.Context, kind entities.Kind, worldID string, limit, offset int) ([]*entities.Entity, error) {
	table, err := tableName(kind)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, world_id, owner_id, name, normalized_name, doc, created_at, updated_at
			FROM %s WHERE world_id = ? ORDER BY name LIMIT ? OFFSET ?`, table),
		worldID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}
	defer rows.Close()

	var result []*entities.Entity
	for rows.Next() {
		e, err := scanEntity(rows, kind)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Count returns the number of entities of a kind in a world.
func (r *Repository) Count(ctx context.Context, kind entities.Kind, worldID string) (int, error) {
	table, err := tableName(kind)
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE world_id = ?`, table), worldID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", kind, err)
	}
	return n, nil
}

// AddRef adds ref to the named list field on each listed document with
// set-union semantics. A listed document that does not exist is an error.
func (r *Repository) AddRef(ctx context.Context, kind entities.Kind, ids []string, field, ref string) error {
	return r.mutateRefs(ctx, kind, ids, field, func(refs []string) ([]string, bool) {
		for _, existing := range refs {
			if existing == ref {
				return refs, false
			}
		}
		return append(refs, ref), true
	})
}

// RemoveRef removes ref from the named list field on each listed document.
func (r *Repository) RemoveRef(ctx context.Context, kind entities.Kind, ids []string, field, ref string) error {
	return r.mutateRefs(ctx, kind, ids, field, func(refs []string) ([]string, bool) {
		kept := refs[:0]
		for _, existing := range refs {
			if existing != ref {
				kept = append(kept, existing)
			}
		}
		return kept, len(kept) != len(refs)
	})
}

// mutateRefs rewrites one relationship field on each listed document inside
// a single transaction. The rewrite function returns the new list and
// whether anything changed.
func (r *Repository) mutateRefs(ctx context.Context, kind entities.Kind, ids []string, field string, rewrite func([]string) ([]string, bool)) error {
	if len(ids) == 0 {
		return nil
	}
	table, err := tableName(kind)
	if err != nil {
		return err
	}
	if _, err := refPath(field); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	selectStmt := fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, table)
	updateStmt := fmt.Sprintf(`UPDATE %s SET doc = ?, updated_at = ? WHERE id = ?`, table)

	for _, id := range ids {
		var raw string
		err := tx.QueryRowContext(ctx, selectStmt, id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("entity not found: %s %s", kind, id)
		}
		if err != nil {
			return fmt.Errorf("reading %s document: %w", kind, err)
		}

		var payload docPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return fmt.Errorf("decoding %s document: %w", kind, err)
		}

		updated, changed := rewrite(payload.Refs[field])
		if !changed {
			continue
		}
		if payload.Refs == nil {
			payload.Refs = make(map[string][]string)
		}
		payload.Refs[field] = updated

		doc, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s document: %w", kind, err)
		}
		if _, err := tx.ExecContext(ctx, updateStmt, string(doc), formatTime(timeNow()), id); err != nil {
			return fmt.Errorf("updating %s document: %w", kind, err)
		}
	}
	return tx.Commit()
}

// PullRef removes ref from the named field across every document of the
// kind, returning the number of documents changed.
func (r *Repository) PullRef(ctx context.Context, kind entities.Kind, field, ref string) (int, error) {
	table, err := tableName(kind)
	if err != nil {
		return 0, err
	}
	path, err := refPath(field)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Only documents whose field actually holds the id.
	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, doc FROM %s WHERE EXISTS (
			SELECT 1 FROM json_each(doc, '%s') WHERE json_each.value = ?)`, table, path), ref)
	if err != nil {
		return 0, fmt.Errorf("finding referencing %s documents: %w", kind, err)
	}

	type pending struct {
		id  string
		raw string
	}
	var matches []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.raw); err != nil {
			rows.Close()
			return 0, err
		}
		matches = append(matches, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	updateStmt := fmt.Sprintf(`UPDATE %s SET doc = ?, updated_at = ? WHERE id = ?`, table)
	changed := 0
	for _, p := range matches {
		var payload docPayload
		if err := json.Unmarshal([]byte(p.raw), &payload); err != nil {
			return 0, fmt.Errorf("decoding %s document: %w", kind, err)
		}
		kept := payload.Refs[field][:0]
		for _, existing := range payload.Refs[field] {
			if existing != ref {
				kept = append(kept, existing)
			}
		}
		payload.Refs[field] = kept

		doc, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("encoding %s document: %w", kind, err)
		}
		if _, err := tx.ExecContext(ctx, updateStmt, string(doc), formatTime(timeNow()), p.id); err != nil {
			return 0, fmt.Errorf("updating %s document: %w", kind, err)
		}
		changed++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return changed, nil
}

// Delete removes an entity document by id.
func (r *Repository) Delete(ctx context.Context, kind entities.Kind, id string) error {
	table, err := tableName(kind)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", kind, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("entity not found: %s %s", kind, id)
	}
	return nil
}

// DeleteByWorld removes every document of a kind in a world.
func (r *Repository) DeleteByWorld(ctx context.Context, kind entities.Kind, worldID string) (int, error) {
	table, err := tableName(kind)
	if err != nil {
		return 0, err
	}
	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE world_id = ?`, table), worldID)
	if err != nil {
		return 0, fmt.Errorf("deleting %s by world: %w", kind, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// InsertWorld persists a new world.
func (r *Repository) InsertWorld(ctx context.Context, w *entities.World) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO worlds (id, owner_id, name, normalized_name, description, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.OwnerID, w.Name, w.NormalizedName, w.Description, formatTime(w.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting world: %w", err)
	}
	return nil
}

// FindWorldByID returns the world with the given id, or nil if absent.
func (r *Repository) FindWorldByID(ctx context.Context, id string) (*entities.World, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, normalized_name, description, created_at FROM worlds WHERE id = ?`, id)
	return scanWorld(row)
}

// FindWorldByName returns the owner's world with the given name, or nil if
// absent.
func (r *Repository) FindWorldByName(ctx context.Context, ownerID, name string) (*entities.World, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, normalized_name, description, created_at
			FROM worlds WHERE owner_id = ? AND normalized_name = ?`,
		ownerID, entities.NormalizeName(name))
	return scanWorld(row)
}

// ListWorlds returns all worlds of an owner, ordered by name.
func (r *Repository) ListWorlds(ctx context.Context, ownerID string) ([]*entities.World, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, normalized_name, description, created_at
			FROM worlds WHERE owner_id = ? ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing worlds: %w", err)
	}
	defer rows.Close()

	var result []*entities.World
	for rows.Next() {
		w, err := scanWorld(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// DeleteWorld removes a world record by id.
func (r *Repository) DeleteWorld(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM worlds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting world: %w", err)
	}
	return nil
}

// LogAction appends an audit entry.
func (r *Repository) LogAction(ctx context.Context, action, entityID string, details map[string]any) error {
	var detailsJSON sql.NullString
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encoding audit details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (action, entity_id, details, created_at) VALUES (?, ?, ?, ?)`,
		action, entityID, detailsJSON, formatTime(timeNow()))
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// FindAuditLog returns audit entries for an entity, newest first.
func (r *Repository) FindAuditLog(ctx context.Context, entityID string) ([]entities.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, action, entity_id, details, created_at
			FROM audit_log WHERE entity_id = ? ORDER BY id DESC`, entityID)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var result []entities.AuditEntry
	for rows.Next() {
		var (
			entry       entities.AuditEntry
			detailsJSON sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.EntityID, &detailsJSON, &createdAt); err != nil {
			return nil, err
		}
		if detailsJSON.Valid {
			if err := json.Unmarshal([]byte(detailsJSON.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("decoding audit details: %w", err)
			}
		}
		entry.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner, kind entities.Kind) (*entities.Entity, error) {
	var (
		e                    entities.Entity
		raw                  string
		createdAt, updatedAt string
	)
	err := row.Scan(&e.ID, &e.WorldID, &e.OwnerID, &e.Name, &e.NormalizedName, &raw, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning %s row: %w", kind, err)
	}

	var payload docPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decoding %s document: %w", kind, err)
	}
	e.Kind = kind
	e.Attrs = payload.Attrs
	e.Refs = payload.Refs
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanWorld(row scanner) (*entities.World, error) {
	var (
		w           entities.World
		description sql.NullString
		createdAt   string
	)
	err := row.Scan(&w.ID, &w.OwnerID, &w.Name, &w.NormalizedName, &description, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning world row: %w", err)
	}
	w.Description = description.String
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored timestamp: %w", err)
	}
	return t, nil
}
