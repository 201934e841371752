package action

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TemplateRepository is the compact local tier of template persistence.
// Templates are stored as opaque JSON blobs keyed by id so schema
// evolution happens in one place (the Template type), not in SQL.
type TemplateRepository interface {
	Upsert(ctx context.Context, id string, payload []byte) error
	Delete(ctx context.Context, id string) error
	LoadAll(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}

// SQLiteTemplateRepository implements TemplateRepository using SQLite.
type SQLiteTemplateRepository struct {
	db *sql.DB
}

// NewSQLiteTemplateRepository creates a new SQLite-backed template repository.
func NewSQLiteTemplateRepository(db *sql.DB) *SQLiteTemplateRepository {
	return &SQLiteTemplateRepository{db: db}
}

// Upsert writes a template payload, replacing any existing row.
func (r *SQLiteTemplateRepository) Upsert(ctx context.Context, id string, payload []byte) error {
	query := `
		INSERT INTO action_templates (id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query, id, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting template: %w", err)
	}
	return nil
}

// Delete removes a template row. Deleting an absent id is not an error;
// the in-memory store is authoritative for existence checks.
func (r *SQLiteTemplateRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM action_templates WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	return nil
}

// LoadAll returns every stored payload keyed by id.
func (r *SQLiteTemplateRepository) LoadAll(ctx context.Context) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, payload FROM action_templates")
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		out[id] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating templates: %w", err)
	}
	return out, nil
}

// Clear drops every stored template. Used when promoting a removable
// tier so stale blob rows cannot shadow removed templates.
func (r *SQLiteTemplateRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM action_templates"); err != nil {
		return fmt.Errorf("clearing templates: %w", err)
	}
	return nil
}
