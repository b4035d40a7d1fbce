package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/openscioly/results-api/models"
)

type EventRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, event *models.Event) error
	ListData(ctx context.Context, exec SQLExecutor, canonicalID string) ([]json.RawMessage, error)
	DeleteByResult(ctx context.Context, exec SQLExecutor, canonicalID string) error
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresEventRepository) Upsert(ctx context.Context, exec SQLExecutor, event *models.Event) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO events (result_canonical_id, name, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (result_canonical_id, name) DO UPDATE SET data = EXCLUDED.data`
	_, err := executor.ExecContext(ctx, query, event.ResultCanonicalID, event.Name, []byte(event.Data))
	if err != nil {
		return fmt.Errorf("failed to upsert event %s/%s: %w", event.ResultCanonicalID, event.Name, err)
	}
	return nil
}

func (r *postgresEventRepository) ListData(ctx context.Context, exec SQLExecutor, canonicalID string) ([]json.RawMessage, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx,
		`SELECT data FROM events WHERE result_canonical_id = $1 ORDER BY name ASC`, canonicalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectData(rows)
}

func (r *postgresEventRepository) DeleteByResult(ctx context.Context, exec SQLExecutor, canonicalID string) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM events WHERE result_canonical_id = $1`, canonicalID)
	return err
}

// collectData drains a single-column data cursor into raw JSON payloads.
func collectData(rows *sql.Rows) ([]json.RawMessage, error) {
	data := make([]json.RawMessage, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		data = append(data, json.RawMessage(raw))
	}
	return data, rows.Err()
}
