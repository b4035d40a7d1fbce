package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/openscioly/results-api/models"
)

type TrackRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, track *models.Track) error
	ListData(ctx context.Context, exec SQLExecutor, canonicalID string) ([]json.RawMessage, error)
	DeleteByResult(ctx context.Context, exec SQLExecutor, canonicalID string) error
}

type postgresTrackRepository struct {
	db *sql.DB
}

func NewPostgresTrackRepository(db *sql.DB) TrackRepository {
	return &postgresTrackRepository{db: db}
}

func (r *postgresTrackRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTrackRepository) Upsert(ctx context.Context, exec SQLExecutor, track *models.Track) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tracks (result_canonical_id, name, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (result_canonical_id, name) DO UPDATE SET data = EXCLUDED.data`
	_, err := executor.ExecContext(ctx, query, track.ResultCanonicalID, track.Name, []byte(track.Data))
	if err != nil {
		return fmt.Errorf("failed to upsert track %s/%s: %w", track.ResultCanonicalID, track.Name, err)
	}
	return nil
}

func (r *postgresTrackRepository) ListData(ctx context.Context, exec SQLExecutor, canonicalID string) ([]json.RawMessage, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx,
		`SELECT data FROM tracks WHERE result_canonical_id = $1 ORDER BY name ASC`, canonicalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectData(rows)
}

func (r *postgresTrackRepository) DeleteByResult(ctx context.Context, exec SQLExecutor, canonicalID string) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM tracks WHERE result_canonical_id = $1`, canonicalID)
	return err
}
