package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/openscioly/results-api/models"
)

type PlacingRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, placing *models.Placing) error
	ListData(ctx context.Context, exec SQLExecutor, canonicalID string) ([]json.RawMessage, error)
	DeleteByResult(ctx context.Context, exec SQLExecutor, canonicalID string) error
}

type postgresPlacingRepository struct {
	db *sql.DB
}

func NewPostgresPlacingRepository(db *sql.DB) PlacingRepository {
	return &postgresPlacingRepository{db: db}
}

func (r *postgresPlacingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPlacingRepository) Upsert(ctx context.Context, exec SQLExecutor, placing *models.Placing) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO placings (result_canonical_id, event_name, team_number, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (result_canonical_id, event_name, team_number) DO UPDATE SET data = EXCLUDED.data`
	_, err := executor.ExecContext(ctx, query,
		placing.ResultCanonicalID, placing.EventName, placing.TeamNumber, []byte(placing.Data))
	if err != nil {
		return fmt.Errorf("failed to upsert placing %s/%s/%d: %w",
			placing.ResultCanonicalID, placing.EventName, placing.TeamNumber, err)
	}
	return nil
}

func (r *postgresPlacingRepository) ListData(ctx context.Context, exec SQLExecutor, canonicalID string) ([]json.RawMessage, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, `
		SELECT data FROM placings
		WHERE result_canonical_id = $1
		ORDER BY team_number ASC, event_name ASC`, canonicalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectData(rows)
}

func (r *postgresPlacingRepository) DeleteByResult(ctx context.Context, exec SQLExecutor, canonicalID string) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM placings WHERE result_canonical_id = $1`, canonicalID)
	return err
}
