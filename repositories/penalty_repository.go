package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/openscioly/results-api/models"
)

type PenaltyRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, penalty *models.Penalty) error
	ListData(ctx context.Context, exec SQLExecutor, canonicalID string) ([]json.RawMessage, error)
	DeleteByResult(ctx context.Context, exec SQLExecutor, canonicalID string) error
}

type postgresPenaltyRepository struct {
	db *sql.DB
}

func NewPostgresPenaltyRepository(db *sql.DB) PenaltyRepository {
	return &postgresPenaltyRepository{db: db}
}

func (r *postgresPenaltyRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPenaltyRepository) Upsert(ctx context.Context, exec SQLExecutor, penalty *models.Penalty) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO penalties (result_canonical_id, team_number, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (result_canonical_id, team_number) DO UPDATE SET data = EXCLUDED.data`
	_, err := executor.ExecContext(ctx, query,
		penalty.ResultCanonicalID, penalty.TeamNumber, []byte(penalty.Data))
	if err != nil {
		return fmt.Errorf("failed to upsert penalty %s/%d: %w",
			penalty.ResultCanonicalID, penalty.TeamNumber, err)
	}
	return nil
}

func (r *postgresPenaltyRepository) ListData(ctx context.Context, exec SQLExecutor, canonicalID string) ([]json.RawMessage, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, `
		SELECT data FROM penalties
		WHERE result_canonical_id = $1
		ORDER BY team_number ASC`, canonicalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectData(rows)
}

func (r *postgresPenaltyRepository) DeleteByResult(ctx context.Context, exec SQLExecutor, canonicalID string) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM penalties WHERE result_canonical_id = $1`, canonicalID)
	return err
}
