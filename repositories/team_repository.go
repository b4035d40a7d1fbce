package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/openscioly/results-api/models"
)

type TeamRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, team *models.Team) error
	ListData(ctx context.Context, exec SQLExecutor, canonicalID string) ([]json.RawMessage, error)
	ListIdentities(ctx context.Context, exec SQLExecutor, canonicalID string) ([]models.SchoolIdentity, error)
	FirstLetters(ctx context.Context, exec SQLExecutor) ([]string, error)
	ListByLetter(ctx context.Context, exec SQLExecutor, letter string) ([]models.TeamRanking, error)
	ListByIdentity(ctx context.Context, exec SQLExecutor, school models.SchoolIdentity) ([]models.TeamRanking, error)
	DeleteByResult(ctx context.Context, exec SQLExecutor, canonicalID string) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTeamRepository) Upsert(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO teams (
			result_canonical_id, number, rank, track_rank, name, city, state, country, data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (result_canonical_id, number) DO UPDATE SET
			rank = EXCLUDED.rank,
			track_rank = EXCLUDED.track_rank,
			name = EXCLUDED.name,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			country = EXCLUDED.country,
			data = EXCLUDED.data`
	_, err := executor.ExecContext(ctx, query,
		team.ResultCanonicalID, team.Number, team.Rank, team.TrackRank,
		team.Name, team.City, team.State, team.Country, []byte(team.Data))
	if err != nil {
		return fmt.Errorf("failed to upsert team %s/%d: %w", team.ResultCanonicalID, team.Number, err)
	}
	return nil
}

func (r *postgresTeamRepository) ListData(ctx context.Context, exec SQLExecutor, canonicalID string) ([]json.RawMessage, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx,
		`SELECT data FROM teams WHERE result_canonical_id = $1 ORDER BY number ASC`, canonicalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectData(rows)
}

func (r *postgresTeamRepository) ListIdentities(ctx context.Context, exec SQLExecutor, canonicalID string) ([]models.SchoolIdentity, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, `
		SELECT DISTINCT name, city, state, country
		FROM teams
		WHERE result_canonical_id = $1`, canonicalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	identities := make([]models.SchoolIdentity, 0)
	for rows.Next() {
		var id models.SchoolIdentity
		if scanErr := rows.Scan(&id.Name, &id.City, &id.State, &id.Country); scanErr != nil {
			return nil, scanErr
		}
		identities = append(identities, id)
	}
	return identities, rows.Err()
}

func (r *postgresTeamRepository) FirstLetters(ctx context.Context, exec SQLExecutor) ([]string, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, `
		SELECT DISTINCT lower(left(name, 1)) AS letter
		FROM teams
		ORDER BY letter ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	letters := make([]string, 0)
	for rows.Next() {
		var letter string
		if scanErr := rows.Scan(&letter); scanErr != nil {
			return nil, scanErr
		}
		letters = append(letters, letter)
	}
	return letters, rows.Err()
}

const teamRankingColumns = `
	t.name, t.city, t.state, t.country, t.rank, t.result_canonical_id, r.title`

func (r *postgresTeamRepository) ListByLetter(ctx context.Context, exec SQLExecutor, letter string) ([]models.TeamRanking, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, `
		SELECT`+teamRankingColumns+`
		FROM teams t
		JOIN results r ON r.canonical_id = t.result_canonical_id
		WHERE t.name ILIKE $1 || '%'
		ORDER BY t.name ASC, t.city ASC, t.state ASC, t.country ASC,
			t.result_canonical_id DESC, t.rank ASC`, letter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRankings(rows)
}

func (r *postgresTeamRepository) ListByIdentity(ctx context.Context, exec SQLExecutor, school models.SchoolIdentity) ([]models.TeamRanking, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, `
		SELECT`+teamRankingColumns+`
		FROM teams t
		JOIN results r ON r.canonical_id = t.result_canonical_id
		WHERE t.name = $1 AND t.city = $2 AND t.state = $3 AND t.country = $4
		ORDER BY t.result_canonical_id DESC, t.rank ASC`,
		school.Name, school.City, school.State, school.Country)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRankings(rows)
}

func collectRankings(rows *sql.Rows) ([]models.TeamRanking, error) {
	rankings := make([]models.TeamRanking, 0)
	for rows.Next() {
		var tr models.TeamRanking
		if err := rows.Scan(&tr.Name, &tr.City, &tr.State, &tr.Country, &tr.Rank, &tr.CanonicalID, &tr.ResultTitle); err != nil {
			return nil, err
		}
		rankings = append(rankings, tr)
	}
	return rankings, rows.Err()
}

func (r *postgresTeamRepository) DeleteByResult(ctx context.Context, exec SQLExecutor, canonicalID string) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM teams WHERE result_canonical_id = $1`, canonicalID)
	return err
}
