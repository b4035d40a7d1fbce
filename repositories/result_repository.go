package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openscioly/results-api/models"
)

var ErrResultNotFound = errors.New("result not found")

// Levels the count endpoint reports on, in response order.
var ResultLevels = []string{"Invitational", "Regionals", "States", "Nationals"}

type ResultRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, result *models.Result) error
	GetByID(ctx context.Context, exec SQLExecutor, canonicalID string) (*models.Result, error)
	List(ctx context.Context, exec SQLExecutor, ascending bool, limit int) ([]models.Result, error)
	ListIDs(ctx context.Context, exec SQLExecutor) ([]string, error)
	Latest(ctx context.Context, exec SQLExecutor, limit int) ([]models.ResultSummary, error)
	CountByLevel(ctx context.Context, exec SQLExecutor, level string) (int, error)
	ListSeasons(ctx context.Context, exec SQLExecutor) ([]int, error)
	BySeason(ctx context.Context, exec SQLExecutor, year int) ([]models.SeasonEntry, error)
	Titles(ctx context.Context, exec SQLExecutor) (map[string]string, error)
	Exists(ctx context.Context, exec SQLExecutor, canonicalID string) (bool, error)
	UpdateMetadata(ctx context.Context, exec SQLExecutor, canonicalID string, meta models.ResultMetadata) error
	UpdateColor(ctx context.Context, exec SQLExecutor, canonicalID, color string) error
	Delete(ctx context.Context, exec SQLExecutor, canonicalID string) error
	DeleteAll(ctx context.Context, exec SQLExecutor) error
}

type postgresResultRepository struct {
	db *sql.DB
}

func NewPostgresResultRepository(db *sql.DB) ResultRepository {
	return &postgresResultRepository{db: db}
}

func (r *postgresResultRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const resultColumns = `
	canonical_id, title, short_title, date, logo, color,
	tournament, histogram, official, preliminary, created_at`

func scanResult(row interface{ Scan(dest ...interface{}) error }) (*models.Result, error) {
	res := &models.Result{}
	var color sql.NullString
	var histogram []byte
	err := row.Scan(
		&res.CanonicalID, &res.Title, &res.ShortTitle, &res.Date, &res.Logo, &color,
		&res.Tournament, &histogram, &res.Official, &res.Preliminary, &res.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.Color = color.String
	if len(histogram) > 0 {
		res.Histogram = histogram
	}
	return res, nil
}

func (r *postgresResultRepository) Upsert(ctx context.Context, exec SQLExecutor, result *models.Result) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO results (
			canonical_id, title, short_title, date, logo, color,
			tournament, histogram, official, preliminary
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)
		ON CONFLICT (canonical_id) DO UPDATE SET
			title = EXCLUDED.title,
			short_title = EXCLUDED.short_title,
			date = EXCLUDED.date,
			logo = EXCLUDED.logo,
			color = EXCLUDED.color,
			tournament = EXCLUDED.tournament,
			histogram = EXCLUDED.histogram,
			official = EXCLUDED.official,
			preliminary = EXCLUDED.preliminary
		RETURNING created_at`

	var histogram interface{}
	if len(result.Histogram) > 0 {
		histogram = []byte(result.Histogram)
	}
	err := executor.QueryRowContext(ctx, query,
		result.CanonicalID, result.Title, result.ShortTitle, result.Date, result.Logo, result.Color,
		[]byte(result.Tournament), histogram, result.Official, result.Preliminary,
	).Scan(&result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert result %s: %w", result.CanonicalID, err)
	}
	return nil
}

func (r *postgresResultRepository) GetByID(ctx context.Context, exec SQLExecutor, canonicalID string) (*models.Result, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + resultColumns + ` FROM results WHERE canonical_id = $1`

	res, err := scanResult(executor.QueryRowContext(ctx, query, canonicalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, err
	}
	return res, nil
}

func (r *postgresResultRepository) List(ctx context.Context, exec SQLExecutor, ascending bool, limit int) ([]models.Result, error) {
	executor := r.getExecutor(exec)
	direction := "DESC"
	if ascending {
		direction = "ASC"
	}
	query := `SELECT` + resultColumns + ` FROM results ORDER BY canonical_id ` + direction
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]models.Result, 0)
	for rows.Next() {
		res, scanErr := scanResult(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		results = append(results, *res)
	}
	return results, rows.Err()
}

func (r *postgresResultRepository) ListIDs(ctx context.Context, exec SQLExecutor) ([]string, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, `SELECT canonical_id FROM results ORDER BY canonical_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresResultRepository) Latest(ctx context.Context, exec SQLExecutor, limit int) ([]models.ResultSummary, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT short_title, date, official, preliminary, canonical_id
		FROM results
		ORDER BY created_at DESC, canonical_id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ResultSummary, 0)
	for rows.Next() {
		var s models.ResultSummary
		if scanErr := rows.Scan(&s.ShortTitle, &s.Date, &s.Official, &s.Preliminary, &s.CanonicalID); scanErr != nil {
			return nil, scanErr
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *postgresResultRepository) CountByLevel(ctx context.Context, exec SQLExecutor, level string) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM results WHERE tournament->>'level' = $1`, level,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count results for level %s: %w", level, err)
	}
	return count, nil
}

func (r *postgresResultRepository) ListSeasons(ctx context.Context, exec SQLExecutor) ([]int, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, `
		SELECT DISTINCT (tournament->>'year')::int AS year
		FROM results
		WHERE tournament->>'year' IS NOT NULL
		ORDER BY year DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seasons := make([]int, 0)
	for rows.Next() {
		var year int
		if scanErr := rows.Scan(&year); scanErr != nil {
			return nil, scanErr
		}
		seasons = append(seasons, year)
	}
	return seasons, rows.Err()
}

func (r *postgresResultRepository) BySeason(ctx context.Context, exec SQLExecutor, year int) ([]models.SeasonEntry, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, `
		SELECT canonical_id, title, COALESCE(tournament->>'location', ''), date, official, preliminary
		FROM results
		WHERE (tournament->>'year')::int = $1
		ORDER BY canonical_id DESC`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.SeasonEntry, 0)
	for rows.Next() {
		var e models.SeasonEntry
		if scanErr := rows.Scan(&e.CanonicalID, &e.Title, &e.Location, &e.Date, &e.Official, &e.Preliminary); scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *postgresResultRepository) Titles(ctx context.Context, exec SQLExecutor) (map[string]string, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, `SELECT canonical_id, title FROM results`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	titles := make(map[string]string)
	for rows.Next() {
		var id, title string
		if scanErr := rows.Scan(&id, &title); scanErr != nil {
			return nil, scanErr
		}
		titles[id] = title
	}
	return titles, rows.Err()
}

func (r *postgresResultRepository) Exists(ctx context.Context, exec SQLExecutor, canonicalID string) (bool, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM results WHERE canonical_id = $1`, canonicalID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *postgresResultRepository) UpdateMetadata(ctx context.Context, exec SQLExecutor, canonicalID string, meta models.ResultMetadata) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE results
		SET title = $1, short_title = $2, date = $3, logo = $4, color = NULLIF($5, '')
		WHERE canonical_id = $6`
	result, err := executor.ExecContext(ctx, query,
		meta.Title, meta.ShortTitle, meta.Date, meta.Logo, meta.Color, canonicalID)
	if err != nil {
		return fmt.Errorf("failed to update result metadata for %s: %w", canonicalID, err)
	}
	return checkAffectedRows(result, ErrResultNotFound)
}

func (r *postgresResultRepository) UpdateColor(ctx context.Context, exec SQLExecutor, canonicalID, color string) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE results SET color = $1 WHERE canonical_id = $2`, color, canonicalID)
	if err != nil {
		return fmt.Errorf("failed to update result color for %s: %w", canonicalID, err)
	}
	return checkAffectedRows(result, ErrResultNotFound)
}

func (r *postgresResultRepository) Delete(ctx context.Context, exec SQLExecutor, canonicalID string) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM results WHERE canonical_id = $1`, canonicalID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrResultNotFound)
}

func (r *postgresResultRepository) DeleteAll(ctx context.Context, exec SQLExecutor) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM results`)
	return err
}
