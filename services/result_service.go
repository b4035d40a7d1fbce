package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/openscioly/results-api/cache"
	"github.com/openscioly/results-api/derive"
	"github.com/openscioly/results-api/ingest"
	"github.com/openscioly/results-api/models"
	"github.com/openscioly/results-api/repositories"
	"github.com/openscioly/results-api/storage"
)

// LiveFeed receives notifications after successful result mutations.
type LiveFeed interface {
	ResultAdded(canonicalID string)
	ResultDeleted(canonicalID string)
}

type ResultService interface {
	GetMeta(ctx context.Context, canonicalID string) (*models.ResultMetadata, error)
	GetComplete(ctx context.Context, canonicalID string) (*models.Document, error)
	GetAllMeta(ctx context.Context) ([]models.Result, error)
	GetAllComplete(ctx context.Context) (map[string]*models.Document, error)
	Latest(ctx context.Context, limit int) ([]models.ResultSummary, error)
	Recent(ctx context.Context, limit int) ([]models.Result, error)
	CountByLevel(ctx context.Context) (map[string]int, error)
	Exists(ctx context.Context, canonicalID string) (bool, error)
	Add(ctx context.Context, input *models.ResultInput) error
	AddYAML(ctx context.Context, file []byte) (string, error)
	AddManyYAML(ctx context.Context, files [][]byte) ([]string, error)
	Delete(ctx context.Context, canonicalID string) error
	DeleteAll(ctx context.Context) error
	RegenerateMetadata(ctx context.Context, canonicalID string) error
	RegenerateAllMetadata(ctx context.Context) error
	LogoNames(ctx context.Context) ([]string, error)
	UploadLogo(ctx context.Context, name, contentType string, file io.Reader) (*storage.UploadResult, error)
	DeleteLogo(ctx context.Context, name string) error
	Titles(ctx context.Context) (map[string]string, error)
}

// ResultServiceDeps wires the service's collaborators. Cache, Objects,
// Palette and Feed are optional; a nil value disables the capability.
type ResultServiceDeps struct {
	DB          *sql.DB
	Results     repositories.ResultRepository
	Events      repositories.EventRepository
	Tracks      repositories.TrackRepository
	Teams       repositories.TeamRepository
	Placings    repositories.PlacingRepository
	Penalties   repositories.PenaltyRepository
	Cache       cache.Store
	Invalidator *cache.Invalidator
	Objects     storage.ObjectStore
	Palette     storage.PaletteExtractor
	Feed        LiveFeed
	Logger      *slog.Logger
}

type resultService struct {
	db          *sql.DB
	results     repositories.ResultRepository
	events      repositories.EventRepository
	tracks      repositories.TrackRepository
	teams       repositories.TeamRepository
	placings    repositories.PlacingRepository
	penalties   repositories.PenaltyRepository
	cache       cache.Store
	invalidator *cache.Invalidator
	objects     storage.ObjectStore
	palette     storage.PaletteExtractor
	feed        LiveFeed
	logger      *slog.Logger
	async       *asyncCacheWriter
}

func NewResultService(deps ResultServiceDeps) ResultService {
	return &resultService{
		db:          deps.DB,
		results:     deps.Results,
		events:      deps.Events,
		tracks:      deps.Tracks,
		teams:       deps.Teams,
		placings:    deps.Placings,
		penalties:   deps.Penalties,
		cache:       deps.Cache,
		invalidator: deps.Invalidator,
		objects:     deps.Objects,
		palette:     deps.Palette,
		feed:        deps.Feed,
		logger:      deps.Logger,
		async:       &asyncCacheWriter{store: deps.Cache, logger: deps.Logger},
	}
}

func (s *resultService) GetMeta(ctx context.Context, canonicalID string) (*models.ResultMetadata, error) {
	if s.cache != nil {
		var meta models.ResultMetadata
		ok, err := s.cache.GetJSON(ctx, cache.MetaKey(canonicalID), &meta)
		if err != nil {
			s.logger.Warn("cache read failed", slog.String("key", cache.MetaKey(canonicalID)), slog.Any("error", err))
		} else if ok {
			return &meta, nil
		}
	}

	res, err := s.results.GetByID(ctx, nil, canonicalID)
	if err != nil {
		if errors.Is(err, repositories.ErrResultNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get result %s: %w", canonicalID, err)
	}

	meta := models.ResultMetadata{
		Title:      res.Title,
		ShortTitle: res.ShortTitle,
		Date:       res.Date,
		Logo:       res.Logo,
		Color:      res.Color,
	}
	if meta.Color == "" {
		meta.Color = s.backgroundColor(ctx, canonicalID, res.Logo)
	}

	s.async.populate(ctx, cache.MetaKey(canonicalID), func(ctx context.Context) error {
		return s.cache.SetJSON(ctx, cache.MetaKey(canonicalID), meta)
	})
	return &meta, nil
}

// backgroundColor lazily derives and persists the accent color for a result.
// Missing storage, a failed download or a failed extraction all degrade to
// the default color.
func (s *resultService) backgroundColor(ctx context.Context, canonicalID, logo string) string {
	if s.objects == nil || s.palette == nil {
		return derive.DefaultColor
	}

	data, err := s.objects.Download(ctx, strings.TrimPrefix(logo, "/images/"))
	if err != nil {
		s.logger.Warn("logo download failed", slog.String("logo", logo), slog.Any("error", err))
		return derive.DefaultColor
	}
	swatches, err := s.palette.Extract(ctx, data)
	if err != nil {
		s.logger.Warn("palette extraction failed", slog.String("logo", logo), slog.Any("error", err))
		return derive.DefaultColor
	}

	color := derive.BackgroundColor(swatches, false)
	if err := s.results.UpdateColor(ctx, nil, canonicalID, color); err != nil {
		s.logger.Warn("failed to persist derived color", slog.String("id", canonicalID), slog.Any("error", err))
	}
	return color
}

func (s *resultService) GetComplete(ctx context.Context, canonicalID string) (*models.Document, error) {
	if s.cache != nil {
		var doc models.Document
		ok, err := s.cache.GetJSON(ctx, cache.CompleteKey(canonicalID), &doc)
		if err != nil {
			s.logger.Warn("cache read failed", slog.String("key", cache.CompleteKey(canonicalID)), slog.Any("error", err))
		} else if ok {
			return &doc, nil
		}
	}

	doc, err := s.assemble(ctx, canonicalID)
	if err != nil {
		return nil, err
	}

	s.async.populate(ctx, cache.CompleteKey(canonicalID), func(ctx context.Context) error {
		return s.cache.SetJSON(ctx, cache.CompleteKey(canonicalID), doc)
	})
	return doc, nil
}

// assemble reads the result row and all five child collections inside one
// snapshot transaction, so the document can never mix states from before and
// after a concurrent write.
func (s *resultService) assemble(ctx context.Context, canonicalID string) (*models.Document, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin aggregation transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := s.results.GetByID(ctx, tx, canonicalID)
	if err != nil {
		if errors.Is(err, repositories.ErrResultNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get result %s: %w", canonicalID, err)
	}
	events, err := s.events.ListData(ctx, tx, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for %s: %w", canonicalID, err)
	}
	tracks, err := s.tracks.ListData(ctx, tx, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks for %s: %w", canonicalID, err)
	}
	teams, err := s.teams.ListData(ctx, tx, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams for %s: %w", canonicalID, err)
	}
	placings, err := s.placings.ListData(ctx, tx, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list placings for %s: %w", canonicalID, err)
	}
	penalties, err := s.penalties.ListData(ctx, tx, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list penalties for %s: %w", canonicalID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit aggregation transaction: %w", err)
	}

	return &models.Document{
		Tournament: res.Tournament,
		Events:     events,
		Tracks:     tracks,
		Teams:      teams,
		Placings:   placings,
		Penalties:  penalties,
		Histograms: res.Histogram,
	}, nil
}

func (s *resultService) GetAllMeta(ctx context.Context) ([]models.Result, error) {
	results, err := s.results.List(ctx, nil, true, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return results, nil
}

func (s *resultService) GetAllComplete(ctx context.Context) (map[string]*models.Document, error) {
	ids, err := s.results.ListIDs(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list result ids: %w", err)
	}
	out := make(map[string]*models.Document, len(ids))
	for _, id := range ids {
		doc, err := s.GetComplete(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = doc
	}
	return out, nil
}

func (s *resultService) Latest(ctx context.Context, limit int) ([]models.ResultSummary, error) {
	if s.cache != nil && limit > 0 {
		var cached []models.ResultSummary
		ok, err := s.cache.GetJSON(ctx, cache.LatestKey, &cached)
		if err != nil {
			s.logger.Warn("cache read failed", slog.String("key", cache.LatestKey), slog.Any("error", err))
		} else if ok && limit <= len(cached) {
			return cached[:limit], nil
		}
	}

	summaries, err := s.results.Latest(ctx, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest results: %w", err)
	}
	s.async.populate(ctx, cache.LatestKey, func(ctx context.Context) error {
		return s.cache.SetJSON(ctx, cache.LatestKey, summaries)
	})
	return summaries, nil
}

func (s *resultService) Recent(ctx context.Context, limit int) ([]models.Result, error) {
	results, err := s.results.List(ctx, nil, false, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent results: %w", err)
	}
	return results, nil
}

func (s *resultService) CountByLevel(ctx context.Context) (map[string]int, error) {
	if s.cache != nil {
		cached, err := s.cache.HGetAll(ctx, cache.ResultsByLevelKey)
		if err != nil {
			s.logger.Warn("cache read failed", slog.String("key", cache.ResultsByLevelKey), slog.Any("error", err))
		} else if len(cached) == len(repositories.ResultLevels) {
			counts := make(map[string]int, len(cached))
			valid := true
			for level, raw := range cached {
				n, convErr := strconv.Atoi(raw)
				if convErr != nil {
					valid = false
					break
				}
				counts[level] = n
			}
			if valid {
				return counts, nil
			}
		}
	}

	counts := make(map[string]int, len(repositories.ResultLevels))
	for _, level := range repositories.ResultLevels {
		n, err := s.results.CountByLevel(ctx, nil, level)
		if err != nil {
			return nil, err
		}
		counts[level] = n
	}
	s.async.populate(ctx, cache.ResultsByLevelKey, func(ctx context.Context) error {
		for level, n := range counts {
			if err := s.cache.HSet(ctx, cache.ResultsByLevelKey, level, strconv.Itoa(n)); err != nil {
				return err
			}
		}
		return nil
	})
	return counts, nil
}

func (s *resultService) Exists(ctx context.Context, canonicalID string) (bool, error) {
	return s.results.Exists(ctx, nil, canonicalID)
}

// Add upserts one result and replaces its child rows. Cache eviction runs
// first and a failed eviction aborts the write, so the cache can never hold
// an entry the store has already moved past.
func (s *resultService) Add(ctx context.Context, input *models.ResultInput) error {
	if input == nil || input.CanonicalID == "" {
		return ErrInvalidResultFile
	}

	if err := s.invalidator.OnResultWrite(ctx, input.CanonicalID, input.Year, input.SchoolIdentities()); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin write transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.results.Upsert(ctx, tx, input.Result()); err != nil {
		return err
	}

	id := input.CanonicalID
	if err := s.events.DeleteByResult(ctx, tx, id); err != nil {
		return fmt.Errorf("failed to clear events for %s: %w", id, err)
	}
	for i := range input.Events {
		if err := s.events.Upsert(ctx, tx, &input.Events[i]); err != nil {
			return err
		}
	}
	if err := s.tracks.DeleteByResult(ctx, tx, id); err != nil {
		return fmt.Errorf("failed to clear tracks for %s: %w", id, err)
	}
	for i := range input.Tracks {
		if err := s.tracks.Upsert(ctx, tx, &input.Tracks[i]); err != nil {
			return err
		}
	}
	if err := s.teams.DeleteByResult(ctx, tx, id); err != nil {
		return fmt.Errorf("failed to clear teams for %s: %w", id, err)
	}
	for i := range input.Teams {
		if err := s.teams.Upsert(ctx, tx, &input.Teams[i]); err != nil {
			return err
		}
	}
	if err := s.placings.DeleteByResult(ctx, tx, id); err != nil {
		return fmt.Errorf("failed to clear placings for %s: %w", id, err)
	}
	for i := range input.Placings {
		if err := s.placings.Upsert(ctx, tx, &input.Placings[i]); err != nil {
			return err
		}
	}
	if err := s.penalties.DeleteByResult(ctx, tx, id); err != nil {
		return fmt.Errorf("failed to clear penalties for %s: %w", id, err)
	}
	for i := range input.Penalties {
		if err := s.penalties.Upsert(ctx, tx, &input.Penalties[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit write transaction: %w", err)
	}

	if s.feed != nil {
		s.feed.ResultAdded(id)
	}
	return nil
}

func (s *resultService) AddYAML(ctx context.Context, file []byte) (string, error) {
	input, err := s.buildInput(ctx, file, nil)
	if err != nil {
		return "", err
	}
	if err := s.Add(ctx, input); err != nil {
		return "", err
	}
	return input.CanonicalID, nil
}

// AddManyYAML derives all inputs concurrently, then persists them one at a
// time in input order.
func (s *resultService) AddManyYAML(ctx context.Context, files [][]byte) ([]string, error) {
	logoNames, err := s.LogoNames(ctx)
	if err != nil {
		s.logger.Warn("logo listing failed, resolving against empty pool", slog.Any("error", err))
	}
	if logoNames == nil {
		logoNames = []string{}
	}

	inputs := make([]*models.ResultInput, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			input, buildErr := s.buildInput(gctx, file, logoNames)
			if buildErr != nil {
				return buildErr
			}
			inputs[i] = input
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(inputs))
	for _, input := range inputs {
		if err := s.Add(ctx, input); err != nil {
			return ids, err
		}
		ids = append(ids, input.CanonicalID)
	}
	return ids, nil
}

func (s *resultService) buildInput(ctx context.Context, file []byte, logoNames []string) (*models.ResultInput, error) {
	f, err := ingest.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResultFile, err)
	}
	if logoNames == nil {
		logoNames, err = s.LogoNames(ctx)
		if err != nil {
			s.logger.Warn("logo listing failed, resolving against empty pool", slog.Any("error", err))
			logoNames = nil
		}
	}
	input, err := f.Build(logoNames)
	if err != nil {
		return nil, mapDeriveError(err)
	}
	return input, nil
}

func (s *resultService) Delete(ctx context.Context, canonicalID string) error {
	res, err := s.results.GetByID(ctx, nil, canonicalID)
	if err != nil {
		if errors.Is(err, repositories.ErrResultNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get result %s: %w", canonicalID, err)
	}
	schools, err := s.teams.ListIdentities(ctx, nil, canonicalID)
	if err != nil {
		return fmt.Errorf("failed to list school identities for %s: %w", canonicalID, err)
	}

	if err := s.invalidator.OnResultWrite(ctx, canonicalID, tournamentYear(res.Tournament), schools); err != nil {
		return err
	}

	// Child rows go with the parent via the cascading foreign key.
	if err := s.results.Delete(ctx, nil, canonicalID); err != nil {
		if errors.Is(err, repositories.ErrResultNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete result %s: %w", canonicalID, err)
	}

	if s.feed != nil {
		s.feed.ResultDeleted(canonicalID)
	}
	return nil
}

func (s *resultService) DeleteAll(ctx context.Context) error {
	if err := s.invalidator.OnDeleteAll(ctx); err != nil {
		return err
	}
	if err := s.results.DeleteAll(ctx, nil); err != nil {
		return fmt.Errorf("failed to delete all results: %w", err)
	}
	return nil
}

// RegenerateMetadata recomputes the derived metadata columns from the stored
// tournament payload. Only the meta cache entry can go stale, so only it is
// evicted.
func (s *resultService) RegenerateMetadata(ctx context.Context, canonicalID string) error {
	res, err := s.results.GetByID(ctx, nil, canonicalID)
	if err != nil {
		if errors.Is(err, repositories.ErrResultNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get result %s: %w", canonicalID, err)
	}

	t, err := ingest.TournamentFromJSON(res.Tournament)
	if err != nil {
		return err
	}
	title, err := derive.FullTitle(t)
	if err != nil {
		return mapDeriveError(err)
	}

	logo := res.Logo
	if names, namesErr := s.LogoNames(ctx); namesErr == nil && names != nil {
		logo = derive.LogoPath(canonicalID, names)
	}

	meta := models.ResultMetadata{
		Title:      title,
		ShortTitle: derive.FullShortTitle(t),
		Date:       derive.DateRange(t),
		Logo:       logo,
		Color:      res.Color,
	}

	if err := s.invalidator.OnMetadataRegen(ctx, canonicalID); err != nil {
		return err
	}
	if err := s.results.UpdateMetadata(ctx, nil, canonicalID, meta); err != nil {
		if errors.Is(err, repositories.ErrResultNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *resultService) RegenerateAllMetadata(ctx context.Context) error {
	ids, err := s.results.ListIDs(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to list result ids: %w", err)
	}
	for _, id := range ids {
		if err := s.RegenerateMetadata(ctx, id); err != nil {
			return fmt.Errorf("failed to regenerate metadata for %s: %w", id, err)
		}
	}
	return nil
}

func (s *resultService) LogoNames(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		if n, err := s.cache.SCard(ctx, cache.LogosKey); err == nil && n > 0 {
			names, membersErr := s.cache.SMembers(ctx, cache.LogosKey)
			if membersErr == nil {
				return names, nil
			}
			s.logger.Warn("cache read failed", slog.String("key", cache.LogosKey), slog.Any("error", membersErr))
		}
	}

	if s.objects == nil {
		return nil, nil
	}
	names, err := s.objects.List(ctx, "logos")
	if err != nil {
		return nil, fmt.Errorf("failed to list logos: %w", err)
	}
	if len(names) > 0 {
		s.async.populate(ctx, cache.LogosKey, func(ctx context.Context) error {
			return s.cache.SAdd(ctx, cache.LogosKey, names...)
		})
	}
	return names, nil
}

// UploadLogo adds or replaces an image in the logo pool. The cached pool
// listing is evicted before the object write so a stale listing cannot
// outlive the change.
func (s *resultService) UploadLogo(ctx context.Context, name, contentType string, file io.Reader) (*storage.UploadResult, error) {
	if s.objects == nil {
		return nil, ErrStorageNotConfigured
	}
	if err := s.invalidator.OnLogoPoolChange(ctx); err != nil {
		return nil, err
	}
	result, err := s.objects.Upload(ctx, "logos/"+name, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload logo %s: %w", name, err)
	}
	return result, nil
}

// DeleteLogo removes an image from the logo pool.
func (s *resultService) DeleteLogo(ctx context.Context, name string) error {
	if s.objects == nil {
		return ErrStorageNotConfigured
	}
	if err := s.invalidator.OnLogoPoolChange(ctx); err != nil {
		return err
	}
	if err := s.objects.Delete(ctx, "logos/"+name); err != nil {
		return fmt.Errorf("failed to delete logo %s: %w", name, err)
	}
	return nil
}

func (s *resultService) Titles(ctx context.Context) (map[string]string, error) {
	if s.cache != nil {
		if n, err := s.cache.HLen(ctx, cache.TitlesKey); err == nil && n > 0 {
			titles, getErr := s.cache.HGetAll(ctx, cache.TitlesKey)
			if getErr == nil {
				return titles, nil
			}
			s.logger.Warn("cache read failed", slog.String("key", cache.TitlesKey), slog.Any("error", getErr))
		}
	}

	titles, err := s.results.Titles(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list titles: %w", err)
	}
	s.async.populate(ctx, cache.TitlesKey, func(ctx context.Context) error {
		for id, title := range titles {
			if err := s.cache.HSet(ctx, cache.TitlesKey, id, title); err != nil {
				return err
			}
		}
		return nil
	})
	return titles, nil
}

func mapDeriveError(err error) error {
	switch {
	case errors.Is(err, derive.ErrMissingStartDate):
		return ErrMissingStartDate
	case errors.Is(err, derive.ErrMissingName):
		return ErrMissingName
	case errors.Is(err, derive.ErrUnknownPostalCode):
		return ErrUnknownPostalCode
	default:
		return err
	}
}

func tournamentYear(raw json.RawMessage) int {
	var t struct {
		Year int `json:"year"`
	}
	_ = json.Unmarshal(raw, &t)
	return t.Year
}
