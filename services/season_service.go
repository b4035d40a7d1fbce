package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/openscioly/results-api/cache"
	"github.com/openscioly/results-api/models"
	"github.com/openscioly/results-api/repositories"
)

type SeasonService interface {
	AllSeasons(ctx context.Context) ([]int, error)
	TournamentsBySeason(ctx context.Context, year int) (map[string]models.SeasonEntry, error)
	AllTournamentsBySeason(ctx context.Context) (map[int]map[string]models.SeasonEntry, error)
}

type seasonService struct {
	results repositories.ResultRepository
	cache   cache.Store
	logger  *slog.Logger
	async   *asyncCacheWriter
}

func NewSeasonService(results repositories.ResultRepository, store cache.Store, logger *slog.Logger) SeasonService {
	return &seasonService{
		results: results,
		cache:   store,
		logger:  logger,
		async:   &asyncCacheWriter{store: store, logger: logger},
	}
}

func (s *seasonService) AllSeasons(ctx context.Context) ([]int, error) {
	if s.cache != nil {
		if n, err := s.cache.ZCard(ctx, cache.SeasonsKey); err == nil && n > 0 {
			members, rangeErr := s.cache.ZRevRange(ctx, cache.SeasonsKey)
			if rangeErr == nil {
				seasons := make([]int, 0, len(members))
				for _, m := range members {
					year, convErr := strconv.Atoi(m)
					if convErr != nil {
						seasons = nil
						break
					}
					seasons = append(seasons, year)
				}
				if seasons != nil {
					return seasons, nil
				}
			} else {
				s.logger.Warn("cache read failed", slog.String("key", cache.SeasonsKey), slog.Any("error", rangeErr))
			}
		}
	}

	seasons, err := s.results.ListSeasons(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list seasons: %w", err)
	}
	s.async.populate(ctx, cache.SeasonsKey, func(ctx context.Context) error {
		for _, year := range seasons {
			if err := s.cache.ZAdd(ctx, cache.SeasonsKey, strconv.Itoa(year), 1); err != nil {
				return err
			}
		}
		return nil
	})
	return seasons, nil
}

func (s *seasonService) TournamentsBySeason(ctx context.Context, year int) (map[string]models.SeasonEntry, error) {
	if entries, ok := s.cachedSeason(ctx, year); ok {
		return entries, nil
	}

	list, err := s.results.BySeason(ctx, nil, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments for season %d: %w", year, err)
	}
	entries := make(map[string]models.SeasonEntry, len(list))
	for _, e := range list {
		entries[e.CanonicalID] = e
	}

	s.async.populate(ctx, cache.SeasonKey(year), func(ctx context.Context) error {
		for id, e := range entries {
			if err := s.cache.ZAdd(ctx, cache.SeasonKey(year), id, 1); err != nil {
				return err
			}
			fields := map[string]string{
				"canonical_id": e.CanonicalID,
				"title":        e.Title,
				"location":     e.Location,
				"date":         e.Date,
				"official":     strconv.FormatBool(e.Official),
				"preliminary":  strconv.FormatBool(e.Preliminary),
			}
			for field, value := range fields {
				if err := s.cache.HSet(ctx, cache.SeasonEntryKey(year, id), field, value); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return entries, nil
}

// cachedSeason reports a hit only when the season's member list and every
// per-tournament hash are fully present. A partially populated season falls
// back to the relational store.
func (s *seasonService) cachedSeason(ctx context.Context, year int) (map[string]models.SeasonEntry, bool) {
	if s.cache == nil {
		return nil, false
	}
	n, err := s.cache.ZCard(ctx, cache.SeasonKey(year))
	if err != nil || n == 0 {
		return nil, false
	}
	ids, err := s.cache.ZRevRange(ctx, cache.SeasonKey(year))
	if err != nil {
		s.logger.Warn("cache read failed", slog.String("key", cache.SeasonKey(year)), slog.Any("error", err))
		return nil, false
	}

	entries := make(map[string]models.SeasonEntry, len(ids))
	for _, id := range ids {
		fields, err := s.cache.HGetAll(ctx, cache.SeasonEntryKey(year, id))
		if err != nil || len(fields) != 6 {
			return nil, false
		}
		entries[id] = models.SeasonEntry{
			CanonicalID: fields["canonical_id"],
			Title:       fields["title"],
			Location:    fields["location"],
			Date:        fields["date"],
			Official:    fields["official"] == "true",
			Preliminary: fields["preliminary"] == "true",
		}
	}
	return entries, true
}

func (s *seasonService) AllTournamentsBySeason(ctx context.Context) (map[int]map[string]models.SeasonEntry, error) {
	seasons, err := s.AllSeasons(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int]map[string]models.SeasonEntry, len(seasons))
	for _, year := range seasons {
		entries, err := s.TournamentsBySeason(ctx, year)
		if err != nil {
			return nil, err
		}
		out[year] = entries
	}
	return out, nil
}
