package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"unicode"

	"github.com/openscioly/results-api/cache"
	"github.com/openscioly/results-api/models"
	"github.com/openscioly/results-api/repositories"
)

// SchoolRankings aggregates every matching school's ranking history: a map
// of school display string to per-tournament ordinalized ranks, plus the
// titles of the tournaments referenced.
type SchoolRankings struct {
	Rankings map[string]map[string][]string `json:"rankings"`
	Titles   map[string]string              `json:"titles"`
}

// SchoolHistory is one school's ranking history across tournaments.
type SchoolHistory struct {
	School   models.SchoolIdentity `json:"school"`
	Rankings map[string][]string   `json:"rankings"`
	Titles   map[string]string     `json:"titles"`
}

type SchoolService interface {
	FirstLetters(ctx context.Context) ([]string, error)
	RankingsByLetter(ctx context.Context, letter string) (*SchoolRankings, error)
	History(ctx context.Context, school models.SchoolIdentity) (*SchoolHistory, error)
}

type schoolService struct {
	teams  repositories.TeamRepository
	cache  cache.Store
	logger *slog.Logger
	async  *asyncCacheWriter
}

func NewSchoolService(teams repositories.TeamRepository, store cache.Store, logger *slog.Logger) SchoolService {
	return &schoolService{
		teams:  teams,
		cache:  store,
		logger: logger,
		async:  &asyncCacheWriter{store: store, logger: logger},
	}
}

func (s *schoolService) FirstLetters(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		var letters []string
		ok, err := s.cache.GetJSON(ctx, cache.LettersKey, &letters)
		if err != nil {
			s.logger.Warn("cache read failed", slog.String("key", cache.LettersKey), slog.Any("error", err))
		} else if ok {
			return letters, nil
		}
	}

	letters, err := s.teams.FirstLetters(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list school first letters: %w", err)
	}
	s.async.populate(ctx, cache.LettersKey, func(ctx context.Context) error {
		return s.cache.SetJSON(ctx, cache.LettersKey, letters)
	})
	return letters, nil
}

func (s *schoolService) RankingsByLetter(ctx context.Context, letter string) (*SchoolRankings, error) {
	if len(letter) != 1 || !unicode.IsLetter(rune(letter[0])) {
		return nil, ErrInvalidLetter
	}

	if s.cache != nil {
		var rankings SchoolRankings
		ok, err := s.cache.GetJSON(ctx, cache.SchoolLetterKey(letter), &rankings)
		if err != nil {
			s.logger.Warn("cache read failed", slog.String("key", cache.SchoolLetterKey(letter)), slog.Any("error", err))
		} else if ok {
			return &rankings, nil
		}
	}

	teams, err := s.teams.ListByLetter(ctx, nil, letter)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams for letter %q: %w", letter, err)
	}

	rankings := &SchoolRankings{
		Rankings: make(map[string]map[string][]string),
		Titles:   make(map[string]string),
	}
	for _, t := range teams {
		school := schoolDisplayName(t.SchoolIdentity)
		if rankings.Rankings[school] == nil {
			rankings.Rankings[school] = make(map[string][]string)
		}
		rankings.Rankings[school][t.CanonicalID] = append(rankings.Rankings[school][t.CanonicalID], ordinalize(t.Rank))
		if _, ok := rankings.Titles[t.CanonicalID]; !ok {
			rankings.Titles[t.CanonicalID] = t.ResultTitle
		}
	}

	s.async.populate(ctx, cache.SchoolLetterKey(letter), func(ctx context.Context) error {
		return s.cache.SetJSON(ctx, cache.SchoolLetterKey(letter), rankings)
	})
	return rankings, nil
}

func (s *schoolService) History(ctx context.Context, school models.SchoolIdentity) (*SchoolHistory, error) {
	if school.Name == "" {
		return nil, ErrSchoolNameRequired
	}

	key := cache.RankingsKey(school)
	if s.cache != nil {
		var history SchoolHistory
		ok, err := s.cache.GetJSON(ctx, key, &history)
		if err != nil {
			s.logger.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
		} else if ok {
			return &history, nil
		}
	}

	teams, err := s.teams.ListByIdentity(ctx, nil, school)
	if err != nil {
		return nil, fmt.Errorf("failed to list rankings for school %s: %w", school.Name, err)
	}

	history := &SchoolHistory{
		School:   school,
		Rankings: make(map[string][]string),
		Titles:   make(map[string]string),
	}
	for _, t := range teams {
		history.Rankings[t.CanonicalID] = append(history.Rankings[t.CanonicalID], ordinalize(t.Rank))
		if _, ok := history.Titles[t.CanonicalID]; !ok {
			history.Titles[t.CanonicalID] = t.ResultTitle
		}
	}

	s.async.populate(ctx, key, func(ctx context.Context) error {
		return s.cache.SetJSON(ctx, key, history)
	})
	return history, nil
}

// schoolDisplayName renders the school identity the way listings show it:
// "Name (City, State)", dropping the city segment when absent.
func schoolDisplayName(school models.SchoolIdentity) string {
	if school.City != "" {
		return fmt.Sprintf("%s (%s, %s)", school.Name, school.City, school.State)
	}
	return fmt.Sprintf("%s (%s)", school.Name, school.State)
}

func ordinalize(n int) string {
	suffix := "th"
	switch {
	case n%10 == 1 && n%100 != 11:
		suffix = "st"
	case n%10 == 2 && n%100 != 12:
		suffix = "nd"
	case n%10 == 3 && n%100 != 13:
		suffix = "rd"
	}
	return strconv.Itoa(n) + suffix
}
