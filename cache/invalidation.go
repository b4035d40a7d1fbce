package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openscioly/results-api/models"
)

// Invalidator computes and evicts the full set of cache keys a mutation can
// leave stale. All fan-out lives here so the invalidation contract is
// enforced in one place and testable on its own. Eviction runs before the
// relational write: if eviction fails the write is aborted, so the cache can
// never hold an entry newer-looking than the store.
type Invalidator struct {
	store  Store
	logger *slog.Logger
}

func NewInvalidator(store Store, logger *slog.Logger) *Invalidator {
	return &Invalidator{store: store, logger: logger}
}

// KeysForResultWrite is the fan-out for adding or deleting one result: its
// meta and complete documents, the level counts, the season indexes, the
// latest listing, and one ranking-history key per distinct school.
func KeysForResultWrite(canonicalID string, year int, schools []models.SchoolIdentity) []string {
	keys := []string{
		MetaKey(canonicalID),
		CompleteKey(canonicalID),
		ResultsByLevelKey,
		SeasonsKey,
		SeasonKey(year),
		SeasonEntryKey(year, canonicalID),
		LatestKey,
	}
	seen := make(map[string]struct{}, len(schools))
	for _, school := range schools {
		key := RankingsKey(school)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// KeysForMetadataRegen is the fan-out for regenerating a result's metadata:
// only the meta document can go stale.
func KeysForMetadataRegen(canonicalID string) []string {
	return []string{MetaKey(canonicalID)}
}

// OnResultWrite evicts the write fan-out for one result. Idempotent: evicting
// already-absent keys is a no-op.
func (i *Invalidator) OnResultWrite(ctx context.Context, canonicalID string, year int, schools []models.SchoolIdentity) error {
	return i.evict(ctx, KeysForResultWrite(canonicalID, year, schools))
}

// OnMetadataRegen evicts the metadata-regeneration fan-out.
func (i *Invalidator) OnMetadataRegen(ctx context.Context, canonicalID string) error {
	return i.evict(ctx, KeysForMetadataRegen(canonicalID))
}

// OnLogoPoolChange evicts the cached logo pool listing. Meta documents keep
// the logo path recorded at write time; a metadata regeneration picks the
// changed pool up.
func (i *Invalidator) OnLogoPoolChange(ctx context.Context) error {
	return i.evict(ctx, []string{LogosKey})
}

// OnDeleteAll enumerates and evicts every key in the meta, complete, season
// and ranking namespaces plus the fixed derived keys.
func (i *Invalidator) OnDeleteAll(ctx context.Context) error {
	if i == nil || i.store == nil {
		return nil
	}
	keys := []string{ResultsByLevelKey, SeasonsKey, LatestKey, TitlesKey}
	for _, pattern := range []string{"meta:*", "complete:*", "seasons:*", "rankings:*"} {
		matched, err := i.store.Keys(ctx, pattern)
		if err != nil {
			return fmt.Errorf("failed to enumerate cache keys %q: %w", pattern, err)
		}
		keys = append(keys, matched...)
	}
	return i.evict(ctx, keys)
}

func (i *Invalidator) evict(ctx context.Context, keys []string) error {
	if i == nil || i.store == nil {
		return nil
	}
	if err := i.store.Del(ctx, keys...); err != nil {
		i.logger.Error("cache eviction failed", slog.Int("keys", len(keys)), slog.Any("error", err))
		return fmt.Errorf("failed to evict %d cache keys: %w", len(keys), err)
	}
	return nil
}
