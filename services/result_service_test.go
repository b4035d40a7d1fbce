package services

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscioly/results-api/cache"
	"github.com/openscioly/results-api/derive"
	"github.com/openscioly/results-api/models"
)

const sampleYAML = `
Tournament:
  name: Long Island Regional
  level: Regionals
  state: NY
  division: B
  year: 2024
  date: 2024-03-02
Events:
  - name: Anatomy and Physiology
Teams:
  - number: 1
    school: Bronx Science
    city: New York
    state: NY
Placings:
  - event: Anatomy and Physiology
    team: 1
    place: 1
`

const sampleID = "2024-03-02_ny_long_island_regional_b"

type resultFixture struct {
	rec       *recorder
	store     *memStore
	repo      *fakeResultRepo
	events    *fakeEventRepo
	tracks    *fakeTrackRepo
	teams     *fakeTeamRepo
	placings  *fakePlacingRepo
	penalties *fakePenaltyRepo
	feed      *fakeFeed
	mock      sqlmock.Sqlmock
	svc       ResultService
}

func newResultFixture(t *testing.T) *resultFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rec := &recorder{}
	f := &resultFixture{
		rec:       rec,
		store:     newMemStore(rec),
		repo:      newFakeResultRepo(rec),
		events:    &fakeEventRepo{newChildRows("events", rec)},
		tracks:    &fakeTrackRepo{newChildRows("tracks", rec)},
		teams:     newFakeTeamRepo(rec),
		placings:  &fakePlacingRepo{newChildRows("placings", rec)},
		penalties: &fakePenaltyRepo{newChildRows("penalties", rec)},
		feed:      &fakeFeed{},
		mock:      mock,
	}
	logger := discardLogger()
	f.svc = NewResultService(ResultServiceDeps{
		DB:          db,
		Results:     f.repo,
		Events:      f.events,
		Tracks:      f.tracks,
		Teams:       f.teams,
		Placings:    f.placings,
		Penalties:   f.penalties,
		Cache:       f.store,
		Invalidator: cache.NewInvalidator(f.store, logger),
		Feed:        f.feed,
		Logger:      logger,
	})
	return f
}

func (f *resultFixture) flush() {
	f.svc.(*resultService).async.flush()
}

// withObjects attaches an in-memory logo pool to the service under test.
func (f *resultFixture) withObjects() *fakeObjectStore {
	objects := newFakeObjectStore(f.rec)
	f.svc.(*resultService).objects = objects
	return objects
}

func (f *resultFixture) seedResult(id string, tournament map[string]any) {
	raw, _ := json.Marshal(tournament)
	f.repo.results[id] = &models.Result{
		CanonicalID: id,
		Title:       "2024 Long Island Regional (Div. B)",
		ShortTitle:  "2024 Long Island Regional Tournament (Div. B)",
		Date:        "Saturday, March 2, 2024",
		Logo:        derive.LogoPrefix + derive.DefaultLogo,
		Color:       "blue-800",
		Tournament:  raw,
	}
}

func TestResultService_GetMetaReadThrough(t *testing.T) {
	f := newResultFixture(t)
	f.seedResult(sampleID, map[string]any{"year": 2024})

	meta, err := f.svc.GetMeta(context.Background(), sampleID)
	require.NoError(t, err)
	assert.Equal(t, "2024 Long Island Regional (Div. B)", meta.Title)
	assert.Equal(t, "blue-800", meta.Color)
	f.flush()

	// The populated entry serves the second read without the repository.
	before := f.repo.getCalls
	again, err := f.svc.GetMeta(context.Background(), sampleID)
	require.NoError(t, err)
	assert.Equal(t, meta, again)
	assert.Equal(t, before, f.repo.getCalls)
}

func TestResultService_GetMetaDefaultColorWithoutStorage(t *testing.T) {
	f := newResultFixture(t)
	f.seedResult(sampleID, map[string]any{"year": 2024})
	f.repo.results[sampleID].Color = ""

	meta, err := f.svc.GetMeta(context.Background(), sampleID)
	require.NoError(t, err)
	assert.Equal(t, derive.DefaultColor, meta.Color)
}

func TestResultService_GetMetaNotFound(t *testing.T) {
	f := newResultFixture(t)
	_, err := f.svc.GetMeta(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResultService_GetCompleteColdAndWarmIdentical(t *testing.T) {
	f := newResultFixture(t)
	f.seedResult(sampleID, map[string]any{"year": 2024})
	f.events.rows[sampleID] = []json.RawMessage{
		json.RawMessage(`{"name":"Anatomy and Physiology"}`),
		json.RawMessage(`{"name":"Disease Detectives"}`),
	}
	f.teams.rows[sampleID] = []json.RawMessage{json.RawMessage(`{"number":1}`)}

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	cold, err := f.svc.GetComplete(context.Background(), sampleID)
	require.NoError(t, err)
	require.Len(t, cold.Events, 2)
	f.flush()

	warm, err := f.svc.GetComplete(context.Background(), sampleID)
	require.NoError(t, err)

	coldJSON, err := json.Marshal(cold)
	require.NoError(t, err)
	warmJSON, err := json.Marshal(warm)
	require.NoError(t, err)
	assert.JSONEq(t, string(coldJSON), string(warmJSON))

	// One transaction total: the warm read never touched the database.
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResultService_GetCompleteNotFound(t *testing.T) {
	f := newResultFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.GetComplete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func sampleInput() *models.ResultInput {
	tournament, _ := json.Marshal(map[string]any{"year": 2024, "level": "Regionals"})
	return &models.ResultInput{
		CanonicalID: sampleID,
		Title:       "2024 Long Island Regional (Div. B)",
		Year:        2024,
		Tournament:  tournament,
		Events: []models.Event{
			{ResultCanonicalID: sampleID, Name: "Anatomy and Physiology", Data: json.RawMessage(`{"name":"Anatomy and Physiology"}`)},
		},
		Teams: []models.Team{
			{ResultCanonicalID: sampleID, Number: 1, Rank: 1, Name: "Bronx Science", City: "New York", State: "NY", Country: "United States", Data: json.RawMessage(`{"number":1}`)},
		},
	}
}

func TestResultService_AddEvictsBeforeWrite(t *testing.T) {
	f := newResultFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.Add(context.Background(), sampleInput()))

	ops := f.rec.log()
	evict := slices.Index(ops, "cache.Del")
	upsert := slices.Index(ops, "results.Upsert")
	require.GreaterOrEqual(t, evict, 0)
	require.GreaterOrEqual(t, upsert, 0)
	assert.Less(t, evict, upsert)
	assert.Equal(t, []string{sampleID}, f.feed.added)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResultService_AddEvictionFailureAbortsWrite(t *testing.T) {
	f := newResultFixture(t)
	f.store.delErr = errors.New("connection refused")

	err := f.svc.Add(context.Background(), sampleInput())
	require.Error(t, err)

	assert.NotContains(t, f.rec.log(), "results.Upsert")
	assert.Empty(t, f.feed.added)
	// No transaction was ever opened.
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResultService_AddReplacesChildren(t *testing.T) {
	f := newResultFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	require.NoError(t, f.svc.Add(context.Background(), sampleInput()))

	updated := sampleInput()
	updated.Events = []models.Event{
		{ResultCanonicalID: sampleID, Name: "Disease Detectives", Data: json.RawMessage(`{"name":"Disease Detectives"}`)},
	}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	require.NoError(t, f.svc.Add(context.Background(), updated))

	rows, err := f.events.ListData(context.Background(), nil, sampleID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.JSONEq(t, `{"name":"Disease Detectives"}`, string(rows[0]))
}

func TestResultService_AddRejectsEmptyInput(t *testing.T) {
	f := newResultFixture(t)
	assert.ErrorIs(t, f.svc.Add(context.Background(), nil), ErrInvalidResultFile)
	assert.ErrorIs(t, f.svc.Add(context.Background(), &models.ResultInput{}), ErrInvalidResultFile)
}

func TestResultService_AddYAML(t *testing.T) {
	f := newResultFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	id, err := f.svc.AddYAML(context.Background(), []byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, sampleID, id)

	stored, err := f.repo.GetByID(context.Background(), nil, sampleID)
	require.NoError(t, err)
	assert.Equal(t, "2024 Long Island Regional (Div. B)", stored.Title)
	assert.Equal(t, []string{sampleID}, f.feed.added)
}

func TestResultService_AddYAMLRejectsGarbage(t *testing.T) {
	f := newResultFixture(t)
	_, err := f.svc.AddYAML(context.Background(), []byte("Teams:\n  - number: 1\n"))
	assert.ErrorIs(t, err, ErrInvalidResultFile)
}

func TestResultService_AddManyYAML(t *testing.T) {
	f := newResultFixture(t)
	second := `
Tournament:
  name: MIT Invitational
  level: Invitational
  division: C
  date: 2024-01-20
`
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	ids, err := f.svc.AddManyYAML(context.Background(), [][]byte{[]byte(sampleYAML), []byte(second)})
	require.NoError(t, err)
	assert.Equal(t, []string{sampleID, "2024-01-20_mit_invitational_c"}, ids)
}

func TestResultService_AddManyYAMLInvalidFileFailsBatch(t *testing.T) {
	f := newResultFixture(t)
	_, err := f.svc.AddManyYAML(context.Background(), [][]byte{[]byte(sampleYAML), []byte("not: [valid")})
	require.Error(t, err)
	assert.NotContains(t, f.rec.log(), "results.Upsert")
}

func TestResultService_LatestServesFromCachePrefix(t *testing.T) {
	f := newResultFixture(t)
	cached := []models.ResultSummary{
		{CanonicalID: "e"}, {CanonicalID: "d"}, {CanonicalID: "c"}, {CanonicalID: "b"}, {CanonicalID: "a"},
	}
	require.NoError(t, f.store.SetJSON(context.Background(), cache.LatestKey, cached))

	got, err := f.svc.Latest(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, cached[:3], got)
	assert.NotContains(t, f.rec.log(), "results.Latest")
}

func TestResultService_LatestLargerLimitFallsThrough(t *testing.T) {
	f := newResultFixture(t)
	require.NoError(t, f.store.SetJSON(context.Background(), cache.LatestKey, []models.ResultSummary{{CanonicalID: "a"}}))
	f.repo.latestRows = []models.ResultSummary{{CanonicalID: "a"}, {CanonicalID: "b"}}

	got, err := f.svc.Latest(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, f.rec.log(), "results.Latest")
}

func TestResultService_CountByLevelReadThrough(t *testing.T) {
	f := newResultFixture(t)
	f.repo.levelCounts = map[string]int{"Invitational": 12, "Regionals": 4, "States": 3, "Nationals": 1}

	counts, err := f.svc.CountByLevel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.repo.levelCounts, counts)
	f.flush()

	queriesBefore := len(f.rec.log())
	again, err := f.svc.CountByLevel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, counts, again)
	assert.Equal(t, queriesBefore, len(f.rec.log()))
}

func TestResultService_CountByLevelPartialCacheFallsThrough(t *testing.T) {
	f := newResultFixture(t)
	f.repo.levelCounts = map[string]int{"Invitational": 12, "Regionals": 4, "States": 3, "Nationals": 1}
	// Three of four fields present: the hash is incomplete and is ignored.
	require.NoError(t, f.store.HSet(context.Background(), cache.ResultsByLevelKey, "Invitational", "9"))
	require.NoError(t, f.store.HSet(context.Background(), cache.ResultsByLevelKey, "Regionals", "9"))
	require.NoError(t, f.store.HSet(context.Background(), cache.ResultsByLevelKey, "States", "9"))

	counts, err := f.svc.CountByLevel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, counts["Invitational"])
	assert.Contains(t, f.rec.log(), "results.CountByLevel")
}

func TestResultService_DeleteEvictsFanOut(t *testing.T) {
	f := newResultFixture(t)
	f.seedResult(sampleID, map[string]any{"year": 2024})
	school := models.SchoolIdentity{Name: "Bronx Science", City: "New York", State: "NY", Country: "United States"}
	f.teams.identities[sampleID] = []models.SchoolIdentity{school}

	require.NoError(t, f.store.SetJSON(context.Background(), cache.MetaKey(sampleID), models.ResultMetadata{Title: "stale"}))
	require.NoError(t, f.store.SetJSON(context.Background(), cache.RankingsKey(school), SchoolHistory{School: school}))

	require.NoError(t, f.svc.Delete(context.Background(), sampleID))

	var sink any
	ok, _ := f.store.GetJSON(context.Background(), cache.MetaKey(sampleID), &sink)
	assert.False(t, ok)
	ok, _ = f.store.GetJSON(context.Background(), cache.RankingsKey(school), &sink)
	assert.False(t, ok)
	assert.Equal(t, []string{sampleID}, f.feed.deleted)
}

func TestResultService_DeleteNotFound(t *testing.T) {
	f := newResultFixture(t)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), "missing"), ErrNotFound)
	assert.Empty(t, f.feed.deleted)
}

func TestResultService_DeleteAllSweepsCache(t *testing.T) {
	f := newResultFixture(t)
	f.seedResult(sampleID, map[string]any{"year": 2024})
	require.NoError(t, f.store.SetJSON(context.Background(), cache.MetaKey(sampleID), models.ResultMetadata{}))
	require.NoError(t, f.store.SetJSON(context.Background(), cache.CompleteKey(sampleID), models.Document{}))

	require.NoError(t, f.svc.DeleteAll(context.Background()))

	var sink any
	ok, _ := f.store.GetJSON(context.Background(), cache.MetaKey(sampleID), &sink)
	assert.False(t, ok)
	ok, _ = f.store.GetJSON(context.Background(), cache.CompleteKey(sampleID), &sink)
	assert.False(t, ok)
	assert.Contains(t, f.rec.log(), "results.DeleteAll")
}

func TestResultService_RegenerateMetadata(t *testing.T) {
	f := newResultFixture(t)
	f.seedResult(sampleID, map[string]any{
		"name":     "Long Island Regional",
		"level":    "Regionals",
		"state":    "NY",
		"division": "B",
		"year":     2024,
		"date":     "2024-03-02",
	})
	f.repo.results[sampleID].Title = "stale title"
	require.NoError(t, f.store.SetJSON(context.Background(), cache.MetaKey(sampleID), models.ResultMetadata{Title: "stale title"}))

	require.NoError(t, f.svc.RegenerateMetadata(context.Background(), sampleID))

	meta := f.repo.meta[sampleID]
	assert.Equal(t, "2024 Long Island Regional (Div. B)", meta.Title)
	// Without object storage the stored logo is preserved rather than reset.
	assert.Equal(t, derive.LogoPrefix+derive.DefaultLogo, meta.Logo)

	var sink any
	ok, _ := f.store.GetJSON(context.Background(), cache.MetaKey(sampleID), &sink)
	assert.False(t, ok)
}

func TestResultService_RegenerateMetadataNotFound(t *testing.T) {
	f := newResultFixture(t)
	assert.ErrorIs(t, f.svc.RegenerateMetadata(context.Background(), "missing"), ErrNotFound)
}

func TestResultService_TitlesReadThrough(t *testing.T) {
	f := newResultFixture(t)
	f.repo.titles = map[string]string{sampleID: "2024 Long Island Regional (Div. B)"}

	titles, err := f.svc.Titles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.repo.titles, titles)
	f.flush()

	opsBefore := len(f.rec.log())
	again, err := f.svc.Titles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, titles, again)
	assert.Equal(t, opsBefore, len(f.rec.log()))
}

func TestResultService_LogoNamesWithoutStorage(t *testing.T) {
	f := newResultFixture(t)
	names, err := f.svc.LogoNames(context.Background())
	require.NoError(t, err)
	assert.Nil(t, names)
}

func TestResultService_UploadLogoEvictsPoolCache(t *testing.T) {
	f := newResultFixture(t)
	objects := f.withObjects()
	ctx := context.Background()
	require.NoError(t, f.store.SAdd(ctx, cache.LogosKey, "stale.png"))

	result, err := f.svc.UploadLogo(ctx, "bronx_science.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "logos/bronx_science.png", result.Key)
	assert.Equal(t, []byte("png-bytes"), objects.objects["logos/bronx_science.png"])

	// The pool listing is evicted before the object write.
	ops := f.rec.log()
	delIdx := slices.Index(ops, "cache.Del")
	require.NotEqual(t, -1, delIdx)
	assert.Less(t, delIdx, slices.Index(ops, "objects.Upload"))

	names, err := f.svc.LogoNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bronx_science.png"}, names)
}

func TestResultService_UploadLogoWithoutStorage(t *testing.T) {
	f := newResultFixture(t)
	_, err := f.svc.UploadLogo(context.Background(), "a.png", "image/png", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrStorageNotConfigured)
}

func TestResultService_DeleteLogoEvictsPoolCache(t *testing.T) {
	f := newResultFixture(t)
	objects := f.withObjects()
	ctx := context.Background()
	objects.objects["logos/bronx_science.png"] = []byte("png-bytes")
	require.NoError(t, f.store.SAdd(ctx, cache.LogosKey, "bronx_science.png"))

	require.NoError(t, f.svc.DeleteLogo(ctx, "bronx_science.png"))
	assert.NotContains(t, objects.objects, "logos/bronx_science.png")

	names, err := f.svc.LogoNames(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestResultService_DeleteLogoEvictionFailureAbortsDelete(t *testing.T) {
	f := newResultFixture(t)
	objects := f.withObjects()
	objects.objects["logos/keep.png"] = []byte("png-bytes")
	f.store.delErr = errors.New("cache down")

	err := f.svc.DeleteLogo(context.Background(), "keep.png")
	require.Error(t, err)
	assert.Contains(t, objects.objects, "logos/keep.png")
}

func TestResultService_RecentUsesDescendingOrder(t *testing.T) {
	f := newResultFixture(t)
	f.seedResult("2023-a", map[string]any{"year": 2023})
	f.seedResult("2024-b", map[string]any{"year": 2024})

	results, err := f.svc.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2024-b", results[0].CanonicalID)
}
