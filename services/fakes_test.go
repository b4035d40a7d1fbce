package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/openscioly/results-api/models"
	"github.com/openscioly/results-api/repositories"
	"github.com/openscioly/results-api/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder collects a cross-collaborator operation log so tests can assert
// ordering between cache evictions and store writes.
type recorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *recorder) record(op string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recorder) log() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

// memStore is an in-memory cache.Store covering every structure the services
// use. Async population runs on separate goroutines, so all access is locked.
type memStore struct {
	mu     sync.Mutex
	docs   map[string][]byte
	zsets  map[string]map[string]float64
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}
	rec    *recorder
	delErr error
}

func newMemStore(rec *recorder) *memStore {
	return &memStore{
		docs:   make(map[string][]byte),
		zsets:  make(map[string]map[string]float64),
		hashes: make(map[string]map[string]string),
		sets:   make(map[string]map[string]struct{}),
		rec:    rec,
	}
}

func (s *memStore) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.docs[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (s *memStore) SetJSON(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = raw
	return nil
}

func (s *memStore) ZAdd(ctx context.Context, key, member string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zsets[key] == nil {
		s.zsets[key] = make(map[string]float64)
	}
	s.zsets[key][member] = score
	return nil
}

func (s *memStore) ZRevRange(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := make([]string, 0, len(s.zsets[key]))
	for m := range s.zsets[key] {
		members = append(members, m)
	}
	set := s.zsets[key]
	sort.Slice(members, func(i, j int) bool {
		if set[members[i]] != set[members[j]] {
			return set[members[i]] > set[members[j]]
		}
		return members[i] > members[j]
	})
	return members, nil
}

func (s *memStore) ZCard(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.zsets[key])), nil
}

func (s *memStore) HSet(ctx context.Context, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hashes[key] == nil {
		s.hashes[key] = make(map[string]string)
	}
	s.hashes[key][field] = value
	return nil
}

func (s *memStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.hashes[key]))
	for k, v := range s.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) HLen(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.hashes[key])), nil
}

func (s *memStore) SAdd(ctx context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sets[key] == nil {
		s.sets[key] = make(map[string]struct{})
	}
	for _, m := range members {
		s.sets[key][m] = struct{}{}
	}
	return nil
}

func (s *memStore) SMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

func (s *memStore) SCard(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.sets[key])), nil
}

func (s *memStore) Del(ctx context.Context, keys ...string) error {
	if s.delErr != nil {
		return s.delErr
	}
	s.rec.record("cache.Del")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.docs, k)
		delete(s.zsets, k)
		delete(s.hashes, k)
		delete(s.sets, k)
	}
	return nil
}

func (s *memStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := pattern
	if n := len(prefix); n > 0 && prefix[n-1] == '*' {
		prefix = prefix[:n-1]
	}
	seen := make(map[string]struct{})
	for k := range s.docs {
		seen[k] = struct{}{}
	}
	for k := range s.zsets {
		seen[k] = struct{}{}
	}
	for k := range s.hashes {
		seen[k] = struct{}{}
	}
	for k := range s.sets {
		seen[k] = struct{}{}
	}
	var matched []string
	for k := range seen {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			matched = append(matched, k)
		}
	}
	return matched, nil
}

// fakeResultRepo serves result rows from memory and records which methods ran.
type fakeResultRepo struct {
	mu          sync.Mutex
	rec         *recorder
	results     map[string]*models.Result
	latestRows  []models.ResultSummary
	levelCounts map[string]int
	seasons     []int
	bySeason    map[int][]models.SeasonEntry
	titles      map[string]string
	meta        map[string]models.ResultMetadata
	colors      map[string]string
	getCalls    int
}

func newFakeResultRepo(rec *recorder) *fakeResultRepo {
	return &fakeResultRepo{
		rec:         rec,
		results:     make(map[string]*models.Result),
		levelCounts: make(map[string]int),
		bySeason:    make(map[int][]models.SeasonEntry),
		titles:      make(map[string]string),
		meta:        make(map[string]models.ResultMetadata),
		colors:      make(map[string]string),
	}
}

func (r *fakeResultRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, result *models.Result) error {
	r.rec.record("results.Upsert")
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *result
	r.results[result.CanonicalID] = &stored
	return nil
}

func (r *fakeResultRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, canonicalID string) (*models.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	res, ok := r.results[canonicalID]
	if !ok {
		return nil, repositories.ErrResultNotFound
	}
	copied := *res
	return &copied, nil
}

func (r *fakeResultRepo) List(ctx context.Context, exec repositories.SQLExecutor, ascending bool, limit int) ([]models.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.results))
	for id := range r.results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if !ascending {
		sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	}
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	out := make([]models.Result, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.results[id])
	}
	return out, nil
}

func (r *fakeResultRepo) ListIDs(ctx context.Context, exec repositories.SQLExecutor) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.results))
	for id := range r.results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *fakeResultRepo) Latest(ctx context.Context, exec repositories.SQLExecutor, limit int) ([]models.ResultSummary, error) {
	r.rec.record("results.Latest")
	out := r.latestRows
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeResultRepo) CountByLevel(ctx context.Context, exec repositories.SQLExecutor, level string) (int, error) {
	r.rec.record("results.CountByLevel")
	return r.levelCounts[level], nil
}

func (r *fakeResultRepo) ListSeasons(ctx context.Context, exec repositories.SQLExecutor) ([]int, error) {
	r.rec.record("results.ListSeasons")
	return r.seasons, nil
}

func (r *fakeResultRepo) BySeason(ctx context.Context, exec repositories.SQLExecutor, year int) ([]models.SeasonEntry, error) {
	r.rec.record("results.BySeason")
	return r.bySeason[year], nil
}

func (r *fakeResultRepo) Titles(ctx context.Context, exec repositories.SQLExecutor) (map[string]string, error) {
	r.rec.record("results.Titles")
	return r.titles, nil
}

func (r *fakeResultRepo) Exists(ctx context.Context, exec repositories.SQLExecutor, canonicalID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.results[canonicalID]
	return ok, nil
}

func (r *fakeResultRepo) UpdateMetadata(ctx context.Context, exec repositories.SQLExecutor, canonicalID string, meta models.ResultMetadata) error {
	r.rec.record("results.UpdateMetadata")
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.results[canonicalID]; !ok {
		return repositories.ErrResultNotFound
	}
	r.meta[canonicalID] = meta
	return nil
}

func (r *fakeResultRepo) UpdateColor(ctx context.Context, exec repositories.SQLExecutor, canonicalID, color string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.colors[canonicalID] = color
	return nil
}

func (r *fakeResultRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, canonicalID string) error {
	r.rec.record("results.Delete")
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.results[canonicalID]; !ok {
		return repositories.ErrResultNotFound
	}
	delete(r.results, canonicalID)
	return nil
}

func (r *fakeResultRepo) DeleteAll(ctx context.Context, exec repositories.SQLExecutor) error {
	r.rec.record("results.DeleteAll")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = make(map[string]*models.Result)
	return nil
}

// childRows is the shared in-memory core of the child-table fakes.
type childRows struct {
	mu   sync.Mutex
	name string
	rec  *recorder
	rows map[string][]json.RawMessage
}

func newChildRows(name string, rec *recorder) childRows {
	return childRows{name: name, rec: rec, rows: make(map[string][]json.RawMessage)}
}

func (c *childRows) add(canonicalID string, data json.RawMessage) {
	c.rec.record(c.name + ".Upsert")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[canonicalID] = append(c.rows[canonicalID], data)
}

func (c *childRows) ListData(ctx context.Context, exec repositories.SQLExecutor, canonicalID string) ([]json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]json.RawMessage(nil), c.rows[canonicalID]...), nil
}

func (c *childRows) DeleteByResult(ctx context.Context, exec repositories.SQLExecutor, canonicalID string) error {
	c.rec.record(c.name + ".DeleteByResult")
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rows, canonicalID)
	return nil
}

type fakeEventRepo struct{ childRows }

func (f *fakeEventRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, event *models.Event) error {
	f.add(event.ResultCanonicalID, event.Data)
	return nil
}

type fakeTrackRepo struct{ childRows }

func (f *fakeTrackRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, track *models.Track) error {
	f.add(track.ResultCanonicalID, track.Data)
	return nil
}

type fakeTeamRepo struct {
	childRows
	identities map[string][]models.SchoolIdentity
	letters    []string
	byLetter   map[string][]models.TeamRanking
	byIdentity map[models.SchoolIdentity][]models.TeamRanking
}

func newFakeTeamRepo(rec *recorder) *fakeTeamRepo {
	return &fakeTeamRepo{
		childRows:  newChildRows("teams", rec),
		identities: make(map[string][]models.SchoolIdentity),
		byLetter:   make(map[string][]models.TeamRanking),
		byIdentity: make(map[models.SchoolIdentity][]models.TeamRanking),
	}
}

func (f *fakeTeamRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, team *models.Team) error {
	f.add(team.ResultCanonicalID, team.Data)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[team.ResultCanonicalID] = append(f.identities[team.ResultCanonicalID], models.SchoolIdentity{
		Name: team.Name, City: team.City, State: team.State, Country: team.Country,
	})
	return nil
}

func (f *fakeTeamRepo) ListIdentities(ctx context.Context, exec repositories.SQLExecutor, canonicalID string) ([]models.SchoolIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SchoolIdentity(nil), f.identities[canonicalID]...), nil
}

func (f *fakeTeamRepo) FirstLetters(ctx context.Context, exec repositories.SQLExecutor) ([]string, error) {
	f.rec.record("teams.FirstLetters")
	return f.letters, nil
}

func (f *fakeTeamRepo) ListByLetter(ctx context.Context, exec repositories.SQLExecutor, letter string) ([]models.TeamRanking, error) {
	f.rec.record("teams.ListByLetter")
	return f.byLetter[letter], nil
}

func (f *fakeTeamRepo) ListByIdentity(ctx context.Context, exec repositories.SQLExecutor, school models.SchoolIdentity) ([]models.TeamRanking, error) {
	f.rec.record("teams.ListByIdentity")
	return f.byIdentity[school], nil
}

type fakePlacingRepo struct{ childRows }

func (f *fakePlacingRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, placing *models.Placing) error {
	f.add(placing.ResultCanonicalID, placing.Data)
	return nil
}

type fakePenaltyRepo struct{ childRows }

func (f *fakePenaltyRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, penalty *models.Penalty) error {
	f.add(penalty.ResultCanonicalID, penalty.Data)
	return nil
}

// fakeObjectStore is an in-memory logo pool.
type fakeObjectStore struct {
	mu      sync.Mutex
	rec     *recorder
	objects map[string][]byte
	delErr  error
}

func newFakeObjectStore(rec *recorder) *fakeObjectStore {
	return &fakeObjectStore{rec: rec, objects: make(map[string][]byte)}
}

func (s *fakeObjectStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.rec.record("objects.List")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.objects))
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			names = append(names, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *fakeObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	s.rec.record("objects.Download")
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return append([]byte(nil), data...), nil
}

func (s *fakeObjectStore) Upload(ctx context.Context, key, contentType string, file io.Reader) (*storage.UploadResult, error) {
	s.rec.record("objects.Upload")
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return &storage.UploadResult{Key: key, Location: "https://cdn.example.test/" + key, ETag: "fake"}, nil
}

func (s *fakeObjectStore) Delete(ctx context.Context, key string) error {
	s.rec.record("objects.Delete")
	if s.delErr != nil {
		return s.delErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// fakeFeed records live-feed notifications.
type fakeFeed struct {
	mu      sync.Mutex
	added   []string
	deleted []string
}

func (f *fakeFeed) ResultAdded(canonicalID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, canonicalID)
}

func (f *fakeFeed) ResultDeleted(canonicalID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, canonicalID)
}

// fakeUserRepo backs the auth service tests.
type fakeUserRepo struct {
	mu      sync.Mutex
	nextID  int
	byEmail map[string]*models.User
	byID    map[int]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*models.User), byID: make(map[int]*models.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[user.Email]; ok {
		return repositories.ErrUserEmailConflict
	}
	f.nextID++
	user.ID = f.nextID
	stored := *user
	f.byEmail[user.Email] = &stored
	f.byID[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byEmail[email]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}
