// Package ingest turns raw YAML result files into fully derived write-model
// inputs. Parsing and derivation are separated so callers can derive the
// canonical identifier first, fetch the logo candidate pool, and only then
// finish the build.
package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openscioly/results-api/derive"
	"github.com/openscioly/results-api/models"
)

// File is one decoded result file. Section payloads stay loosely typed; only
// the fields the engine indexes are extracted.
type File struct {
	Tournament map[string]any   `yaml:"Tournament"`
	Events     []map[string]any `yaml:"Events"`
	Tracks     []map[string]any `yaml:"Tracks"`
	Teams      []map[string]any `yaml:"Teams"`
	Placings   []map[string]any `yaml:"Placings"`
	Penalties  []map[string]any `yaml:"Penalties"`
	Histograms map[string]any   `yaml:"Histograms"`
}

// Parse decodes a YAML result file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse result file: %w", err)
	}
	if f.Tournament == nil {
		return nil, fmt.Errorf("result file has no Tournament section")
	}
	return &f, nil
}

// TournamentInfo extracts the metadata fields the derivation functions need.
func (f *File) TournamentInfo() derive.Tournament {
	return tournamentFromRep(f.Tournament)
}

// CanonicalID derives the identifier for the file's tournament.
func (f *File) CanonicalID() (string, error) {
	return derive.ID(f.TournamentInfo())
}

// Build produces the complete write-model for the file. logoImages is the
// candidate pool for logo resolution; nil selects the default logo.
func (f *File) Build(logoImages []string) (*models.ResultInput, error) {
	t := f.TournamentInfo()

	id, err := derive.ID(t)
	if err != nil {
		return nil, err
	}
	title, err := derive.FullTitle(t)
	if err != nil {
		return nil, err
	}

	tournamentJSON, err := repJSON(f.Tournament)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tournament payload: %w", err)
	}
	var histogramJSON json.RawMessage
	if len(f.Histograms) > 0 {
		histogramJSON, err = repJSON(f.Histograms)
		if err != nil {
			return nil, fmt.Errorf("failed to encode histogram payload: %w", err)
		}
	}

	in := &models.ResultInput{
		CanonicalID: id,
		Title:       title,
		ShortTitle:  derive.FullShortTitle(t),
		Date:        derive.DateRange(t),
		Logo:        derive.LogoPath(id, logoImages),
		Year:        t.Year,
		Tournament:  tournamentJSON,
		Histogram:   histogramJSON,
		Official:    getBool(f.Tournament, "official"),
		Preliminary: getBool(f.Tournament, "preliminary"),
	}

	for _, rep := range f.Events {
		data, err := repJSON(rep)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event payload: %w", err)
		}
		in.Events = append(in.Events, models.Event{
			ResultCanonicalID: id,
			Name:              getString(rep, "name"),
			Data:              data,
		})
	}

	for _, rep := range f.Tracks {
		data, err := repJSON(rep)
		if err != nil {
			return nil, fmt.Errorf("failed to encode track payload: %w", err)
		}
		in.Tracks = append(in.Tracks, models.Track{
			ResultCanonicalID: id,
			Name:              fmt.Sprint(rep["name"]),
			Data:              data,
		})
	}

	for i, rep := range f.Teams {
		team, err := buildTeam(id, i, rep)
		if err != nil {
			return nil, err
		}
		in.Teams = append(in.Teams, team)
	}

	for _, rep := range f.Placings {
		data, err := repJSON(rep)
		if err != nil {
			return nil, fmt.Errorf("failed to encode placing payload: %w", err)
		}
		in.Placings = append(in.Placings, models.Placing{
			ResultCanonicalID: id,
			EventName:         getString(rep, "event"),
			TeamNumber:        getInt(rep, "team"),
			Data:              data,
		})
	}

	for _, rep := range f.Penalties {
		data, err := repJSON(rep)
		if err != nil {
			return nil, fmt.Errorf("failed to encode penalty payload: %w", err)
		}
		in.Penalties = append(in.Penalties, models.Penalty{
			ResultCanonicalID: id,
			TeamNumber:        getInt(rep, "team"),
			Data:              data,
		})
	}

	return in, nil
}

// buildTeam maps one team rep into the indexed write model. A team whose
// state is a known postal code is a United States team; anything else is
// treated as a country name.
func buildTeam(resultID string, index int, rep map[string]any) (models.Team, error) {
	number := getInt(rep, "number")
	if number == 0 {
		return models.Team{}, fmt.Errorf("team at index %d has no number", index)
	}

	rank := getInt(rep, "rank")
	if rank == 0 {
		// Reps without explicit ranks list teams in rank order.
		rank = index + 1
	}
	var trackRank *int
	if v, ok := rep["track rank"]; ok {
		tr := toInt(v)
		trackRank = &tr
	}

	state := getString(rep, "state")
	country := state
	if derive.KnownPostalCode(state) {
		country = "United States"
	} else {
		state = ""
	}

	data, err := repJSON(rep)
	if err != nil {
		return models.Team{}, fmt.Errorf("failed to encode team payload: %w", err)
	}
	return models.Team{
		ResultCanonicalID: resultID,
		Number:            number,
		Rank:              rank,
		TrackRank:         trackRank,
		Name:              getString(rep, "school"),
		City:              getString(rep, "city"),
		State:             state,
		Country:           country,
		Data:              data,
	}, nil
}

// TournamentFromJSON recovers derivation metadata from a stored tournament
// payload, for metadata regeneration.
func TournamentFromJSON(raw json.RawMessage) (derive.Tournament, error) {
	var rep map[string]any
	if err := json.Unmarshal(raw, &rep); err != nil {
		return derive.Tournament{}, fmt.Errorf("failed to decode tournament payload: %w", err)
	}
	return tournamentFromRep(rep), nil
}

func tournamentFromRep(rep map[string]any) derive.Tournament {
	t := derive.Tournament{
		Name:      getString(rep, "name"),
		ShortName: getString(rep, "short name"),
		Level:     getString(rep, "level"),
		State:     getString(rep, "state"),
		Division:  getString(rep, "division"),
		Location:  getString(rep, "location"),
		Year:      getInt(rep, "year"),
		StartDate: getDate(rep, "start date"),
		EndDate:   getDate(rep, "end date"),
	}
	// Single-day files carry one date field for both ends.
	if t.StartDate.IsZero() {
		t.StartDate = getDate(rep, "date")
	}
	if t.EndDate.IsZero() {
		t.EndDate = t.StartDate
	}
	if t.Year == 0 && !t.StartDate.IsZero() {
		t.Year = t.StartDate.UTC().Year()
	}
	return t
}

// repJSON encodes a rep section as JSON with date values normalized to plain
// YYYY-MM-DD strings.
func repJSON(rep map[string]any) (json.RawMessage, error) {
	return json.Marshal(normalize(rep))
}

func normalize(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format("2006-01-02")
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getBool(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func getInt(m map[string]any, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	return toInt(v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// getDate reads a date value that the YAML decoder may have produced either
// as a timestamp or as a plain string.
func getDate(m map[string]any, key string) time.Time {
	switch v := m[key].(type) {
	case time.Time:
		return v.UTC()
	case string:
		if d, err := time.Parse("2006-01-02", v); err == nil {
			return d
		}
		if d, err := time.Parse(time.RFC3339, v); err == nil {
			return d.UTC()
		}
	}
	return time.Time{}
}
