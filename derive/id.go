// Package derive holds the pure derivation functions for result metadata:
// canonical identifier generation, logo candidate resolution, accent color
// selection and display titles. Everything here is deterministic and free of
// I/O; collaborators fetch whatever inputs (image listings, image bytes) a
// function needs.
package derive

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Tournament levels, as they appear in source files.
const (
	LevelInvitational = "Invitational"
	LevelRegionals    = "Regionals"
	LevelStates       = "States"
	LevelNationals    = "Nationals"
)

var (
	ErrMissingStartDate = errors.New("tournament has no start date")
	ErrMissingName      = errors.New("tournament has neither a name nor a short name")
)

// Tournament carries the metadata fields the derivation functions inspect.
type Tournament struct {
	Name      string
	ShortName string
	Level     string
	State     string
	Division  string
	Location  string
	Year      int
	StartDate time.Time
	EndDate   time.Time
}

var (
	nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]+`)
	underscoreRuns  = regexp.MustCompile(`_+`)
)

// ID derives the canonical identifier for a tournament:
// YYYY-MM-DD_<level-specific segment>_<division>, lower-cased. It is a pure
// function of the metadata, so regenerating an identifier for unchanged
// metadata always yields the same string.
func ID(t Tournament) (string, error) {
	if t.StartDate.IsZero() {
		return "", ErrMissingStartDate
	}
	relevant, err := relevantName(t)
	if err != nil {
		return "", err
	}

	// The date is taken in UTC so the day never shifts with the local zone.
	d := t.StartDate.UTC()
	out := fmt.Sprintf("%04d-%02d-%02d", d.Year(), int(d.Month()), d.Day())

	lowered := strings.ToLower(relevant)
	switch t.Level {
	case LevelNationals:
		out += "_nationals"
	case LevelStates:
		out += "_" + t.State + "_states"
	case LevelRegionals:
		prefix := strings.Split(lowered, "regional")[0]
		out += "_" + t.State + "_" + cleanFragment(prefix) + "regional"
	default:
		prefix := strings.Split(lowered, "invitational")[0]
		out += "_" + cleanFragment(prefix) + "invitational"
	}

	if t.Level == LevelRegionals || t.Level == LevelInvitational {
		keyword := "regional"
		if t.Level == LevelInvitational {
			keyword = "invitational"
		}
		parts := strings.Split(lowered, keyword)
		if len(parts) > 1 {
			for _, part := range parts[1:] {
				out += "_" + cleanFragment(strings.TrimSpace(part))
			}
			out = out[:len(out)-1]
		}
	}

	out += "_" + t.Division
	out = underscoreRuns.ReplaceAllString(out, "_")
	return strings.ToLower(out), nil
}

// relevantName resolves the name fragment used in identifiers: the short
// name when present, the full name otherwise.
func relevantName(t Tournament) (string, error) {
	if t.ShortName != "" {
		return t.ShortName, nil
	}
	if t.Name != "" {
		return t.Name, nil
	}
	return "", ErrMissingName
}

// cleanFragment strips periods, collapses every remaining run of
// non-alphanumeric characters to a single underscore and guarantees a
// trailing underscore.
func cleanFragment(s string) string {
	s = strings.ReplaceAll(s, ".", "")
	s = nonAlphanumeric.ReplaceAllString(s, "_")
	if !strings.HasSuffix(s, "_") {
		s += "_"
	}
	return s
}
