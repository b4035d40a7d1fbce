package models

import (
	"encoding/json"
	"time"
)

// Result is the aggregate root for one tournament-division combination,
// keyed by its canonical identifier.
type Result struct {
	CanonicalID string          `json:"canonical_id" db:"canonical_id"`
	Title       string          `json:"title" db:"title"`
	ShortTitle  string          `json:"short_title" db:"short_title"`
	Date        string          `json:"date" db:"date"`
	Logo        string          `json:"logo" db:"logo"`
	Color       string          `json:"color,omitempty" db:"color"`
	Tournament  json.RawMessage `json:"tournament" db:"tournament"`
	Histogram   json.RawMessage `json:"histogram,omitempty" db:"histogram"`
	Official    bool            `json:"official" db:"official"`
	Preliminary bool            `json:"preliminary" db:"preliminary"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Document is the fully assembled representation of a Result and its
// children. Field order fixes the key order of the serialized document;
// empty sections are omitted entirely.
type Document struct {
	Tournament json.RawMessage   `json:"Tournament,omitempty"`
	Events     []json.RawMessage `json:"Events,omitempty"`
	Tracks     []json.RawMessage `json:"Tracks,omitempty"`
	Teams      []json.RawMessage `json:"Teams,omitempty"`
	Placings   []json.RawMessage `json:"Placings,omitempty"`
	Penalties  []json.RawMessage `json:"Penalties,omitempty"`
	Histograms json.RawMessage   `json:"Histograms,omitempty"`
}

// ResultMetadata is the independently regenerable slice of a Result row.
type ResultMetadata struct {
	Title      string `json:"title"`
	ShortTitle string `json:"short_title"`
	Date       string `json:"date"`
	Logo       string `json:"logo"`
	Color      string `json:"color,omitempty"`
}

// ResultSummary is the trimmed row shape used by the latest-added listing.
type ResultSummary struct {
	ShortTitle  string `json:"short_title" db:"short_title"`
	Date        string `json:"date" db:"date"`
	Official    bool   `json:"official" db:"official"`
	Preliminary bool   `json:"preliminary" db:"preliminary"`
	CanonicalID string `json:"canonical_id" db:"canonical_id"`
}

// SeasonEntry is the per-tournament summary served by the season listing.
type SeasonEntry struct {
	CanonicalID string `json:"canonical_id"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	Official    bool   `json:"official"`
	Preliminary bool   `json:"preliminary"`
}
