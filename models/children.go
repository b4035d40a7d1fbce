package models

import "encoding/json"

// Child records are uniquely keyed by (result identifier, natural key).
// The data payload is the canonical per-entity document and is stored
// opaquely; the scalar columns exist for sorting and filtering only.

type Event struct {
	ResultCanonicalID string          `json:"result_canonical_id" db:"result_canonical_id"`
	Name              string          `json:"name" db:"name"`
	Data              json.RawMessage `json:"data" db:"data"`
}

type Track struct {
	ResultCanonicalID string          `json:"result_canonical_id" db:"result_canonical_id"`
	Name              string          `json:"name" db:"name"`
	Data              json.RawMessage `json:"data" db:"data"`
}

type Team struct {
	ResultCanonicalID string          `json:"result_canonical_id" db:"result_canonical_id"`
	Number            int             `json:"number" db:"number"`
	Rank              int             `json:"rank" db:"rank"`
	TrackRank         *int            `json:"track_rank,omitempty" db:"track_rank"`
	Name              string          `json:"name" db:"name"`
	City              string          `json:"city" db:"city"`
	State             string          `json:"state" db:"state"`
	Country           string          `json:"country" db:"country"`
	Data              json.RawMessage `json:"data" db:"data"`
}

type Placing struct {
	ResultCanonicalID string          `json:"result_canonical_id" db:"result_canonical_id"`
	EventName         string          `json:"event_name" db:"event_name"`
	TeamNumber        int             `json:"team_number" db:"team_number"`
	Data              json.RawMessage `json:"data" db:"data"`
}

type Penalty struct {
	ResultCanonicalID string          `json:"result_canonical_id" db:"result_canonical_id"`
	TeamNumber        int             `json:"team_number" db:"team_number"`
	Data              json.RawMessage `json:"data" db:"data"`
}

// SchoolIdentity is the literal (name, city, state, country) tuple used to
// key per-school ranking caches. No case or whitespace normalization is
// applied; differently-spelled variants are distinct identities.
type SchoolIdentity struct {
	Name    string `json:"name"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// TeamRanking is one team's rank at one tournament, joined with the parent
// result's title for school-history listings.
type TeamRanking struct {
	SchoolIdentity
	Rank        int    `json:"rank"`
	CanonicalID string `json:"canonical_id"`
	ResultTitle string `json:"result_title"`
}
