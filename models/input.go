package models

import "encoding/json"

// ResultInput is the fully derived write-model for one bulk ingestion: the
// Result row plus every child row, produced by the ingestion layer before
// anything touches the database.
type ResultInput struct {
	CanonicalID string
	Title       string
	ShortTitle  string
	Date        string
	Logo        string
	Color       string
	Year        int
	Tournament  json.RawMessage
	Histogram   json.RawMessage
	Official    bool
	Preliminary bool

	Events    []Event
	Tracks    []Track
	Teams     []Team
	Placings  []Placing
	Penalties []Penalty
}

// Result materializes the aggregate-root row of the input.
func (in *ResultInput) Result() *Result {
	return &Result{
		CanonicalID: in.CanonicalID,
		Title:       in.Title,
		ShortTitle:  in.ShortTitle,
		Date:        in.Date,
		Logo:        in.Logo,
		Color:       in.Color,
		Tournament:  in.Tournament,
		Histogram:   in.Histogram,
		Official:    in.Official,
		Preliminary: in.Preliminary,
	}
}

// SchoolIdentities returns the distinct school identities of the input's
// teams, in first-seen order.
func (in *ResultInput) SchoolIdentities() []SchoolIdentity {
	seen := make(map[SchoolIdentity]struct{}, len(in.Teams))
	out := make([]SchoolIdentity, 0, len(in.Teams))
	for _, t := range in.Teams {
		id := SchoolIdentity{Name: t.Name, City: t.City, State: t.State, Country: t.Country}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
