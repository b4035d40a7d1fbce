package derive

import "errors"

var ErrUnknownPostalCode = errors.New("unknown state postal code")

// statesByPostalCode covers the US states plus the split California regions
// the event series uses.
var statesByPostalCode = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "nCA": "Northern California", "sCA": "Southern California",
	"CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"DC": "District of Columbia", "FL": "Florida", "GA": "Georgia",
	"HI": "Hawaii", "ID": "Idaho", "IL": "Illinois", "IN": "Indiana",
	"IA": "Iowa", "KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana",
	"ME": "Maine", "MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan",
	"MN": "Minnesota", "MS": "Mississippi", "MO": "Missouri", "MT": "Montana",
	"NE": "Nebraska", "NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey",
	"NM": "New Mexico", "NY": "New York", "NC": "North Carolina",
	"ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma", "OR": "Oregon",
	"PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "WA": "Washington",
	"WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
}

// ExpandStateName resolves a postal code to the full state name.
func ExpandStateName(postalCode string) (string, error) {
	name, ok := statesByPostalCode[postalCode]
	if !ok {
		return "", ErrUnknownPostalCode
	}
	return name, nil
}

// KnownPostalCode reports whether the code is in the state table.
func KnownPostalCode(postalCode string) bool {
	_, ok := statesByPostalCode[postalCode]
	return ok
}
