package derive

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultLogo is returned whenever the candidate pool is absent or nothing
// plausible matches.
const DefaultLogo = "default.jpg"

// LogoPrefix is the path prefix under which logo objects are served.
const LogoPrefix = "/images/logos/"

var (
	leadingDigits  = regexp.MustCompile(`^\d+`)
	divisionSuffix = regexp.MustCompile(`_[abc]$`)
	regionalID     = regexp.MustCompile(`_regional_[abc]$`)
	formatMarker   = regexp.MustCompile(`(mini|satellite|in-person)_?(so)?_`)
)

// LogoPath picks the logo image for a canonical identifier from a pool of
// candidate file names. The result is always one of the candidates or
// DefaultLogo, and never a file whose embedded year postdates the tournament.
func LogoPath(canonicalID string, images []string) string {
	year := embeddedYear(canonicalID)
	name := tournamentNameFragment(canonicalID)

	if images == nil {
		return LogoPrefix + DefaultLogo
	}

	// Candidates carrying a division suffix must carry this tournament's;
	// candidates without one stay eligible.
	sameDivision := make([]string, 0, len(images))
	for _, img := range images {
		base := strings.SplitN(img, ".", 2)[0]
		suffix := divisionSuffix.FindString(base)
		if suffix == "" || strings.HasSuffix(canonicalID, suffix) {
			sameDivision = append(sameDivision, img)
		}
	}

	var hasName []string
	yearPrefixed := strconv.Itoa(year) + "_" + name
	for _, img := range sameDivision {
		if strings.HasPrefix(img, name) || strings.HasPrefix(img, yearPrefixed) {
			hasName = append(hasName, img)
		}
	}

	// A regional tournament without a logo of its own falls back to its
	// state tournament's.
	var stateFallback []string
	if regionalID.MatchString(canonicalID) {
		parts := strings.Split(canonicalID, "_")
		if len(parts) > 1 {
			stateName := parts[1] + "_states"
			for _, img := range sameDivision {
				if strings.Contains(img, stateName) {
					stateFallback = append(stateFallback, img)
				}
			}
		}
	}

	// Mini/satellite/in-person variants share the parent tournament's logo.
	var withoutFormat []string
	if formatMarker.MatchString(canonicalID) {
		stripped := replaceFirst(name, formatMarker, "")
		for _, img := range sameDivision {
			if strings.Contains(img, stripped) {
				withoutFormat = append(withoutFormat, img)
			}
		}
	}

	candidates := make([]string, 0, len(hasName)+len(withoutFormat)+len(stateFallback)+1)
	candidates = append(candidates, hasName...)
	candidates = append(candidates, withoutFormat...)
	candidates = append(candidates, stateFallback...)
	candidates = append(candidates, DefaultLogo)

	selected := ""
	best := -1.0
	for _, img := range candidates {
		imgYear := embeddedYearOf(img)
		if imgYear > year {
			continue
		}
		// Prefer the most recent year; among equals, the more specific
		// (longer) name.
		score := float64(imgYear) + float64(len(img))/100
		if score >= best {
			best = score
			selected = img
		}
	}
	if selected == "" {
		selected = DefaultLogo
	}
	return LogoPrefix + selected
}

// tournamentNameFragment strips the date prefix and division suffix from an
// identifier, plus the no-builds marker.
func tournamentNameFragment(canonicalID string) string {
	if len(canonicalID) < 13 {
		return ""
	}
	name := canonicalID[11 : len(canonicalID)-2]
	return strings.Replace(name, "_no_builds", "", 1)
}

func embeddedYear(canonicalID string) int {
	if len(canonicalID) < 4 {
		return 0
	}
	year, _ := strconv.Atoi(canonicalID[:4])
	return year
}

func embeddedYearOf(image string) int {
	digits := leadingDigits.FindString(image)
	if digits == "" {
		return 0
	}
	year, _ := strconv.Atoi(digits)
	return year
}

func replaceFirst(s string, re *regexp.Regexp, repl string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + repl + s[loc[1]:]
}
