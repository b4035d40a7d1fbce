package derive

import (
	"fmt"
	"strings"
	"time"
)

// TournamentTitle builds the long display title. The explicit name wins when
// present; otherwise the title is derived from the level.
func TournamentTitle(t Tournament) (string, error) {
	if t.Name != "" {
		return t.Name, nil
	}
	switch t.Level {
	case LevelNationals:
		return "Science Olympiad National Tournament", nil
	case LevelStates:
		state, err := ExpandStateName(t.State)
		if err != nil {
			return "", err
		}
		return state + " Science Olympiad State Tournament", nil
	case LevelRegionals:
		return t.Location + " Regional Tournament", nil
	default:
		return t.Location + " Invitational", nil
	}
}

// TournamentTitleShort builds the short display title.
func TournamentTitleShort(t Tournament) string {
	switch t.Level {
	case LevelNationals:
		return "National Tournament"
	case LevelStates:
		state := strings.ReplaceAll(t.State, "sCA", "SoCal")
		state = strings.ReplaceAll(state, "nCA", "NorCal")
		return state + " State Tournament"
	default:
		if t.ShortName == "" && t.Name != "" {
			cut := "Invitational"
			if t.Level == LevelRegionals {
				cut = "Regional"
			}
			prefix := strings.SplitN(t.Name, cut, 2)[0]
			if cut == "Regional" {
				return prefix + cut + " Tournament"
			}
			return prefix + cut
		}
		return t.ShortName
	}
}

// FullTitle prepends the season year and appends the division.
func FullTitle(t Tournament) (string, error) {
	title, err := TournamentTitle(t)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %s (Div. %s)", t.Year, title, strings.ToUpper(t.Division)), nil
}

// FullShortTitle is FullTitle over the short form.
func FullShortTitle(t Tournament) string {
	return fmt.Sprintf("%d %s (Div. %s)", t.Year, TournamentTitleShort(t), strings.ToUpper(t.Division))
}

// DateRange renders the display date for the tournament: the start date, or
// a "start - end" span when the tournament runs multiple days. Dates are
// formatted in UTC.
func DateRange(t Tournament) string {
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return ""
	}
	start := formatDay(t.StartDate)
	end := formatDay(t.EndDate)
	if start != end {
		return start + " - " + end
	}
	return start
}

func formatDay(d time.Time) string {
	d = d.UTC()
	return fmt.Sprintf("%s, %s %d, %d", d.Weekday(), d.Month(), d.Day(), d.Year())
}
