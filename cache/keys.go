package cache

import (
	"fmt"

	"github.com/openscioly/results-api/models"
)

// The cache key namespace is fixed and enumerable; every key the service
// ever reads or writes is built here.

const (
	ResultsByLevelKey = "resultsByLevel"
	SeasonsKey        = "seasons"
	LatestKey         = "latest"
	LogosKey          = "logos"
	TitlesKey         = "titles"
	LettersKey        = "letters"
)

func MetaKey(canonicalID string) string {
	return "meta:" + canonicalID
}

func CompleteKey(canonicalID string) string {
	return "complete:" + canonicalID
}

func SeasonKey(year int) string {
	return fmt.Sprintf("seasons:%d", year)
}

func SeasonEntryKey(year int, canonicalID string) string {
	return fmt.Sprintf("seasons:%d:%s", year, canonicalID)
}

func SchoolLetterKey(letter string) string {
	return "schools:" + letter
}

// RankingsKey keys a school's ranking history by its literal identity tuple.
func RankingsKey(school models.SchoolIdentity) string {
	return fmt.Sprintf("rankings:%s:%s:%s:%s", school.Country, school.State, school.City, school.Name)
}
