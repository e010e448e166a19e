package extract

import (
	"strings"

	"pathfinder/pkg/models"
)

// ParseRemote reads the telework policy out of tag lists and descriptions.
// The first text carrying any signal decides.
func ParseRemote(texts ...string) models.RemotePolicy {
	for _, text := range texts {
		s := Fold(text)
		switch {
		case s == "":
			continue
		case strings.Contains(s, "teletravail total"), strings.Contains(s, "full remote"),
			strings.Contains(s, "100% remote"), strings.Contains(s, "remote total"):
			return models.RemoteTotal
		case strings.Contains(s, "teletravail frequent"), strings.Contains(s, "teletravail partiel"),
			strings.Contains(s, "hybride"), strings.Contains(s, "hybrid"):
			return models.RemoteHybrid
		case strings.Contains(s, "teletravail ponctuel"), strings.Contains(s, "teletravail occasionnel"):
			return models.RemoteOccasional
		case strings.Contains(s, "teletravail"), strings.Contains(s, "remote"):
			return models.RemotePossible
		}
	}
	return models.RemoteUnspecified
}
