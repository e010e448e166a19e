package expiry

import (
	"time"

	"pathfinder/pkg/models"
)

// Reset clears expiry dates: every one when all is set, otherwise only the
// ones recorded on the day of now. It returns how many records were revived.
func Reset[T any, P Record[T]](records []T, all bool, now time.Time) int {
	today := models.Day(now)
	revived := 0
	for i := range records {
		rec := P(&records[i])
		on := rec.ExpiredOn()
		if on == nil {
			continue
		}
		if all || models.Day(*on).Equal(today) {
			rec.ClearExpiry()
			revived++
		}
	}
	return revived
}
