package patching

import (
	"time"

	"github.com/archmachina/winpatch/internal/wua"
)

// FilterByAge returns the updates whose last deployment change is strictly
// older than now minus thresholdDays. A negative threshold is treated as its
// absolute value; an update changed exactly at the cutoff is excluded.
func FilterByAge(updates []wua.Update, thresholdDays int, now time.Time) []wua.Update {
	if thresholdDays < 0 {
		thresholdDays = -thresholdDays
	}
	cutoff := now.AddDate(0, 0, -thresholdDays)

	filtered := make([]wua.Update, 0, len(updates))
	for _, update := range updates {
		if update.LastDeploymentChangeTime.Before(cutoff) {
			filtered = append(filtered, update)
		}
	}
	return filtered
}
