package rewards

import (
	"time"

	"github.com/zapstreak/zapstreak-sdk-go/pkg/model"
)

// dayOf truncates t to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dayDelta returns the whole-day difference between two UTC calendar days.
func dayDelta(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// accrue folds one activity day into the streak record. Same-day activity
// leaves the streak unchanged; the next consecutive day extends it; any gap
// or out-of-order day resets it to 1. Returns whether the record changed.
func accrue(rec *model.StreakRecord, activity, now time.Time) bool {
	day := dayOf(activity)

	if rec.LastActivityDay.IsZero() {
		rec.CurrentStreakDays = 1
		rec.LastActivityDay = day
		rec.UpdatedAt = now
		return true
	}

	switch delta := dayDelta(rec.LastActivityDay, day); {
	case delta == 0:
		return false
	case delta == 1:
		rec.CurrentStreakDays++
	default:
		// Gap or out-of-order event: the run is broken either way.
		rec.CurrentStreakDays = 1
		rec.LastRewardedDay = 0
	}
	rec.LastActivityDay = day
	rec.UpdatedAt = now
	return true
}

// effectiveDays caps the streak at capDays.
func effectiveDays(streak, capDays int) int {
	if streak > capDays {
		return capDays
	}
	return streak
}

// owedDays is the number of streak-day increments not yet rewarded. Never
// negative.
func owedDays(effective, lastRewarded int) int {
	if owed := effective - lastRewarded; owed > 0 {
		return owed
	}
	return 0
}
