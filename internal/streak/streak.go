// Package streak computes consecutive-day check-in streaks.
//
// Day boundaries follow the local calendar date of the supplied timestamps:
// a check-in at 23:59 followed by one at 00:01 counts as two consecutive
// days, while two check-ins 20 hours apart on the same date count as one.
package streak

import "time"

// Compute returns the streak after a check-in at now, given the previous
// check-in time and the current streak count.
//
//	nil lastCheckIn          -> 1 (first ever check-in)
//	same calendar date       -> currentStreak (idempotent repeat)
//	exactly one day later    -> currentStreak + 1
//	anything larger          -> 1 (reset)
func Compute(lastCheckIn *time.Time, currentStreak int, now time.Time) int {
	if lastCheckIn == nil {
		return 1
	}

	last := startOfDay(lastCheckIn.In(now.Location()))
	today := startOfDay(now)

	switch days := daysBetween(last, today); {
	case days == 0:
		if currentStreak < 1 {
			return 1
		}
		return currentStreak
	case days == 1:
		return currentStreak + 1
	default:
		return 1
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b. Both must be midnight
// normalized in the same location. Computed via civil day numbers so DST
// transitions cannot skew the count.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	au := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bu := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au) / (24 * time.Hour))
}
