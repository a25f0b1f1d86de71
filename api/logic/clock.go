/* clock.go
 * Contains the match clock. These are pure functions of the stored start time and duration; callers
 * decide whether to persist any resulting transition
 */

package logic

import "time"

// Elapsed returns the whole seconds between startTime and now, never negative.
// Preconditions: Receives the current time and the match start time
// Postconditions: Returns elapsed seconds, 0 if the match has not started yet
func Elapsed(now time.Time, startTime *time.Time) int64 {
	if startTime == nil {
		return 0
	}
	elapsed := int64(now.Sub(*startTime) / time.Second)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Remaining returns the seconds left on a clock of duration seconds started at startTime, never negative.
// A clock that was never started has its full duration remaining
func Remaining(now time.Time, startTime *time.Time, duration int64) int64 {
	remaining := duration - Elapsed(now, startTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsTimedOut reports whether the clock has run out. A clock that was never started cannot time out
func IsTimedOut(now time.Time, startTime *time.Time, duration int64) bool {
	if startTime == nil {
		return false
	}
	return Remaining(now, startTime, duration) == 0
}

// RoundRemaining is Remaining for the round timer, whose duration can be extended by an operator
func RoundRemaining(now time.Time, startTime *time.Time, duration int64, extendedBy int64) int64 {
	return Remaining(now, startTime, duration+extendedBy)
}
