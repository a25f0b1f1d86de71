/* models.go
 * This file contain the enums and helper functions that are shared between sub packages
 */

package shared

import "strings"

// Side is one of the two competing halves of a match
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Valid reports whether s is A or B
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// Other returns the opposing side
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// Sides lists both sides in their conventional order
var Sides = []Side{SideA, SideB}

// MatchStatus is the lifecycle state of a match
type MatchStatus string

const (
	StatusWaiting   MatchStatus = "waiting"
	StatusActive    MatchStatus = "active"
	StatusCompleted MatchStatus = "completed"
)

// RoundStatus is the lifecycle state of the round timer
type RoundStatus string

const (
	RoundWaiting   RoundStatus = "waiting"
	RoundActive    RoundStatus = "active"
	RoundCompleted RoundStatus = "completed"
)

// Judge verdicts that the scoring rules care about. Everything else the judge returns is treated as a
// plain (terminal) rejection.
const (
	VerdictAccepted = "OK"
	VerdictTesting  = "TESTING"
)

// IsTerminalVerdict reports whether the judge has finished with a submission. A submission still in the
// queue or being tested is not scored yet and gets picked up again by a later sync.
func IsTerminalVerdict(verdict string) bool {
	v := strings.TrimSpace(strings.ToUpper(verdict))
	return v != "" && v != VerdictTesting
}

// NormalizeHandle gives the form used to compare judge handles. Codeforces handles are case insensitive
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// RoundName maps a round number to its display name
func RoundName(roundNumber int) string {
	switch roundNumber {
	case 1:
		return "Quarterfinals"
	case 2:
		return "Semifinals"
	case 3:
		return "Finals"
	default:
		return "Unknown"
	}
}
