/* scoring.go
 * Contains the tug of war scoring rules: attributing a submission to a side, pricing a verdict and deciding
 * the outcome of a match. Nothing in here touches the database
 */

package logic

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"tugofwar/api/external"
	"tugofwar/api/shared"
	"tugofwar/api/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AcceptedPoints     = 10
	WrongAnswerPenalty = -5
	RepeatSolvePoints  = 0
	WinThreshold       = 75
)

// Attribution is the side and team a handle plays for in a match
type Attribution struct {
	Side   shared.Side
	TeamID primitive.ObjectID
	Handle string
}

// SideLookup maps normalized handles to their attribution. It is built once per match so every
// submission is resolved the same way
type SideLookup map[string]Attribution

// NewSideLookup builds the handle lookup table from a match's rosters. Handles and team ids are parallel
// arrays; if a side lists more handles than teams the extra handles belong to the side's last team.
// Blank handles are dropped and a handle rostered on both sides resolves to nothing
func NewSideLookup(match store.Match) SideLookup {
	lookup := make(SideLookup)
	ambiguous := make(map[string]bool)

	add := func(side shared.Side, handles []string, teams []primitive.ObjectID) {
		for i, handle := range handles {
			key := shared.NormalizeHandle(handle)
			if key == "" {
				continue
			}
			var team primitive.ObjectID
			switch {
			case i < len(teams):
				team = teams[i]
			case len(teams) > 0:
				team = teams[len(teams)-1]
			}
			if existing, ok := lookup[key]; ok && existing.Side != side {
				ambiguous[key] = true
				continue
			}
			lookup[key] = Attribution{Side: side, TeamID: team, Handle: strings.TrimSpace(handle)}
		}
	}
	add(shared.SideA, match.SideAHandles, match.SideATeamIDs)
	add(shared.SideB, match.SideBHandles, match.SideBTeamIDs)

	for key := range ambiguous {
		delete(lookup, key)
	}
	return lookup
}

// Resolve finds the attribution for a submitting handle
func (l SideLookup) Resolve(handle string) (Attribution, bool) {
	a, ok := l[shared.NormalizeHandle(handle)]
	return a, ok
}

// PoolKey identifies a judge problem
type PoolKey struct {
	ContestID    string
	ProblemIndex string
}

// NewPoolKey normalizes contest id and problem index so "1850"/"a" and "1850"/"A" are the same problem
func NewPoolKey(contestID string, problemIndex string) PoolKey {
	return PoolKey{
		ContestID:    strings.TrimSpace(contestID),
		ProblemIndex: strings.ToUpper(strings.TrimSpace(problemIndex)),
	}
}

// PoolLookup maps each side's problems to the question ids assigned to that side
type PoolLookup map[shared.Side]map[PoolKey]primitive.ObjectID

// NewPoolLookup builds the pool lookup from the match pools and the question documents they reference.
// Question ids that are not in a side's pool are never added for that side
func NewPoolLookup(match store.Match, questions []store.Question) PoolLookup {
	byID := make(map[primitive.ObjectID]store.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	lookup := PoolLookup{
		shared.SideA: make(map[PoolKey]primitive.ObjectID),
		shared.SideB: make(map[PoolKey]primitive.ObjectID),
	}
	for side, pool := range map[shared.Side][]primitive.ObjectID{shared.SideA: match.QuestionPoolA, shared.SideB: match.QuestionPoolB} {
		for _, id := range pool {
			q, ok := byID[id]
			if !ok {
				continue
			}
			lookup[side][NewPoolKey(q.ContestID, q.ProblemIndex)] = q.ID
		}
	}
	return lookup
}

// Resolve finds the question in side's pool for a judge problem
func (l PoolLookup) Resolve(side shared.Side, contestID string, problemIndex string) (primitive.ObjectID, bool) {
	id, ok := l[side][NewPoolKey(contestID, problemIndex)]
	return id, ok
}

// PointsFor prices a terminal verdict. Once a side has solved a problem, nothing more on that problem
// moves the score
func PointsFor(verdict string, alreadySolved bool) int {
	if alreadySolved {
		return RepeatSolvePoints
	}
	if strings.EqualFold(strings.TrimSpace(verdict), shared.VerdictAccepted) {
		return AcceptedPoints
	}
	return WrongAnswerPenalty
}

// IsAccepted reports whether a verdict is the judge's accepted verdict
func IsAccepted(verdict string) bool {
	return strings.EqualFold(strings.TrimSpace(verdict), shared.VerdictAccepted)
}

// SolveKey is the ledger key that allows at most one credited solve per side and question
func SolveKey(matchID primitive.ObjectID, side shared.Side, questionID primitive.ObjectID) string {
	return fmt.Sprintf("%s:%s:%s", matchID.Hex(), side, questionID.Hex())
}

// SortSubmissions orders raw submissions oldest first (ties by submission id) and drops repeats of the
// same submission id, which happen when two rostered handles share a team account
func SortSubmissions(raw []external.Submission) []external.Submission {
	seen := make(map[int64]bool, len(raw))
	sorted := make([]external.Submission, 0, len(raw))
	for _, s := range raw {
		if seen[s.SubmissionID] {
			continue
		}
		seen[s.SubmissionID] = true
		sorted = append(sorted, s)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreationTime != sorted[j].CreationTime {
			return sorted[i].CreationTime < sorted[j].CreationTime
		}
		return sorted[i].SubmissionID < sorted[j].SubmissionID
	})
	return sorted
}

// WithinMatchWindow reports whether a submission was made while the match clock was running
func WithinMatchWindow(creationTime int64, startTime *time.Time, duration int64) bool {
	if startTime == nil {
		return false
	}
	start := startTime.Unix()
	return creationTime >= start && creationTime <= start+duration
}

// Crossing is the moment a side's running score first reached the win threshold
type Crossing struct {
	Timestamp    time.Time
	SubmissionID int64
}

// ThresholdCrossing walks one side's ledger entries in submission order and returns when the running
// score first reached WinThreshold, or nil if it never did
func ThresholdCrossing(entries []store.MatchSubmission, side shared.Side) *Crossing {
	var sideEntries []store.MatchSubmission
	for _, e := range entries {
		if e.Side == side {
			sideEntries = append(sideEntries, e)
		}
	}
	sort.SliceStable(sideEntries, func(i, j int) bool {
		if !sideEntries[i].Timestamp.Equal(sideEntries[j].Timestamp) {
			return sideEntries[i].Timestamp.Before(sideEntries[j].Timestamp)
		}
		return sideEntries[i].SubmissionID < sideEntries[j].SubmissionID
	})

	running := 0
	for _, e := range sideEntries {
		running += e.Points
		if running >= WinThreshold {
			return &Crossing{Timestamp: e.Timestamp, SubmissionID: e.SubmissionID}
		}
	}
	return nil
}

// Outcome is the result of evaluating a match after scoring
type Outcome struct {
	Completed   bool
	WinningSide *shared.Side
	IsTimeout   bool
}

// DecideOutcome applies the win rules. Reaching the threshold wins immediately regardless of the clock.
// If both sides are at the threshold the side that crossed first wins, side A on an exact tie.
// Otherwise a timed out match goes to the strictly higher score, and equal scores have no winner
func DecideOutcome(scoreA int, scoreB int, crossA *Crossing, crossB *Crossing, timedOut bool) Outcome {
	reachedA := scoreA >= WinThreshold
	reachedB := scoreB >= WinThreshold

	switch {
	case reachedA && reachedB:
		winner := shared.SideA
		if crossA == nil && crossB != nil {
			winner = shared.SideB
		} else if crossA != nil && crossB != nil && crossB.Timestamp.Before(crossA.Timestamp) {
			winner = shared.SideB
		}
		return Outcome{Completed: true, WinningSide: &winner}
	case reachedA:
		winner := shared.SideA
		return Outcome{Completed: true, WinningSide: &winner}
	case reachedB:
		winner := shared.SideB
		return Outcome{Completed: true, WinningSide: &winner}
	}

	if !timedOut {
		return Outcome{}
	}

	outcome := Outcome{Completed: true, IsTimeout: true}
	if scoreA > scoreB {
		winner := shared.SideA
		outcome.WinningSide = &winner
	} else if scoreB > scoreA {
		winner := shared.SideB
		outcome.WinningSide = &winner
	}
	return outcome
}
