/* models.go
 * This file contain the structs and helper functions that relate to DB objects
 */

package store

import (
	"time"
	"tugofwar/api/shared"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Match is one tug of war match between side A and side B
type Match struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	RoundNumber   int                  `bson:"roundNumber"`
	SideATeamIDs  []primitive.ObjectID `bson:"sideA_teamIds"`
	SideBTeamIDs  []primitive.ObjectID `bson:"sideB_teamIds"`
	SideAHandles  []string             `bson:"sideA_handles"`
	SideBHandles  []string             `bson:"sideB_handles"`
	ScoreA        int                  `bson:"scoreA"`
	ScoreB        int                  `bson:"scoreB"`
	Status        shared.MatchStatus   `bson:"status"`
	WinningSide   *shared.Side         `bson:"winningSide,omitempty"`
	TimedOut      bool                 `bson:"timedOut"` // set when the clock, not the threshold, ended the match
	QuestionPoolA []primitive.ObjectID `bson:"questionPoolA"`
	QuestionPoolB []primitive.ObjectID `bson:"questionPoolB"`
	Duration      int64                `bson:"duration"` // seconds
	StartTime     *time.Time           `bson:"startTime,omitempty"`
	EndTime       *time.Time           `bson:"endTime,omitempty"`
	CreatedAt     time.Time            `bson:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
}

// Score returns the score of side
func (m Match) Score(side shared.Side) int {
	if side == shared.SideA {
		return m.ScoreA
	}
	return m.ScoreB
}

// SideOf returns the side a team plays for, or false if the team is not in the match
func (m Match) SideOf(teamID string) (shared.Side, bool) {
	for _, id := range m.SideATeamIDs {
		if id.Hex() == teamID {
			return shared.SideA, true
		}
	}
	for _, id := range m.SideBTeamIDs {
		if id.Hex() == teamID {
			return shared.SideB, true
		}
	}
	return "", false
}

// Handles returns every judge handle in the match, both sides, with blanks dropped and case-insensitive
// repeats removed. Order is side A then side B as rostered
func (m Match) Handles() []string {
	seen := make(map[string]bool)
	var handles []string
	for _, h := range append(append([]string{}, m.SideAHandles...), m.SideBHandles...) {
		key := shared.NormalizeHandle(h)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		handles = append(handles, h)
	}
	return handles
}

// Pool returns the question pool of side
func (m Match) Pool(side shared.Side) []primitive.ObjectID {
	if side == shared.SideA {
		return m.QuestionPoolA
	}
	return m.QuestionPoolB
}

// Question is an immutable judge problem reference
type Question struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	ContestID    string             `bson:"contestId"`
	ProblemIndex string             `bson:"problemIndex"`
	Name         string             `bson:"name"`
	URL          string             `bson:"url"`
}

// MatchSubmission is a ledger entry: one judge submission attributed to a match. Entries are append only
type MatchSubmission struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	MatchID      primitive.ObjectID `bson:"matchId"`
	Side         shared.Side        `bson:"side"`
	TeamID       primitive.ObjectID `bson:"teamId"`
	Handle       string             `bson:"codeforcesHandle"`
	QuestionID   primitive.ObjectID `bson:"questionId"`
	ContestID    string             `bson:"contestId"`
	ProblemIndex string             `bson:"problemIndex"`
	SubmissionID int64              `bson:"submissionId"`
	Verdict      string             `bson:"verdict"`
	Points       int                `bson:"points"`
	Timestamp    time.Time          `bson:"timestamp"`
	Processed    bool               `bson:"processed"`
	// SolveKey is only set on entries that credit a solve, see the uniq_solve_key index
	SolveKey  string    `bson:"solveKey,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

// RateLimitRecord is the fixed window counter for one caller key
type RateLimitRecord struct {
	Key       string    `bson:"key"`
	Count     int       `bson:"count"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

// RateLimitResult is the outcome of CheckAndConsume
type RateLimitResult struct {
	Limited   bool
	Remaining int
	ResetTime time.Time
}

// RoundState is the round timer. There is at most one document per key, enforced by a unique index
type RoundState struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Key        string             `bson:"key"`
	Status     shared.RoundStatus `bson:"status"`
	Duration   int64              `bson:"duration"`   // seconds
	ExtendedBy int64              `bson:"extendedBy"` // seconds
	StartTime  *time.Time         `bson:"startTime,omitempty"`
	EndTime    *time.Time         `bson:"endTime,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}
