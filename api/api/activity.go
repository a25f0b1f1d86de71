/* activity.go
 * Contains the team activity feed, a team's latest scored submissions across its matches
 */

package api

import (
	"context"
	"fmt"
	"strings"
	"time"
	"tugofwar/api/shared"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// ActivityEntry is one ledger entry as shown to the team that made it
type ActivityEntry struct {
	MatchID      string      `json:"matchId"`
	Side         shared.Side `json:"side"`
	Handle       string      `json:"codeforcesHandle"`
	ContestID    string      `json:"contestId"`
	ProblemIndex string      `json:"problemIndex"`
	SubmissionID int64       `json:"submissionId"`
	Verdict      string      `json:"verdict"`
	Points       int         `json:"points"`
	Timestamp    time.Time   `json:"timestamp"`
}

// GetTeamActivity returns the caller's most recent ledger entries, newest first. limit is clamped to
// [1, 100] and defaults to 20 when zero or negative
func (a *API) GetTeamActivity(ctx context.Context, callerTeamID string, limit int) ([]ActivityEntry, error) {
	callerTeamID = strings.TrimSpace(callerTeamID)
	if callerTeamID == "" {
		return nil, ErrUnauthorized
	}
	teamID, err := primitive.ObjectIDFromHex(callerTeamID)
	if err != nil {
		return nil, validationError("invalid team ID")
	}
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	entries, err := a.Store.GetRecentTeamSubmissions(ctx, teamID, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to load team activity: %w", err)
	}

	activity := make([]ActivityEntry, 0, len(entries))
	for _, e := range entries {
		activity = append(activity, ActivityEntry{
			MatchID:      e.MatchID.Hex(),
			Side:         e.Side,
			Handle:       e.Handle,
			ContestID:    e.ContestID,
			ProblemIndex: e.ProblemIndex,
			SubmissionID: e.SubmissionID,
			Verdict:      e.Verdict,
			Points:       e.Points,
			Timestamp:    e.Timestamp,
		})
	}
	return activity, nil
}
