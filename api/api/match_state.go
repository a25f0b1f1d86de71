/* match_state.go
 * Contains the read models of a match: the participant view with question pools, and the public summary
 */

package api

import (
	"context"
	"fmt"
	"strings"
	"time"
	"tugofwar/api/logic"
	"tugofwar/api/shared"
	"tugofwar/api/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GetMatchState returns a participant's view of a match. Question pools are hidden until the match starts,
// and a side only sees the other side's pool once the match is over
// Preconditions: Receives context, the match id as a hex string and the caller's team id
// Postconditions: Returns the match state, or one of the package errors
func (a *API) GetMatchState(ctx context.Context, matchID string, callerTeamID string) (MatchState, error) {
	callerTeamID = strings.TrimSpace(callerTeamID)
	if callerTeamID == "" {
		return MatchState{}, ErrUnauthorized
	}
	match, err := a.loadMatch(ctx, matchID)
	if err != nil {
		return MatchState{}, err
	}
	mySide, ok := match.SideOf(callerTeamID)
	if !ok {
		return MatchState{}, ErrForbidden
	}

	state := MatchState{
		MatchID:       match.ID.Hex(),
		RoundNumber:   match.RoundNumber,
		RoundName:     shared.RoundName(match.RoundNumber),
		MySide:        mySide,
		SideA:         sideView(match.SideATeamIDs, match.SideAHandles, match.ScoreA),
		SideB:         sideView(match.SideBTeamIDs, match.SideBHandles, match.ScoreB),
		Status:        match.Status,
		WinningSide:   match.WinningSide,
		TimeRemaining: a.timeRemaining(match),
		Duration:      match.Duration,
		StartTime:     match.StartTime,
		EndTime:       match.EndTime,
	}

	if match.Status == shared.StatusWaiting {
		return state, nil
	}

	visible := []shared.Side{mySide}
	if match.Status == shared.StatusCompleted {
		visible = shared.Sides
	}

	var ids []primitive.ObjectID
	for _, side := range visible {
		ids = append(ids, match.Pool(side)...)
	}
	questions, err := a.Store.GetQuestions(ctx, ids)
	if err != nil {
		return MatchState{}, fmt.Errorf("failed to load questions: %w", err)
	}
	byID := make(map[primitive.ObjectID]store.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	for _, side := range visible {
		solved, err := a.Store.GetAcceptedQuestionIDs(ctx, match.ID, side)
		if err != nil {
			return MatchState{}, fmt.Errorf("failed to load solved questions: %w", err)
		}
		views := make([]QuestionView, 0, len(match.Pool(side)))
		for _, id := range match.Pool(side) {
			q, ok := byID[id]
			if !ok {
				continue
			}
			views = append(views, QuestionView{
				ID:           q.ID.Hex(),
				ContestID:    q.ContestID,
				ProblemIndex: q.ProblemIndex,
				Name:         q.Name,
				URL:          q.URL,
				Solved:       solved[q.ID],
			})
		}
		if side == shared.SideA {
			state.SideA.Questions = views
		} else {
			state.SideB.Questions = views
		}
	}
	return state, nil
}

// GetMatchSummary returns the public scoreboard of a match
func (a *API) GetMatchSummary(ctx context.Context, matchID string) (MatchSummary, error) {
	match, err := a.loadMatch(ctx, matchID)
	if err != nil {
		return MatchSummary{}, err
	}
	return MatchSummary{
		MatchID:       match.ID.Hex(),
		RoundNumber:   match.RoundNumber,
		RoundName:     shared.RoundName(match.RoundNumber),
		ScoreA:        match.ScoreA,
		ScoreB:        match.ScoreB,
		Status:        match.Status,
		WinningSide:   match.WinningSide,
		TimeRemaining: a.timeRemaining(match),
	}, nil
}

// timeRemaining reads the match clock, stopped at the end time once the match is over
func (a *API) timeRemaining(match store.Match) int64 {
	var now time.Time
	if match.Status == shared.StatusCompleted && match.EndTime != nil {
		now = *match.EndTime
	} else {
		now = a.Clock.Now()
	}
	return logic.Remaining(now, match.StartTime, match.Duration)
}

func sideView(teamIDs []primitive.ObjectID, handles []string, score int) SideView {
	ids := make([]string, 0, len(teamIDs))
	for _, id := range teamIDs {
		ids = append(ids, id.Hex())
	}
	return SideView{
		TeamIDs: ids,
		Handles: append([]string{}, handles...),
		Score:   score,
	}
}
