/* models.go
 * This file contain the interfaces, structs and helper functions that are used by api consumers
 */

package api

import (
	"context"
	"time"
	"tugofwar/api/external"
	"tugofwar/api/shared"
)

// Judge fetches submission history from the online judge
type Judge interface {
	FetchSubmissions(ctx context.Context, handle string, onlyRecent bool) (external.FetchResult, error)
}

// Notifier is told when a match completes. It is called once per match, by the request that completed it
type Notifier interface {
	MatchCompleted(ctx context.Context, event MatchCompletedEvent) error
}

// MatchCompletedEvent describes a finished match
type MatchCompletedEvent struct {
	MatchID     string       `json:"matchId"`
	RoundNumber int          `json:"roundNumber"`
	ScoreA      int          `json:"scoreA"`
	ScoreB      int          `json:"scoreB"`
	WinningSide *shared.Side `json:"winningSide"`
	IsTimeout   bool         `json:"isTimeout"`
	CompletedAt time.Time    `json:"completedAt"`
}

// ProcessResult is the match state after a batch of submissions has been scored
type ProcessResult struct {
	ScoreA         int
	ScoreB         int
	NewSubmissions int
	WinningSide    *shared.Side
	IsTimeout      bool
	TimeRemaining  int64
	MatchStatus    shared.MatchStatus
}

// SyncResult is returned to the caller of Sync
type SyncResult struct {
	MatchID        string             `json:"matchId"`
	ScoreA         int                `json:"scoreA"`
	ScoreB         int                `json:"scoreB"`
	NewSubmissions int                `json:"newSubmissions"`
	WinningSide    *shared.Side       `json:"winningSide"`
	IsTimeout      bool               `json:"isTimeout"`
	TimeRemaining  int64              `json:"timeRemaining"`
	Status         shared.MatchStatus `json:"status"`
	Warnings       []string           `json:"-"`
}

// QuestionView is a pool question as shown to a participant
type QuestionView struct {
	ID           string `json:"_id"`
	ContestID    string `json:"contestId"`
	ProblemIndex string `json:"problemIndex"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Solved       bool   `json:"solved"`
}

// SideView is one side of a match. Questions is nil when the pool is hidden from the caller
type SideView struct {
	TeamIDs   []string       `json:"teamIds"`
	Handles   []string       `json:"handles"`
	Score     int            `json:"score"`
	Questions []QuestionView `json:"questions,omitempty"`
}

// MatchState is a participant's view of a match
type MatchState struct {
	MatchID       string             `json:"_id"`
	RoundNumber   int                `json:"roundNumber"`
	RoundName     string             `json:"roundName"`
	MySide        shared.Side        `json:"mySide"`
	SideA         SideView           `json:"sideA"`
	SideB         SideView           `json:"sideB"`
	Status        shared.MatchStatus `json:"status"`
	WinningSide   *shared.Side       `json:"winningSide"`
	TimeRemaining int64              `json:"timeRemaining"`
	Duration      int64              `json:"duration"`
	StartTime     *time.Time         `json:"startTime"`
	EndTime       *time.Time         `json:"endTime"`
}

// MatchSummary is the public scoreboard of a match, without question pools or rosters
type MatchSummary struct {
	MatchID       string             `json:"matchId"`
	RoundNumber   int                `json:"roundNumber"`
	RoundName     string             `json:"roundName"`
	ScoreA        int                `json:"scoreA"`
	ScoreB        int                `json:"scoreB"`
	Status        shared.MatchStatus `json:"status"`
	WinningSide   *shared.Side       `json:"winningSide"`
	TimeRemaining int64              `json:"timeRemaining"`
}

// RoundStateView is the round timer as reported to clients
type RoundStateView struct {
	Status        shared.RoundStatus `json:"status"`
	TimeRemaining int64              `json:"timeRemaining"`
	Duration      int64              `json:"duration"`
	StartTime     *time.Time         `json:"startTime"`
	EndTime       *time.Time         `json:"endTime"`
}
