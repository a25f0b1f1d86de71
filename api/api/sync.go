/* sync.go
 * Contains Sync, the participant triggered pull of judge submissions for every handle in a match. Handles
 * are fetched concurrently with a bounded fan out, and a handle that fails only produces a warning
 */

package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"tugofwar/api/external"
	"tugofwar/api/shared"
	"tugofwar/api/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// RateLimitPrefix namespaces sync rate limit keys per team
const RateLimitPrefix = "tournament-sync:"

// handleResult is the outcome of fetching one handle's submissions
type handleResult struct {
	handle      string
	submissions []external.Submission
	err         error
}

// Sync fetches the submissions of every handle in a match and scores the new ones
// Preconditions: Receives context, the match id as a hex string and the caller's team id
// Postconditions: Returns the match state after scoring with a warning per handle that could not be
// fetched, or one of the package errors
func (a *API) Sync(ctx context.Context, matchID string, callerTeamID string) (SyncResult, error) {
	started := a.Clock.Now()
	logger := log.With().
		Str("sync_id", uuid.NewString()).
		Str("match_id", matchID).
		Str("team_id", callerTeamID).
		Logger()

	result, outcome, err := a.sync(ctx, logger, matchID, callerTeamID)
	a.Metrics.observeSync(outcome, a.Clock.Since(started))
	return result, err
}

func (a *API) sync(ctx context.Context, logger zerolog.Logger, matchID string, callerTeamID string) (SyncResult, string, error) {
	callerTeamID = strings.TrimSpace(callerTeamID)
	if callerTeamID == "" {
		return SyncResult{}, "unauthorized", ErrUnauthorized
	}
	match, err := a.loadMatch(ctx, matchID)
	if err != nil {
		return SyncResult{}, outcomeFor(err), err
	}
	if _, ok := match.SideOf(callerTeamID); !ok {
		return SyncResult{}, "forbidden", ErrForbidden
	}

	limit, err := a.Store.CheckAndConsume(ctx, RateLimitPrefix+callerTeamID, a.Config.SyncLimit, a.Config.SyncWindow)
	if err != nil {
		// fail closed, an unavailable limiter must not open the judge API to unbounded syncs
		a.Metrics.incLimiterFailure()
		logger.Error().Err(err).Msg("rate limiter unavailable")
		return SyncResult{}, "error", fmt.Errorf("rate limiter unavailable: %w", err)
	}
	if limit.Limited {
		a.Metrics.incRateLimited()
		return SyncResult{}, "rate_limited", &RateLimitError{
			Limit:     a.Config.SyncLimit,
			Remaining: limit.Remaining,
			ResetTime: limit.ResetTime,
		}
	}

	if match.Status != shared.StatusActive {
		return SyncResult{}, "not_active", ErrMatchNotActive
	}

	submissions, warnings := a.collectSubmissions(ctx, logger, match)

	processed, err := a.ProcessSubmissions(ctx, match, submissions)
	if err != nil {
		logger.Error().Err(err).Msg("failed to process submissions")
		return SyncResult{}, outcomeFor(err), err
	}

	logger.Info().
		Int("new_submissions", processed.NewSubmissions).
		Int("score_a", processed.ScoreA).
		Int("score_b", processed.ScoreB).
		Int("warnings", len(warnings)).
		Msg("sync complete")

	return SyncResult{
		MatchID:        match.ID.Hex(),
		ScoreA:         processed.ScoreA,
		ScoreB:         processed.ScoreB,
		NewSubmissions: processed.NewSubmissions,
		WinningSide:    processed.WinningSide,
		IsTimeout:      processed.IsTimeout,
		TimeRemaining:  processed.TimeRemaining,
		Status:         processed.MatchStatus,
		Warnings:       warnings,
	}, "ok", nil
}

// collectSubmissions fetches the submissions of every handle in match. A handle that can't be fetched is
// logged and reported as a warning, the rest are still returned
func (a *API) collectSubmissions(ctx context.Context, logger zerolog.Logger, match store.Match) ([]external.Submission, []string) {
	var submissions []external.Submission
	warnings := []string{}
	for _, res := range a.fetchAll(ctx, match.Handles()) {
		if res.err != nil {
			a.Metrics.incFetchFailure()
			logger.Warn().Err(res.err).Str("handle", res.handle).Msg("failed to fetch submissions")
			warnings = append(warnings, fmt.Sprintf("%s: submissions unavailable", res.handle))
			continue
		}
		submissions = append(submissions, res.submissions...)
	}
	return submissions, warnings
}

// fetchAll fetches every handle concurrently. The results are in handle order and every handle gets one,
// a fetch failure is recorded on its result rather than cancelling the others
func (a *API) fetchAll(ctx context.Context, handles []string) []handleResult {
	results := make([]handleResult, len(handles))

	var g errgroup.Group
	g.SetLimit(a.Config.MaxConcurrentFetches)
	for i, handle := range handles {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, a.Config.FetchTimeout)
			defer cancel()

			res, err := a.Judge.FetchSubmissions(fctx, handle, a.Config.OnlyRecent)
			if err == nil && !res.Success {
				err = fmt.Errorf("judge rejected request: %s", res.Error)
			}
			results[i] = handleResult{handle: handle, submissions: res.Submissions, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// loadMatch validates a hex match id and reads the match
func (a *API) loadMatch(ctx context.Context, matchID string) (store.Match, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(matchID))
	if err != nil {
		return store.Match{}, validationError("invalid match ID")
	}
	match, err := a.Store.GetMatch(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Match{}, ErrNotFound
		}
		return store.Match{}, fmt.Errorf("failed to load match: %w", err)
	}
	return match, nil
}

// outcomeFor labels an error for the sync metrics
func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMatchNotActive):
		return "not_active"
	default:
		return "error"
	}
}

