/* lifecycle.go
 * Contains the operator actions on a match and the timeout sweeper
 */

package api

import (
	"context"
	"errors"
	"fmt"
	"tugofwar/api/shared"
	"tugofwar/api/store"

	"github.com/rs/zerolog/log"
)

// StartMatch moves a waiting match to active and starts its clock
// Preconditions: Receives context and the match id as a hex string
// Postconditions: Returns the started match, ErrStateConflict if it was not waiting, or one of the package errors
func (a *API) StartMatch(ctx context.Context, matchID string) (store.Match, error) {
	match, err := a.loadMatch(ctx, matchID)
	if err != nil {
		return store.Match{}, err
	}

	started, err := a.Store.StartMatch(ctx, match.ID, a.Clock.Now())
	if err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return store.Match{}, fmt.Errorf("%w: match is %s", ErrStateConflict, match.Status)
		}
		if errors.Is(err, store.ErrNotFound) {
			return store.Match{}, ErrNotFound
		}
		return store.Match{}, fmt.Errorf("failed to start match: %w", err)
	}

	log.Info().Str("match_id", started.ID.Hex()).Int64("duration", started.Duration).Msg("match started")
	return started, nil
}

// SweepTimeouts completes every active match whose clock has run out, so a match finishes even if nobody
// syncs it after time is up. Each match gets a last fetch first so submissions made before the deadline
// still count. It returns how many matches it completed
func (a *API) SweepTimeouts(ctx context.Context) (int, error) {
	matches, err := a.Store.GetActiveMatches(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active matches: %w", err)
	}

	completed := 0
	var errs []error
	for _, match := range matches {
		if a.timeRemaining(match) > 0 {
			continue
		}
		logger := log.With().Str("match_id", match.ID.Hex()).Str("trigger", "sweeper").Logger()
		submissions, warnings := a.collectSubmissions(ctx, logger, match)
		if len(warnings) > 0 {
			logger.Warn().Strs("warnings", warnings).Msg("completing timed out match without every handle")
		}

		result, err := a.ProcessSubmissions(ctx, match, submissions)
		if err != nil {
			logger.Error().Err(err).Msg("failed to apply timeout")
			errs = append(errs, err)
			continue
		}
		if result.MatchStatus == shared.StatusCompleted {
			completed++
		}
	}
	return completed, errors.Join(errs...)
}
