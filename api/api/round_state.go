/* round_state.go
 * Contains the round timer. Reading it after time is up completes it
 */

package api

import (
	"context"
	"errors"
	"fmt"
	"tugofwar/api/logic"
	"tugofwar/api/shared"
	"tugofwar/api/store"

	"github.com/rs/zerolog/log"
)

// GetRoundState returns the round timer, creating it on first use
// Preconditions: Receives context
// Postconditions: Returns the timer with its remaining time, or an error if it occurs
func (a *API) GetRoundState(ctx context.Context) (RoundStateView, error) {
	state, err := a.Store.EnsureRoundState(ctx, a.Config.RoundDuration)
	if err != nil {
		return RoundStateView{}, fmt.Errorf("failed to load round state: %w", err)
	}

	if state.Status == shared.RoundActive && state.StartTime != nil {
		now := a.Clock.Now()
		if logic.RoundRemaining(now, state.StartTime, state.Duration, state.ExtendedBy) == 0 {
			completed, err := a.Store.CompleteRound(ctx, now)
			switch {
			case err == nil:
				log.Info().Msg("round timer completed")
				state = completed
			case errors.Is(err, store.ErrStateConflict):
				// completed or extended by someone else in the meantime
				if state, err = a.Store.EnsureRoundState(ctx, a.Config.RoundDuration); err != nil {
					return RoundStateView{}, fmt.Errorf("failed to reload round state: %w", err)
				}
			default:
				return RoundStateView{}, fmt.Errorf("failed to complete round: %w", err)
			}
		}
	}
	return a.roundView(state), nil
}

// StartRound starts the round timer
func (a *API) StartRound(ctx context.Context) (RoundStateView, error) {
	if _, err := a.Store.EnsureRoundState(ctx, a.Config.RoundDuration); err != nil {
		return RoundStateView{}, fmt.Errorf("failed to load round state: %w", err)
	}
	state, err := a.Store.StartRound(ctx, a.Clock.Now())
	if err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return RoundStateView{}, fmt.Errorf("%w: round already started", ErrStateConflict)
		}
		return RoundStateView{}, fmt.Errorf("failed to start round: %w", err)
	}
	log.Info().Int64("duration", state.Duration).Msg("round timer started")
	return a.roundView(state), nil
}

// ExtendRound adds seconds to a round that is not yet over
func (a *API) ExtendRound(ctx context.Context, seconds int64) (RoundStateView, error) {
	if seconds <= 0 {
		return RoundStateView{}, validationError("extension must be a positive number of seconds")
	}
	if _, err := a.Store.EnsureRoundState(ctx, a.Config.RoundDuration); err != nil {
		return RoundStateView{}, fmt.Errorf("failed to load round state: %w", err)
	}
	state, err := a.Store.ExtendRound(ctx, seconds)
	if err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return RoundStateView{}, fmt.Errorf("%w: round already completed", ErrStateConflict)
		}
		return RoundStateView{}, fmt.Errorf("failed to extend round: %w", err)
	}
	log.Info().Int64("extended_by", state.ExtendedBy).Msg("round timer extended")
	return a.roundView(state), nil
}

// roundView reports remaining time only while the round is running
func (a *API) roundView(state store.RoundState) RoundStateView {
	view := RoundStateView{
		Status:    state.Status,
		Duration:  state.Duration + state.ExtendedBy,
		StartTime: state.StartTime,
		EndTime:   state.EndTime,
	}
	if state.Status == shared.RoundActive {
		view.TimeRemaining = logic.RoundRemaining(a.Clock.Now(), state.StartTime, state.Duration, state.ExtendedBy)
	}
	return view
}
