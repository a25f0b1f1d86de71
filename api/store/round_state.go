/* round_state.go
 * Contains the methods for the round timer. There is one timer document, found by a constant key under a
 * unique index, so concurrent first reads can't create two
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
	"tugofwar/api/shared"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// RoundStateKey is the partition key of the round timer document
	RoundStateKey = "round1"
	// DefaultRoundDuration is the duration a new round timer is created with, in seconds
	DefaultRoundDuration int64 = 3600
)

// EnsureRoundState returns the round timer, creating it in the waiting state if it doesn't exist yet
// Preconditions: Receives context and the duration to create the timer with
// Postconditions: Returns the single round timer document, or an error if it occurs
func (s *Store) EnsureRoundState(ctx context.Context, duration int64) (RoundState, error) {
	if duration <= 0 {
		duration = DefaultRoundDuration
	}
	now := s.Clock.Now().UTC()
	update := bson.M{"$setOnInsert": bson.M{
		"key":        RoundStateKey,
		"status":     shared.RoundWaiting,
		"duration":   duration,
		"extendedBy": int64(0),
		"createdAt":  now,
		"updatedAt":  now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var state RoundState
	var err error
	for attempt := 1; attempt <= maxUpsertAttempts; attempt++ {
		err = s.Collections.RoundState.FindOneAndUpdate(ctx, bson.M{"key": RoundStateKey}, update, opts).Decode(&state)
		if err == nil || !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	if err != nil {
		return RoundState{}, fmt.Errorf("failed to load round state: %w", err)
	}
	return state, nil
}

// StartRound moves the round timer from waiting to active
func (s *Store) StartRound(ctx context.Context, now time.Time) (RoundState, error) {
	now = now.UTC()
	return s.transitionRound(ctx,
		bson.M{"key": RoundStateKey, "status": shared.RoundWaiting},
		bson.M{"$set": bson.M{"status": shared.RoundActive, "startTime": now, "updatedAt": now}},
	)
}

// ExtendRound adds seconds to a round that has not completed
func (s *Store) ExtendRound(ctx context.Context, seconds int64) (RoundState, error) {
	if seconds <= 0 {
		return RoundState{}, fmt.Errorf("extension must be positive, got %d", seconds)
	}
	return s.transitionRound(ctx,
		bson.M{"key": RoundStateKey, "status": bson.M{"$ne": shared.RoundCompleted}},
		bson.M{
			"$inc": bson.M{"extendedBy": seconds},
			"$set": bson.M{"updatedAt": s.Clock.Now().UTC()},
		},
	)
}

// CompleteRound moves an active round to completed. Returns ErrStateConflict if it was not active
func (s *Store) CompleteRound(ctx context.Context, now time.Time) (RoundState, error) {
	now = now.UTC()
	return s.transitionRound(ctx,
		bson.M{"key": RoundStateKey, "status": shared.RoundActive},
		bson.M{"$set": bson.M{"status": shared.RoundCompleted, "endTime": now, "updatedAt": now}},
	)
}

func (s *Store) transitionRound(ctx context.Context, filter bson.M, update bson.M) (RoundState, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var state RoundState
	err := s.Collections.RoundState.FindOneAndUpdate(ctx, filter, update, opts).Decode(&state)
	if err == nil {
		return state, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return RoundState{}, ErrStateConflict
	}
	return RoundState{}, fmt.Errorf("failed to update round state: %w", err)
}
