/* matches.go
 * Contains the methods for interacting with the matches collection. Scores only ever change through
 * IncrementScore while the match is active, and status only ever moves forward through the conditional
 * StartMatch / CompleteMatch
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
	"tugofwar/api/shared"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GetMatch does a DB lookup for a single match
// Preconditions: Receives context and the match id
// Postconditions: Returns the match, ErrNotFound if it doesn't exist, or an error if the lookup failed
func (s *Store) GetMatch(ctx context.Context, matchID primitive.ObjectID) (Match, error) {
	var match Match
	err := s.Collections.Matches.FindOne(ctx, bson.M{"_id": matchID}).Decode(&match)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Match{}, ErrNotFound
		}
		return Match{}, fmt.Errorf("error fetching match %s: %w", matchID.Hex(), err)
	}
	return match, nil
}

// GetActiveMatches returns every match whose clock is running. Used by the timeout sweeper
func (s *Store) GetActiveMatches(ctx context.Context) ([]Match, error) {
	cursor, err := s.Collections.Matches.Find(ctx, bson.M{"status": shared.StatusActive})
	if err != nil {
		return nil, fmt.Errorf("error fetching active matches: %w", err)
	}
	defer cursor.Close(ctx)

	var matches []Match
	if err = cursor.All(ctx, &matches); err != nil {
		return nil, fmt.Errorf("error decoding active matches: %w", err)
	}
	return matches, nil
}

// InsertMatch stores a new match. Scores start at zero and status defaults to waiting
// Preconditions: Receives context and a match without an id
// Postconditions: Returns the stored match with its id and timestamps set, or an error if it occurs
func (s *Store) InsertMatch(ctx context.Context, match Match) (Match, error) {
	now := s.Clock.Now().UTC()
	if match.ID.IsZero() {
		match.ID = primitive.NewObjectID()
	}
	if match.Status == "" {
		match.Status = shared.StatusWaiting
	}
	match.CreatedAt = now
	match.UpdatedAt = now

	if _, err := s.Collections.Matches.InsertOne(ctx, match); err != nil {
		return Match{}, fmt.Errorf("failed to insert match: %w", err)
	}
	return match, nil
}

// IncrementScore atomically adds delta to one side's score of an active match and returns the updated match
// Preconditions: Receives context, match id, the side to score and the signed delta
// Postconditions: Returns the match after the increment, ErrStateConflict if the match is not active (its
// score is frozen), ErrNotFound if the match doesn't exist, or an error
func (s *Store) IncrementScore(ctx context.Context, matchID primitive.ObjectID, side shared.Side, delta int) (Match, error) {
	if !side.Valid() {
		return Match{}, fmt.Errorf("invalid side %q", side)
	}
	field := "scoreA"
	if side == shared.SideB {
		field = "scoreB"
	}

	update := bson.M{
		"$inc": bson.M{field: delta},
		"$set": bson.M{"updatedAt": s.Clock.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	filter := bson.M{"_id": matchID, "status": shared.StatusActive}

	var match Match
	err := s.Collections.Matches.FindOneAndUpdate(ctx, filter, update, opts).Decode(&match)
	if err == nil {
		return match, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return Match{}, fmt.Errorf("failed to increment %s on match %s: %w", field, matchID.Hex(), err)
	}

	if _, getErr := s.GetMatch(ctx, matchID); getErr != nil {
		return Match{}, getErr
	}
	return Match{}, ErrStateConflict
}

// StartMatch moves a match from waiting to active and stamps the start time
// Preconditions: Receives context, match id and the start time
// Postconditions: Returns the started match, ErrStateConflict if it was not waiting, ErrNotFound if it
// doesn't exist, or an error
func (s *Store) StartMatch(ctx context.Context, matchID primitive.ObjectID, now time.Time) (Match, error) {
	now = now.UTC()
	filter := bson.M{"_id": matchID, "status": shared.StatusWaiting}
	update := bson.M{"$set": bson.M{
		"status":    shared.StatusActive,
		"startTime": now,
		"updatedAt": now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var match Match
	err := s.Collections.Matches.FindOneAndUpdate(ctx, filter, update, opts).Decode(&match)
	if err == nil {
		return match, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return Match{}, fmt.Errorf("failed to start match %s: %w", matchID.Hex(), err)
	}

	// Filter missed, work out whether the match is absent or just not waiting
	if _, getErr := s.GetMatch(ctx, matchID); getErr != nil {
		return Match{}, getErr
	}
	return Match{}, ErrStateConflict
}

// CompleteMatch moves a match from active to completed and records the winner, which may be nil for a
// drawn timeout, and whether the clock ended it. Only one caller can win the transition
// Preconditions: Receives context, match id, the winning side or nil, the timeout flag and the completion time
// Postconditions: Returns the stored match and true if this call completed it. If another caller got
// there first it returns the stored match and false
func (s *Store) CompleteMatch(ctx context.Context, matchID primitive.ObjectID, winningSide *shared.Side, timedOut bool, now time.Time) (Match, bool, error) {
	now = now.UTC()
	set := bson.M{
		"status":    shared.StatusCompleted,
		"timedOut":  timedOut,
		"endTime":   now,
		"updatedAt": now,
	}
	if winningSide != nil {
		set["winningSide"] = *winningSide
	}
	filter := bson.M{"_id": matchID, "status": shared.StatusActive}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var match Match
	err := s.Collections.Matches.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&match)
	if err == nil {
		return match, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return Match{}, false, fmt.Errorf("failed to complete match %s: %w", matchID.Hex(), err)
	}

	current, getErr := s.GetMatch(ctx, matchID)
	if getErr != nil {
		return Match{}, false, getErr
	}
	return current, false, nil
}
