/* rate_limits.go
 * Contains the fixed window rate limiter backed by the rate_limits collection. The check and the
 * consume are a single atomic findOneAndUpdate so concurrent callers can never read the same count
 */

package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// maxUpsertAttempts bounds the retries after losing a cold key upsert race
const maxUpsertAttempts = 3

// CheckAndConsume counts one request against identifier's current window
// Preconditions: Receives context, the caller key, the request limit and the window length
// Postconditions: Returns whether the caller is over the limit, the requests left in the window and when
// the window resets, or an error if the limiter storage failed
func (s *Store) CheckAndConsume(ctx context.Context, identifier string, limit int, window time.Duration) (RateLimitResult, error) {
	if identifier == "" {
		return RateLimitResult{}, fmt.Errorf("rate limit identifier cannot be empty")
	}
	if limit <= 0 || window <= 0 {
		return RateLimitResult{}, fmt.Errorf("rate limit and window must be positive")
	}

	var (
		record RateLimitRecord
		err    error
	)
	for attempt := 1; attempt <= maxUpsertAttempts; attempt++ {
		record, err = s.consume(ctx, identifier, window)
		if err == nil {
			break
		}
		// Two upserts on a cold key can both miss the filter, the unique index rejects the loser and a
		// retry lands on the increment path
		if !mongo.IsDuplicateKeyError(err) {
			return RateLimitResult{}, fmt.Errorf("rate limit update failed: %w", err)
		}
	}
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("rate limit update failed after %d attempts: %w", maxUpsertAttempts, err)
	}

	result := RateLimitResult{
		Limited:   record.Count > limit,
		ResetTime: record.ExpiresAt,
	}
	if !result.Limited {
		result.Remaining = limit - record.Count
	}
	return result, nil
}

// consume runs the pipeline upsert: a live window is incremented, an expired or missing one restarts at 1
func (s *Store) consume(ctx context.Context, identifier string, window time.Duration) (RateLimitRecord, error) {
	now := s.Clock.Now().UTC()
	live := bson.D{{Key: "$gt", Value: bson.A{"$expiresAt", now}}}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "count", Value: bson.D{{Key: "$cond", Value: bson.A{
				live,
				bson.D{{Key: "$add", Value: bson.A{"$count", 1}}},
				1,
			}}}},
			{Key: "expiresAt", Value: bson.D{{Key: "$cond", Value: bson.A{
				live,
				"$expiresAt",
				now.Add(window),
			}}}},
		}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var record RateLimitRecord
	err := s.Collections.RateLimits.FindOneAndUpdate(ctx, bson.M{"key": identifier}, pipeline, opts).Decode(&record)
	if err != nil {
		return RateLimitRecord{}, err
	}
	return record, nil
}
