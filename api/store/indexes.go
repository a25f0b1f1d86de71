/* indexes.go
 * Contains EnsureIndexes, which creates every index the service relies on. The unique indexes are what
 * make the ledger, the limiter and the round timer safe under concurrent requests, so the service
 * refuses to start if this fails
 */

package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// indexSpecs returns the indexes to create per collection
func (s *Store) indexSpecs() map[*mongo.Collection][]mongo.IndexModel {
	return map[*mongo.Collection][]mongo.IndexModel{
		s.Collections.Matches: {
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "roundNumber", Value: 1}}},
		},
		s.Collections.Submissions: {
			{
				Keys:    bson.D{{Key: "submissionId", Value: 1}},
				Options: options.Index().SetUnique(true).SetName(submissionIDIndex),
			},
			{
				Keys:    bson.D{{Key: "solveKey", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true).SetName(solveKeyIndex),
			},
			{Keys: bson.D{{Key: "matchId", Value: 1}, {Key: "processed", Value: 1}}},
			{Keys: bson.D{{Key: "teamId", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		s.Collections.Questions: {
			{
				Keys:    bson.D{{Key: "contestId", Value: 1}, {Key: "problemIndex", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		s.Collections.RateLimits: {
			{
				Keys:    bson.D{{Key: "key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "expiresAt", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(0),
			},
		},
		s.Collections.RoundState: {
			{
				Keys:    bson.D{{Key: "key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}

// EnsureIndexes creates the indexes of every collection. Creating an index that already exists is a no-op
// Preconditions: Receives context
// Postconditions: Returns nil once every index exists, or the first error
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for coll, models := range s.indexSpecs() {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}
