/* store.go
 * Contains the store struct and NewStore function. The methods for this package are split by collection:
 * matches, submissions (the ledger), questions, rate_limits and round_state. Each of these files contain
 * methods for interacting with that part of the database
 */

package store

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	matchesCollection     = "matches"
	submissionsCollection = "match_submissions"
	questionsCollection   = "questions"
	rateLimitsCollection  = "rate_limits"
	roundStateCollection  = "round_state"
)

// Collections groups the collections the store works with
type Collections struct {
	Matches     *mongo.Collection
	Submissions *mongo.Collection
	Questions   *mongo.Collection
	RateLimits  *mongo.Collection
	RoundState  *mongo.Collection
}

type Store struct {
	Client      *mongo.Client
	Database    *mongo.Database
	Clock       clockwork.Clock
	Collections Collections
}

// NewStore connects to mongo and returns a Store for database dbName.
// Preconditions: Receives the database name and a mongo connection string
// Postconditions: Returns pointer to the Store object, or error if it occurs
func NewStore(ctx context.Context, dbName string, mongoURI string) (*Store, error) {
	if dbName == "" {
		return nil, fmt.Errorf("dbName cannot be empty")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	return newStoreFromDatabase(client, client.Database(dbName), clockwork.NewRealClock()), nil
}

// newStoreFromDatabase wires the collections of db into a Store
func newStoreFromDatabase(client *mongo.Client, db *mongo.Database, clock clockwork.Clock) *Store {
	return &Store{
		Client:   client,
		Database: db,
		Clock:    clock,
		Collections: Collections{
			Matches:     db.Collection(matchesCollection),
			Submissions: db.Collection(submissionsCollection),
			Questions:   db.Collection(questionsCollection),
			RateLimits:  db.Collection(rateLimitsCollection),
			RoundState:  db.Collection(roundStateCollection),
		},
	}
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx, nil)
}
