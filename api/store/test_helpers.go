/* test_helpers.go
 * Contains test helper functions for store package tests and for packages that seed a store
 */

package store

import (
	"time"
	"tugofwar/api/shared"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// NewStoreWithClock wires a Store around an existing database with the given clock.
// Used with mtest mock deployments and fake clocks.
func NewStoreWithClock(client *mongo.Client, db *mongo.Database, clock clockwork.Clock) *Store {
	return newStoreFromDatabase(client, db, clock)
}

// CreateSampleMatch creates an active two team match with one handle per team and a single question per side.
func CreateSampleMatch(start time.Time, duration int64) (Match, []Question) {
	qa := Question{ID: primitive.NewObjectID(), ContestID: "1850", ProblemIndex: "A", Name: "To My Critics"}
	qb := Question{ID: primitive.NewObjectID(), ContestID: "1850", ProblemIndex: "B", Name: "Ten Words of Wisdom"}

	return Match{
		ID:            primitive.NewObjectID(),
		RoundNumber:   2,
		SideATeamIDs:  []primitive.ObjectID{primitive.NewObjectID()},
		SideBTeamIDs:  []primitive.ObjectID{primitive.NewObjectID()},
		SideAHandles:  []string{"alice"},
		SideBHandles:  []string{"bob"},
		Status:        shared.StatusActive,
		QuestionPoolA: []primitive.ObjectID{qa.ID},
		QuestionPoolB: []primitive.ObjectID{qb.ID},
		Duration:      duration,
		StartTime:     &start,
		CreatedAt:     start,
		UpdatedAt:     start,
	}, []Question{qa, qb}
}
