/* questions.go
 * Contains the methods for interacting with the questions collection
 */

package store

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GetQuestions fetches the question documents for ids. Ids that don't exist are silently left out
func (s *Store) GetQuestions(ctx context.Context, ids []primitive.ObjectID) ([]Question, error) {
	if len(ids) == 0 {
		return []Question{}, nil
	}

	cursor, err := s.Collections.Questions.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("error fetching questions: %w", err)
	}
	defer cursor.Close(ctx)

	questions := []Question{}
	if err = cursor.All(ctx, &questions); err != nil {
		return nil, fmt.Errorf("error decoding questions: %w", err)
	}
	return questions, nil
}

// InsertQuestion stores a judge problem reference. The problem index is stored upper case
// Preconditions: Receives context and the question
// Postconditions: Returns the stored question with its id, or an error if it occurs (including a
// duplicate contest/problem pair)
func (s *Store) InsertQuestion(ctx context.Context, q Question) (Question, error) {
	if q.ID.IsZero() {
		q.ID = primitive.NewObjectID()
	}
	q.ContestID = strings.TrimSpace(q.ContestID)
	q.ProblemIndex = strings.ToUpper(strings.TrimSpace(q.ProblemIndex))
	if q.ContestID == "" || q.ProblemIndex == "" {
		return Question{}, fmt.Errorf("question needs a contest id and problem index")
	}

	if _, err := s.Collections.Questions.InsertOne(ctx, q); err != nil {
		return Question{}, fmt.Errorf("failed to insert question %s%s: %w", q.ContestID, q.ProblemIndex, err)
	}
	return q, nil
}
