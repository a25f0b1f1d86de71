/* submissions.go
 * Contains the methods for interacting with the match_submissions collection, the append only scoring
 * ledger. A submission id can be recorded once, and a side can hold one credited solve per question
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"tugofwar/api/shared"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	submissionIDIndex = "uniq_submission_id"
	solveKeyIndex     = "uniq_solve_key"
)

// InsertMatchSubmission appends an entry to the ledger
// Preconditions: Receives context and a fully attributed ledger entry
// Postconditions: Returns nil when the entry was appended, ErrDuplicateSubmission if the submission id is
// already recorded, ErrDuplicateSolve if the side already holds a credited solve for the question, or
// an error if the insert failed
func (s *Store) InsertMatchSubmission(ctx context.Context, entry MatchSubmission) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.Clock.Now().UTC()
	}

	_, err := s.Collections.Submissions.InsertOne(ctx, entry)
	if err == nil {
		return nil
	}
	switch {
	case isDuplicateOn(err, submissionIDIndex):
		return ErrDuplicateSubmission
	case isDuplicateOn(err, solveKeyIndex):
		return ErrDuplicateSolve
	}
	// A duplicate key on an index we can't name still means the entry was not appended
	if _, ok := duplicateKeyMessage(err); ok && entry.SolveKey == "" {
		return ErrDuplicateSubmission
	}
	return fmt.Errorf("failed to insert submission %d: %w", entry.SubmissionID, err)
}

// GetMatchSubmissions returns every ledger entry of a match, oldest submission first
func (s *Store) GetMatchSubmissions(ctx context.Context, matchID primitive.ObjectID) ([]MatchSubmission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "submissionId", Value: 1}})
	cursor, err := s.Collections.Submissions.Find(ctx, bson.M{"matchId": matchID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error fetching submissions for match %s: %w", matchID.Hex(), err)
	}
	defer cursor.Close(ctx)

	entries := []MatchSubmission{}
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("error decoding submissions: %w", err)
	}
	return entries, nil
}

// GetSubmissionByID returns the ledger entry for a judge submission id, or ErrNotFound
func (s *Store) GetSubmissionByID(ctx context.Context, submissionID int64) (MatchSubmission, error) {
	var entry MatchSubmission
	err := s.Collections.Submissions.FindOne(ctx, bson.M{"submissionId": submissionID}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return MatchSubmission{}, ErrNotFound
		}
		return MatchSubmission{}, fmt.Errorf("error fetching submission %d: %w", submissionID, err)
	}
	return entry, nil
}

// GetAcceptedQuestionIDs returns the questions a side has been credited a solve for
// Preconditions: Receives context, match id and side
// Postconditions: Returns the set of solved question ids, or an error if it occurs
func (s *Store) GetAcceptedQuestionIDs(ctx context.Context, matchID primitive.ObjectID, side shared.Side) (map[primitive.ObjectID]bool, error) {
	filter := bson.M{
		"matchId": matchID,
		"side":    side,
		"verdict": shared.VerdictAccepted,
	}
	opts := options.Find().SetProjection(bson.M{"questionId": 1})

	cursor, err := s.Collections.Submissions.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error fetching solved questions: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		QuestionID primitive.ObjectID `bson:"questionId"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("error decoding solved questions: %w", err)
	}

	solved := make(map[primitive.ObjectID]bool, len(rows))
	for _, r := range rows {
		solved[r.QuestionID] = true
	}
	return solved, nil
}

// GetRecentTeamSubmissions returns a team's most recent ledger entries across all matches, newest first
func (s *Store) GetRecentTeamSubmissions(ctx context.Context, teamID primitive.ObjectID, limit int64) ([]MatchSubmission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.Collections.Submissions.Find(ctx, bson.M{"teamId": teamID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error fetching submissions for team %s: %w", teamID.Hex(), err)
	}
	defer cursor.Close(ctx)

	entries := []MatchSubmission{}
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("error decoding team submissions: %w", err)
	}
	return entries, nil
}
