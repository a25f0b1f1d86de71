/* store_interface.go
 * Contains the Store interface for dependency injection and testing
 */

package store

import (
	"context"
	"time"
	"tugofwar/api/shared"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Interface defines the methods that Store implements.
// This allows for mocking in tests.
type Interface interface {
	// Matches
	GetMatch(ctx context.Context, matchID primitive.ObjectID) (Match, error)
	GetActiveMatches(ctx context.Context) ([]Match, error)
	InsertMatch(ctx context.Context, match Match) (Match, error)
	IncrementScore(ctx context.Context, matchID primitive.ObjectID, side shared.Side, delta int) (Match, error)
	StartMatch(ctx context.Context, matchID primitive.ObjectID, now time.Time) (Match, error)
	CompleteMatch(ctx context.Context, matchID primitive.ObjectID, winningSide *shared.Side, timedOut bool, now time.Time) (Match, bool, error)

	// Questions
	GetQuestions(ctx context.Context, ids []primitive.ObjectID) ([]Question, error)
	InsertQuestion(ctx context.Context, q Question) (Question, error)

	// Ledger
	InsertMatchSubmission(ctx context.Context, entry MatchSubmission) error
	GetMatchSubmissions(ctx context.Context, matchID primitive.ObjectID) ([]MatchSubmission, error)
	GetSubmissionByID(ctx context.Context, submissionID int64) (MatchSubmission, error)
	GetAcceptedQuestionIDs(ctx context.Context, matchID primitive.ObjectID, side shared.Side) (map[primitive.ObjectID]bool, error)
	GetRecentTeamSubmissions(ctx context.Context, teamID primitive.ObjectID, limit int64) ([]MatchSubmission, error)

	// Rate limiting
	CheckAndConsume(ctx context.Context, identifier string, limit int, window time.Duration) (RateLimitResult, error)

	// Round timer
	EnsureRoundState(ctx context.Context, duration int64) (RoundState, error)
	StartRound(ctx context.Context, now time.Time) (RoundState, error)
	ExtendRound(ctx context.Context, seconds int64) (RoundState, error)
	CompleteRound(ctx context.Context, now time.Time) (RoundState, error)

	EnsureIndexes(ctx context.Context) error
	Ping(ctx context.Context) error

	// Getter methods for accessing fields
	GetDatabase() interface{ Name() string }
	GetClient() interface{ Disconnect(context.Context) error }
}

// Ensure Store implements Interface
var _ Interface = (*Store)(nil)

// GetDatabase returns the database instance
func (s *Store) GetDatabase() interface{ Name() string } {
	return s.Database
}

// GetClient returns the MongoDB client
func (s *Store) GetClient() interface{ Disconnect(context.Context) error } {
	return s.Client
}
