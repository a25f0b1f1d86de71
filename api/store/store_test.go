/* store_test.go
 * Contains unit tests for the store methods, run against mtest mock deployments
 */

package store

import (
	"context"
	"testing"
	"time"
	"tugofwar/api/shared"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func newMockStore(mt *mtest.T) *Store {
	return NewStoreWithClock(mt.Client, mt.DB, clockwork.NewFakeClockAt(testNow))
}

func matchDoc(id primitive.ObjectID, status shared.MatchStatus, scoreA, scoreB int) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "roundNumber", Value: 2},
		{Key: "scoreA", Value: scoreA},
		{Key: "scoreB", Value: scoreB},
		{Key: "status", Value: string(status)},
		{Key: "duration", Value: int64(3600)},
	}
}

func duplicateKeyResponse(index string) bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{
		Index:   0,
		Code:    11000,
		Message: "E11000 duplicate key error collection: test.match_submissions index: " + index + " dup key",
	})
}

func TestStore_Getters(t *testing.T) {
	s := &Store{}
	_ = s.GetDatabase()
	_ = s.GetClient()
}

func TestGetMatch(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns the match", func(mt *mtest.T) {
		s := newMockStore(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.matches", mtest.FirstBatch, matchDoc(id, shared.StatusActive, 20, -5)))

		match, err := s.GetMatch(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, match.ID)
		assert.Equal(t, 20, match.ScoreA)
		assert.Equal(t, -5, match.ScoreB)
		assert.Equal(t, shared.StatusActive, match.Status)
	})

	mt.Run("returns ErrNotFound when missing", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.matches", mtest.FirstBatch))

		_, err := s.GetMatch(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	mt.Run("wraps driver errors", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "boom", Name: "BadValue"}))

		_, err := s.GetMatch(context.Background(), primitive.NewObjectID())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestGetActiveMatches(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes every batch", func(mt *mtest.T) {
		s := newMockStore(mt)
		a, b := primitive.NewObjectID(), primitive.NewObjectID()
		first := mtest.CreateCursorResponse(1, "test.matches", mtest.FirstBatch, matchDoc(a, shared.StatusActive, 0, 0))
		getMore := mtest.CreateCursorResponse(0, "test.matches", mtest.NextBatch, matchDoc(b, shared.StatusActive, 10, 0))
		mt.AddMockResponses(first, getMore)

		matches, err := s.GetActiveMatches(context.Background())
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, a, matches[0].ID)
		assert.Equal(t, 10, matches[1].ScoreA)
	})
}

func TestInsertMatch(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("fills id, status and timestamps", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		match, err := s.InsertMatch(context.Background(), Match{RoundNumber: 1, Duration: 1800})
		require.NoError(t, err)
		assert.False(t, match.ID.IsZero())
		assert.Equal(t, shared.StatusWaiting, match.Status)
		assert.Equal(t, testNow, match.CreatedAt)
		assert.Equal(t, testNow, match.UpdatedAt)
	})

	mt.Run("wraps write errors", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 2, Message: "bad"}))

		_, err := s.InsertMatch(context.Background(), Match{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert match")
	})
}

func TestIncrementScore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns the updated match", func(mt *mtest.T) {
		s := newMockStore(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: matchDoc(id, shared.StatusActive, 80, 60)}))

		match, err := s.IncrementScore(context.Background(), id, shared.SideA, 10)
		require.NoError(t, err)
		assert.Equal(t, 80, match.ScoreA)
	})

	mt.Run("missing match", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "test.matches", mtest.FirstBatch),
		)

		_, err := s.IncrementScore(context.Background(), primitive.NewObjectID(), shared.SideB, -5)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	mt.Run("completed match is frozen", func(mt *mtest.T) {
		s := newMockStore(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "test.matches", mtest.FirstBatch, matchDoc(id, shared.StatusCompleted, 80, 0)),
		)

		_, err := s.IncrementScore(context.Background(), id, shared.SideB, -5)
		assert.ErrorIs(t, err, ErrStateConflict)
	})

	mt.Run("rejects an invalid side", func(mt *mtest.T) {
		s := newMockStore(mt)
		_, err := s.IncrementScore(context.Background(), primitive.NewObjectID(), shared.Side("C"), 10)
		assert.Error(t, err)
	})
}

func TestStartMatch(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("starts a waiting match", func(mt *mtest.T) {
		s := newMockStore(mt)
		id := primitive.NewObjectID()
		doc := append(matchDoc(id, shared.StatusActive, 0, 0), bson.E{Key: "startTime", Value: testNow})
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: doc}))

		match, err := s.StartMatch(context.Background(), id, testNow)
		require.NoError(t, err)
		assert.Equal(t, shared.StatusActive, match.Status)
		require.NotNil(t, match.StartTime)
		assert.True(t, match.StartTime.Equal(testNow))
	})

	mt.Run("conflict when the match is already running", func(mt *mtest.T) {
		s := newMockStore(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "test.matches", mtest.FirstBatch, matchDoc(id, shared.StatusActive, 0, 0)),
		)

		_, err := s.StartMatch(context.Background(), id, testNow)
		assert.ErrorIs(t, err, ErrStateConflict)
	})

	mt.Run("not found", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "test.matches", mtest.FirstBatch),
		)

		_, err := s.StartMatch(context.Background(), primitive.NewObjectID(), testNow)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCompleteMatch(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("transitions an active match", func(mt *mtest.T) {
		s := newMockStore(mt)
		id := primitive.NewObjectID()
		doc := append(matchDoc(id, shared.StatusCompleted, 80, 60), bson.E{Key: "winningSide", Value: "A"})
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: doc}))

		winner := shared.SideA
		match, transitioned, err := s.CompleteMatch(context.Background(), id, &winner, false, testNow)
		require.NoError(t, err)
		assert.True(t, transitioned)
		assert.False(t, match.TimedOut)
		require.NotNil(t, match.WinningSide)
		assert.Equal(t, shared.SideA, *match.WinningSide)
	})

	mt.Run("second completer gets the stored state", func(mt *mtest.T) {
		s := newMockStore(mt)
		id := primitive.NewObjectID()
		doc := append(matchDoc(id, shared.StatusCompleted, 40, 55),
			bson.E{Key: "winningSide", Value: "B"}, bson.E{Key: "timedOut", Value: true})
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "test.matches", mtest.FirstBatch, doc),
		)

		winner := shared.SideA
		match, transitioned, err := s.CompleteMatch(context.Background(), id, &winner, false, testNow)
		require.NoError(t, err)
		assert.False(t, transitioned)
		assert.True(t, match.TimedOut)
		require.NotNil(t, match.WinningSide)
		assert.Equal(t, shared.SideB, *match.WinningSide)
	})
}

func TestInsertMatchSubmission(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("appends", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := s.InsertMatchSubmission(context.Background(), MatchSubmission{SubmissionID: 1, Points: 10})
		assert.NoError(t, err)
	})

	mt.Run("duplicate submission id", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(duplicateKeyResponse(submissionIDIndex))

		err := s.InsertMatchSubmission(context.Background(), MatchSubmission{SubmissionID: 1, Points: 10, SolveKey: "k"})
		assert.ErrorIs(t, err, ErrDuplicateSubmission)
	})

	mt.Run("duplicate solve", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(duplicateKeyResponse(solveKeyIndex))

		err := s.InsertMatchSubmission(context.Background(), MatchSubmission{SubmissionID: 2, Points: 10, SolveKey: "k"})
		assert.ErrorIs(t, err, ErrDuplicateSolve)
	})

	mt.Run("other write errors are wrapped", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 121, Message: "validation failed"}))

		err := s.InsertMatchSubmission(context.Background(), MatchSubmission{SubmissionID: 3})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicateSubmission)
		assert.NotErrorIs(t, err, ErrDuplicateSolve)
	})
}

func TestGetSubmissionByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.match_submissions", mtest.FirstBatch, bson.D{
			{Key: "submissionId", Value: int64(42)},
			{Key: "side", Value: "B"},
			{Key: "points", Value: 10},
			{Key: "verdict", Value: "OK"},
		}))

		entry, err := s.GetSubmissionByID(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, int64(42), entry.SubmissionID)
		assert.Equal(t, shared.SideB, entry.Side)
		assert.Equal(t, 10, entry.Points)
	})

	mt.Run("missing", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.match_submissions", mtest.FirstBatch))

		_, err := s.GetSubmissionByID(context.Background(), 42)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGetAcceptedQuestionIDs(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("builds the solved set", func(mt *mtest.T) {
		s := newMockStore(mt)
		q1, q2 := primitive.NewObjectID(), primitive.NewObjectID()
		first := mtest.CreateCursorResponse(1, "test.match_submissions", mtest.FirstBatch,
			bson.D{{Key: "questionId", Value: q1}},
			bson.D{{Key: "questionId", Value: q2}},
		)
		getMore := mtest.CreateCursorResponse(0, "test.match_submissions", mtest.NextBatch)
		mt.AddMockResponses(first, getMore)

		solved, err := s.GetAcceptedQuestionIDs(context.Background(), primitive.NewObjectID(), shared.SideA)
		require.NoError(t, err)
		assert.Len(t, solved, 2)
		assert.True(t, solved[q1])
		assert.True(t, solved[q2])
	})
}

func TestGetRecentTeamSubmissions(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns the entries in server order", func(mt *mtest.T) {
		s := newMockStore(mt)
		team := primitive.NewObjectID()
		entry := func(id int64, points int) bson.D {
			return bson.D{
				{Key: "teamId", Value: team},
				{Key: "submissionId", Value: id},
				{Key: "points", Value: points},
				{Key: "side", Value: "A"},
			}
		}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.match_submissions", mtest.FirstBatch,
			entry(2, 10), entry(1, -5)))

		entries, err := s.GetRecentTeamSubmissions(context.Background(), team, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, int64(2), entries[0].SubmissionID)
		assert.Equal(t, -5, entries[1].Points)
		assert.Equal(t, shared.SideA, entries[1].Side)
	})

	mt.Run("empty result is not nil", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.match_submissions", mtest.FirstBatch))

		entries, err := s.GetRecentTeamSubmissions(context.Background(), primitive.NewObjectID(), 0)
		require.NoError(t, err)
		assert.NotNil(t, entries)
		assert.Empty(t, entries)
	})
}

func TestGetQuestions_EmptyIDs(t *testing.T) {
	s := &Store{}
	questions, err := s.GetQuestions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, questions)
}

func TestInsertQuestion_NormalizesIndex(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("upper cases the problem index", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		q, err := s.InsertQuestion(context.Background(), Question{ContestID: " 1850 ", ProblemIndex: "b"})
		require.NoError(t, err)
		assert.Equal(t, "1850", q.ContestID)
		assert.Equal(t, "B", q.ProblemIndex)
		assert.False(t, q.ID.IsZero())
	})

	mt.Run("rejects a blank problem", func(mt *mtest.T) {
		s := newMockStore(mt)
		_, err := s.InsertQuestion(context.Background(), Question{ContestID: "1850"})
		assert.Error(t, err)
	})
}

func rateLimitDoc(count int, expiresAt time.Time) bson.D {
	return bson.D{
		{Key: "key", Value: "tournament-sync:team"},
		{Key: "count", Value: count},
		{Key: "expiresAt", Value: expiresAt},
	}
}

func TestCheckAndConsume(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	reset := testNow.Add(time.Minute)

	mt.Run("under the limit", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: rateLimitDoc(3, reset)}))

		res, err := s.CheckAndConsume(context.Background(), "tournament-sync:team", 10, time.Minute)
		require.NoError(t, err)
		assert.False(t, res.Limited)
		assert.Equal(t, 7, res.Remaining)
		assert.True(t, res.ResetTime.Equal(reset))
	})

	mt.Run("at the limit is still allowed", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: rateLimitDoc(10, reset)}))

		res, err := s.CheckAndConsume(context.Background(), "tournament-sync:team", 10, time.Minute)
		require.NoError(t, err)
		assert.False(t, res.Limited)
		assert.Equal(t, 0, res.Remaining)
	})

	mt.Run("over the limit", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: rateLimitDoc(11, reset)}))

		res, err := s.CheckAndConsume(context.Background(), "tournament-sync:team", 10, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Limited)
		assert.Equal(t, 0, res.Remaining)
	})

	mt.Run("retries after losing the cold key race", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Message: "E11000 duplicate key error", Name: "DuplicateKey"}),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: rateLimitDoc(2, reset)}),
		)

		res, err := s.CheckAndConsume(context.Background(), "tournament-sync:team", 10, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 8, res.Remaining)
	})

	mt.Run("storage errors propagate", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "boom", Name: "BadValue"}))

		_, err := s.CheckAndConsume(context.Background(), "tournament-sync:team", 10, time.Minute)
		assert.Error(t, err)
	})

	mt.Run("rejects bad arguments", func(mt *mtest.T) {
		s := newMockStore(mt)
		_, err := s.CheckAndConsume(context.Background(), "", 10, time.Minute)
		assert.Error(t, err)
		_, err = s.CheckAndConsume(context.Background(), "k", 0, time.Minute)
		assert.Error(t, err)
	})
}

func TestRoundState(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("ensure returns the singleton", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "key", Value: RoundStateKey},
			{Key: "status", Value: "waiting"},
			{Key: "duration", Value: int64(3600)},
			{Key: "extendedBy", Value: int64(0)},
		}}))

		state, err := s.EnsureRoundState(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, RoundStateKey, state.Key)
		assert.Equal(t, shared.RoundWaiting, state.Status)
		assert.Equal(t, DefaultRoundDuration, state.Duration)
	})

	mt.Run("start conflict when not waiting", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := s.StartRound(context.Background(), testNow)
		assert.ErrorIs(t, err, ErrStateConflict)
	})

	mt.Run("extend rejects non positive seconds", func(mt *mtest.T) {
		s := newMockStore(mt)
		_, err := s.ExtendRound(context.Background(), 0)
		assert.Error(t, err)
	})
}

func TestEnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates every index", func(mt *mtest.T) {
		s := newMockStore(mt)
		for range s.indexSpecs() {
			mt.AddMockResponses(mtest.CreateSuccessResponse())
		}
		assert.NoError(t, s.EnsureIndexes(context.Background()))
	})

	mt.Run("unique ledger indexes are named", func(mt *mtest.T) {
		s := newMockStore(mt)
		var names []string
		for _, model := range s.indexSpecs()[s.Collections.Submissions] {
			if model.Options != nil && model.Options.Name != nil {
				names = append(names, *model.Options.Name)
			}
		}
		assert.ElementsMatch(t, []string{submissionIDIndex, solveKeyIndex}, names)
	})
}

func TestMatchHelpers(t *testing.T) {
	teamA, teamB := primitive.NewObjectID(), primitive.NewObjectID()
	m := Match{
		SideATeamIDs: []primitive.ObjectID{teamA},
		SideBTeamIDs: []primitive.ObjectID{teamB},
		SideAHandles: []string{"Alice", " ", "carol"},
		SideBHandles: []string{"bob", "ALICE"},
		ScoreA:       15,
		ScoreB:       -5,
	}

	side, ok := m.SideOf(teamB.Hex())
	assert.True(t, ok)
	assert.Equal(t, shared.SideB, side)

	_, ok = m.SideOf(primitive.NewObjectID().Hex())
	assert.False(t, ok)

	assert.Equal(t, []string{"Alice", "carol", "bob"}, m.Handles())
	assert.Equal(t, 15, m.Score(shared.SideA))
	assert.Equal(t, -5, m.Score(shared.SideB))
}
