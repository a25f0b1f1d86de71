/* scoring.go
 * Contains the scoring engine. Submissions are applied to a match by appending a ledger entry keyed on the
 * judge's submission id and only then incrementing the score, so a submission moves the score at most once
 * no matter how many requests see it
 */

package api

import (
	"context"
	"errors"
	"fmt"
	"time"
	"tugofwar/api/external"
	"tugofwar/api/logic"
	"tugofwar/api/shared"
	"tugofwar/api/store"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// errMatchFrozen stops a batch once another request has completed the match under it
var errMatchFrozen = errors.New("match completed while scoring")

// solvedSet tracks the questions each side holds a credited solve for
type solvedSet map[shared.Side]map[primitive.ObjectID]bool

func newSolvedSet() solvedSet {
	return solvedSet{
		shared.SideA: make(map[primitive.ObjectID]bool),
		shared.SideB: make(map[primitive.ObjectID]bool),
	}
}

// add records a ledger entry if it is a credited solve
func (s solvedSet) add(entry store.MatchSubmission) {
	if entry.Points > 0 && logic.IsAccepted(entry.Verdict) && entry.Side.Valid() {
		s[entry.Side][entry.QuestionID] = true
	}
}

// ProcessSubmissions applies raw judge submissions to a match and advances its state
// Preconditions: Receives context, the match as last read and the submissions fetched for its handles
// Postconditions: Returns the match state after scoring, or an error if the store failed. Calling it again
// with the same submissions changes nothing
func (a *API) ProcessSubmissions(ctx context.Context, match store.Match, raw []external.Submission) (ProcessResult, error) {
	now := a.Clock.Now()

	// the caller's copy can be older than a completion by another request, and a completed match is frozen
	stored, err := a.Store.GetMatch(ctx, match.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ProcessResult{}, ErrNotFound
		}
		return ProcessResult{}, fmt.Errorf("failed to load match: %w", err)
	}
	match = stored

	if match.Status == shared.StatusCompleted {
		return frozenResult(match, now), nil
	}
	if match.Status != shared.StatusActive {
		return ProcessResult{}, ErrMatchNotActive
	}

	newSubmissions := 0
	if len(raw) > 0 {
		ledger, err := a.Store.GetMatchSubmissions(ctx, match.ID)
		if err != nil {
			return ProcessResult{}, fmt.Errorf("failed to load ledger: %w", err)
		}
		known := make(map[int64]bool, len(ledger))
		solved := newSolvedSet()
		for _, e := range ledger {
			known[e.SubmissionID] = true
			solved.add(e)
		}

		pool := append(append([]primitive.ObjectID{}, match.QuestionPoolA...), match.QuestionPoolB...)
		questions, err := a.Store.GetQuestions(ctx, pool)
		if err != nil {
			return ProcessResult{}, fmt.Errorf("failed to load question pools: %w", err)
		}
		sides := logic.NewSideLookup(match)
		pools := logic.NewPoolLookup(match, questions)

		for _, sub := range logic.SortSubmissions(raw) {
			if known[sub.SubmissionID] {
				continue
			}
			attr, ok := sides.Resolve(sub.Handle)
			if !ok {
				continue
			}
			questionID, ok := pools.Resolve(attr.Side, sub.ContestID, sub.ProblemIndex)
			if !ok {
				continue
			}
			if !shared.IsTerminalVerdict(sub.Verdict) {
				continue
			}
			if !logic.WithinMatchWindow(sub.CreationTime, match.StartTime, match.Duration) {
				continue
			}

			appended, err := a.appendEntry(ctx, match, attr, questionID, sub, solved)
			if errors.Is(err, errMatchFrozen) {
				break
			}
			if err != nil {
				return ProcessResult{}, err
			}
			known[sub.SubmissionID] = true
			if appended {
				newSubmissions++
			}
		}
	}

	current, err := a.Store.GetMatch(ctx, match.ID)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("failed to reload match: %w", err)
	}
	if current.Status == shared.StatusCompleted {
		result := frozenResult(current, now)
		result.NewSubmissions = newSubmissions
		return result, nil
	}

	result, err := a.evaluate(ctx, current, now)
	if err != nil {
		return ProcessResult{}, err
	}
	result.NewSubmissions = newSubmissions
	return result, nil
}

// appendEntry writes one ledger entry and applies its points. It returns false when another request had
// already recorded the submission
func (a *API) appendEntry(ctx context.Context, match store.Match, attr logic.Attribution, questionID primitive.ObjectID,
	sub external.Submission, solved solvedSet) (bool, error) {
	entry := store.MatchSubmission{
		MatchID:      match.ID,
		Side:         attr.Side,
		TeamID:       attr.TeamID,
		Handle:       attr.Handle,
		QuestionID:   questionID,
		ContestID:    sub.ContestID,
		ProblemIndex: sub.ProblemIndex,
		SubmissionID: sub.SubmissionID,
		Verdict:      sub.Verdict,
		Points:       logic.PointsFor(sub.Verdict, solved[attr.Side][questionID]),
		Timestamp:    time.Unix(sub.CreationTime, 0).UTC(),
		Processed:    true,
	}
	if entry.Points == logic.AcceptedPoints {
		entry.SolveKey = logic.SolveKey(match.ID, attr.Side, questionID)
	}

	err := a.Store.InsertMatchSubmission(ctx, entry)
	if errors.Is(err, store.ErrDuplicateSolve) {
		// a concurrent request credited this side's solve first, so this one is a repeat
		solved[attr.Side][questionID] = true
		entry.Points = logic.RepeatSolvePoints
		entry.SolveKey = ""
		err = a.Store.InsertMatchSubmission(ctx, entry)
	}
	if errors.Is(err, store.ErrDuplicateSubmission) {
		if existing, getErr := a.Store.GetSubmissionByID(ctx, entry.SubmissionID); getErr == nil {
			solved.add(existing)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record submission %d: %w", entry.SubmissionID, err)
	}

	solved.add(entry)

	if entry.Points != 0 {
		_, err := a.Store.IncrementScore(ctx, match.ID, entry.Side, entry.Points)
		if errors.Is(err, store.ErrStateConflict) {
			log.Info().
				Str("match_id", match.ID.Hex()).
				Int64("submission_id", entry.SubmissionID).
				Msg("match completed before submission was scored, points not applied")
			return false, errMatchFrozen
		}
		if err != nil {
			// The entry is in the ledger but its points are not. Surface it so an operator can reconcile
			log.Error().Err(err).
				Str("match_id", match.ID.Hex()).
				Int64("submission_id", entry.SubmissionID).
				Int("points", entry.Points).
				Msg("ledger entry recorded without score increment")
			return true, fmt.Errorf("failed to apply points for submission %d: %w", entry.SubmissionID, err)
		}
	}
	a.Metrics.incScored(entry.Side, entry.Points)
	return true, nil
}

// evaluate decides whether an active match is over and, if so, completes it
func (a *API) evaluate(ctx context.Context, match store.Match, now time.Time) (ProcessResult, error) {
	timeRemaining := logic.Remaining(now, match.StartTime, match.Duration)
	timedOut := logic.IsTimedOut(now, match.StartTime, match.Duration)

	var crossA, crossB *logic.Crossing
	if match.ScoreA >= logic.WinThreshold && match.ScoreB >= logic.WinThreshold {
		// every request must break the tie the same way, so read it off the full ledger
		entries, err := a.Store.GetMatchSubmissions(ctx, match.ID)
		if err != nil {
			return ProcessResult{}, fmt.Errorf("failed to load ledger for tie break: %w", err)
		}
		crossA = logic.ThresholdCrossing(entries, shared.SideA)
		crossB = logic.ThresholdCrossing(entries, shared.SideB)
	}

	outcome := logic.DecideOutcome(match.ScoreA, match.ScoreB, crossA, crossB, timedOut)
	if !outcome.Completed {
		return ProcessResult{
			ScoreA:        match.ScoreA,
			ScoreB:        match.ScoreB,
			TimeRemaining: timeRemaining,
			MatchStatus:   match.Status,
		}, nil
	}

	final, transitioned, err := a.Store.CompleteMatch(ctx, match.ID, outcome.WinningSide, outcome.IsTimeout, now)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("failed to complete match: %w", err)
	}
	if !transitioned {
		return frozenResult(final, now), nil
	}

	log.Info().
		Str("match_id", match.ID.Hex()).
		Int("score_a", final.ScoreA).
		Int("score_b", final.ScoreB).
		Bool("timeout", outcome.IsTimeout).
		Msg("match completed")
	a.Metrics.incCompletion(outcome.IsTimeout)
	a.notifyCompleted(ctx, final, outcome.IsTimeout)

	result := frozenResult(final, now)
	result.IsTimeout = outcome.IsTimeout
	return result, nil
}

// frozenResult reports a match as stored. For a completed match the clock stops at its end time
func frozenResult(match store.Match, now time.Time) ProcessResult {
	clockNow := now
	if match.Status == shared.StatusCompleted && match.EndTime != nil {
		clockNow = *match.EndTime
	}
	result := ProcessResult{
		ScoreA:        match.ScoreA,
		ScoreB:        match.ScoreB,
		WinningSide:   match.WinningSide,
		TimeRemaining: logic.Remaining(clockNow, match.StartTime, match.Duration),
		MatchStatus:   match.Status,
	}
	if match.Status == shared.StatusCompleted {
		result.IsTimeout = match.TimedOut
	}
	return result
}
