/* setup.go
 * Contains match creation for operators: the question pools are stored first, then the match that
 * references them
 */

package api

import (
	"context"
	"fmt"
	"strings"
	"tugofwar/api/shared"
	"tugofwar/api/store"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultMatchDuration is used when a match is created without a duration, in seconds
const DefaultMatchDuration int64 = 3600

// QuestionSeed is a judge problem to put in a side's pool
type QuestionSeed struct {
	ContestID    string
	ProblemIndex string
	Name         string
	URL          string
}

// MatchSeed describes a match to create
type MatchSeed struct {
	RoundNumber  int
	SideATeamIDs []string
	SideBTeamIDs []string
	SideAHandles []string
	SideBHandles []string
	PoolA        []QuestionSeed
	PoolB        []QuestionSeed
	Duration     int64 // seconds
}

// CreateMatch stores the question pools and a waiting match that uses them
// Preconditions: Receives context and the match description
// Postconditions: Returns the stored match, a validation error describing the first problem with seed,
// or an error if it occurs
func (a *API) CreateMatch(ctx context.Context, seed MatchSeed) (store.Match, error) {
	if seed.RoundNumber < 1 || seed.RoundNumber > 3 {
		return store.Match{}, validationError("round number must be 1, 2 or 3")
	}
	teamsA, err := parseTeamIDs(seed.SideATeamIDs)
	if err != nil {
		return store.Match{}, err
	}
	teamsB, err := parseTeamIDs(seed.SideBTeamIDs)
	if err != nil {
		return store.Match{}, err
	}
	if len(teamsA) == 0 || len(teamsB) == 0 {
		return store.Match{}, validationError("both sides need at least one team")
	}
	for _, ta := range teamsA {
		for _, tb := range teamsB {
			if ta == tb {
				return store.Match{}, validationError(fmt.Sprintf("team %s is on both sides", ta.Hex()))
			}
		}
	}
	if len(seed.PoolA) == 0 || len(seed.PoolB) == 0 {
		return store.Match{}, validationError("both sides need a question pool")
	}
	if seed.Duration < 0 {
		return store.Match{}, validationError("duration cannot be negative")
	}
	if seed.Duration == 0 {
		seed.Duration = DefaultMatchDuration
	}

	poolA, err := a.storePool(ctx, seed.PoolA)
	if err != nil {
		return store.Match{}, err
	}
	poolB, err := a.storePool(ctx, seed.PoolB)
	if err != nil {
		return store.Match{}, err
	}

	match, err := a.Store.InsertMatch(ctx, store.Match{
		RoundNumber:   seed.RoundNumber,
		SideATeamIDs:  teamsA,
		SideBTeamIDs:  teamsB,
		SideAHandles:  cleanHandles(seed.SideAHandles),
		SideBHandles:  cleanHandles(seed.SideBHandles),
		Status:        shared.StatusWaiting,
		QuestionPoolA: poolA,
		QuestionPoolB: poolB,
		Duration:      seed.Duration,
	})
	if err != nil {
		return store.Match{}, fmt.Errorf("failed to create match: %w", err)
	}

	log.Info().
		Str("match_id", match.ID.Hex()).
		Int("round", match.RoundNumber).
		Int("pool_a", len(poolA)).
		Int("pool_b", len(poolB)).
		Msg("match created")
	return match, nil
}

func (a *API) storePool(ctx context.Context, seeds []QuestionSeed) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(seeds))
	for _, qs := range seeds {
		if strings.TrimSpace(qs.ContestID) == "" || strings.TrimSpace(qs.ProblemIndex) == "" {
			return nil, validationError("every question needs a contest id and problem index")
		}
		q, err := a.Store.InsertQuestion(ctx, store.Question{
			ContestID:    qs.ContestID,
			ProblemIndex: qs.ProblemIndex,
			Name:         strings.TrimSpace(qs.Name),
			URL:          strings.TrimSpace(qs.URL),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to store question: %w", err)
		}
		ids = append(ids, q.ID)
	}
	return ids, nil
}

func parseTeamIDs(raw []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, r := range raw {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(r))
		if err != nil {
			return nil, validationError(fmt.Sprintf("invalid team ID %q", r))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func cleanHandles(raw []string) []string {
	handles := make([]string, 0, len(raw))
	for _, h := range raw {
		if h = strings.TrimSpace(h); h != "" {
			handles = append(handles, h)
		}
	}
	return handles
}
