/* server_test.go
 * Contains unit tests for the HTTP handlers, run through the chi router against the in memory MockStore
 */

package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"tugofwar/api/api"
	"tugofwar/api/external"
	"tugofwar/api/shared"
	"tugofwar/api/store"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	handler http.Handler
	store   *api.MockStore
	judge   *api.MockJudge
	clock   *clockwork.FakeClock
	match   store.Match
	teamA   string
	teamB   string
}

// newTestEnv serves one active match, ten minutes into an hour long clock. Side A is "alice" with
// question 1850A and side B is "bob" with question 1850B
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(baseTime)
	mockStore := api.NewMockStore(clock.Now)
	judge := api.NewMockJudge()

	match, questions := store.CreateSampleMatch(baseTime.Add(-10*time.Minute), 3600)
	mockStore.Seed(match, questions...)

	registry := prometheus.NewRegistry()
	apiPtr, err := api.NewAPI(mockStore, judge, api.DefaultConfig(),
		api.WithClock(clock), api.WithMetrics(api.NewMetrics(registry)))
	require.NoError(t, err)

	return &testEnv{
		handler: NewRouter(NewServer(apiPtr), registry),
		store:   mockStore,
		judge:   judge,
		clock:   clock,
		match:   match,
		teamA:   match.SideATeamIDs[0].Hex(),
		teamB:   match.SideBTeamIDs[0].Hex(),
	}
}

func (e *testEnv) do(method, path, body, teamID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if teamID != "" {
		req.Header.Set(TeamIDHeader, teamID)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) sync(teamID string) *httptest.ResponseRecorder {
	return e.do(http.MethodPost, "/api/round-2/sync", `{"matchId":"`+e.match.ID.Hex()+`"}`, teamID)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// region sync tests

func TestSync_ScoresAcceptedSubmission(t *testing.T) {
	env := newTestEnv(t)
	env.judge.Submissions["alice"] = []external.Submission{{
		SubmissionID: 1, Handle: "alice", ContestID: "1850", ProblemIndex: "A", Verdict: "OK",
		CreationTime: baseTime.Add(-5 * time.Minute).Unix(),
	}}

	rec := env.sync(env.teamA)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "warnings")
	match := body["match"].(map[string]any)
	assert.Equal(t, env.match.ID.Hex(), match["matchId"])
	assert.Equal(t, float64(10), match["scoreA"])
	assert.Equal(t, float64(0), match["scoreB"])
	assert.Equal(t, float64(1), match["newSubmissions"])
	assert.Equal(t, "active", match["status"])
	assert.Equal(t, float64(3000), match["timeRemaining"])
	assert.Nil(t, match["winningSide"])
}

func TestSync_WarningsForUnavailableHandle(t *testing.T) {
	env := newTestEnv(t)
	env.judge.Rejections["bob"] = "handles: User with handle bob not found"

	rec := env.sync(env.teamB)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[syncResponse](t, rec)
	assert.Equal(t, []string{"bob: submissions unavailable"}, body.Warnings)
}

func TestSync_Unauthorized(t *testing.T) {
	env := newTestEnv(t)
	rec := env.sync("")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, decode[errorResponse](t, rec).Success)
}

func TestSync_BadBody(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/round-2/sync", `not json`, env.teamA)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/round-2/sync", `{}`, env.teamA)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "matchId is required", decode[errorResponse](t, rec).Error)

	rec = env.do(http.MethodPost, "/api/round-2/sync", `{"matchId":"nope"}`, env.teamA)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid match ID", decode[errorResponse](t, rec).Error)
}

func TestSync_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/round-2/sync", `{"matchId":"64b7f0000000000000000001"}`, env.teamA)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSync_Forbidden(t *testing.T) {
	env := newTestEnv(t)
	rec := env.sync("64b7f0000000000000000009")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSync_NotActive(t *testing.T) {
	env := newTestEnv(t)
	waiting := env.match
	waiting.Status = shared.StatusWaiting
	waiting.StartTime = nil
	env.store.Seed(waiting)

	rec := env.sync(env.teamA)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Match is not active", decode[errorResponse](t, rec).Error)
}

func TestSync_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, env.sync(env.teamA).Code, "request %d", i+1)
	}

	env.clock.Advance(15 * time.Second)
	rec := env.sync(env.teamA)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "45", rec.Header().Get("Retry-After"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.Contains(t, decode[errorResponse](t, rec).Error, "Try again in 45 seconds")

	// the other team has its own budget
	assert.Equal(t, http.StatusOK, env.sync(env.teamB).Code)
}

func TestSync_InternalErrorIsGeneric(t *testing.T) {
	env := newTestEnv(t)
	env.store.CheckAndConsumeError = errors.New("mongo: server selection timeout")

	rec := env.sync(env.teamA)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	msg := decode[errorResponse](t, rec).Error
	assert.Equal(t, "An error occurred while syncing submissions. Please try again.", msg)
	assert.NotContains(t, rec.Body.String(), "server selection")
}

// endregion

// region match state tests

func TestMatch_OwnPoolOnlyWhileActive(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/round-2/match/"+env.match.ID.Hex(), "", env.teamB)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[matchResponse](t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, shared.SideB, body.Match.MySide)
	assert.Equal(t, "Semifinals", body.Match.RoundName)
	assert.Nil(t, body.Match.SideA.Questions)
	require.Len(t, body.Match.SideB.Questions, 1)
	assert.Equal(t, "B", body.Match.SideB.Questions[0].ProblemIndex)
}

func TestMatch_Errors(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/round-2/match/" + env.match.ID.Hex()

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, path, "", "").Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, path, "", "64b7f0000000000000000009").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/round-2/match/xyz", "", env.teamA).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/round-2/match/64b7f0000000000000000001", "", env.teamA).Code)
}

// endregion

// region round state tests

func TestRoundState(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/round1-state", "", "").Code)

	rec := env.do(http.MethodGet, "/api/round1-state", "", env.teamA)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "waiting", body["status"])
	assert.Equal(t, float64(0), body["timeRemaining"])
	assert.Equal(t, float64(3600), body["duration"])
}

// endregion

// region misc tests

func TestActivity(t *testing.T) {
	env := newTestEnv(t)
	env.judge.Submissions["alice"] = []external.Submission{
		{SubmissionID: 1, Handle: "alice", ContestID: "1850", ProblemIndex: "A", Verdict: "WRONG_ANSWER",
			CreationTime: baseTime.Add(-6 * time.Minute).Unix()},
		{SubmissionID: 2, Handle: "alice", ContestID: "1850", ProblemIndex: "A", Verdict: "OK",
			CreationTime: baseTime.Add(-5 * time.Minute).Unix()},
	}
	require.Equal(t, http.StatusOK, env.sync(env.teamA).Code)

	rec := env.do(http.MethodGet, "/api/round-2/activity?limit=1", "", env.teamA)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[activityResponse](t, rec)
	assert.True(t, body.Success)
	require.Len(t, body.Activity, 1)
	assert.Equal(t, int64(2), body.Activity[0].SubmissionID)
	assert.Equal(t, 10, body.Activity[0].Points)
	assert.Equal(t, env.match.ID.Hex(), body.Activity[0].MatchID)

	// the other team has nothing of its own yet
	rec = env.do(http.MethodGet, "/api/round-2/activity", "", env.teamB)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[activityResponse](t, rec).Activity)
}

func TestActivity_Errors(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/round-2/activity", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/round-2/activity", "", "zzz").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/round-2/activity?limit=ten", "", env.teamA).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.sync(env.teamA)

	rec := env.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tugofwar_syncs_total")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", "", "").Code)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/nope", "", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, env.do(http.MethodGet, "/api/round-2/sync", "", "").Code)
}

func TestClientMessage(t *testing.T) {
	assert.Equal(t, "round already started", clientMessage(errors.New("operation not allowed in the current state: round already started")))
	assert.Equal(t, "plain", clientMessage(errors.New("plain")))
}

// endregion
