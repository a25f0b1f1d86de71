/* test_mocks.go
 * Contains mock structures and interfaces for testing the API package. MockStore keeps everything in memory
 * and enforces the same unique keys and atomic updates as the mongo store, so concurrency tests against it
 * exercise the same guarantees
 */

package api

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"tugofwar/api/external"
	"tugofwar/api/shared"
	"tugofwar/api/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockStore implements the Store interface for testing
type MockStore struct {
	mu sync.Mutex

	// Storage for mock data
	Matches     map[primitive.ObjectID]store.Match
	Questions   map[primitive.ObjectID]store.Question
	Submissions []store.MatchSubmission
	RateLimits  map[string]store.RateLimitRecord
	Round       *store.RoundState

	byID     map[int64]int
	solveKey map[string]bool
	clock    func() time.Time

	// Error injection for testing error paths
	GetMatchError            error
	GetActiveMatchesError    error
	IncrementScoreError      error
	CompleteMatchError       error
	GetQuestionsError        error
	InsertSubmissionError    error
	GetSubmissionsError      error
	CheckAndConsumeError     error
	RoundStateError          error
	GetAcceptedQuestionError error
	InsertQuestionError      error

	// AfterInsertSubmission runs after a ledger entry is appended, outside the store lock. Used to
	// interleave another request between the append and the score increment
	AfterInsertSubmission func(entry store.MatchSubmission)

	// Call counters
	IncrementCalls int
	CompleteCalls  int
}

// mockDatabase implements the minimal Database interface needed for tests
type mockDatabase struct {
	name string
}

func (m *mockDatabase) Name() string {
	return m.name
}

type mockClient struct{}

func (mockClient) Disconnect(context.Context) error { return nil }

// NewMockStore creates a new empty MockStore. now is used for record timestamps and the rate limiter
func NewMockStore(now func() time.Time) *MockStore {
	return &MockStore{
		Matches:    make(map[primitive.ObjectID]store.Match),
		Questions:  make(map[primitive.ObjectID]store.Question),
		RateLimits: make(map[string]store.RateLimitRecord),
		byID:       make(map[int64]int),
		solveKey:   make(map[string]bool),
		clock:      now,
	}
}

// Seed adds a match and its questions
func (m *MockStore) Seed(match store.Match, questions ...store.Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Matches[match.ID] = match
	for _, q := range questions {
		m.Questions[q.ID] = q
	}
}

// Match returns the stored copy of a match
func (m *MockStore) Match(id primitive.ObjectID) store.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Matches[id]
}

// Ledger returns a copy of the stored ledger entries
func (m *MockStore) Ledger() []store.MatchSubmission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.MatchSubmission{}, m.Submissions...)
}

func (m *MockStore) GetMatch(_ context.Context, matchID primitive.ObjectID) (store.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetMatchError != nil {
		return store.Match{}, m.GetMatchError
	}
	match, ok := m.Matches[matchID]
	if !ok {
		return store.Match{}, store.ErrNotFound
	}
	return match, nil
}

func (m *MockStore) GetActiveMatches(_ context.Context) ([]store.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetActiveMatchesError != nil {
		return nil, m.GetActiveMatchesError
	}
	var active []store.Match
	for _, match := range m.Matches {
		if match.Status == shared.StatusActive {
			active = append(active, match)
		}
	}
	return active, nil
}

func (m *MockStore) InsertMatch(_ context.Context, match store.Match) (store.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if match.ID.IsZero() {
		match.ID = primitive.NewObjectID()
	}
	if match.Status == "" {
		match.Status = shared.StatusWaiting
	}
	m.Matches[match.ID] = match
	return match, nil
}

func (m *MockStore) IncrementScore(_ context.Context, matchID primitive.ObjectID, side shared.Side, delta int) (store.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IncrementCalls++
	if m.IncrementScoreError != nil {
		return store.Match{}, m.IncrementScoreError
	}
	match, ok := m.Matches[matchID]
	if !ok {
		return store.Match{}, store.ErrNotFound
	}
	if match.Status != shared.StatusActive {
		return store.Match{}, store.ErrStateConflict
	}
	if side == shared.SideA {
		match.ScoreA += delta
	} else {
		match.ScoreB += delta
	}
	m.Matches[matchID] = match
	return match, nil
}

func (m *MockStore) StartMatch(_ context.Context, matchID primitive.ObjectID, now time.Time) (store.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.Matches[matchID]
	if !ok {
		return store.Match{}, store.ErrNotFound
	}
	if match.Status != shared.StatusWaiting {
		return store.Match{}, store.ErrStateConflict
	}
	match.Status = shared.StatusActive
	match.StartTime = &now
	m.Matches[matchID] = match
	return match, nil
}

func (m *MockStore) CompleteMatch(_ context.Context, matchID primitive.ObjectID, winningSide *shared.Side, timedOut bool, now time.Time) (store.Match, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteCalls++
	if m.CompleteMatchError != nil {
		return store.Match{}, false, m.CompleteMatchError
	}
	match, ok := m.Matches[matchID]
	if !ok {
		return store.Match{}, false, store.ErrNotFound
	}
	if match.Status != shared.StatusActive {
		return match, false, nil
	}
	match.Status = shared.StatusCompleted
	match.WinningSide = winningSide
	match.TimedOut = timedOut
	match.EndTime = &now
	m.Matches[matchID] = match
	return match, true, nil
}

func (m *MockStore) GetQuestions(_ context.Context, ids []primitive.ObjectID) ([]store.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetQuestionsError != nil {
		return nil, m.GetQuestionsError
	}
	questions := []store.Question{}
	for _, id := range ids {
		if q, ok := m.Questions[id]; ok {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

// InsertQuestion normalizes like the real store and enforces the unique contest/problem pair
func (m *MockStore) InsertQuestion(_ context.Context, q store.Question) (store.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertQuestionError != nil {
		return store.Question{}, m.InsertQuestionError
	}
	q.ContestID = strings.TrimSpace(q.ContestID)
	q.ProblemIndex = strings.ToUpper(strings.TrimSpace(q.ProblemIndex))
	for _, existing := range m.Questions {
		if existing.ContestID == q.ContestID && existing.ProblemIndex == q.ProblemIndex {
			return store.Question{}, fmt.Errorf("duplicate question %s%s", q.ContestID, q.ProblemIndex)
		}
	}
	if q.ID.IsZero() {
		q.ID = primitive.NewObjectID()
	}
	m.Questions[q.ID] = q
	return q, nil
}

// InsertMatchSubmission enforces the unique submission id and sparse unique solve key
func (m *MockStore) InsertMatchSubmission(_ context.Context, entry store.MatchSubmission) error {
	m.mu.Lock()
	err := m.insertSubmission(entry)
	hook := m.AfterInsertSubmission
	m.mu.Unlock()
	if err == nil && hook != nil {
		hook(entry)
	}
	return err
}

func (m *MockStore) insertSubmission(entry store.MatchSubmission) error {
	if m.InsertSubmissionError != nil {
		return m.InsertSubmissionError
	}
	if _, ok := m.byID[entry.SubmissionID]; ok {
		return store.ErrDuplicateSubmission
	}
	if entry.SolveKey != "" && m.solveKey[entry.SolveKey] {
		return store.ErrDuplicateSolve
	}
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	m.byID[entry.SubmissionID] = len(m.Submissions)
	if entry.SolveKey != "" {
		m.solveKey[entry.SolveKey] = true
	}
	m.Submissions = append(m.Submissions, entry)
	return nil
}

func (m *MockStore) GetMatchSubmissions(_ context.Context, matchID primitive.ObjectID) ([]store.MatchSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetSubmissionsError != nil {
		return nil, m.GetSubmissionsError
	}
	entries := []store.MatchSubmission{}
	for _, e := range m.Submissions {
		if e.MatchID == matchID {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		return entries[i].SubmissionID < entries[j].SubmissionID
	})
	return entries, nil
}

func (m *MockStore) GetSubmissionByID(_ context.Context, submissionID int64) (store.MatchSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.byID[submissionID]
	if !ok {
		return store.MatchSubmission{}, store.ErrNotFound
	}
	return m.Submissions[idx], nil
}

func (m *MockStore) GetAcceptedQuestionIDs(_ context.Context, matchID primitive.ObjectID, side shared.Side) (map[primitive.ObjectID]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetAcceptedQuestionError != nil {
		return nil, m.GetAcceptedQuestionError
	}
	solved := make(map[primitive.ObjectID]bool)
	for _, e := range m.Submissions {
		if e.MatchID == matchID && e.Side == side && e.Verdict == shared.VerdictAccepted {
			solved[e.QuestionID] = true
		}
	}
	return solved, nil
}

func (m *MockStore) GetRecentTeamSubmissions(_ context.Context, teamID primitive.ObjectID, limit int64) ([]store.MatchSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var entries []store.MatchSubmission
	for _, e := range m.Submissions {
		if e.TeamID == teamID {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })
	if limit > 0 && int64(len(entries)) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// CheckAndConsume is atomic under the store mutex, like the pipeline upsert it stands in for
func (m *MockStore) CheckAndConsume(_ context.Context, identifier string, limit int, window time.Duration) (store.RateLimitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CheckAndConsumeError != nil {
		return store.RateLimitResult{}, m.CheckAndConsumeError
	}
	now := m.clock()
	record, ok := m.RateLimits[identifier]
	if ok && record.ExpiresAt.After(now) {
		record.Count++
	} else {
		record = store.RateLimitRecord{Key: identifier, Count: 1, ExpiresAt: now.Add(window)}
	}
	m.RateLimits[identifier] = record

	result := store.RateLimitResult{Limited: record.Count > limit, ResetTime: record.ExpiresAt}
	if !result.Limited {
		result.Remaining = limit - record.Count
	}
	return result, nil
}

func (m *MockStore) EnsureRoundState(_ context.Context, duration int64) (store.RoundState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RoundStateError != nil {
		return store.RoundState{}, m.RoundStateError
	}
	if m.Round == nil {
		m.Round = &store.RoundState{Key: store.RoundStateKey, Status: shared.RoundWaiting, Duration: duration}
	}
	return *m.Round, nil
}

func (m *MockStore) StartRound(_ context.Context, now time.Time) (store.RoundState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Round == nil || m.Round.Status != shared.RoundWaiting {
		return store.RoundState{}, store.ErrStateConflict
	}
	m.Round.Status = shared.RoundActive
	m.Round.StartTime = &now
	return *m.Round, nil
}

func (m *MockStore) ExtendRound(_ context.Context, seconds int64) (store.RoundState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Round == nil || m.Round.Status == shared.RoundCompleted {
		return store.RoundState{}, store.ErrStateConflict
	}
	m.Round.ExtendedBy += seconds
	return *m.Round, nil
}

func (m *MockStore) CompleteRound(_ context.Context, now time.Time) (store.RoundState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Round == nil || m.Round.Status != shared.RoundActive {
		return store.RoundState{}, store.ErrStateConflict
	}
	m.Round.Status = shared.RoundCompleted
	m.Round.EndTime = &now
	return *m.Round, nil
}

func (m *MockStore) EnsureIndexes(context.Context) error { return nil }

func (m *MockStore) Ping(context.Context) error { return nil }

func (m *MockStore) GetDatabase() interface{ Name() string } {
	return &mockDatabase{name: "test_db"}
}

func (m *MockStore) GetClient() interface{ Disconnect(context.Context) error } {
	return mockClient{}
}

// Ensure MockStore implements store.Interface
var _ store.Interface = (*MockStore)(nil)

// MockJudge serves canned submissions per handle
type MockJudge struct {
	mu          sync.Mutex
	Submissions map[string][]external.Submission
	Errors      map[string]error
	Rejections  map[string]string
	Delay       time.Duration
	Calls       map[string]int
}

// NewMockJudge creates an empty MockJudge
func NewMockJudge() *MockJudge {
	return &MockJudge{
		Submissions: make(map[string][]external.Submission),
		Errors:      make(map[string]error),
		Rejections:  make(map[string]string),
		Calls:       make(map[string]int),
	}
}

func (j *MockJudge) FetchSubmissions(ctx context.Context, handle string, _ bool) (external.FetchResult, error) {
	j.mu.Lock()
	j.Calls[handle]++
	subs := append([]external.Submission{}, j.Submissions[handle]...)
	err := j.Errors[handle]
	rejection, rejected := j.Rejections[handle]
	delay := j.Delay
	j.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return external.FetchResult{}, ctx.Err()
		}
	}
	if err != nil {
		return external.FetchResult{}, err
	}
	if rejected {
		return external.FetchResult{Success: false, Error: rejection}, nil
	}
	return external.FetchResult{Success: true, Submissions: subs}, nil
}

// MockNotifier records completion events
type MockNotifier struct {
	mu     sync.Mutex
	Events []MatchCompletedEvent
	Err    error
}

func (n *MockNotifier) MatchCompleted(_ context.Context, event MatchCompletedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Events = append(n.Events, event)
	return n.Err
}

// Count returns how many events were received
func (n *MockNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Events)
}
