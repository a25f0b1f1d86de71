/* models.go
 * This file contains the models used by the external package when fetching data from the online judge
 */

package external

// Submission is one judge submission as fetched for a handle, before it has been attributed to a match
type Submission struct {
	SubmissionID int64
	Handle       string
	ContestID    string
	ProblemIndex string
	ProblemName  string
	Verdict      string
	CreationTime int64 // unix seconds
}

// FetchResult is the outcome of fetching a handle's submissions. Success is false when the judge rejected
// the request (e.g. unknown handle); Error then carries the judge's comment
type FetchResult struct {
	Success     bool
	Submissions []Submission
	Error       string
}

// cfResponse is the envelope returned by every Codeforces API method
type cfResponse struct {
	Status  string         `json:"status"`
	Comment string         `json:"comment"`
	Result  []cfSubmission `json:"result"`
}

type cfSubmission struct {
	ID                  int64     `json:"id"`
	ContestID           int       `json:"contestId"`
	CreationTimeSeconds int64     `json:"creationTimeSeconds"`
	Problem             cfProblem `json:"problem"`
	Verdict             string    `json:"verdict"`
}

type cfProblem struct {
	ContestID int    `json:"contestId"`
	Index     string `json:"index"`
	Name      string `json:"name"`
}
