/* external.go
 * Contains the client used to fetch submission history from the Codeforces API. Requests from every
 * concurrent sync share one client so the process as a whole stays inside the judge's API limits
 */

package external

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL     = "https://codeforces.com/api"
	DefaultRecentCount = 50
)

// ErrEmptyHandle is returned when asked to fetch submissions for a blank handle
var ErrEmptyHandle = errors.New("handle cannot be empty")

// ClientConfig holds the tunables for Client. Zero values fall back to defaults
type ClientConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	RecentCount       int
}

// Client talks to the Codeforces API
type Client struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	recentCount int
}

// NewClient creates a Client from cfg
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 4
	}
	if cfg.RecentCount <= 0 {
		cfg.RecentCount = DefaultRecentCount
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		recentCount: cfg.RecentCount,
	}
}

// FetchSubmissions gets the submission history of a handle. When onlyRecent is true only the latest
// RecentCount submissions are requested, which is all a running match ever needs.
// A judge-side rejection (status FAILED) is reported through FetchResult with a nil error; transport and
// decoding problems are returned as errors
func (c *Client) FetchSubmissions(ctx context.Context, handle string, onlyRecent bool) (FetchResult, error) {
	if handle == "" {
		return FetchResult{}, ErrEmptyHandle
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return FetchResult{}, fmt.Errorf("waiting for judge rate limiter: %w", err)
	}

	endpoint, err := url.Parse(c.baseURL + "/user.status")
	if err != nil {
		return FetchResult{}, fmt.Errorf("invalid judge url: %w", err)
	}
	params := endpoint.Query()
	params.Set("handle", handle)
	if onlyRecent {
		params.Set("from", "1")
		params.Set("count", strconv.Itoa(c.recentCount))
	}
	endpoint.RawQuery = params.Encode()

	body, err := c.get(ctx, endpoint.String())
	if err != nil {
		return FetchResult{}, err
	}

	var response cfResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return FetchResult{}, fmt.Errorf("error parsing judge response: %w", err)
	}

	if response.Status != "OK" {
		return FetchResult{Success: false, Error: response.Comment}, nil
	}

	submissions := make([]Submission, 0, len(response.Result))
	for _, s := range response.Result {
		contestID := s.Problem.ContestID
		if contestID == 0 {
			contestID = s.ContestID
		}
		submissions = append(submissions, Submission{
			SubmissionID: s.ID,
			Handle:       handle,
			ContestID:    strconv.Itoa(contestID),
			ProblemIndex: s.Problem.Index,
			ProblemName:  s.Problem.Name,
			Verdict:      s.Verdict,
			CreationTime: s.CreationTimeSeconds,
		})
	}

	return FetchResult{Success: true, Submissions: submissions}, nil
}

// get performs a GET request and returns the (possibly gzip encoded) body.
// Codeforces answers 400 for a bad handle with a normal JSON envelope, so 4xx bodies are returned for
// the caller to decode; only 5xx and transport failures are errors
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("User-Agent", "TugOfWarSync/1.0")
	request.Header.Set("Accept-Encoding", "gzip")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("judge returned status code %d", response.StatusCode)
	}

	var reader io.Reader = response.Body
	if response.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(response.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
