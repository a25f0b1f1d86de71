/* api.go
 * This file contains the API struct and its constructor. The public methods are split by concern: scoring.go
 * (applying judge submissions to a match), sync.go (the participant triggered sync), match_state.go (read
 * models), lifecycle.go and round_state.go (operator actions and the timeout sweeper)
 */

package api

import (
	"fmt"
	"sync"
	"time"
	"tugofwar/api/store"

	"github.com/jonboulle/clockwork"
)

// Config holds the tunables of the api layer
type Config struct {
	SyncLimit            int           // syncs allowed per team per window
	SyncWindow           time.Duration // rate limit window
	FetchTimeout         time.Duration // per handle judge fetch timeout
	MaxConcurrentFetches int
	OnlyRecent           bool  // fetch only the judge's most recent submissions per handle
	RoundDuration        int64 // seconds, used when the round timer is first created
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		SyncLimit:            10,
		SyncWindow:           60 * time.Second,
		FetchTimeout:         10 * time.Second,
		MaxConcurrentFetches: 8,
		OnlyRecent:           true,
		RoundDuration:        store.DefaultRoundDuration,
	}
}

// API provides methods for scoring and synchronizing tug of war matches
type API struct {
	Store     store.Interface
	Judge     Judge
	Clock     clockwork.Clock
	Notifiers []Notifier
	Metrics   *Metrics
	Config    Config

	notifications sync.WaitGroup
}

// Option customizes an API built by NewAPI
type Option func(*API)

// WithClock replaces the wall clock, used by tests
func WithClock(clock clockwork.Clock) Option {
	return func(a *API) { a.Clock = clock }
}

// WithNotifier adds a completion notifier
func WithNotifier(n Notifier) Option {
	return func(a *API) {
		if n != nil {
			a.Notifiers = append(a.Notifiers, n)
		}
	}
}

// WithMetrics records api metrics on m
func WithMetrics(m *Metrics) Option {
	return func(a *API) { a.Metrics = m }
}

// NewAPI creates a new API instance with the provided store, judge client and configuration
// Preconditions: Receives a store and judge, both required
// Postconditions: Returns the API with defaults filled in for unset config, or an error
func NewAPI(s store.Interface, judge Judge, cfg Config, opts ...Option) (*API, error) {
	if s == nil || judge == nil {
		return nil, fmt.Errorf("store and judge are required")
	}

	defaults := DefaultConfig()
	if cfg.SyncLimit <= 0 {
		cfg.SyncLimit = defaults.SyncLimit
	}
	if cfg.SyncWindow <= 0 {
		cfg.SyncWindow = defaults.SyncWindow
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaults.FetchTimeout
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = defaults.MaxConcurrentFetches
	}
	if cfg.RoundDuration <= 0 {
		cfg.RoundDuration = defaults.RoundDuration
	}

	a := &API{
		Store:  s,
		Judge:  judge,
		Clock:  clockwork.NewRealClock(),
		Config: cfg,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}
