/* utils.go
 * Contains helper functions used by main.go: logger setup and the mapping of config onto the api and judge client
 */

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"tugofwar/api/api"
	"tugofwar/api/external"
	"tugofwar/config"

	"github.com/rs/zerolog"
)

// newLogger builds the process logger. Pretty output is for local runs, JSON otherwise
// Preconditions: Receives the log config and the writer to log to
// Postconditions: Returns the logger, or an error if the level is not a zerolog level name
func newLogger(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if strings.TrimSpace(cfg.Level) != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// apiConfig maps the service configuration onto the api layer's tunables
func apiConfig(cfg *config.Config) api.Config {
	return api.Config{
		SyncLimit:            cfg.Sync.RateLimit,
		SyncWindow:           cfg.Sync.Window,
		FetchTimeout:         cfg.Judge.FetchTimeout,
		MaxConcurrentFetches: cfg.Judge.MaxConcurrentFetches,
		OnlyRecent:           cfg.Judge.OnlyRecent,
		RoundDuration:        int64(cfg.Round.DefaultDuration / time.Second),
	}
}

// judgeConfig maps the service configuration onto the Codeforces client
func judgeConfig(cfg *config.Config) external.ClientConfig {
	return external.ClientConfig{
		BaseURL:           cfg.Judge.BaseURL,
		Timeout:           cfg.Judge.RequestTimeout,
		RequestsPerSecond: cfg.Judge.RequestsPerSecond,
		Burst:             cfg.Judge.Burst,
		RecentCount:       cfg.Judge.RecentCount,
	}
}
