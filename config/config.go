/* config.go
 * Contains the service configuration: YAML file, environment overrides, defaults and validation
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config struct to hold the configuration settings
type Config struct {
	Mongo   MongoConfig   `yaml:"mongo"`
	HTTP    HTTPConfig    `yaml:"http"`
	Judge   JudgeConfig   `yaml:"judge"`
	Sync    SyncConfig    `yaml:"sync"`
	Sweeper SweeperConfig `yaml:"sweeper"`
	Round   RoundConfig   `yaml:"round"`
	Discord DiscordConfig `yaml:"discord"`
	NATS    NATSConfig    `yaml:"nats"`
	Log     LogConfig     `yaml:"log"`
}

// MongoConfig holds MongoDB configuration.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// HTTPConfig holds the web server configuration.
type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// JudgeConfig holds the Codeforces client configuration.
type JudgeConfig struct {
	BaseURL              string        `yaml:"base_url"`
	RecentCount          int           `yaml:"recent_count"`
	RequestsPerSecond    float64       `yaml:"requests_per_second"`
	Burst                int           `yaml:"burst"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout"`
	MaxConcurrentFetches int           `yaml:"max_concurrent_fetches"`
	OnlyRecent           bool          `yaml:"only_recent"`
}

// SyncConfig holds the per team sync rate limit.
type SyncConfig struct {
	RateLimit int           `yaml:"rate_limit"`
	Window    time.Duration `yaml:"window"`
}

// SweeperConfig holds the timeout sweeper schedule. A zero interval disables it.
type SweeperConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// RoundConfig holds the round timer defaults.
type RoundConfig struct {
	DefaultDuration time.Duration `yaml:"default_duration"`
}

// DiscordConfig holds Discord configuration. An empty token disables the bot.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// NATSConfig holds NATS configuration. An empty URL disables event publishing.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used for anything a file or the environment doesn't set
func Default() Config {
	return Config{
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "tugofwar",
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Judge: JudgeConfig{
			BaseURL:              "https://codeforces.com/api",
			RecentCount:          50,
			RequestsPerSecond:    2,
			Burst:                4,
			RequestTimeout:       10 * time.Second,
			FetchTimeout:         10 * time.Second,
			MaxConcurrentFetches: 8,
			OnlyRecent:           true,
		},
		Sync: SyncConfig{
			RateLimit: 10,
			Window:    60 * time.Second,
		},
		Sweeper: SweeperConfig{
			Interval: 30 * time.Second,
		},
		Round: RoundConfig{
			DefaultDuration: time.Hour,
		},
		NATS: NATSConfig{
			Subject: "tugofwar.match.completed",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads the configuration from a YAML file on top of the defaults, then applies environment
// overrides. A missing file is not an error, the defaults and environment are used on their own
func LoadConfig(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// --- OVERRIDE WITH ENV VARS IF PRESENT ---
func applyEnv(cfg *Config) error {
	setString(&cfg.Mongo.URI, "MONGO_URI")
	setString(&cfg.Mongo.Database, "MONGO_DATABASE")
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")
	setString(&cfg.Judge.BaseURL, "JUDGE_BASE_URL")
	setString(&cfg.Discord.Token, "DISCORD_TOKEN")
	setString(&cfg.Discord.ChannelID, "DISCORD_CHANNEL_ID")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Subject, "NATS_SUBJECT")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	collect(setInt(&cfg.Judge.RecentCount, "JUDGE_RECENT_COUNT"))
	collect(setInt(&cfg.Judge.Burst, "JUDGE_BURST"))
	collect(setInt(&cfg.Judge.MaxConcurrentFetches, "JUDGE_MAX_CONCURRENT_FETCHES"))
	collect(setFloat(&cfg.Judge.RequestsPerSecond, "JUDGE_REQUESTS_PER_SECOND"))
	collect(setDuration(&cfg.Judge.FetchTimeout, "JUDGE_FETCH_TIMEOUT"))
	collect(setBool(&cfg.Judge.OnlyRecent, "JUDGE_ONLY_RECENT"))
	collect(setInt(&cfg.Sync.RateLimit, "SYNC_RATE_LIMIT"))
	collect(setDuration(&cfg.Sync.Window, "SYNC_WINDOW"))
	collect(setDuration(&cfg.Sweeper.Interval, "SWEEPER_INTERVAL"))
	collect(setDuration(&cfg.Round.DefaultDuration, "ROUND_DEFAULT_DURATION"))
	collect(setBool(&cfg.Log.Pretty, "LOG_PRETTY"))
	return errors.Join(errs...)
}

// Validate checks the values that would otherwise fail later in a less obvious way
func (c *Config) Validate() error {
	var errs []error
	if c.Mongo.URI == "" {
		errs = append(errs, fmt.Errorf("mongo.uri is required"))
	}
	if c.Mongo.Database == "" {
		errs = append(errs, fmt.Errorf("mongo.database is required"))
	}
	if c.Sync.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("sync.rate_limit must be positive"))
	}
	if c.Sync.Window <= 0 {
		errs = append(errs, fmt.Errorf("sync.window must be positive"))
	}
	if c.Judge.MaxConcurrentFetches <= 0 {
		errs = append(errs, fmt.Errorf("judge.max_concurrent_fetches must be positive"))
	}
	if c.Discord.Token != "" && c.Discord.ChannelID == "" {
		errs = append(errs, fmt.Errorf("discord.channel_id is required when a discord token is set"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", key, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := convertStrToBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", key, err)
	}
	*dst = b
	return nil
}

// convertStrToBool converts a string of true or false into a boolean
// Preconditions: Receives string containing either true or false (case insensitive)
// Postconditions: Returns boolean value or an error if the string is not true or false
func convertStrToBool(str string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean string %q", str)
}
