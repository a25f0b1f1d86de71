/* main.go
 * The "main" method for running the service. `serve` runs the HTTP API, the timeout sweeper and the Discord bot;
 * the other commands are operator actions against the same database
 * Usage: go run . [--config config.yaml] serve | migrate | start-match --id <matchId> | start-round | extend-round --seconds <n> | seed --file <matches.yaml>
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tugofwar/api/api"
	"tugofwar/api/external"
	"tugofwar/api/store"
	"tugofwar/bot"
	"tugofwar/config"
	"tugofwar/events"
	"tugofwar/web"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	// a missing .env is fine, everything can come from the config file or the real environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("exiting")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "tugofwar",
		Usage: "tug of war match scoring and sync service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API, timeout sweeper and Discord bot",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create indexes and the round timer",
				Action: migrate,
			},
			{
				Name:  "start-match",
				Usage: "start a waiting match",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "match id", Required: true},
				},
				Action: startMatch,
			},
			{
				Name:   "start-round",
				Usage:  "start the round 1 timer",
				Action: startRound,
			},
			{
				Name:  "extend-round",
				Usage: "add time to the round 1 timer",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "seconds", Usage: "seconds to add", Required: true},
				},
				Action: extendRound,
			},
			{
				Name:  "seed",
				Usage: "create matches and their question pools from a YAML file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "path to the seed file", Required: true},
				},
				Action: seed,
			},
		},
	}
}

// loadConfig reads the config named by --config and sets up the global logger from it
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	log.Logger = logger
	return cfg, nil
}

// connect opens the store and builds an API on it. The returned close func disconnects the store
func connect(ctx context.Context, cfg *config.Config, opts ...api.Option) (*api.API, func(), error) {
	s, err := store.NewStore(ctx, cfg.Mongo.Database, cfg.Mongo.URI)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	closeStore := func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.GetClient().Disconnect(dctx); err != nil {
			log.Warn().Err(err).Msg("failed to disconnect from mongo")
		}
	}

	judge := external.NewClient(judgeConfig(cfg))
	apiPtr, err := api.NewAPI(s, judge, apiConfig(cfg), opts...)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return apiPtr, closeStore, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts := []api.Option{api.WithMetrics(api.NewMetrics(registry))}

	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer nc.Drain()
		opts = append(opts, api.WithNotifier(events.NewPublisher(nc, cfg.NATS.Subject)))
	}

	var discordNotifier *bot.Notifier
	if cfg.Discord.Token != "" {
		discordNotifier = bot.NewNotifier(cfg.Discord.ChannelID)
		opts = append(opts, api.WithNotifier(discordNotifier))
	}

	apiPtr, closeStore, err := connect(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer closeStore()
	defer apiPtr.WaitForNotifications()

	if err := apiPtr.Store.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	if cfg.Sweeper.Interval > 0 {
		scheduler, err := startSweeper(ctx, apiPtr, cfg.Sweeper.Interval)
		if err != nil {
			return err
		}
		defer func() {
			if err := scheduler.Shutdown(); err != nil {
				log.Warn().Err(err).Msg("failed to stop sweeper")
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return web.Start(gctx, web.Config{
			Addr:         cfg.HTTP.Addr,
			API:          apiPtr,
			Gatherer:     registry,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
			IdleTimeout:  cfg.HTTP.IdleTimeout,
		})
	})
	if discordNotifier != nil {
		discordBot, err := bot.NewBot(cfg.Discord.Token, apiPtr)
		if err != nil {
			return err
		}
		discordBot.Notifier = discordNotifier
		g.Go(func() error { return discordBot.Run(gctx) })
	}
	return g.Wait()
}

// startSweeper runs SweepTimeouts on a fixed interval. A run that overlaps the next tick pushes it back
func startSweeper(ctx context.Context, apiPtr *api.API, interval time.Duration) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			completed, err := apiPtr.SweepTimeouts(ctx)
			if err != nil {
				log.Error().Err(err).Msg("timeout sweep failed")
			}
			if completed > 0 {
				log.Info().Int("completed", completed).Msg("timed out matches completed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule sweeper: %w", err)
	}

	scheduler.Start()
	log.Info().Dur("interval", interval).Msg("timeout sweeper started")
	return scheduler, nil
}

func migrate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	apiPtr, closeStore, err := connect(c.Context, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := apiPtr.Store.EnsureIndexes(c.Context); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}
	if _, err := apiPtr.GetRoundState(c.Context); err != nil {
		return err
	}
	log.Info().Str("database", apiPtr.Store.GetDatabase().Name()).Msg("migration complete")
	return nil
}

func startMatch(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	apiPtr, closeStore, err := connect(c.Context, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	match, err := apiPtr.StartMatch(c.Context, c.String("id"))
	if err != nil {
		return err
	}
	fmt.Printf("match %s started, ends in %s\n", match.ID.Hex(), time.Duration(match.Duration)*time.Second)
	return nil
}

func startRound(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	apiPtr, closeStore, err := connect(c.Context, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	view, err := apiPtr.StartRound(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("round started, %ds remaining\n", view.TimeRemaining)
	return nil
}

func extendRound(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	apiPtr, closeStore, err := connect(c.Context, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	view, err := apiPtr.ExtendRound(c.Context, c.Int64("seconds"))
	if err != nil {
		return err
	}
	fmt.Printf("round extended, total duration %ds\n", view.Duration)
	return nil
}
