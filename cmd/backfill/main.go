package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/castingly/castingly-backend/internal/backfill"
	"github.com/castingly/castingly-backend/internal/bootstrap"
	"github.com/castingly/castingly-backend/pkg/config"
	"github.com/castingly/castingly-backend/pkg/db"
	"github.com/castingly/castingly-backend/pkg/enums"
	"github.com/castingly/castingly-backend/pkg/logger"
	"github.com/castingly/castingly-backend/pkg/redis"
)

type cliFlags struct {
	actorID  string
	category string
	max      int
	dryRun   bool
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "backfill"})
	_ = godotenv.Load()

	var f cliFlags
	flag.StringVar(&f.actorID, "user", "", "limit the scan to one actor id")
	flag.StringVar(&f.category, "category", "", "only repair files whose category resolves to this value")
	flag.IntVar(&f.max, "max", 0, "maximum files to examine (default from config)")
	flag.BoolVar(&f.dryRun, "dry", false, "report planned changes without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "backfill"

	logg = logger.New(logger.Options{
		ServiceName: "backfill",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	opts, err := f.options(cfg.Backfill.DefaultMax)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dry_run": opts.DryRun})

	res, err := run(ctx, cfg, logg, opts)
	if err != nil {
		logg.Error(ctx, "backfill failed", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logg.Error(ctx, "failed to print result", err)
		os.Exit(1)
	}
	if res.Errors > 0 {
		os.Exit(3)
	}
}

func (f cliFlags) options(defaultMax int) (backfill.Options, error) {
	opts := backfill.Options{
		ActorID: f.actorID,
		Max:     f.max,
		DryRun:  f.dryRun,
		Trigger: backfill.TriggerCLI,
	}
	if opts.Max == 0 {
		opts.Max = defaultMax
	}
	if opts.Max < 1 || opts.Max > backfill.MaxItemsLimit {
		return opts, fmt.Errorf("-max must be between 1 and %d", backfill.MaxItemsLimit)
	}
	if f.category != "" {
		category, err := enums.ParseMediaCategory(f.category)
		if err != nil {
			return opts, err
		}
		opts.Category = &category
	}
	return opts, nil
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts backfill.Options) (res *backfill.Result, err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	stack, err := bootstrap.NewStack(ctx, cfg, logg, dbClient, redisClient, nil)
	if err != nil {
		return nil, fmt.Errorf("bootstrap media stack: %w", err)
	}
	defer func() { err = multierr.Append(err, stack.Close()) }()

	svc, err := stack.BackfillService()
	if err != nil {
		return nil, err
	}
	return svc.Run(ctx, opts)
}
