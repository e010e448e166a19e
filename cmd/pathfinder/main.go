package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pathfinder/internal/config"
	"pathfinder/internal/logging"
	"pathfinder/pkg/models"
)

const usage = `usage: pathfinder [-config path] <command> [flags]

commands:
  run                      run every enabled chain in parallel, then merge
  chain -source <name>     run the chain of one source
  merge                    merge the existing clean tables
  expiry [-schedule spec | -daemon]
                           re-probe the canonical table, once or on a cron schedule
  reset-expiry [-all]      clear the expiry dates set today, or all of them
`

func main() {
	configPath := flag.String("config", "configs/config.yaml", "configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logging.InitializeLogging(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	logger := logging.GetGlobalLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := dispatch(ctx, cfg, logger, flag.Arg(0), flag.Args()[1:])
	stop()
	os.Exit(code)
}

func dispatch(ctx context.Context, cfg *config.Config, logger logging.Logger, cmd string, args []string) int {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	source := fs.String("source", "", "source slug for chain: francetravail, wttj or apec")
	schedule := fs.String("schedule", "", `cron spec for expiry, e.g. "@every 24h"`)
	daemon := fs.Bool("daemon", false, "expiry: keep running on the configured schedule")
	all := fs.Bool("all", false, "reset-expiry: clear every expiry date")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", logging.Fields{"error": err.Error()})
		return 1
	}
	defer app.Close()

	switch cmd {
	case "run":
		srcs, err := app.enabledSources()
		if err != nil {
			logger.Error("Invalid source list", logging.Fields{"error": err.Error()})
			return 2
		}
		return app.finish(ctx, app.runner.Run(ctx, srcs))

	case "chain":
		src, err := models.ParseSource(*source)
		if err != nil {
			logger.Error("Invalid -source", logging.Fields{"error": err.Error()})
			return 2
		}
		return app.finish(ctx, app.runner.RunChain(ctx, src))

	case "merge":
		return app.finish(ctx, app.runner.Merge(ctx, models.AllSources))

	case "expiry":
		if *daemon && *schedule == "" {
			*schedule = cfg.Expiry.Schedule
		}
		if *schedule != "" {
			err = app.scheduleExpiry(ctx, *schedule)
		} else {
			_, err = app.checkCanonical(ctx)
		}

	case "reset-expiry":
		err = app.resetExpiry(*all)

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Command failed", logging.Fields{"command": cmd, "error": err.Error()})
		return 1
	}
	return 0
}
