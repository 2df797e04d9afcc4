// Command restalign verifies and compares two rest segmentations and writes
// a report.
//
// Usage:
//
//	restalign --payload rests.json [--label-a lumen] [--label-b nidi]
//	restalign --manifest run.yaml [--store runs.db] [--watch]
//
// A payload path may also be given as the only positional argument.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/listenupapp/restalign/internal/config"
	"github.com/listenupapp/restalign/internal/logger"
	"github.com/listenupapp/restalign/internal/store/sqlite"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[0], os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) int {
	cfg, rest, err := config.LoadConfig(name, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return exitUsage
	}

	if cfg.Input.Payload == "" && cfg.Input.Manifest == "" && len(rest) == 1 {
		cfg.Input.Payload = rest[0]
	}
	if cfg.Input.Payload == "" && cfg.Input.Manifest == "" {
		fmt.Fprintf(stderr, "%s: no input: set --payload or --manifest\n", name)
		return exitUsage
	}

	log := logger.New(logger.Config{
		Writer:      stderr,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		Environment: cfg.App.Environment,
	})

	a, err := newApp(cfg, log, stdout)
	if err != nil {
		log.Error("setup failed", "error", err)
		return exitUsage
	}

	if cfg.Store.Path != "" {
		st, err := sqlite.Open(cfg.Store.Path, log.Logger)
		if err != nil {
			log.Error("open run archive", "path", cfg.Store.Path, "error", err)
			return exitError
		}
		defer st.Close()
		a.runs = st
	}

	if cfg.Watch.Enabled {
		if err := a.watch(ctx); err != nil {
			log.Error("watch failed", "error", err)
			return exitError
		}
		return exitOK
	}

	if _, err := a.once(ctx); err != nil {
		log.Error("run failed", "error", err)
		return exitError
	}
	return exitOK
}
