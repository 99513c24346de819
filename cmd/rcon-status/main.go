// Command rcon-status mirrors game-server player counts into Discord channel
// names.
//
// It logs in to Discord, waits for the session to become ready, then polls each
// configured server's status API on a fixed interval and renames the mapped
// channels to "<indicator> - <players> <suffix>".
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"rcon-status/internal/config"
	"rcon-status/internal/discord"
	"rcon-status/internal/logging"
	"rcon-status/internal/reconcile"
	"rcon-status/internal/scheduler"
	"rcon-status/internal/status"
)

func fatal(msg string, err error, attrs ...any) {
	args := make([]any, 0, 2+len(attrs))
	args = append(args, "err", err)
	args = append(args, attrs...)
	slog.Error(msg, args...)
	os.Exit(1)
}

func main() {
	// Set up logging first so early failures are captured consistently.
	runID := logging.MakeRunID()
	slog.SetDefault(logging.New(os.Stderr, logging.Options{Level: slog.LevelInfo, RunID: runID}))

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("unhandled panic", "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
			os.Exit(2)
		}
	}()

	var (
		configPath string
		once       bool
	)
	root := &cobra.Command{
		Use:           "rcon-status",
		Short:         "Reflect game server player counts in Discord channel names",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), runID, configPath, once)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ./config.yaml or ./config/config.yaml)")
	root.Flags().BoolVar(&once, "once", false, "run a single reconciliation tick and exit")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fatal("rcon-status failed", err)
	}
}

func run(ctx context.Context, runID, configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if !logging.ValidFormat(cfg.LogFormat) {
		return fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
	logger := logging.New(os.Stderr, logging.Options{Level: level, Format: cfg.LogFormat, RunID: runID})
	slog.SetDefault(logger)

	if !cfg.Thresholds.Ordered() {
		logger.Warn("thresholds are not ordered, indicator levels are undefined",
			"yellow", cfg.Thresholds.Yellow,
			"green", cfg.Thresholds.Green,
		)
	}

	bindings := 0
	for _, s := range cfg.Servers {
		bindings += len(s.Channels)
	}
	logger.Info(
		"starting rcon-status",
		"servers", len(cfg.Servers),
		"channels", bindings,
		"interval", cfg.Interval.String(),
		"yellow", cfg.Thresholds.Yellow,
		"green", cfg.Thresholds.Green,
	)

	dc, err := discord.New(cfg.DiscordToken,
		discord.WithRenameInterval(cfg.RenameInterval),
		discord.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("discord client init failed: %w", err)
	}

	readyCtx, cancelReady := context.WithTimeout(ctx, cfg.ReadyTimeout)
	err = dc.Open(readyCtx)
	cancelReady()
	if err != nil {
		return fmt.Errorf("discord login failed: %w", err)
	}
	defer func() {
		if err := dc.Close(); err != nil {
			logger.Warn("discord close failed", "err", err)
		}
	}()

	fetcher := status.NewFetcher(cfg.APIToken, cfg.StatusTimeout, status.WithLogger(logger))
	loop := reconcile.NewLoop(cfg.Servers, cfg.Thresholds, fetcher, reconcile.NewReconciler(dc, logger), logger)

	if once {
		if err := loop.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	sup := scheduler.New(cfg.Interval, loop,
		scheduler.WithLogger(logger),
		scheduler.WithRunOnStart(cfg.RunOnStart),
	)
	if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown requested")
	return nil
}
