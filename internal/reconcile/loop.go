package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"rcon-status/internal/config"
	"rcon-status/internal/status"
)

// Fetcher returns the current state of one server.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) (status.GameState, error)
}

type Loop struct {
	servers    []config.Server
	thresholds status.Thresholds
	fetcher    Fetcher
	reconciler *Reconciler
	log        *slog.Logger
}

func NewLoop(servers []config.Server, t status.Thresholds, f Fetcher, r *Reconciler, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		servers:    servers,
		thresholds: t,
		fetcher:    f,
		reconciler: r,
		log:        log,
	}
}

// RunOnce performs one tick over every server in configuration order. The only
// error it returns is ctx.Err() after cancellation.
func (l *Loop) RunOnce(ctx context.Context) error {
	var total Result
	skipped := 0
	for _, srv := range l.servers {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, ok := l.runServer(ctx, srv)
		if !ok {
			skipped++
			continue
		}
		total.add(res)
	}
	l.log.Info("tick complete",
		"servers", len(l.servers),
		"servers_skipped", skipped,
		"renamed", total.Renamed,
		"unchanged", total.Unchanged,
		"failed", total.Failed,
	)
	return ctx.Err()
}

func (l *Loop) runServer(ctx context.Context, srv config.Server) (res Result, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			l.log.Error("server processing panicked", "server", srv.URL, "panic", fmt.Sprint(rec))
			ok = false
		}
	}()

	gs, err := l.fetcher.Fetch(ctx, srv.URL)
	if err != nil {
		l.log.Error("failed to retrieve game state", "server", srv.URL, "err", err)
		return Result{}, false
	}
	l.log.Debug("game state",
		"server", srv.URL,
		"players", gs.CurrentPlayers,
		"max_players", gs.MaxPlayers,
		"server_name", gs.ServerName,
		"map", gs.MapName,
	)

	ind := status.Classify(gs.CurrentPlayers, l.thresholds)
	return l.reconciler.Reconcile(ctx, gs, ind, srv.Channels), true
}
