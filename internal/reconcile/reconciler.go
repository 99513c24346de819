// Package reconcile converges chat channel names to the live player count of
// their game servers.
//
// A Loop walks every configured server once per tick. Each server is fetched,
// classified, and handed to a Reconciler, which renames only the channels
// whose current name differs from the target. Failures are contained to the
// binding or server that produced them.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"rcon-status/internal/chat"
	"rcon-status/internal/config"
	"rcon-status/internal/status"
)

// Result counts binding outcomes for one server.
type Result struct {
	Renamed   int
	Unchanged int
	Failed    int
}

func (r *Result) add(o Result) {
	r.Renamed += o.Renamed
	r.Unchanged += o.Unchanged
	r.Failed += o.Failed
}

// TargetName formats "<glyph> - <players> <suffix>". Whitespace around suffix
// is dropped so " - Server 1" yields "🟡 - 7 - Server 1".
func TargetName(ind status.Indicator, players int, suffix string) string {
	var sb strings.Builder
	sb.WriteString(ind.Glyph())
	sb.WriteString(" - ")
	sb.WriteString(strconv.Itoa(players))
	if s := strings.TrimSpace(suffix); s != "" {
		sb.WriteByte(' ')
		sb.WriteString(s)
	}
	return sb.String()
}

type Reconciler struct {
	platform chat.Platform
	log      *slog.Logger
}

func NewReconciler(p chat.Platform, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{platform: p, log: log}
}

// Reconcile applies gs to each binding in order. It never returns early on a
// binding failure.
func (r *Reconciler) Reconcile(ctx context.Context, gs status.GameState, ind status.Indicator, bindings []config.Binding) Result {
	var res Result
	for _, b := range bindings {
		if ctx.Err() != nil {
			return res
		}
		switch r.reconcileOne(ctx, gs, ind, b) {
		case outcomeRenamed:
			res.Renamed++
		case outcomeUnchanged:
			res.Unchanged++
		default:
			res.Failed++
		}
	}
	return res
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeRenamed
	outcomeUnchanged
)

func (r *Reconciler) reconcileOne(ctx context.Context, gs status.GameState, ind status.Indicator, b config.Binding) (out outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("channel update panicked", "channel_id", b.ChannelID, "panic", fmt.Sprint(rec))
			out = outcomeFailed
		}
	}()

	target := TargetName(ind, gs.CurrentPlayers, b.Suffix)

	ch, err := r.platform.Channel(ctx, b.ChannelID)
	if err != nil {
		if errors.Is(err, chat.ErrChannelNotFound) {
			r.log.Error("channel not found", "channel_id", b.ChannelID, "suffix", b.Suffix)
		} else {
			r.log.Error("channel lookup failed", "channel_id", b.ChannelID, "err", err)
		}
		return outcomeFailed
	}

	if ch.Name == target {
		r.log.Debug("channel name already up to date", "channel_id", b.ChannelID, "name", target)
		return outcomeUnchanged
	}

	if err := r.platform.RenameChannel(ctx, b.ChannelID, target); err != nil {
		switch {
		case errors.Is(err, chat.ErrChannelNotFound):
			r.log.Error("channel not found, it may have been deleted", "channel_id", b.ChannelID)
		case errors.Is(err, chat.ErrMissingPermissions):
			r.log.Error("bot lacks permission to rename channel", "channel_id", b.ChannelID)
		default:
			r.log.Error("channel rename failed", "channel_id", b.ChannelID, "err", err)
		}
		return outcomeFailed
	}

	r.log.Info("channel renamed", "channel_id", b.ChannelID, "from", ch.Name, "to", target)
	return outcomeRenamed
}
