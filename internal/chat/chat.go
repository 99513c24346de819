// Package chat describes the narrow chat-platform capability the reconciler
// needs: look up a channel and rename it.
package chat

import (
	"context"
	"errors"
)

var (
	// ErrChannelNotFound is returned when the channel id does not resolve,
	// including channels deleted between lookup and rename.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrMissingPermissions is returned when the bot may not manage the channel.
	ErrMissingPermissions = errors.New("missing permissions")
)

type Channel struct {
	ID   string
	Name string
}

type Platform interface {
	Channel(ctx context.Context, id string) (Channel, error)
	RenameChannel(ctx context.Context, id, name string) error
}
