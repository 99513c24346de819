// Package discord implements chat.Platform on top of a discordgo bot session.
//
// Channel lookups always go to the REST API so each tick observes the live
// channel name. Renames are paced by a token bucket to stay clear of Discord's
// per-route rate limits.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"rcon-status/internal/chat"
)

const DefaultRenameInterval = time.Second

// restSession is the subset of *discordgo.Session used for channel calls.
type restSession interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelEdit(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

type Client struct {
	sess    *discordgo.Session
	rest    restSession
	limiter *rate.Limiter
	log     *slog.Logger
}

type Option func(*Client)

// WithRenameInterval sets the minimum spacing between rename calls. Zero or a
// negative value disables pacing.
func WithRenameInterval(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New builds a bot session for token. No network I/O happens until Open.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds

	c := newClient(s, opts...)
	c.sess = s
	return c, nil
}

func newClient(rest restSession, opts ...Option) *Client {
	c := &Client{
		rest:    rest,
		limiter: rate.NewLimiter(rate.Every(DefaultRenameInterval), 1),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open connects to the gateway and blocks until the Ready event arrives or ctx
// is done. Any error here is a startup failure.
func (c *Client) Open(ctx context.Context) error {
	if c.sess == nil {
		return errors.New("discord session not initialised")
	}
	ready := make(chan *discordgo.Ready, 1)
	remove := c.sess.AddHandlerOnce(func(_ *discordgo.Session, r *discordgo.Ready) {
		select {
		case ready <- r:
		default:
		}
	})

	c.log.Info("discord login starting")
	if err := c.sess.Open(); err != nil {
		remove()
		return fmt.Errorf("open discord gateway: %w", err)
	}

	select {
	case r := <-ready:
		user, guilds := "", 0
		if r != nil {
			guilds = len(r.Guilds)
			if r.User != nil {
				user = r.User.Username
			}
		}
		c.log.Info("discord session ready", "user", user, "guilds", guilds)
		return nil
	case <-ctx.Done():
		remove()
		_ = c.sess.Close()
		return fmt.Errorf("wait for discord ready: %w", ctx.Err())
	}
}

func (c *Client) Close() error {
	if c.sess == nil {
		return nil
	}
	return c.sess.Close()
}

func (c *Client) Channel(ctx context.Context, id string) (chat.Channel, error) {
	ch, err := c.rest.Channel(id, discordgo.WithContext(ctx))
	if err != nil {
		return chat.Channel{}, mapError(err)
	}
	if ch == nil {
		return chat.Channel{}, chat.ErrChannelNotFound
	}
	return chat.Channel{ID: ch.ID, Name: ch.Name}, nil
}

func (c *Client) RenameChannel(ctx context.Context, id, name string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rename pacing: %w", err)
	}
	if _, err := c.rest.ChannelEdit(id, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx)); err != nil {
		return mapError(err)
	}
	return nil
}

// mapError translates discordgo REST failures into the chat error taxonomy.
// Unknown failures are returned wrapped but unclassified.
func mapError(err error) error {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}
	if rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeUnknownChannel:
			return fmt.Errorf("%w: %v", chat.ErrChannelNotFound, err)
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return fmt.Errorf("%w: %v", chat.ErrMissingPermissions, err)
		}
	}
	if rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", chat.ErrChannelNotFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", chat.ErrMissingPermissions, err)
		}
	}
	return err
}
