// Package scheduler runs a reconciliation tick on a fixed period and keeps
// ticking after a tick fails.
//
// A failed or panicking tick is logged once, the current ticker is stopped,
// and a fresh ticker with the same period is armed. Run only returns when its
// context is cancelled.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

type State int32

const (
	Running State = iota
	Restarting
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Restarting:
		return "restarting"
	default:
		return "unknown"
	}
}

// Runner is one reconciliation pass.
type Runner interface {
	RunOnce(ctx context.Context) error
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func NewTicker(d time.Duration) Ticker { return stdTicker{t: time.NewTicker(d)} }

type Supervisor struct {
	period     time.Duration
	runner     Runner
	newTicker  func(time.Duration) Ticker
	runOnStart bool
	log        *slog.Logger

	state    atomic.Int32
	restarts atomic.Int64
}

type Option func(*Supervisor)

func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRunOnStart runs one tick immediately instead of waiting a full period.
func WithRunOnStart(v bool) Option {
	return func(s *Supervisor) { s.runOnStart = v }
}

func WithTickerFactory(f func(time.Duration) Ticker) Option {
	return func(s *Supervisor) {
		if f != nil {
			s.newTicker = f
		}
	}
}

func New(period time.Duration, r Runner, opts ...Option) *Supervisor {
	s := &Supervisor{
		period:    period,
		runner:    r,
		newTicker: NewTicker,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) State() State { return State(s.state.Load()) }

// Restarts is the number of times the ticker was recreated after a failed tick.
func (s *Supervisor) Restarts() int64 { return s.restarts.Load() }

func (s *Supervisor) Run(ctx context.Context) error {
	if s.period <= 0 {
		return fmt.Errorf("scheduler period must be positive, got %s", s.period)
	}

	t := s.newTicker(s.period)
	defer func() { t.Stop() }()
	s.state.Store(int32(Running))
	s.log.Info("scheduler started", "interval", s.period.String())

	if s.runOnStart {
		if err := s.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t = s.restart(t, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-t.C():
			if err := s.tick(ctx); err != nil {
				if ctx.Err() != nil {
					s.log.Info("scheduler stopped")
					return ctx.Err()
				}
				t = s.restart(t, err)
			}
		}
	}
}

func (s *Supervisor) restart(old Ticker, cause error) Ticker {
	s.log.Error("reconciliation tick failed, restarting ticker", "err", cause, "interval", s.period.String())
	old.Stop()
	s.state.Store(int32(Restarting))
	t := s.newTicker(s.period)
	s.restarts.Add(1)
	s.state.Store(int32(Running))
	return t
}

// tick converts a panic in the runner into an error.
func (s *Supervisor) tick(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reconciliation panicked: %v", rec)
		}
	}()
	return s.runner.RunOnce(ctx)
}
