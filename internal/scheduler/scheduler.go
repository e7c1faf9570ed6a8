// Package scheduler runs a handler on a fixed interval until its context ends.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var ErrInvalidSchedulerConfig = errors.New("invalid scheduler config")

// Handler is one scheduled run. Errors are logged and the schedule continues.
type Handler func(ctx context.Context) error

type Scheduler struct {
	name      string
	interval  time.Duration
	ctx       context.Context
	logger    *slog.Logger
	handler   Handler
	immediate bool

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

type Option func(*Scheduler)

func WithName(name string) Option {
	return func(s *Scheduler) { s.name = name }
}

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

func WithContext(ctx context.Context) Option {
	return func(s *Scheduler) { s.ctx = ctx }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func WithHandler(h Handler) Option {
	return func(s *Scheduler) { s.handler = h }
}

// WithImmediateRun runs the handler once on Start before the first tick.
func WithImmediateRun() Option {
	return func(s *Scheduler) { s.immediate = true }
}

func (s *Scheduler) IsValid() error {
	switch {
	case s.ctx == nil:
		return errors.Wrap(ErrInvalidSchedulerConfig, "ctx cannot be nil")
	case s.logger == nil:
		return errors.Wrap(ErrInvalidSchedulerConfig, "logger cannot be nil")
	case s.interval <= 0:
		return errors.Wrap(ErrInvalidSchedulerConfig, "interval must be positive")
	case s.handler == nil:
		return errors.Wrap(ErrInvalidSchedulerConfig, "handler cannot be nil")
	default:
		return nil
	}
}

func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{name: "job"}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.IsValid(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start launches the loop in a goroutine. It must be called once.
func (s *Scheduler) Start() error {
	if err := s.IsValid(); err != nil {
		return err
	}
	if s.done != nil {
		return errors.Wrap(ErrInvalidSchedulerConfig, "already started")
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		if s.immediate {
			s.run(ctx)
		}
		for {
			select {
			case <-ticker.C:
				s.run(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
	})
}

func (s *Scheduler) run(ctx context.Context) {
	start := time.Now()
	if err := s.handler(ctx); err != nil {
		s.logger.Error("scheduled job failed",
			"job", s.name, "interval", s.interval, "elapsed", time.Since(start), "error", err)
		return
	}
	s.logger.Debug("scheduled job done", "job", s.name, "elapsed", time.Since(start))
}
