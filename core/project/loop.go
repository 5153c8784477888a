package project

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrLoopStopped is returned by Do when the loop exits before running the
// request.
var ErrLoopStopped = errors.New("project: loop stopped")

type request struct {
	fn   func(*Project) error
	done chan error
}

// Loop is the main timeline. It owns every mutation of the project's bank.
type Loop struct {
	project  *Project
	interval time.Duration
	logger   *zap.Logger
	requests chan request
	stopped  chan struct{}
}

// NewLoop creates a loop that reloads p every interval.
func NewLoop(p *Project, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = p.cfg.TickInterval()
	}
	return &Loop{
		project:  p,
		interval: interval,
		logger:   p.logger,
		requests: make(chan request),
		stopped:  make(chan struct{}),
	}
}

// Run ticks until ctx is done. Requests submitted through Do run between ticks.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.stopped)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.tick(ctx)
		case req := <-l.requests:
			req.done <- req.fn(l.project)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	if !l.project.IsWaitingForReload() {
		return
	}
	res, err := l.project.Reload(ctx, false)
	if err != nil {
		l.logger.Error("Reload failed", zap.Error(err))
		return
	}
	if res.BuildFailed {
		l.logger.Warn("Code module build failed, keeping previous module",
			zap.Strings("errors", l.project.Errors()))
	}
}

// Do runs fn on the loop and returns its error. ctx only bounds the wait for
// the loop to pick fn up: once the loop has accepted fn, Do waits for it to
// return, so whatever fn captured is never written after Do returns.
func (l *Loop) Do(ctx context.Context, fn func(*Project) error) error {
	req := request{fn: fn, done: make(chan error, 1)}

	select {
	case l.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrLoopStopped
	}
	return <-req.done
}
