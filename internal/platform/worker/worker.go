// Package worker provides the daily loop that drives scheduled pipeline
// runs. It encapsulates the wait-run-repeat pattern with context
// cancellation and panic recovery, so a bad run never kills the daemon.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// NextFunc returns the next scheduled run strictly after now.
type NextFunc func(now time.Time) time.Time

// RunFunc executes one scheduled run.
type RunFunc func(ctx context.Context) error

// Daily runs a task at the times produced by Next until the context ends.
type Daily struct {
	Name   string
	Next   NextFunc
	Run    RunFunc
	Logger *zerolog.Logger
}

// Loop blocks until ctx is cancelled, executing the task at each scheduled
// time. Run errors and panics are logged and the loop continues with the
// next scheduled run.
func (d *Daily) Loop(ctx context.Context) error {
	d.Logger.Info().Str("worker", d.Name).Msg("worker started")
	defer d.Logger.Info().Str("worker", d.Name).Msg("worker stopped")

	for {
		next := d.Next(time.Now())
		d.Logger.Info().Str("worker", d.Name).Time("next_run", next).Msg("waiting for next run")

		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		d.runOnce(ctx)
	}
}

func (d *Daily) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.Logger.Error().Str("worker", d.Name).Interface("panic", r).Msg("run panicked")
		}
	}()

	started := time.Now()

	if err := d.Run(ctx); err != nil {
		d.Logger.Error().Err(err).Str("worker", d.Name).Msg("run failed")
		return
	}

	d.Logger.Info().
		Str("worker", d.Name).
		Dur("duration", time.Since(started)).
		Msg("run finished")
}
