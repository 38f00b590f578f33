// Package workers runs the background jobs that keep battle state honest.
package workers

import (
	"context"
	"time"

	"terrace/internal/middleware"
	"terrace/internal/service"

	"github.com/go-co-op/gocron/v2"
)

// ExpirySweeper periodically ends or cancels battles whose end time has
// passed without a participant closing them out.
type ExpirySweeper struct {
	battles   *service.BattleService
	interval  time.Duration
	scheduler gocron.Scheduler
}

// NewExpirySweeper creates a sweeper that runs every interval.
func NewExpirySweeper(battles *service.BattleService, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{battles: battles, interval: interval}
}

// Start schedules the sweep job and begins running it.
func (w *ExpirySweeper) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	w.scheduler = scheduler

	_, err = scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			w.sweep(ctx)
		}),
	)
	if err != nil {
		return err
	}

	scheduler.Start()
	return nil
}

func (w *ExpirySweeper) sweep(ctx context.Context) {
	transitioned, err := w.battles.ExpireOverdue(ctx, time.Now())
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "Battle expiry sweep failed", "error", err)
		return
	}
	if transitioned > 0 {
		middleware.Logger.InfoContext(ctx, "Battle expiry sweep completed",
			"transitioned", transitioned)
	}
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (w *ExpirySweeper) Stop() error {
	if w.scheduler == nil {
		return nil
	}
	return w.scheduler.Shutdown()
}
