// Package worker runs the periodic sweep that expires holds, sends
// reminders and purges old history.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"dibs/internal/service"
)

// StartSweep schedules the sweeper at the given interval and starts the
// scheduler.  The returned shutdown function stops it and waits for a
// running tick to finish.
func StartSweep(sweeper *service.Sweeper, interval time.Duration) (func(), error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			sweeper.Run(ctx)
		}),
		// Ticks must not overlap: two concurrent sweeps would race on
		// promotion even though the row guards keep them correct.
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}
	sched.Start()
	log.Printf("worker: sweep scheduled every %s", interval)
	return func() {
		if err := sched.Shutdown(); err != nil {
			log.Printf("worker: scheduler shutdown: %v", err)
		}
	}, nil
}
