// Package sweep runs the periodic housekeeping that lives outside the ledger core:
// expiring EARNED points and stale redemptions.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// maxRounds bounds one run so a backlog cannot monopolise the job.
const maxRounds = 100

type PointsExpirer interface {
	ExpirePoints(ctx context.Context, now time.Time, batch int) (int, error)
}

type RedemptionExpirer interface {
	ExpireStale(ctx context.Context, now time.Time, batch int) (int, error)
}

type Sweeper struct {
	points      PointsExpirer
	redemptions RedemptionExpirer
	batch       int
	now         func() time.Time
}

func New(points PointsExpirer, redemptions RedemptionExpirer, batch int) *Sweeper {
	if batch <= 0 {
		batch = 500
	}
	return &Sweeper{points: points, redemptions: redemptions, batch: batch, now: time.Now}
}

// ExpirePoints drains expired EARNED entries batch by batch.
func (s *Sweeper) ExpirePoints(ctx context.Context) (int, error) {
	return s.drain(ctx, s.points.ExpirePoints)
}

// ExpireRedemptions drains PENDING and APPROVED redemptions past their expiry.
func (s *Sweeper) ExpireRedemptions(ctx context.Context) (int, error) {
	return s.drain(ctx, s.redemptions.ExpireStale)
}

func (s *Sweeper) drain(ctx context.Context, step func(context.Context, time.Time, int) (int, error)) (int, error) {
	now := s.now()
	total := 0
	for range maxRounds {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := step(ctx, now, s.batch)
		total += n
		if err != nil {
			return total, err
		}
		if n < s.batch {
			break
		}
	}
	return total, nil
}

// Start schedules both sweeps every interval until ctx is done or the returned
// stop function is called. A run still in progress delays the next one.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) (func() error, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	jobs := []struct {
		name string
		run  func(context.Context) (int, error)
	}{
		{"expire-points", s.ExpirePoints},
		{"expire-redemptions", s.ExpireRedemptions},
	}
	for _, job := range jobs {
		_, err := sched.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() {
				n, err := job.run(ctx)
				if err != nil {
					slog.Error("sweep failed", "job", job.name, "processed", n, "error", err)
					return
				}
				slog.Debug("sweep finished", "job", job.name, "processed", n)
			}),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("schedule %s: %w", job.name, err)
		}
	}

	sched.Start()
	slog.Info("sweeps scheduled", "interval", interval, "batch", s.batch)
	return sched.Shutdown, nil
}
