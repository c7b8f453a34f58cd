package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/mkellner/curator/internal/config"
	"github.com/mkellner/curator/internal/constants"
	"github.com/mkellner/curator/internal/domain"
	"github.com/mkellner/curator/internal/logger"
)

// Runner is the job the scheduler fires. The cycle manages its own
// single-flight locking, so overlapping triggers are safe.
type Runner interface {
	RunCycle(ctx context.Context) (*domain.CycleResult, error)
}

// Scheduler fires one refresh per day at a fixed wall-clock time in
// the configured timezone.
type Scheduler struct {
	runner Runner
	hour   int
	minute int
	loc    *time.Location
	log    *logger.Logger

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	nowFunc func() time.Time
}

func New(runner Runner, cfg config.ScheduleConfig, log *logger.Logger) (*Scheduler, error) {
	hour, minute, err := config.ParseRefreshTime(cfg.RefreshTime)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		runner:  runner,
		hour:    hour,
		minute:  minute,
		loc:     loc,
		log:     log.WithComponent("scheduler"),
		nowFunc: time.Now,
	}, nil
}

// Start launches the schedule loop. It returns immediately.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)
	s.log.Info("scheduler started",
		"refresh_time", time.Date(0, 1, 1, s.hour, s.minute, 0, 0, time.UTC).Format("15:04"),
		"timezone", s.loc.String())
}

// Stop cancels the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		next := s.nextRun(s.nowFunc())
		timer := time.NewTimer(time.Until(next))
		s.log.Info("next refresh scheduled", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, constants.CycleTimeout)
	defer cancel()

	cr, err := s.runner.RunCycle(cycleCtx)
	if err != nil {
		s.log.Error("scheduled refresh failed", "error", err)
		return
	}
	s.log.Info("scheduled refresh complete", "cycle_id", cr.ID, "tracks", len(cr.TrackIDs))
}

// nextRun returns the next occurrence of the configured wall-clock
// time after now, in the schedule's timezone. DST shifts are handled
// by time.Date renormalizing the wall clock.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	now = now.In(s.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
