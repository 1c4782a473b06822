package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"streamgate/internal/core/ports"
)

type SweepRecorder interface {
	RecordEnrollmentsSwept(n int64)
}

// Guard keeps replicas sharing a record store from sweeping at the same time.
type Guard interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// EnrollmentSweeper removes enrollments that expired more than retention ago. Access
// checks already ignore expired rows, so a missed run only costs storage.
type EnrollmentSweeper struct {
	enrollments ports.EnrollmentRepository
	retention   time.Duration
	timeout     time.Duration
	recorder    SweepRecorder
	guard       Guard
	now         func() time.Time
	logger      *zap.SugaredLogger

	// releaseTimeout bounds the guard release; a stalled Redis must not hold the cron goroutine.
	releaseTimeout time.Duration

	cron *cron.Cron
}

func NewEnrollmentSweeper(enrollments ports.EnrollmentRepository, retention, timeout time.Duration, recorder SweepRecorder, logger *zap.SugaredLogger) *EnrollmentSweeper {
	return &EnrollmentSweeper{
		enrollments:    enrollments,
		retention:      retention,
		timeout:        timeout,
		recorder:       recorder,
		now:            time.Now,
		logger:         logger,
		releaseTimeout: 5 * time.Second,
	}
}

// UseGuard makes scheduled runs skip when another replica holds the guard.
func (s *EnrollmentSweeper) UseGuard(g Guard) {
	s.guard = g
}

// Sweep runs one pass and returns the number of enrollments removed.
func (s *EnrollmentSweeper) Sweep(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.guard != nil {
		acquired, err := s.guard.TryAcquire(ctx)
		if err != nil {
			s.logger.Warnw("enrollment sweep skipped, guard unavailable", "error", err)
			return 0, err
		}
		if !acquired {
			s.logger.Debugw("enrollment sweep skipped, another replica holds the guard")
			return 0, nil
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), s.releaseTimeout)
			defer cancel()
			if err := s.guard.Release(releaseCtx); err != nil {
				s.logger.Warnw("failed to release sweep guard", "error", err)
			}
		}()
	}

	cutoff := s.now().UTC().Add(-s.retention)
	removed, err := s.enrollments.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		s.logger.Errorw("enrollment sweep failed", "cutoff", cutoff, "error", err)
		return 0, err
	}

	if s.recorder != nil {
		s.recorder.RecordEnrollmentsSwept(removed)
	}
	s.logger.Infow("enrollment sweep finished", "cutoff", cutoff, "removed", removed)
	return removed, nil
}

// Start schedules Sweep on a cron spec such as "@daily" or "0 3 * * *".
// Overlapping runs are skipped.
func (s *EnrollmentSweeper) Start(schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() {
		_, _ = s.Sweep(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.cron = c
	c.Start()
	s.logger.Infow("enrollment sweeper scheduled", "schedule", schedule, "retention", s.retention)
	return nil
}

// Stop waits for a running sweep to finish or ctx to end.
func (s *EnrollmentSweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
