package scheduler

import (
	"context"
	"fmt"
)

// startCron registers the cycle on the cron schedule and blocks until ctx is
// done or a cycle fails in a way the long running policy does not tolerate.
func (s *Scheduler) startCron(ctx context.Context) error {
	fatal := make(chan error, 1)

	err := s.cron.Cron(s.schedule.CronSpec, func() {
		err := s.runScheduledCycle(ctx)
		if err == nil {
			return
		}
		select {
		case fatal <- err:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler: invalid cron spec %q: %w", s.schedule.CronSpec, err)
	}
	defer s.cron.Stop()

	select {
	case <-ctx.Done():
		return nil
	case err := <-fatal:
		return err
	}
}
