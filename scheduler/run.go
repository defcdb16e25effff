package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run drives rounds until the arm set is exhausted, the round budget is
// spent, Stop is called, or ctx is cancelled. In-flight probes always
// complete and their outcomes are applied before Run returns.
//
// The returned Report is valid in every case; the error is non-nil only
// when ctx was cancelled.
func (s *Scheduler) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)

	dispatched := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-s.stop:
			report.Stopped = true
			break loop
		default:
		}

		if s.cfg.MaxRounds > 0 && dispatched >= s.cfg.MaxRounds {
			break
		}

		name, command, ok := s.selectArm()
		if !ok {
			if s.inflightTotal() == 0 {
				report.Exhausted = true
				s.logger.Info("arm set exhausted", "dispatched", dispatched)
				break
			}
			// Every remaining arm is either deactivated or has its cap
			// covered by in-flight dispatches. Wait for a completion;
			// it may free capacity or confirm exhaustion.
			select {
			case <-ctx.Done():
				break loop
			case <-s.stop:
				report.Stopped = true
				break loop
			case <-s.wake:
			}
			continue
		}

		dispatched++
		if s.cfg.Concurrency == 1 {
			// Strictly sequential rounds: the outcome is applied before
			// the next selection, which keeps fixed-seed runs
			// reproducible.
			s.executeRound(ctx, name, command)
			continue
		}
		g.Go(func() error {
			s.executeRound(ctx, name, command)
			return nil
		})
	}

	// Let in-flight probes finish and fold in their outcomes.
	_ = g.Wait()

	s.statsMu.Lock()
	report.Dispatched = dispatched
	report.Interesting = s.interesting
	report.Uninteresting = s.uninteresting
	if len(s.fatals) > 0 {
		report.Fatals = make(map[string]string, len(s.fatals))
		for arm, reason := range s.fatals {
			report.Fatals[arm] = reason
		}
	}
	s.statsMu.Unlock()

	return report, ctx.Err()
}
