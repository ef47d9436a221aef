// SPDX-License-Identifier: MPL-2.0

package sched

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/slowli/yab/internal/registry"
	"github.com/slowli/yab/internal/report"
)

type (
	// ExecFunc measures one benchmark entry end-to-end. It returns the
	// measured event on success. A context error means the unit was
	// canceled mid-flight; any other error is a per-unit failure that
	// does not abort the run.
	ExecFunc func(ctx context.Context, entry registry.Entry) (*report.UnitMeasured, error)

	// Scheduler fans benchmark entries out to Jobs workers and reports
	// results in registration order.
	Scheduler struct {
		Jobs     int
		Reporter report.Reporter
		Exec     ExecFunc
	}

	// Summary is the outcome of a run.
	Summary struct {
		OK       int
		Failed   int
		Canceled bool
	}
)

// Run executes all entries and returns the run summary. Cancellation of
// ctx stops workers from pulling new work; entries already in flight are
// abandoned by their executor and produce no events.
func (s *Scheduler) Run(ctx context.Context, entries []registry.Entry) Summary {
	pending := newPendingTable(s.Reporter)
	var (
		group   errgroup.Group
		results = make([]int, len(entries)) // 0 pending, 1 ok, 2 failed
	)
	jobs := s.Jobs
	if jobs < 1 {
		jobs = 1
	}
	group.SetLimit(jobs)

	for i, entry := range entries {
		if ctx.Err() != nil {
			pending.skip(i)
			continue
		}
		group.Go(func() error {
			if ctx.Err() != nil {
				pending.skip(i)
				return nil
			}
			measured, err := s.Exec(ctx, entry)
			switch {
			case err == nil:
				results[i] = 1
				pending.deliver(i, []report.Event{
					report.UnitStarted{ID: entry.ID},
					*measured,
				})
			case ctx.Err() != nil:
				// Canceled mid-flight; the executor already discarded
				// its temp files.
				pending.skip(i)
			default:
				results[i] = 2
				pending.deliver(i, []report.Event{
					report.UnitStarted{ID: entry.ID},
					report.UnitFailed{ID: entry.ID, Err: err},
				})
			}
			return nil
		})
	}
	// Worker funcs never return errors; failures are per-unit events.
	_ = group.Wait()

	var summary Summary
	for _, result := range results {
		switch result {
		case 1:
			summary.OK++
		case 2:
			summary.Failed++
		}
	}
	summary.Canceled = ctx.Err() != nil
	return summary
}
