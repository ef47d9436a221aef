// SPDX-License-Identifier: MPL-2.0

package sched

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/slowli/yab/internal/baseline"
	"github.com/slowli/yab/internal/cachegrind"
	"github.com/slowli/yab/internal/config"
	"github.com/slowli/yab/internal/registry"
	"github.com/slowli/yab/internal/report"
	"github.com/slowli/yab/pkg/benchid"
)

type (
	// Runner measures one benchmark at a time: it drives the
	// calibrate/estimate/measure cachegrind invocations of every unit
	// (the full body plus each declared capture), promotes the outputs
	// into the baseline store and assembles the reportable result.
	Runner struct {
		Invoker *cachegrind.Invoker
		Store   *baseline.Store
		Opts    *config.Options
		// Version is the detected cachegrind version, recorded in the
		// stored metadata.
		Version string
		Logger  *log.Logger
	}

	// measuredUnit is one unit's outputs before promotion.
	measuredUnit struct {
		capture    benchid.Capture
		fullTmp    string
		calibTmp   string
		net        *cachegrind.Output
		iterations uint64
	}
)

// Run implements ExecFunc.
//
// The measurement protocol per unit, following the three-run scheme the
// harness relies on for overhead removal:
//
//  1. Calibration with 2 iterations, terminating at the capture start of
//     the last one; its counters estimate one iteration's cost.
//  2. n = clamp(warmUpInstructions / perIteration, 1, maxIterations);
//     when n > 1 the calibration is re-run with n+1 iterations.
//  3. Full run with n+1 iterations measured through the capture end.
//
// Net stats = full - calibration, which cancels setup and loop overhead.
func (r *Runner) Run(ctx context.Context, entry registry.Entry) (*report.UnitMeasured, error) {
	prior := r.loadPrior(entry)

	units := make([]measuredUnit, 0, 1+len(entry.Captures))
	captures := append([]benchid.Capture{""}, entry.Captures...)
	for _, capture := range captures {
		unit, err := r.measureUnit(ctx, entry.ID, capture)
		if err != nil {
			for _, measured := range units {
				r.Store.Discard(measured.fullTmp, measured.calibTmp)
			}
			return nil, err
		}
		units = append(units, *unit)
	}

	// All units measured and parsed; promote the id's record atomically.
	name := r.Opts.BaselineName()
	for _, unit := range units {
		if err := r.Store.Promote(name, entry.ID, unit.capture, unit.fullTmp, unit.calibTmp); err != nil {
			return nil, err
		}
	}
	if err := r.Store.SaveMeta(name, entry.ID, baseline.Meta{
		SavedAt:    time.Now().UTC(),
		Cachegrind: r.Version,
		Iterations: units[0].iterations,
	}); err != nil && r.Logger != nil {
		r.Logger.Warn("failed writing baseline metadata", "id", entry.ID.String(), "err", err)
	}

	measured := &report.UnitMeasured{ID: entry.ID, Current: assemble(units)}
	if prior != nil {
		measured.Prior = prior
		diff := cachegrind.Compare(measured.Current.Stats, prior.Stats, r.Opts.Threshold)
		measured.Diff = &diff
	}
	return measured, nil
}

func (r *Runner) measureUnit(ctx context.Context, id benchid.ID, capture benchid.Capture) (*measuredUnit, error) {
	calibTmp := r.Store.TmpOutPath(id, capture)
	calibration, err := r.Invoker.Run(ctx, cachegrind.RunSpec{
		ID: id, Capture: capture, Iterations: 2, Calibrate: true, OutPath: calibTmp,
	})
	if err != nil {
		return nil, err
	}

	iterations := uint64(1)
	if perIteration := calibration.Summary.Instructions; perIteration > 0 {
		iterations = r.Opts.WarmUpInstructions / perIteration
	}
	iterations = min(max(iterations, 1), r.Opts.MaxIterations)
	if iterations > 1 {
		// Re-running with the final iteration count overwrites the
		// estimate output, which is exactly what we need.
		calibration, err = r.Invoker.Run(ctx, cachegrind.RunSpec{
			ID: id, Capture: capture, Iterations: iterations + 1, Calibrate: true, OutPath: calibTmp,
		})
		if err != nil {
			r.Store.Discard(calibTmp)
			return nil, err
		}
	}

	fullTmp := r.Store.TmpOutPath(id, capture)
	full, err := r.Invoker.Run(ctx, cachegrind.RunSpec{
		ID: id, Capture: capture, Iterations: iterations + 1, OutPath: fullTmp,
	})
	if err != nil {
		r.Store.Discard(calibTmp, fullTmp)
		return nil, err
	}

	return &measuredUnit{
		capture:    capture,
		fullTmp:    fullTmp,
		calibTmp:   calibTmp,
		net:        full.Sub(calibration),
		iterations: iterations,
	}, nil
}

// loadPrior loads the record the current run is compared against: the
// named baseline when --baseline is set, the rolling record otherwise.
// Load failures degrade to "no prior" rather than failing the unit.
func (r *Runner) loadPrior(entry registry.Entry) *report.Measurement {
	if r.Opts.SkipComplexStats {
		return nil
	}
	name := baseline.DefaultName
	if r.Opts.Baseline != "" {
		name = r.Opts.Baseline
	}

	record, err := r.Store.Load(name, entry.ID, "")
	if err != nil {
		if r.Logger != nil {
			r.Logger.Warn("failed loading prior record", "id", entry.ID.String(), "err", err)
		}
		return nil
	}
	if record == nil {
		return nil
	}
	prior := &report.Measurement{Stats: record.Net()}
	for _, capture := range entry.Captures {
		captureRecord, err := r.Store.Load(name, entry.ID, capture)
		if err != nil || captureRecord == nil {
			continue
		}
		prior.Captures = append(prior.Captures, report.CaptureStats{
			Capture: capture,
			Stats:   captureRecord.Net(),
		})
	}
	return prior
}

func assemble(units []measuredUnit) report.Measurement {
	measurement := report.Measurement{
		Stats:     units[0].net.Summary,
		Breakdown: units[0].net.Breakdown,
	}
	for _, unit := range units[1:] {
		measurement.Captures = append(measurement.Captures, report.CaptureStats{
			Capture: unit.capture,
			Stats:   unit.net.Summary,
		})
	}
	return measurement
}
