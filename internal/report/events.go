// SPDX-License-Identifier: MPL-2.0

// Package report turns measurement results into a stream of structured
// events and renders them. Reporters only consume events: they never
// touch the baseline store or spawn processes, and they receive events
// strictly in benchmark registration order.
package report

import (
	"github.com/slowli/yab/internal/cachegrind"
	"github.com/slowli/yab/pkg/benchid"
)

type (
	// Measurement is the consumable result of one benchmark: net stats
	// for the whole body plus per-capture records and the optional
	// per-function breakdown.
	Measurement struct {
		Stats     cachegrind.Stats
		Captures  []CaptureStats
		Breakdown map[cachegrind.Function]cachegrind.Stats
	}

	// CaptureStats is one named capture's net record.
	CaptureStats struct {
		Capture benchid.Capture
		Stats   cachegrind.Stats
	}

	// Event is one element of the reporting stream.
	Event interface {
		isEvent()
	}

	// RunStarted opens the stream; Total is the number of matched
	// benchmarks.
	RunStarted struct {
		Total int
		// Cachegrind is the detected cachegrind version, when known.
		Cachegrind string
	}

	// UnitStarted signals that a benchmark began executing.
	UnitStarted struct {
		ID benchid.ID
	}

	// UnitMeasured carries a completed measurement and its comparison
	// against the prior record, if one was stored.
	UnitMeasured struct {
		ID      benchid.ID
		Current Measurement
		Prior   *Measurement
		// Diff classifies the change of each counter against the
		// configured threshold; nil without a prior record.
		Diff *cachegrind.Diff
	}

	// UnitFailed reports a per-benchmark failure. The run continues.
	UnitFailed struct {
		ID  benchid.ID
		Err error
	}

	// RunFinished closes the stream.
	RunFinished struct {
		OK     int
		Failed int
	}
)

func (RunStarted) isEvent()   {}
func (UnitStarted) isEvent()  {}
func (UnitMeasured) isEvent() {}
func (UnitFailed) isEvent()   {}
func (RunFinished) isEvent()  {}
