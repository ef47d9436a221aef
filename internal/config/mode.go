// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/slowli/yab/internal/cachegrind"
	"github.com/slowli/yab/pkg/benchid"
)

type (
	// Mode is the role this process invocation plays.
	Mode int

	// Selector describes what a cachegrind-wrapped child must execute,
	// decoded from the environment the host set for it.
	Selector struct {
		// ID is the single benchmark to run.
		ID benchid.ID
		// Capture narrows execution to one named capture (leaf mode).
		Capture benchid.Capture
		// HasCapture distinguishes the default capture from no capture
		// selection at all.
		HasCapture bool
		// Iterations is how many times the benchmark body runs.
		Iterations uint64
		// Calibrate makes the child terminate at the capture start of the
		// last iteration, so only setup/loop overhead is measured.
		Calibrate bool
	}
)

// Process roles.
const (
	// ModeHost discovers benchmarks, schedules children and reports.
	ModeHost Mode = iota
	// ModeChild runs exactly one benchmark under the cachegrind wrapper.
	ModeChild
	// ModeLeaf runs one benchmark with a single active capture.
	ModeLeaf
)

// DetectMode inspects the environment to determine the process role. The
// selector is non-nil for child and leaf modes.
func DetectMode() (Mode, *Selector, error) {
	bench, ok := os.LookupEnv(cachegrind.EnvBench)
	if !ok {
		return ModeHost, nil, nil
	}
	if bench == "" {
		return ModeHost, nil, fmt.Errorf("%s is set but empty", cachegrind.EnvBench)
	}

	selector := &Selector{ID: benchid.Parse(bench), Iterations: 1}
	if raw, ok := os.LookupEnv(cachegrind.EnvIterations); ok {
		iterations, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || iterations == 0 {
			return ModeHost, nil, fmt.Errorf("%s must be a positive integer, got %q", cachegrind.EnvIterations, raw)
		}
		selector.Iterations = iterations
	}
	if raw, ok := os.LookupEnv(cachegrind.EnvCalibrate); ok {
		selector.Calibrate = raw == "1"
	}

	capture, ok := os.LookupEnv(cachegrind.EnvCapture)
	if !ok {
		return ModeChild, selector, nil
	}
	selector.Capture = benchid.Capture(capture)
	selector.HasCapture = true
	return ModeLeaf, selector, nil
}
