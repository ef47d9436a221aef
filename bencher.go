// SPDX-License-Identifier: MPL-2.0

package yab

import (
	"fmt"
	"os"

	"github.com/slowli/yab/internal/config"
	"github.com/slowli/yab/internal/registry"
	"github.com/slowli/yab/pkg/benchid"
)

type (
	// BenchmarkID names one measurement unit within a benchmark binary.
	BenchmarkID = benchid.ID

	// Bencher is the entry point user benchmark functions receive. Its
	// behavior is fixed at construction time from the process role: in
	// host mode the benchmark methods only register, in child and leaf
	// modes they execute the single selected benchmark. User functions
	// must therefore declare benchmarks unconditionally.
	Bencher struct {
		mode     config.Mode
		selector *config.Selector
		reg      *registry.Registry
		// configErrs collects registration errors (duplicate ids etc.);
		// they are surfaced once as a usage error.
		configErrs []error
		// executed flips when a child ran its selected benchmark.
		executed bool
		// test enables smoke-test execution: bodies run once in-process
		// without cachegrind.
		test         bool
		testFailures []benchid.ID
		// match filters which benchmarks execute in test mode.
		match func(benchid.ID) bool
	}

	// Capture delimits measured regions inside a benchmark body. Exactly
	// one region is live per child invocation; the others are identity
	// passes.
	Capture struct {
		bencher *Bencher
		// active is the region this child measures, or none.
		active    bool
		activeID  benchid.Capture
		calibrate bool
		last      bool
	}
)

// NewID creates a parametric benchmark id rendered as "name/arg".
func NewID(name string, arg any) string {
	return benchid.New(name, arg).String()
}

func newBencher(mode config.Mode, selector *config.Selector) *Bencher {
	return &Bencher{mode: mode, selector: selector, reg: registry.New()}
}

// Bench declares a benchmark measuring body end-to-end. Dropping or
// post-processing the body's outputs is not included in the measurement.
func (b *Bencher) Bench(id string, body func()) *Bencher {
	return b.benchInner(benchid.Parse(id), nil, func(capture *Capture) {
		capture.Measure(body)
	})
}

// BenchWithCapture declares a benchmark whose measurement is restricted
// to the region the body wraps in Capture.Measure. Setup before the
// region and assertions after it run in full but are not measured.
func (b *Bencher) BenchWithCapture(id string, body func(*Capture)) *Bencher {
	return b.benchInner(benchid.Parse(id), nil, body)
}

// BenchWithCaptures declares a benchmark with named sub-measurements. The
// body wraps each region in Capture.MeasureAs with one of the declared
// names; every region is measured in a separate child invocation and
// reported separately, while the benchmark-level record covers the whole
// body.
func (b *Bencher) BenchWithCaptures(id string, names []string, body func(*Capture)) *Bencher {
	captures := make([]benchid.Capture, len(names))
	for i, name := range names {
		captures[i] = benchid.Capture(name)
	}
	return b.benchInner(benchid.Parse(id), captures, body)
}

func (b *Bencher) benchInner(id BenchmarkID, captures []benchid.Capture, body func(*Capture)) *Bencher {
	if err := b.reg.Register(id); err != nil {
		b.configErrs = append(b.configErrs, err)
		return b
	}
	for _, capture := range captures {
		if err := b.reg.RegisterCapture(id, capture); err != nil {
			b.configErrs = append(b.configErrs, err)
			return b
		}
	}

	switch b.mode {
	case config.ModeHost:
		if b.test && (b.match == nil || b.match(id)) {
			b.runTest(id, body)
		}
	case config.ModeChild, config.ModeLeaf:
		if b.selector.ID == id {
			b.runSelected(len(captures) > 0, body)
		}
	}
	return b
}

// runSelected executes the selected benchmark under the iteration
// protocol: the body runs Iterations times, and the process exits inside
// the measured region boundary of the last iteration (at its start for
// calibration runs, after its end otherwise). Whole-process measurement
// plus this early exit is what makes full - calibration equal exactly
// one measured region.
func (b *Bencher) runSelected(hasNamedCaptures bool, body func(*Capture)) {
	b.executed = true
	selector := b.selector

	// For benchmarks with named captures the benchmark-level record
	// covers the whole body, so the termination points wrap the body
	// itself rather than a region inside it.
	wholeBody := !selector.HasCapture && hasNamedCaptures

	for i := uint64(1); i <= selector.Iterations; i++ {
		last := i == selector.Iterations
		if wholeBody && last && selector.Calibrate {
			os.Exit(0)
		}
		capture := &Capture{
			bencher:   b,
			active:    !wholeBody,
			activeID:  selector.Capture,
			calibrate: selector.Calibrate,
			last:      last,
		}
		body(capture)
		if wholeBody && last {
			os.Exit(0)
		}
	}
	// Falling through means the selected region was never entered on the
	// last iteration (e.g. an undeclared capture name); the caller turns
	// this into a nonzero exit.
}

// runTest smoke-tests a benchmark body: one in-process run, no
// instrumentation, panics recorded as failures.
func (b *Bencher) runTest(id BenchmarkID, body func(*Capture)) {
	defer func() {
		if panicked := recover(); panicked != nil {
			fmt.Fprintf(os.Stderr, "%s: panicked: %v\n", id, panicked)
			b.testFailures = append(b.testFailures, id)
		}
	}()
	body(&Capture{bencher: b})
}

// Measure runs action as the benchmark's default measured region.
// Outside the selected region of a child invocation it is an identity
// pass.
func (c *Capture) Measure(action func()) {
	c.measure("", action)
}

// MeasureAs runs action as the named capture's measured region. The name
// must be one of the names declared in BenchWithCaptures.
func (c *Capture) MeasureAs(name string, action func()) {
	c.measure(benchid.Capture(name), action)
}

func (c *Capture) measure(id benchid.Capture, action func()) {
	if !c.active || id != c.activeID {
		action()
		return
	}
	if c.last && c.calibrate {
		os.Exit(0)
	}
	action()
	if c.last {
		os.Exit(0)
	}
}
