// SPDX-License-Identifier: MPL-2.0

package yab

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/slowli/yab/internal/baseline"
	"github.com/slowli/yab/internal/cachegrind"
	"github.com/slowli/yab/internal/config"
	"github.com/slowli/yab/internal/issue"
	"github.com/slowli/yab/internal/registry"
	"github.com/slowli/yab/internal/report"
	"github.com/slowli/yab/internal/sched"
	"github.com/slowli/yab/pkg/benchid"
)

// hostRun performs discovery and dispatches on the host-side mode:
// listing, smoke-testing, printing stored results, or the full
// benchmarking pipeline.
func hostRun(ctx context.Context, opts *config.Options, f func(*Bencher)) error {
	logger := newLogger(opts)

	matcher, err := registry.NewMatcher(opts.Filter, opts.Exact, opts.Regex)
	if err != nil {
		return err
	}

	// Discovery: run the user function with a registering bencher. In
	// test mode matched bodies additionally execute once in-process.
	b := newBencher(config.ModeHost, nil)
	b.test = opts.Test
	b.match = matcher.Matches
	f(b)
	if len(b.configErrs) > 0 {
		return errors.Join(b.configErrs...)
	}

	switch {
	case opts.List:
		for _, id := range b.reg.IDs() {
			fmt.Println(id)
		}
		return nil
	case opts.Test:
		if failed := len(b.testFailures); failed > 0 {
			return &ExitError{Code: 1, Err: fmt.Errorf("%d benchmark(s) failed", failed)}
		}
		return nil
	case opts.Print:
		return printResults(opts, logger, b.reg.Filter(matcher))
	default:
		return benchRun(ctx, opts, logger, b.reg.Filter(matcher))
	}
}

// benchRun is the measurement pipeline: interrupt recovery, cachegrind
// detection, scheduling across workers, and the final verdict.
func benchRun(ctx context.Context, opts *config.Options, logger *log.Logger, entries []registry.Entry) error {
	store := baseline.New(opts.TargetDir)
	if err := store.RecoverInterrupted(); err != nil {
		logger.Warn("failed cleaning up temp files", "err", err)
	}

	wrapper, err := opts.Wrapper()
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("resolve cachegrind wrapper").
			WithSuggestion("Check quoting in --cachegrind / CACHEGRIND_WRAPPER").
			Wrap(err).
			Build()
	}
	executable, err := os.Executable()
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("failed resolving benchmark binary path: %w", err)}
	}
	invoker := &cachegrind.Invoker{
		Wrapper:    wrapper,
		Executable: executable,
		Grace:      opts.Grace,
		Logger:     logger,
	}
	version, err := invoker.Check(ctx)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	logger.Debug("using cachegrind", "version", version)

	regressions := &regressionCollector{}
	reporter := report.Multi{newReporter(opts), regressions}
	reporter.Report(report.RunStarted{Total: len(entries), Cachegrind: version})

	runner := &sched.Runner{
		Invoker: invoker,
		Store:   store,
		Opts:    opts,
		Version: version,
		Logger:  logger,
	}
	scheduler := &sched.Scheduler{Jobs: opts.Jobs, Reporter: reporter, Exec: runner.Run}
	summary := scheduler.Run(ctx, entries)
	reporter.Report(report.RunFinished{OK: summary.OK, Failed: summary.Failed})

	switch {
	case summary.Canceled:
		return &ExitError{Code: 1, Err: errors.New("benchmarking was interrupted")}
	case summary.Failed > 0:
		return &ExitError{Code: 1, Err: fmt.Errorf("%d benchmark(s) failed", summary.Failed)}
	case opts.DenyRegressions && len(regressions.regressed) > 0:
		return &ExitError{Code: 1, Err: errors.New(regressions.describe(opts.Threshold))}
	default:
		return nil
	}
}

// printResults reports the stored records without running benchmarks.
// With --baseline the named baseline is printed; otherwise the rolling
// record is diffed against its ".old" twin from the preceding run.
func printResults(opts *config.Options, logger *log.Logger, entries []registry.Entry) error {
	store := baseline.New(opts.TargetDir)
	name := baseline.DefaultName
	if opts.Baseline != "" {
		name = opts.Baseline
	}
	reporter := newReporter(opts)
	reporter.Report(report.RunStarted{Total: len(entries)})

	ok := 0
	for _, entry := range entries {
		record, err := store.Load(name, entry.ID, "")
		if err != nil {
			logger.Warn("failed loading record", "id", entry.ID.String(), "err", err)
			continue
		}
		if record == nil {
			logger.Warn("no data for benchmark", "id", entry.ID.String())
			continue
		}

		measured := report.UnitMeasured{
			ID:      entry.ID,
			Current: report.Measurement{Stats: record.Net(), Breakdown: record.NetOutput().Breakdown},
		}
		for _, capture := range entry.Captures {
			captureRecord, err := store.Load(name, entry.ID, capture)
			if err != nil || captureRecord == nil {
				continue
			}
			measured.Current.Captures = append(measured.Current.Captures, report.CaptureStats{
				Capture: capture,
				Stats:   captureRecord.Net(),
			})
		}
		if prior, err := store.LoadPrior(name, entry.ID, ""); err == nil && prior != nil {
			measured.Prior = &report.Measurement{Stats: prior.Net()}
			diff := cachegrind.Compare(measured.Current.Stats, measured.Prior.Stats, opts.Threshold)
			measured.Diff = &diff
		}
		reporter.Report(measured)
		ok++
	}
	reporter.Report(report.RunFinished{OK: ok})
	return nil
}

func newReporter(opts *config.Options) report.Reporter {
	if opts.JSON {
		return report.NewJSONReporter(os.Stdout)
	}
	verbosity := report.Normal
	switch {
	case opts.Verbose:
		verbosity = report.Verbose
	case opts.Quiet:
		verbosity = report.Quiet
	}
	return &report.TextReporter{
		Out:       os.Stdout,
		Verbosity: verbosity,
		Styled:    isTerminal(os.Stdout),
		Breakdown: opts.Breakdown,
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

type regressedBench struct {
	id       benchid.ID
	relative float64
}

// regressionCollector records benchmarks whose instruction count
// regressed beyond the threshold, for the --deny-regressions verdict.
type regressionCollector struct {
	regressed []regressedBench
}

// Report implements report.Reporter.
func (c *regressionCollector) Report(event report.Event) {
	measured, ok := event.(report.UnitMeasured)
	if !ok || measured.Diff == nil {
		return
	}
	if relative := measured.Diff.InstructionsRegression(); relative != nil {
		c.regressed = append(c.regressed, regressedBench{id: measured.ID, relative: *relative})
	}
}

func (c *regressionCollector) describe(threshold float64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d benchmark(s) regressed by >%.1f%%:", len(c.regressed), threshold*100)
	for _, bench := range c.regressed {
		fmt.Fprintf(&sb, "\n  %s: %+.1f%%", bench.id, bench.relative*100)
	}
	return sb.String()
}
