// SPDX-License-Identifier: MPL-2.0

package yab

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/slowli/yab/internal/config"
)

// Main hands the process over to the harness. It never returns: the exit
// code is 0 when all benchmarks succeeded, 1 when any benchmark failed
// (or regressed with --deny-regressions), and 2 on usage errors.
func Main(f func(*Bencher)) {
	os.Exit(Run(f))
}

// Run is Main without the final os.Exit, for use in tests.
func Run(f func(*Bencher)) int {
	mode, selector, err := config.DetectMode()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed starting instrumented binary:", err)
		return 2
	}
	if mode != config.ModeHost {
		return runChild(mode, selector, f)
	}
	return runHost(f)
}

// runChild is the cachegrind-wrapped side of the protocol: discovery runs
// as usual, and the benchmark selected via the environment executes and
// exits inside Bencher. Reaching the end of the user function means the
// selected id (or capture) was never declared.
func runChild(mode config.Mode, selector *config.Selector, f func(*Bencher)) int {
	b := newBencher(mode, selector)
	f(b)
	if len(b.configErrs) > 0 {
		for _, err := range b.configErrs {
			fmt.Fprintln(os.Stderr, err)
		}
		return 2
	}
	if !b.executed {
		fmt.Fprintf(os.Stderr, "unknown benchmark %q\n", selector.ID)
		return 1
	}
	// The selected benchmark executed but never hit a measured region
	// boundary (e.g. an unknown capture name); treat as failure.
	fmt.Fprintf(os.Stderr, "benchmark %q did not reach its measured region\n", selector.ID)
	return 1
}

func runHost(f func(*Bencher)) int {
	opts, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	err = fang.Execute(
		context.Background(),
		newRootCommand(opts, f),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return 2
	}
	return 0
}

func newRootCommand(opts *config.Options, f func(*Bencher)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   filepath.Base(os.Args[0]) + " [flags] [FILTER]",
		Short: "Benchmark harness measuring cachegrind instruction and cache counters",
		Long: `Runs the benchmarks defined in this binary under valgrind --tool=cachegrind
and reports deterministic instruction/cache counters, comparing them
against the previously stored baseline.

FILTER limits which benchmarks run: a literal substring by default, a
full-id match with --exact, or a regular expression with --regex.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Filter = args[0]
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			return hostRun(cmd.Context(), opts, f)
		},
	}

	flags := cmd.Flags()
	// Accept config-file style names (warm_up_instructions) on the
	// command line as well.
	flags.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	flags.BoolVar(&opts.List, "list", false, "list benchmark ids without running them")
	flags.BoolVar(&opts.Print, "print", false, "print stored results without running benchmarks")
	flags.BoolVar(&opts.Test, "test", false, "run benchmark bodies once without cachegrind (smoke test)")
	flags.IntVarP(&opts.Jobs, "jobs", "j", opts.Jobs, "maximum number of benchmarks to run in parallel")
	flags.BoolVar(&opts.Exact, "exact", false, "match FILTER against full benchmark ids")
	flags.BoolVar(&opts.Regex, "regex", false, "treat FILTER as a regular expression")
	flags.StringVar(&opts.SaveBaseline, "save-baseline", "", "save results under the named baseline")
	flags.StringVar(&opts.Baseline, "baseline", "", "compare against the named baseline without overwriting it")
	flags.BoolVar(&opts.Verbose, "verbose", false, "output detailed benchmarking information")
	flags.BoolVarP(&opts.Quiet, "quiet", "q", false, "output only basic benchmarking information")
	flags.BoolVar(&opts.JSON, "json", false, "emit machine-readable JSON events")
	flags.Uint64Var(&opts.WarmUpInstructions, "warm-up-instructions", opts.WarmUpInstructions,
		"target number of instructions for benchmark warm-up")
	flags.Uint64Var(&opts.MaxIterations, "max-iterations", opts.MaxIterations,
		"maximum number of iterations for a single benchmark")
	flags.StringVar(&opts.Cachegrind, "cachegrind", opts.Cachegrind,
		"cachegrind wrapper command (shell word syntax)")
	flags.Float64Var(&opts.Threshold, "threshold", opts.Threshold,
		"relative change below which a counter counts as unchanged")
	flags.BoolVar(&opts.DenyRegressions, "deny-regressions", opts.DenyRegressions,
		"fail the run when any benchmark regresses beyond the threshold")
	flags.BoolVar(&opts.Breakdown, "breakdown", opts.Breakdown, "output stats breakdown by function")
	cmd.MarkFlagsMutuallyExclusive("list", "print")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	cmd.MarkFlagsMutuallyExclusive("exact", "regex")

	return cmd
}

func newLogger(opts *config.Options) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "yab"})
	switch {
	case opts.Verbose:
		logger.SetLevel(log.DebugLevel)
	case opts.Quiet:
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}
