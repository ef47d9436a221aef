// SPDX-License-Identifier: MPL-2.0

package config

import (
	_ "embed"
	"fmt"
	"os"
	"runtime"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/slowli/yab/internal/cachegrind"
	"github.com/slowli/yab/internal/cueutil"
	"github.com/slowli/yab/internal/issue"
)

const (
	// ConfigFileName is the name of the optional project-local config file.
	ConfigFileName = "yab.cue"

	// EnvWrapper overrides the cachegrind wrapper command line.
	EnvWrapper = "CACHEGRIND_WRAPPER"
	// EnvJobs overrides the parallelism cap.
	EnvJobs = "CACHEGRIND_JOBS"
	// EnvTargetDir overrides the directory the yab/ baseline tree lives in.
	EnvTargetDir = "YAB_TARGET_DIR"
	// EnvSkipComplexStats suppresses diff comparison, for benchmarks known
	// to be compiler-version-sensitive in CI.
	EnvSkipComplexStats = "YAB_SKIP_COMPLEX_STATS"
)

//go:embed config_schema.cue
var configSchema string

type (
	// Options are the fully resolved harness options for a host run.
	// Precedence: command-line flags > environment > yab.cue > defaults.
	Options struct {
		// Filter is the positional benchmark id filter.
		Filter string
		// Exact treats Filter as a full-id match.
		Exact bool
		// Regex treats Filter as a regular expression.
		Regex bool

		// List prints benchmark ids without running them.
		List bool
		// Print reports stored results without running benchmarks.
		Print bool
		// Test runs benchmark bodies once without cachegrind.
		Test bool

		// Jobs caps how many benchmarks run in parallel.
		Jobs int `mapstructure:"jobs"`
		// WarmUpInstructions is the per-benchmark warm-up budget.
		WarmUpInstructions uint64 `mapstructure:"warm_up_instructions"`
		// MaxIterations caps the iteration estimate derived from warm-up.
		MaxIterations uint64 `mapstructure:"max_iterations"`
		// Cachegrind is the wrapper command line (shell word syntax).
		Cachegrind string `mapstructure:"cachegrind"`
		// TargetDir roots the <target>/yab baseline tree.
		TargetDir string `mapstructure:"target_dir"`
		// Threshold is the relative change below which a counter counts
		// as unchanged.
		Threshold float64 `mapstructure:"threshold"`
		// DenyRegressions makes the run fail when a benchmark regresses.
		DenyRegressions bool `mapstructure:"deny_regressions"`
		// Breakdown prints per-function stats.
		Breakdown bool `mapstructure:"breakdown"`

		// SaveBaseline freezes results under the given baseline name.
		SaveBaseline string
		// Baseline compares against the given named baseline without
		// advancing it.
		Baseline string

		// JSON selects the machine-readable reporter.
		JSON bool
		// Verbose and Quiet adjust text reporter verbosity.
		Verbose bool
		Quiet   bool

		// SkipComplexStats suppresses comparison against prior records.
		SkipComplexStats bool

		// Grace is how long a canceled cachegrind child may run after
		// SIGTERM before it is killed.
		Grace time.Duration
	}
)

// Default returns the built-in option defaults.
func Default() Options {
	return Options{
		Jobs:               runtime.NumCPU(),
		WarmUpInstructions: 1_000_000,
		MaxIterations:      1_000,
		TargetDir:          "target",
		Threshold:          cachegrind.DefaultThreshold,
		Grace:              5 * time.Second,
	}
}

// Load resolves options from defaults, the optional yab.cue file in the
// working directory, and environment variables. Flag values are applied
// on top by the CLI layer.
func Load() (*Options, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("jobs", defaults.Jobs)
	v.SetDefault("warm_up_instructions", defaults.WarmUpInstructions)
	v.SetDefault("max_iterations", defaults.MaxIterations)
	v.SetDefault("cachegrind", "")
	v.SetDefault("target_dir", defaults.TargetDir)
	v.SetDefault("threshold", defaults.Threshold)
	v.SetDefault("deny_regressions", false)
	v.SetDefault("breakdown", false)

	if _, err := os.Stat(ConfigFileName); err == nil {
		if err := loadCUEIntoViper(v, ConfigFileName); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(ConfigFileName).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				Wrap(err).
				Build()
		}
	}

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	opts := defaults
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if value, ok := os.LookupEnv(EnvSkipComplexStats); ok && value != "" && value != "0" {
		opts.SkipComplexStats = true
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

func bindEnv(v *viper.Viper) error {
	for env, key := range map[string]string{
		EnvWrapper:   "cachegrind",
		EnvJobs:      "jobs",
		EnvTargetDir: "target_dir",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed binding env %s: %w", env, err)
		}
	}
	return nil
}

// Validate checks option constraints that the CUE schema cannot see
// (flag- and env-sourced values bypass the schema).
func (o *Options) Validate() error {
	if o.Jobs <= 0 {
		return fmt.Errorf("jobs must be positive, got %d", o.Jobs)
	}
	if o.WarmUpInstructions == 0 {
		return fmt.Errorf("warm_up_instructions must be positive")
	}
	if o.MaxIterations == 0 {
		return fmt.Errorf("max_iterations must be positive")
	}
	if o.Threshold <= 0 || o.Threshold >= 1 {
		return fmt.Errorf("threshold must be in (0, 1), got %v", o.Threshold)
	}
	if o.List && o.Print {
		return fmt.Errorf("--list and --print are mutually exclusive")
	}
	return nil
}

// Wrapper returns the cachegrind wrapper argv, applying the default when
// no override is configured.
func (o *Options) Wrapper() ([]string, error) {
	if o.Cachegrind == "" {
		return cachegrind.DefaultWrapper, nil
	}
	return cachegrind.ParseWrapper(o.Cachegrind)
}

// BaselineName returns the baseline the run's results are promoted into.
func (o *Options) BaselineName() string {
	if o.SaveBaseline != "" {
		return o.SaveBaseline
	}
	return "base"
}

// loadCUEIntoViper validates the config file against the embedded schema
// and merges the decoded values into viper, preserving defaults and
// allowing env overrides.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}
	// MergeConfigMap keeps defaults for unset keys and lets env bindings
	// override file values.
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}
