// SPDX-License-Identifier: MPL-2.0

package cachegrind

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/shell"

	"github.com/slowli/yab/pkg/benchid"
)

// Environment variables forming the self-re-invocation protocol. A process
// started with EnvBench set runs exactly one benchmark instead of hosting
// the run; EnvCapture further narrows it to one capture.
const (
	EnvBench      = "YAB_BENCH"
	EnvCapture    = "YAB_CAPTURE"
	EnvIterations = "YAB_ITERATIONS"
	EnvCalibrate  = "YAB_CALIBRATE"
)

// DefaultWrapper is the default cachegrind invocation. Changing cache
// parameters renders results incomparable with previously stored baselines,
// so the sizes are pinned rather than left to the host machine.
var DefaultWrapper = []string{
	"valgrind",
	"--tool=cachegrind",
	"--cache-sim=yes",
	"--I1=32768,8,64",
	"--D1=32768,8,64",
	"--LL=8388608,16,64",
}

// ErrNoCachegrind is returned by Check when valgrind is unusable.
var ErrNoCachegrind = errors.New("unable to get cachegrind version; " +
	"make sure valgrind is installed and is on PATH")

// stderrTailLen bounds how much child stderr is kept for error reports.
const stderrTailLen = 4 * 1024

type (
	// Invoker spawns cachegrind-wrapped children of the current benchmark
	// binary and parses the files they produce.
	Invoker struct {
		// Wrapper is the cachegrind argv prefix (see DefaultWrapper).
		Wrapper []string
		// Executable is the benchmark binary to re-invoke (normally
		// os.Executable()).
		Executable string
		// Grace is how long a canceled child may run after SIGTERM before
		// it is killed.
		Grace time.Duration
		// Logger receives diagnostics about spawned children.
		Logger *log.Logger
	}

	// RunSpec describes a single cachegrind child invocation.
	RunSpec struct {
		ID         benchid.ID
		Capture    benchid.Capture
		Iterations uint64
		// Calibrate selects the calibration variant: the child terminates
		// at the capture start of the last iteration, so the run measures
		// setup and loop overhead only.
		Calibrate bool
		// OutPath is where cachegrind writes its output file.
		OutPath string
	}

	// ExecError is returned when the cachegrind child exits abnormally.
	ExecError struct {
		ID         benchid.ID
		ExitCode   int
		StderrTail string
	}

	// MissingOutputError is returned when the child exited cleanly but the
	// expected output file is absent or empty.
	MissingOutputError struct {
		Path string
	}
)

// Error implements the error interface.
func (e *ExecError) Error() string {
	msg := fmt.Sprintf("cachegrind run for %s exited abnormally with code %d", e.ID, e.ExitCode)
	if e.StderrTail != "" {
		msg += "\n---- cachegrind stderr ----\n" + e.StderrTail
	}
	return msg
}

// Error implements the error interface.
func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("cachegrind produced no output at %s", e.Path)
}

// ParseWrapper splits a wrapper override (e.g. the CACHEGRIND_WRAPPER env
// variable) into argv using shell word splitting, so quoted arguments with
// spaces survive.
func ParseWrapper(s string) ([]string, error) {
	fields, err := shell.Fields(s, nil)
	if err != nil {
		return nil, fmt.Errorf("failed parsing cachegrind wrapper %q: %w", s, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("cachegrind wrapper %q is empty", s)
	}
	return fields, nil
}

// Check verifies that the wrapper is runnable and returns its version line.
func (inv *Invoker) Check(ctx context.Context) (string, error) {
	args := make([]string, 0, 2)
	for _, arg := range inv.Wrapper[1:] {
		if strings.HasPrefix(arg, "--tool=") {
			args = append(args, arg)
		}
	}
	args = append(args, "--version")
	cmd := exec.CommandContext(ctx, inv.Wrapper[0], args...)
	out, err := cmd.Output()
	if err != nil {
		return "", ErrNoCachegrind
	}
	return strings.TrimSpace(string(out)), nil
}

// Run spawns the cachegrind child described by spec, waits for it, and parses
// the produced output file. The file is left in place on success (the
// caller promotes it into the baseline store) and on parse failures (for
// debugging); it is unlinked when the child failed.
func (inv *Invoker) Run(ctx context.Context, spec RunSpec) (*Output, error) {
	if err := os.MkdirAll(filepath.Dir(spec.OutPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed creating output directory: %w", err)
	}

	args := append([]string(nil), inv.Wrapper[1:]...)
	args = append(args, "--cachegrind-out-file="+spec.OutPath, inv.Executable)

	cmd := exec.CommandContext(ctx, inv.Wrapper[0], args...)
	cmd.Env = append(os.Environ(),
		EnvBench+"="+spec.ID.String(),
		EnvIterations+"="+strconv.FormatUint(spec.Iterations, 10),
		EnvCalibrate+"="+boolFlag(spec.Calibrate),
	)
	if spec.Capture != "" {
		cmd.Env = append(cmd.Env, EnvCapture+"="+string(spec.Capture))
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Cancel = func() error {
		// Give the child a chance to exit cleanly; WaitDelay escalates
		// to SIGKILL once the grace window elapses.
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = inv.Grace

	if inv.Logger != nil {
		inv.Logger.Debug("spawning cachegrind child",
			"id", spec.ID.String(), "capture", string(spec.Capture),
			"iterations", spec.Iterations, "calibrate", spec.Calibrate)
	}

	if err := cmd.Run(); err != nil {
		_ = os.Remove(spec.OutPath)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		code := -1
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return nil, &ExecError{ID: spec.ID, ExitCode: code, StderrTail: tail(stderr.Bytes())}
	}

	info, err := os.Stat(spec.OutPath)
	if err != nil || info.Size() == 0 {
		return nil, &MissingOutputError{Path: spec.OutPath}
	}
	// Parse failures keep the file around for inspection.
	return ParseFile(spec.OutPath)
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func tail(b []byte) string {
	if len(b) > stderrTailLen {
		b = b[len(b)-stderrTailLen:]
	}
	return strings.TrimSpace(string(b))
}
