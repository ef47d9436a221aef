// SPDX-License-Identifier: MPL-2.0

package yab

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/slowli/yab/internal/config"
	"github.com/slowli/yab/pkg/benchid"
)

// traceEnv tells helper-process benchmarks where to append execution
// markers, so the parent test can observe what actually ran.
const traceEnv = "YAB_TEST_TRACE_FILE"

func trace(marker string) {
	path := os.Getenv(traceEnv)
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if _, err := f.WriteString(marker + "\n"); err != nil {
		panic(err)
	}
}

func helperBenchmarks(b *Bencher) {
	b.Bench("plain", func() {
		trace("body")
	})
	b.BenchWithCapture("captured", func(c *Capture) {
		trace("setup")
		c.Measure(func() {
			trace("core")
		})
		trace("after")
	})
	b.BenchWithCaptures("multi", []string{"first", "second"}, func(c *Capture) {
		c.MeasureAs("first", func() {
			trace("first")
		})
		c.MeasureAs("second", func() {
			trace("second")
		})
	})
}

// TestHelperChild is not a real test: it is re-executed as a subprocess
// with the child-protocol environment set.
func TestHelperChild(t *testing.T) {
	if os.Getenv("YAB_TEST_HELPER") != "1" {
		t.Skip("helper process only")
	}
	os.Exit(Run(helperBenchmarks))
}

type childRun struct {
	bench      string
	capture    string
	hasCapture bool
	iterations string
	calibrate  string
}

func runChildProcess(t *testing.T, run childRun) (exitCode int, markers []string) {
	t.Helper()
	tracePath := filepath.Join(t.TempDir(), "trace")

	cmd := exec.Command(os.Args[0], "-test.run=TestHelperChild")
	cmd.Env = append(os.Environ(),
		"YAB_TEST_HELPER=1",
		traceEnv+"="+tracePath,
		"YAB_BENCH="+run.bench,
		"YAB_ITERATIONS="+run.iterations,
		"YAB_CALIBRATE="+run.calibrate,
	)
	if run.hasCapture {
		cmd.Env = append(cmd.Env, "YAB_CAPTURE="+run.capture)
	}
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("failed running helper: %v", err)
		}
		exitCode = exitErr.ExitCode()
	}

	data, readErr := os.ReadFile(tracePath)
	if readErr == nil {
		markers = strings.Fields(string(data))
	}
	return exitCode, markers
}

func TestChild_FullRun(t *testing.T) {
	code, markers := runChildProcess(t, childRun{bench: "plain", iterations: "3", calibrate: "0"})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	// All three iterations execute the body; the process exits right
	// after the measured region of the last one.
	if len(markers) != 3 {
		t.Errorf("body ran %d times, want 3 (markers: %v)", len(markers), markers)
	}
}

func TestChild_CalibrationSkipsLastIteration(t *testing.T) {
	code, markers := runChildProcess(t, childRun{bench: "plain", iterations: "3", calibrate: "1"})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	// Calibration exits at the region start of the last iteration, so
	// only the first two bodies run.
	if len(markers) != 2 {
		t.Errorf("body ran %d times, want 2 (markers: %v)", len(markers), markers)
	}
}

func TestChild_CaptureExcludesSurroundings(t *testing.T) {
	code, markers := runChildProcess(t, childRun{bench: "captured", iterations: "2", calibrate: "0"})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	counts := map[string]int{}
	for _, marker := range markers {
		counts[marker]++
	}
	// The last iteration exits inside Measure, so its trailing section
	// never runs.
	if counts["setup"] != 2 || counts["core"] != 2 || counts["after"] != 1 {
		t.Errorf("counts = %v, want setup=2 core=2 after=1", counts)
	}
}

func TestChild_LeafRunsSingleCapture(t *testing.T) {
	code, markers := runChildProcess(t, childRun{
		bench: "multi", capture: "second", hasCapture: true,
		iterations: "2", calibrate: "0",
	})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	counts := map[string]int{}
	for _, marker := range markers {
		counts[marker]++
	}
	// Both regions execute, but the process terminates at the end of the
	// selected region on the last iteration.
	if counts["second"] != 2 {
		t.Errorf("selected capture ran %d times, want 2", counts["second"])
	}
}

func TestChild_UnknownBenchmark(t *testing.T) {
	code, _ := runChildProcess(t, childRun{bench: "ghost", iterations: "1", calibrate: "0"})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestChild_UnknownCapture(t *testing.T) {
	code, _ := runChildProcess(t, childRun{
		bench: "multi", capture: "ghost", hasCapture: true,
		iterations: "1", calibrate: "0",
	})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestBencher_HostRegistersWithoutExecuting(t *testing.T) {
	b := newBencher(config.ModeHost, nil)
	executed := false
	b.Bench("fib", func() { executed = true })
	b.BenchWithCaptures("multi", []string{"a", "b"}, func(*Capture) { executed = true })

	if executed {
		t.Error("host mode must not execute benchmark bodies")
	}
	if len(b.configErrs) > 0 {
		t.Fatalf("unexpected config errors: %v", b.configErrs)
	}

	entries := b.reg.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if len(entries[1].Captures) != 2 {
		t.Errorf("captures = %v", entries[1].Captures)
	}
}

func TestBencher_DuplicateIDIsConfigError(t *testing.T) {
	b := newBencher(config.ModeHost, nil)
	b.Bench("fib", func() {})
	b.Bench("fib", func() {})
	if len(b.configErrs) != 1 {
		t.Fatalf("configErrs = %v", b.configErrs)
	}
}

func TestBencher_TestMode(t *testing.T) {
	b := newBencher(config.ModeHost, nil)
	b.test = true

	ran := map[string]bool{}
	b.match = func(id benchid.ID) bool { return id.Name != "skipped" }
	b.Bench("ok", func() { ran["ok"] = true })
	b.Bench("skipped", func() { ran["skipped"] = true })
	b.BenchWithCapture("panics", func(*Capture) { panic("boom") })

	if !ran["ok"] {
		t.Error("matched body did not run in test mode")
	}
	if ran["skipped"] {
		t.Error("filtered body ran in test mode")
	}
	if len(b.testFailures) != 1 || b.testFailures[0].Name != "panics" {
		t.Errorf("testFailures = %v", b.testFailures)
	}
}

func TestBlackBox(t *testing.T) {
	if got := BlackBox(42); got != 42 {
		t.Errorf("BlackBox(42) = %d", got)
	}
	s := []int{1, 2, 3}
	if got := BlackBox(s); len(got) != 3 {
		t.Errorf("BlackBox(slice) = %v", got)
	}
}
