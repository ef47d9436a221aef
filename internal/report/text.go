// SPDX-License-Identifier: MPL-2.0

package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/slowli/yab/internal/cachegrind"
)

// Verbosity controls how much the text reporter prints.
type Verbosity int

// Verbosity levels.
const (
	Quiet Verbosity = iota - 1
	Normal
	Verbose
)

// breakdownLimit caps how many functions the breakdown section prints.
const breakdownLimit = 10

// TextReporter renders events as human-readable text.
type TextReporter struct {
	Out       io.Writer
	Verbosity Verbosity
	// Styled enables ANSI styling; disable when not writing to a
	// terminal.
	Styled bool
	// Breakdown prints the per-function stats breakdown of each
	// benchmark.
	Breakdown bool
}

// Report implements Reporter.
func (r *TextReporter) Report(event Event) {
	switch event := event.(type) {
	case RunStarted:
		if r.Verbosity >= Verbose && event.Cachegrind != "" {
			fmt.Fprintf(r.Out, "Using %s\n", event.Cachegrind)
		}
		if r.Verbosity >= Normal {
			fmt.Fprintf(r.Out, "Benchmarking %d benchmark(s)\n", event.Total)
		}
	case UnitStarted:
		if r.Verbosity >= Verbose {
			fmt.Fprintf(r.Out, "%s: started\n", r.style(NameStyle, event.ID.String()))
		}
	case UnitMeasured:
		r.reportMeasured(event)
	case UnitFailed:
		fmt.Fprintf(r.Out, "%s: %s\n", r.style(NameStyle, event.ID.String()),
			r.style(FailureStyle, "FAILED"))
		fmt.Fprintf(r.Out, "  %v\n", event.Err)
	case RunFinished:
		if r.Verbosity < Normal && event.Failed == 0 {
			return
		}
		fmt.Fprintf(r.Out, "Finished: %d ok, %d failed\n", event.OK, event.Failed)
	}
}

func (r *TextReporter) reportMeasured(event UnitMeasured) {
	if r.Verbosity < Normal {
		return
	}
	fmt.Fprintf(r.Out, "%s\n", r.style(NameStyle, event.ID.String()))
	r.printStats("  ", event.Current.Stats, event.Diff)

	for _, capture := range event.Current.Captures {
		fmt.Fprintf(r.Out, "  %s\n", r.style(LabelStyle, "capture "+string(capture.Capture)))
		r.printStats("    ", capture.Stats, nil)
	}
	if r.Breakdown && len(event.Current.Breakdown) > 0 {
		r.printBreakdown(event.Current.Breakdown)
	}
}

// printStats renders one counter record. When a diff is available, each
// line is annotated with the change against the prior record; the
// regression/improvement classification comes from the diff layer.
func (r *TextReporter) printStats(indent string, stats cachegrind.Stats, diff *cachegrind.Diff) {
	byName := map[string]cachegrind.FieldDiff{}
	if diff != nil {
		for _, field := range diff.Fields {
			byName[field.Name] = field
		}
	}

	line := func(name string, value uint64) {
		annotation := ""
		if field, ok := byName[name]; ok {
			annotation = " " + r.annotate(field)
		}
		fmt.Fprintf(r.Out, "%s%s %s%s\n", indent,
			r.style(LabelStyle, name+":"), groupDigits(value), annotation)
	}

	line("instructions", stats.Instructions)
	summary := stats.Summary()
	if summary == nil {
		return
	}
	line("L1 hits", summary.L1Hits)
	line("L2/L3 hits", summary.LLHits)
	line("RAM accesses", summary.RAMAccesses)
	line("estimated cycles", summary.EstimatedCycles())
}

func (r *TextReporter) printBreakdown(breakdown map[cachegrind.Function]cachegrind.Stats) {
	type fnStats struct {
		fn    cachegrind.Function
		stats cachegrind.Stats
	}
	sorted := make([]fnStats, 0, len(breakdown))
	for fn, stats := range breakdown {
		sorted = append(sorted, fnStats{fn: fn, stats: stats})
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].stats.Instructions > sorted[j].stats.Instructions
	})
	if len(sorted) > breakdownLimit {
		sorted = sorted[:breakdownLimit]
	}

	fmt.Fprintf(r.Out, "  %s\n", r.style(LabelStyle, "breakdown"))
	for _, entry := range sorted {
		fmt.Fprintf(r.Out, "    %s %s\n", groupDigits(entry.stats.Instructions), entry.fn)
	}
}

func (r *TextReporter) annotate(field cachegrind.FieldDiff) string {
	var text string
	if field.Relative != nil {
		text = fmt.Sprintf("(%+d, %+.2f%%)", field.Absolute, *field.Relative*100)
	} else {
		text = fmt.Sprintf("(%+d)", field.Absolute)
	}
	switch field.Class {
	case cachegrind.Regression:
		return r.style(RegressionStyle, text)
	case cachegrind.Improvement:
		return r.style(ImprovementStyle, text)
	default:
		return r.style(LabelStyle, text)
	}
}

func (r *TextReporter) style(style lipgloss.Style, text string) string {
	if !r.Styled {
		return text
	}
	return style.Render(text)
}

// groupDigits renders n with thousands separators (1234567 -> 1,234,567).
func groupDigits(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	lead := len(s) % 3
	if lead > 0 {
		out = append(out, s[:lead]...)
	}
	for i := lead; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}
