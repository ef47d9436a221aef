// SPDX-License-Identifier: MPL-2.0

package cachegrind

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrParse is the sentinel error wrapped by ParseError.
var ErrParse = errors.New("malformed cachegrind output")

type (
	// Function identifies a function in the per-function stats breakdown.
	// The filename part may be absent for symbols without debug info.
	Function struct {
		File string
		Name string
	}

	// Output is a parsed cachegrind output file: summary totals plus the
	// optional per-function breakdown.
	Output struct {
		Summary   Stats
		Breakdown map[Function]Stats
	}

	// ParseError is returned when a cachegrind output file does not follow
	// the expected line format.
	ParseError struct {
		Path    string
		Message string
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed parsing cachegrind output: %s", e.Message)
	}
	return fmt.Sprintf("failed parsing cachegrind output at %s: %s", e.Path, e.Message)
}

// Unwrap returns ErrParse so callers can use errors.Is for detection.
func (e *ParseError) Unwrap() error { return ErrParse }

// String renders the function as "name" or "name@file".
func (f Function) String() string {
	if f.File == "" {
		return f.Name
	}
	return f.Name + "@" + f.File
}

// fullEvents is the cache-simulation event schema in cachegrind's order.
var fullEvents = [...]string{"Ir", "I1mr", "ILmr", "Dr", "D1mr", "DLmr", "Dw", "D1mw", "DLmw"}

// statsFromEvents assembles a Stats record from an event-name → value map.
// All nine cache-simulation events yield a full record; otherwise only the
// instruction count is read and cache counters stay absent. Unknown extra
// events are ignored.
func statsFromEvents(byEvent map[string]uint64) (Stats, error) {
	ir, ok := byEvent["Ir"]
	if !ok {
		return Stats{}, errors.New("missing summary for event `Ir`")
	}
	for _, event := range fullEvents {
		if _, ok := byEvent[event]; !ok {
			// Cache simulation was (partially) disabled; report
			// instructions only rather than fabricating counters.
			return Stats{Instructions: ir}, nil
		}
	}
	full := &FullStats{
		Instructions: DataPoint{Total: byEvent["Ir"], L1Misses: byEvent["I1mr"], LLMisses: byEvent["ILmr"]},
		DataReads:    DataPoint{Total: byEvent["Dr"], L1Misses: byEvent["D1mr"], LLMisses: byEvent["DLmr"]},
		DataWrites:   DataPoint{Total: byEvent["Dw"], L1Misses: byEvent["D1mw"], LLMisses: byEvent["DLmw"]},
	}
	return Stats{Instructions: ir, Full: full}, nil
}

// ParseFile reads and parses a cachegrind output file.
func ParseFile(path string) (*Output, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed reading cachegrind output: %w", err)
	}
	defer file.Close()

	output, err := Parse(file)
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			parseErr.Path = path
		}
		return nil, err
	}
	return output, nil
}

// Parse consumes cachegrind's line-oriented output format. The `events:`
// line declares the ordered column schema; the `summary:` line holds the
// totals matched positionally against it. Rows between `fn=` markers are
// accumulated into the per-function breakdown.
func Parse(r io.Reader) (*Output, error) {
	var (
		events      []string
		summary     map[string]uint64
		file        string
		function    string
		breakdown   = make(map[Function]Stats)
		haveSummary bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "events:"):
			if events != nil {
				return nil, &ParseError{Message: "events are redefined"}
			}
			events = strings.Fields(strings.TrimPrefix(line, "events:"))

		case strings.HasPrefix(line, "summary:"):
			if haveSummary {
				return nil, &ParseError{Message: "summary is redefined"}
			}
			if events == nil {
				return nil, &ParseError{Message: "summary before events"}
			}
			values := strings.Fields(strings.TrimPrefix(line, "summary:"))
			if len(values) != len(events) {
				return nil, &ParseError{Message: "mismatch between events and summary"}
			}
			var err error
			if summary, err = zipEvents(events, values); err != nil {
				return nil, err
			}
			haveSummary = true

		case strings.HasPrefix(line, "fl="):
			name := strings.TrimSpace(strings.TrimPrefix(line, "fl="))
			if name == "???" {
				name = ""
			}
			file = name

		case strings.HasPrefix(line, "fn="):
			function = strings.TrimPrefix(line, "fn=")

		case events != nil && function != "" && lineIsRecord(line):
			// Record rows lead with a line-number column before the
			// per-event counters.
			values := strings.Fields(line)
			if len(values) != len(events)+1 {
				return nil, &ParseError{Message: "mismatch between events and stats"}
			}
			byEvent, err := zipEvents(events, values[1:])
			if err != nil {
				return nil, err
			}
			stats, err := statsFromEvents(byEvent)
			if err != nil {
				return nil, &ParseError{Message: err.Error()}
			}
			fn := Function{File: file, Name: function}
			if existing, ok := breakdown[fn]; ok {
				stats = existing.Add(stats)
			}
			breakdown[fn] = stats
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading cachegrind output: %w", err)
	}

	if events == nil {
		return nil, &ParseError{Message: "no events"}
	}
	if !haveSummary {
		return nil, &ParseError{Message: "no summary"}
	}
	stats, err := statsFromEvents(summary)
	if err != nil {
		return nil, &ParseError{Message: err.Error()}
	}
	return &Output{Summary: stats, Breakdown: breakdown}, nil
}

func lineIsRecord(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && trimmed[0] >= '0' && trimmed[0] <= '9'
}

func zipEvents(events, values []string) (map[string]uint64, error) {
	byEvent := make(map[string]uint64, len(events))
	for i, event := range events {
		value, err := strconv.ParseUint(values[i], 10, 64)
		if err != nil {
			return nil, &ParseError{Message: fmt.Sprintf("%s stat is not an u64: %s", event, values[i])}
		}
		byEvent[event] = value
	}
	return byEvent, nil
}

// Sub subtracts a prior output from the current one, dropping breakdown
// entries that cancel out to zero.
func (o *Output) Sub(prior *Output) *Output {
	diff := &Output{
		Summary:   o.Summary.Sub(prior.Summary),
		Breakdown: make(map[Function]Stats),
	}
	for fn, stats := range o.Breakdown {
		if priorStats, ok := prior.Breakdown[fn]; ok {
			stats = stats.Sub(priorStats)
		}
		if !stats.IsZero() {
			diff.Breakdown[fn] = stats
		}
	}
	return diff
}
