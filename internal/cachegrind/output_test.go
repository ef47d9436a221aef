// SPDX-License-Identifier: MPL-2.0

package cachegrind

import (
	"errors"
	"strings"
	"testing"
)

const fullOutput = `desc: I1 cache: 32768 B, 64 B, 8-way associative
cmd: ./bench
events: Ir I1mr ILmr Dr D1mr DLmr Dw D1mw DLmw
fl=alloc.go
fn=growSlice
0 99 3 3 30 0 0 24 0 0
fn=makeMap
0 51 5 5 18 1 0 21 0 0
summary: 662469 1899 1843 143129 3638 2694 89043 1330 1210
`

func TestParse_SimpleOutput(t *testing.T) {
	output, err := Parse(strings.NewReader("events: Ir\nsummary: 1234\n"))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if output.Summary.Instructions != 1234 {
		t.Errorf("Instructions = %d, want 1234", output.Summary.Instructions)
	}
	if output.Summary.Full != nil {
		t.Error("cache counters must be absent when cache sim is disabled")
	}
}

func TestParse_FullOutput(t *testing.T) {
	output, err := Parse(strings.NewReader(fullOutput))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	full := output.Summary.Full
	if full == nil {
		t.Fatal("expected full stats")
	}
	if full.Instructions.Total != 662_469 || full.Instructions.L1Misses != 1_899 || full.Instructions.LLMisses != 1_843 {
		t.Errorf("Instructions = %+v", full.Instructions)
	}
	if full.DataReads.Total != 143_129 || full.DataReads.L1Misses != 3_638 || full.DataReads.LLMisses != 2_694 {
		t.Errorf("DataReads = %+v", full.DataReads)
	}
	if full.DataWrites.Total != 89_043 || full.DataWrites.L1Misses != 1_330 || full.DataWrites.LLMisses != 1_210 {
		t.Errorf("DataWrites = %+v", full.DataWrites)
	}

	if len(output.Breakdown) != 2 {
		t.Fatalf("breakdown has %d entries, want 2", len(output.Breakdown))
	}
	grow := output.Breakdown[Function{File: "alloc.go", Name: "growSlice"}]
	if grow.Full == nil || grow.Full.Instructions.Total != 99 || grow.Full.DataReads.Total != 30 {
		t.Errorf("growSlice stats = %+v", grow)
	}
	mk := output.Breakdown[Function{File: "alloc.go", Name: "makeMap"}]
	if mk.Full == nil || mk.Full.DataWrites.Total != 21 {
		t.Errorf("makeMap stats = %+v", mk)
	}
}

func TestParse_ToleratesExtraEvents(t *testing.T) {
	input := "events: Ir Bc Bcm\nsummary: 500 10 2\n"
	output, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if output.Summary.Instructions != 500 {
		t.Errorf("Instructions = %d, want 500", output.Summary.Instructions)
	}
	if output.Summary.Full != nil {
		t.Error("partial event set must not yield full stats")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "no summary", input: "events: Ir\n"},
		{name: "no events", input: "summary: 100\n"},
		{name: "events redefined", input: "events: Ir\nevents: Ir\nsummary: 1\n"},
		{name: "summary redefined", input: "events: Ir\nsummary: 1\nsummary: 2\n"},
		{name: "summary length mismatch", input: "events: Ir Dr\nsummary: 1\n"},
		{name: "non-numeric summary", input: "events: Ir\nsummary: abc\n"},
		{name: "missing Ir", input: "events: Dr\nsummary: 5\n"},
		{name: "record length mismatch", input: "events: Ir\nfn=f\n0 1 2\nsummary: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected parse error")
			}
			if !errors.Is(err, ErrParse) {
				t.Errorf("error %v does not wrap ErrParse", err)
			}
		})
	}
}

func TestOutput_Sub(t *testing.T) {
	current, err := Parse(strings.NewReader(fullOutput))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	diff := current.Sub(current)
	if !diff.Summary.IsZero() {
		t.Errorf("self-diff summary = %+v, want zero", diff.Summary)
	}
	if len(diff.Breakdown) != 0 {
		t.Errorf("self-diff breakdown has %d entries, want 0", len(diff.Breakdown))
	}
}

func TestFunction_String(t *testing.T) {
	if got := (Function{Name: "growSlice"}).String(); got != "growSlice" {
		t.Errorf("String() = %q", got)
	}
	if got := (Function{File: "alloc.go", Name: "growSlice"}).String(); got != "growSlice@alloc.go" {
		t.Errorf("String() = %q", got)
	}
}
