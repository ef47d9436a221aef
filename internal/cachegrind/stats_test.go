// SPDX-License-Identifier: MPL-2.0

package cachegrind

import "testing"

func fullStats() *FullStats {
	return &FullStats{
		Instructions: DataPoint{Total: 662_469, L1Misses: 1_899, LLMisses: 1_843},
		DataReads:    DataPoint{Total: 143_129, L1Misses: 3_638, LLMisses: 2_694},
		DataWrites:   DataPoint{Total: 89_043, L1Misses: 1_330, LLMisses: 1_210},
	}
}

func TestDataPoint_Hits(t *testing.T) {
	p := DataPoint{Total: 100, L1Misses: 30, LLMisses: 10}
	if got := p.L1Hits(); got != 70 {
		t.Errorf("L1Hits() = %d, want 70", got)
	}
	if got := p.LLHits(); got != 20 {
		t.Errorf("LLHits() = %d, want 20", got)
	}
}

func TestDataPoint_SubSaturates(t *testing.T) {
	a := DataPoint{Total: 5, L1Misses: 1}
	b := DataPoint{Total: 10, L1Misses: 0}
	diff := a.Sub(b)
	if diff.Total != 0 {
		t.Errorf("Total = %d, want 0 (saturated)", diff.Total)
	}
	if diff.L1Misses != 1 {
		t.Errorf("L1Misses = %d, want 1", diff.L1Misses)
	}
}

func TestStats_AddDegradesToSimple(t *testing.T) {
	full := Stats{Instructions: 662_469, Full: fullStats()}
	simple := Stats{Instructions: 1_000}

	sum := full.Add(simple)
	if sum.Full != nil {
		t.Error("adding simple to full stats must not fabricate cache counters")
	}
	if sum.Instructions != 663_469 {
		t.Errorf("Instructions = %d, want 663469", sum.Instructions)
	}

	sum = full.Add(full)
	if sum.Full == nil {
		t.Fatal("adding two full stats must stay full")
	}
	if sum.Full.DataReads.Total != 2*143_129 {
		t.Errorf("DataReads.Total = %d", sum.Full.DataReads.Total)
	}
	if sum.Instructions != 2*662_469 {
		t.Errorf("Instructions = %d", sum.Instructions)
	}
}

func TestStats_SubSelfIsZero(t *testing.T) {
	full := Stats{Instructions: 662_469, Full: fullStats()}
	if diff := full.Sub(full); !diff.IsZero() {
		t.Errorf("full - full = %+v, want zero", diff)
	}
	simple := Stats{Instructions: 123}
	if diff := simple.Sub(simple); !diff.IsZero() {
		t.Errorf("simple - simple = %+v, want zero", diff)
	}
}

func TestStats_Summary(t *testing.T) {
	stats := Stats{Instructions: 662_469, Full: fullStats()}
	summary := stats.Summary()
	if summary == nil {
		t.Fatal("expected summary for full stats")
	}

	wantRAM := uint64(1_843 + 2_694 + 1_210)
	if summary.RAMAccesses != wantRAM {
		t.Errorf("RAMAccesses = %d, want %d", summary.RAMAccesses, wantRAM)
	}
	atLeastLL := uint64(1_899 + 3_638 + 1_330)
	if want := atLeastLL - wantRAM; summary.LLHits != want {
		t.Errorf("LLHits = %d, want %d", summary.LLHits, want)
	}
	total := uint64(662_469 + 143_129 + 89_043)
	if want := total - atLeastLL; summary.L1Hits != want {
		t.Errorf("L1Hits = %d, want %d", summary.L1Hits, want)
	}

	l1Misses := summary.LLHits + summary.RAMAccesses
	wantCycles := summary.Instructions + 10*l1Misses + 100*summary.RAMAccesses
	if got := summary.EstimatedCycles(); got != wantCycles {
		t.Errorf("EstimatedCycles() = %d, want %d", got, wantCycles)
	}

	if (Stats{Instructions: 100}).Summary() != nil {
		t.Error("simple stats must not produce a summary")
	}
}

func TestCompare_SelfIsNoChange(t *testing.T) {
	stats := Stats{Instructions: 662_469, Full: fullStats()}
	diff := Compare(stats, stats, DefaultThreshold)
	if len(diff.Fields) == 0 {
		t.Fatal("expected fields in diff")
	}
	for _, field := range diff.Fields {
		if field.Absolute != 0 {
			t.Errorf("%s: Absolute = %d, want 0", field.Name, field.Absolute)
		}
		if field.Relative == nil || *field.Relative != 0 {
			t.Errorf("%s: Relative = %v, want 0", field.Name, field.Relative)
		}
		if field.Class != NoChange {
			t.Errorf("%s: Class = %v, want no change", field.Name, field.Class)
		}
	}
}

func TestCompare_Classification(t *testing.T) {
	tests := []struct {
		name     string
		current  uint64
		prior    uint64
		expected Classification
	}{
		{name: "regression", current: 110, prior: 100, expected: Regression},
		{name: "improvement", current: 90, prior: 100, expected: Improvement},
		{name: "within threshold", current: 101, prior: 100, expected: NoChange},
		{name: "new counter", current: 10, prior: 0, expected: Regression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := Compare(Stats{Instructions: tt.current}, Stats{Instructions: tt.prior}, DefaultThreshold)
			if len(diff.Fields) != 1 {
				t.Fatalf("fields = %d, want 1 (cache counters missing)", len(diff.Fields))
			}
			if diff.Fields[0].Class != tt.expected {
				t.Errorf("Class = %v, want %v", diff.Fields[0].Class, tt.expected)
			}
		})
	}
}

func TestCompare_MissingCountersPropagate(t *testing.T) {
	full := Stats{Instructions: 100, Full: fullStats()}
	simple := Stats{Instructions: 100}

	diff := Compare(full, simple, DefaultThreshold)
	if len(diff.Fields) != 1 {
		t.Errorf("diffing full against simple must only compare instructions, got %d fields", len(diff.Fields))
	}
}
