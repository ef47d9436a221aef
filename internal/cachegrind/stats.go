// SPDX-License-Identifier: MPL-2.0

package cachegrind

type (
	// DataPoint describes one class of memory operations (instruction
	// reads, data reads or data writes) as counted by cachegrind.
	DataPoint struct {
		// Total is the total number of operations performed.
		Total uint64
		// L1Misses is the number of operations that missed the L1 cache.
		L1Misses uint64
		// LLMisses is the number of operations that missed the last-level
		// cache, i.e. reached RAM.
		LLMisses uint64
	}

	// FullStats are cachegrind counters with cache simulation enabled.
	FullStats struct {
		// Instructions covers instruction reads (Ir / I1mr / ILmr).
		Instructions DataPoint
		// DataReads covers data reads (Dr / D1mr / DLmr).
		DataReads DataPoint
		// DataWrites covers data writes (Dw / D1mw / DLmw).
		DataWrites DataPoint
	}

	// Stats is a cachegrind counter record. The instruction count is
	// always available; cache counters are present only when cachegrind
	// ran with cache simulation enabled (newer versions disable it by
	// default), in which case Full is non-nil.
	//
	// Stats are additive (captures within a benchmark can be summed) and
	// subtractable (for calibration and diffing).
	Stats struct {
		// Instructions is the total number of executed instructions.
		Instructions uint64
		// Full holds the cache-simulation counters, or nil when cache
		// simulation was disabled.
		Full *FullStats
	}

	// AccessSummary is a high-level memory access summary derived from
	// full stats.
	AccessSummary struct {
		// Instructions is the total number of executed instructions.
		Instructions uint64
		// L1Hits counts accesses (instruction and data) served by L1.
		L1Hits uint64
		// LLHits counts accesses served by the last-level cache.
		LLHits uint64
		// RAMAccesses counts accesses that reached RAM.
		RAMAccesses uint64
	}
)

func satSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// L1Hits returns the number of operations served by the L1 cache.
func (p DataPoint) L1Hits() uint64 { return satSub(p.Total, p.L1Misses) }

// LLHits returns the number of operations served by the last-level cache.
func (p DataPoint) LLHits() uint64 { return satSub(p.L1Misses, p.LLMisses) }

// Add returns the field-wise sum of two data points.
func (p DataPoint) Add(other DataPoint) DataPoint {
	return DataPoint{
		Total:    p.Total + other.Total,
		L1Misses: p.L1Misses + other.L1Misses,
		LLMisses: p.LLMisses + other.LLMisses,
	}
}

// Sub returns the field-wise saturating difference of two data points.
func (p DataPoint) Sub(other DataPoint) DataPoint {
	return DataPoint{
		Total:    satSub(p.Total, other.Total),
		L1Misses: satSub(p.L1Misses, other.L1Misses),
		LLMisses: satSub(p.LLMisses, other.LLMisses),
	}
}

// Mul scales every field by n.
func (p DataPoint) Mul(n uint64) DataPoint {
	return DataPoint{Total: p.Total * n, L1Misses: p.L1Misses * n, LLMisses: p.LLMisses * n}
}

// Add returns the field-wise sum of two full stats.
func (s FullStats) Add(other FullStats) FullStats {
	return FullStats{
		Instructions: s.Instructions.Add(other.Instructions),
		DataReads:    s.DataReads.Add(other.DataReads),
		DataWrites:   s.DataWrites.Add(other.DataWrites),
	}
}

// Sub returns the field-wise saturating difference of two full stats.
func (s FullStats) Sub(other FullStats) FullStats {
	return FullStats{
		Instructions: s.Instructions.Sub(other.Instructions),
		DataReads:    s.DataReads.Sub(other.DataReads),
		DataWrites:   s.DataWrites.Sub(other.DataWrites),
	}
}

// IsZero reports whether all operation totals are zero.
func (s FullStats) IsZero() bool {
	return s.Instructions.Total == 0 && s.DataReads.Total == 0 && s.DataWrites.Total == 0
}

// Add sums two stat records. If either side lacks cache counters, the
// result degrades to an instructions-only record; numbers are never
// fabricated for counters that one side did not measure.
func (s Stats) Add(other Stats) Stats {
	if s.Full != nil && other.Full != nil {
		full := s.Full.Add(*other.Full)
		return Stats{Instructions: full.Instructions.Total, Full: &full}
	}
	return Stats{Instructions: s.Instructions + other.Instructions}
}

// Sub subtracts other from s with saturation, degrading to an
// instructions-only record when cache counters are missing on either side.
func (s Stats) Sub(other Stats) Stats {
	if s.Full != nil && other.Full != nil {
		full := s.Full.Sub(*other.Full)
		return Stats{Instructions: full.Instructions.Total, Full: &full}
	}
	return Stats{Instructions: satSub(s.Instructions, other.Instructions)}
}

// IsZero reports whether the record counted no operations at all.
func (s Stats) IsZero() bool {
	if s.Full != nil {
		return s.Full.IsZero()
	}
	return s.Instructions == 0
}

// Summary derives the access summary, or nil when cache simulation was
// disabled for this record.
func (s Stats) Summary() *AccessSummary {
	full := s.Full
	if full == nil {
		return nil
	}
	ramAccesses := full.Instructions.LLMisses + full.DataReads.LLMisses + full.DataWrites.LLMisses
	atLeastLLHits := full.Instructions.L1Misses + full.DataReads.L1Misses + full.DataWrites.L1Misses
	totalAccesses := full.Instructions.Total + full.DataReads.Total + full.DataWrites.Total
	return &AccessSummary{
		Instructions: full.Instructions.Total,
		L1Hits:       satSub(totalAccesses, atLeastLLHits),
		LLHits:       satSub(atLeastLLHits, ramAccesses),
		RAMAccesses:  ramAccesses,
	}
}

// EstimatedCycles estimates CPU cycles using the cachegrind convention:
// one cycle per instruction, 10 per L1 miss, 100 per last-level miss.
func (s *AccessSummary) EstimatedCycles() uint64 {
	l1Misses := s.LLHits + s.RAMAccesses
	return s.Instructions + 10*l1Misses + 100*s.RAMAccesses
}
