// SPDX-License-Identifier: MPL-2.0

package cachegrind

// DefaultThreshold is the relative change below which a counter is
// considered unchanged.
const DefaultThreshold = 0.02

type (
	// Classification labels the direction of a counter change.
	Classification int

	// FieldDiff is the change of a single counter between two records.
	FieldDiff struct {
		// Name is the counter name (e.g. "instructions", "d1 read misses").
		Name string
		// Current and Prior are the compared values.
		Current uint64
		Prior   uint64
		// Absolute is Current - Prior.
		Absolute int64
		// Relative is Absolute / Prior, or nil when Prior is zero.
		Relative *float64
		// Class is the threshold classification of this change.
		Class Classification
	}

	// Diff compares a current counter record against a prior one. Counters
	// missing on either side (cache simulation disabled) are omitted
	// rather than fabricated.
	Diff struct {
		Fields []FieldDiff
	}
)

// Classification values.
const (
	NoChange Classification = iota
	Regression
	Improvement
)

// String returns the lower-case label of the classification.
func (c Classification) String() string {
	switch c {
	case Regression:
		return "regression"
	case Improvement:
		return "improvement"
	default:
		return "no change"
	}
}

// Compare diffs current against prior, classifying each counter with the
// given relative threshold. Threshold logic lives here; reporters only
// render the classification.
func Compare(current, prior Stats, threshold float64) Diff {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	var diff Diff
	diff.push("instructions", current.Instructions, prior.Instructions, threshold)
	if current.Full == nil || prior.Full == nil {
		return diff
	}

	cur, prev := current.Full, prior.Full
	diff.push("L1 hits", currentL1Hits(cur), currentL1Hits(prev), threshold)
	diff.push("L2/L3 hits", currentLLHits(cur), currentLLHits(prev), threshold)
	diff.push("RAM accesses", ramAccesses(cur), ramAccesses(prev), threshold)
	diff.push("data reads", cur.DataReads.Total, prev.DataReads.Total, threshold)
	diff.push("data writes", cur.DataWrites.Total, prev.DataWrites.Total, threshold)
	diff.push("estimated cycles",
		Stats{Instructions: cur.Instructions.Total, Full: cur}.Summary().EstimatedCycles(),
		Stats{Instructions: prev.Instructions.Total, Full: prev}.Summary().EstimatedCycles(),
		threshold)
	return diff
}

func currentL1Hits(s *FullStats) uint64 {
	return s.Instructions.L1Hits() + s.DataReads.L1Hits() + s.DataWrites.L1Hits()
}

func currentLLHits(s *FullStats) uint64 {
	return s.Instructions.LLHits() + s.DataReads.LLHits() + s.DataWrites.LLHits()
}

func ramAccesses(s *FullStats) uint64 {
	return s.Instructions.LLMisses + s.DataReads.LLMisses + s.DataWrites.LLMisses
}

func (d *Diff) push(name string, current, prior uint64, threshold float64) {
	field := FieldDiff{
		Name:     name,
		Current:  current,
		Prior:    prior,
		Absolute: int64(current) - int64(prior),
	}
	if prior != 0 {
		rel := float64(field.Absolute) / float64(prior)
		field.Relative = &rel
		switch {
		case rel > threshold:
			field.Class = Regression
		case rel < -threshold:
			field.Class = Improvement
		}
	} else if current != 0 {
		field.Class = Regression
	}
	d.Fields = append(d.Fields, field)
}

// HasRegression reports whether any counter regressed beyond the threshold.
func (d Diff) HasRegression() bool {
	for _, field := range d.Fields {
		if field.Class == Regression {
			return true
		}
	}
	return false
}

// InstructionsRegression returns the relative instruction-count change if
// it classified as a regression, or nil.
func (d Diff) InstructionsRegression() *float64 {
	for _, field := range d.Fields {
		if field.Name == "instructions" && field.Class == Regression {
			return field.Relative
		}
	}
	return nil
}
