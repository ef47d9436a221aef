// SPDX-License-Identifier: MPL-2.0

// Package cachegrind drives `valgrind --tool=cachegrind` children of the
// current benchmark binary and models the counters they produce: the
// typed stats record, the output-file parser, the invoker, and the
// diff/classification layer used for regression detection.
package cachegrind
