// SPDX-License-Identifier: MPL-2.0

// Package yab is a benchmarking harness powered by cachegrind from the
// Valgrind tool suite. It measures code in CPU-independent counters
// (executed instructions, simulated cache hits, RAM accesses) that are
// deterministic across runs, making the numbers stable enough for CI
// regression detection.
//
// Define a benchmark binary whose main hands over to the harness:
//
//	package main
//
//	import "github.com/slowli/yab"
//
//	func benchmarks(b *yab.Bencher) {
//		b.Bench("fib_short", func() {
//			yab.BlackBox(fibonacci(yab.BlackBox(10)))
//		})
//	}
//
//	func main() {
//		yab.Main(benchmarks)
//	}
//
// The same binary plays up to three roles. Invoked normally it is the
// host: it discovers benchmarks, schedules cachegrind-wrapped children
// and renders the report. Re-invoked with YAB_BENCH set it is a wrapped
// child running exactly one benchmark; with YAB_CAPTURE also set it is a
// leaf restricted to a single named capture. The user function registers
// benchmarks in every mode and executes them only when selected.
package yab
