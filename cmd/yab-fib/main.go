// SPDX-License-Identifier: MPL-2.0

// Command yab-fib is an example benchmark binary exercising the harness
// against a few Fibonacci workloads.
package main

import (
	"github.com/slowli/yab"
)

func fibonacci(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	return fibonacci(n-1) + fibonacci(n-2)
}

func benchmarks(b *yab.Bencher) {
	b.Bench("fib_short", func() {
		yab.BlackBox(fibonacci(yab.BlackBox(uint64(10))))
	})
	b.Bench("fib_long", func() {
		yab.BlackBox(fibonacci(yab.BlackBox(uint64(30))))
	})
	for _, n := range []uint64{15, 20, 25} {
		b.Bench(yab.NewID("fib", n), func() {
			yab.BlackBox(fibonacci(yab.BlackBox(n)))
		})
	}

	// Setup and the final assertion stay outside the measured region.
	b.BenchWithCapture("fib_capture", func(c *yab.Capture) {
		yab.BlackBox(fibonacci(yab.BlackBox(uint64(30))))
		var output uint64
		c.Measure(func() {
			output = yab.BlackBox(fibonacci(yab.BlackBox(uint64(10))))
		})
		if output != 89 {
			panic("unexpected fibonacci value")
		}
	})

	b.BenchWithCaptures("fib_pipeline", []string{"short", "long"}, func(c *yab.Capture) {
		c.MeasureAs("short", func() {
			yab.BlackBox(fibonacci(yab.BlackBox(uint64(10))))
		})
		c.MeasureAs("long", func() {
			yab.BlackBox(fibonacci(yab.BlackBox(uint64(20))))
		})
	})
}

func main() {
	yab.Main(benchmarks)
}
