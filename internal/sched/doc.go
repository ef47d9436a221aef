// SPDX-License-Identifier: MPL-2.0

// Package sched runs matched benchmarks across a bounded pool of workers.
// Workers are process-driving: each spawns one cachegrind child at a time
// and blocks on it, so the actual CPU cost is in the children. Results
// are delivered to the reporter strictly in registration order regardless
// of completion order.
package sched
