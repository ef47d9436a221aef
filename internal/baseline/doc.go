// SPDX-License-Identifier: MPL-2.0

// Package baseline persists cachegrind output files for later comparison.
// The on-disk layout is one directory per (baseline name, benchmark id)
// pair; promotion into it is atomic so an interrupted run never leaves a
// half-written record.
package baseline
