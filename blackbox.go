// SPDX-License-Identifier: MPL-2.0

package yab

// BlackBox is an opaque identity function. Routing benchmark inputs and
// outputs through it keeps the optimizer from constant-folding or
// dead-code-eliminating the measured computation.
//
//go:noinline
func BlackBox[T any](v T) T {
	return v
}
