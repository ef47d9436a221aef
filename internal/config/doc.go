// SPDX-License-Identifier: MPL-2.0

// Package config resolves harness options from defaults, the optional
// yab.cue config file, environment variables and command-line flags, and
// decides at startup which role the current process plays (host,
// cachegrind-wrapped child, or capture leaf).
package config
