// SPDX-License-Identifier: MPL-2.0

package report

import "github.com/charmbracelet/lipgloss"

// Color palette - shared hex colors for consistent theming of report
// output. Designed for dark terminal backgrounds with good contrast.
const (
	// ColorPrimary is purple - used for benchmark names.
	ColorPrimary = lipgloss.Color("#7C3AED")

	// ColorMuted is gray - used for counter labels and secondary text.
	ColorMuted = lipgloss.Color("#6B7280")

	// ColorSuccess is green - used for improvements.
	ColorSuccess = lipgloss.Color("#10B981")

	// ColorError is red - used for failures and regressions.
	ColorError = lipgloss.Color("#EF4444")

	// ColorWarning is amber - used for warnings.
	ColorWarning = lipgloss.Color("#F59E0B")
)

// Base styles built from the palette.
var (
	// NameStyle is for benchmark ids.
	NameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// LabelStyle is for counter labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// ImprovementStyle is for counters that improved.
	ImprovementStyle = lipgloss.NewStyle().
				Foreground(ColorSuccess)

	// RegressionStyle is for counters that regressed.
	RegressionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// FailureStyle is for failed benchmarks.
	FailureStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle is for warnings.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)
)
