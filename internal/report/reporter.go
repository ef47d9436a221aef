// SPDX-License-Identifier: MPL-2.0

package report

type (
	// Reporter consumes the event stream. Implementations are driven from
	// a single goroutine and need not be safe for concurrent use.
	Reporter interface {
		Report(event Event)
	}

	// Multi fans events out to several reporters in order.
	Multi []Reporter
)

// Report implements Reporter.
func (m Multi) Report(event Event) {
	for _, reporter := range m {
		reporter.Report(event)
	}
}
