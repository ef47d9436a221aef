// SPDX-License-Identifier: MPL-2.0

package sched

import (
	"sync"

	"github.com/slowli/yab/internal/report"
)

// pendingTable buffers out-of-order results so that events reach the
// reporter in registration order. Without it, report order would be
// emergent from thread scheduling and diff tables would shuffle between
// runs.
type pendingTable struct {
	mu       sync.Mutex
	reporter report.Reporter
	next     int
	buffered map[int][]report.Event
}

func newPendingTable(reporter report.Reporter) *pendingTable {
	return &pendingTable{
		reporter: reporter,
		buffered: make(map[int][]report.Event),
	}
}

// deliver records the events of the entry at index idx and flushes every
// consecutive completed entry starting from the next-to-report position.
func (p *pendingTable) deliver(idx int, events []report.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buffered[idx] = events
	for {
		pending, ok := p.buffered[p.next]
		if !ok {
			return
		}
		delete(p.buffered, p.next)
		for _, event := range pending {
			p.reporter.Report(event)
		}
		p.next++
	}
}

// skip marks the entry at idx as producing no events (canceled before
// completion), unblocking delivery of later entries.
func (p *pendingTable) skip(idx int) {
	p.deliver(idx, nil)
}
