// SPDX-License-Identifier: MPL-2.0

package report

import (
	"encoding/json"
	"io"

	"github.com/slowli/yab/internal/cachegrind"
)

type (
	// JSONReporter emits one JSON object per event line, for tooling.
	JSONReporter struct {
		enc *json.Encoder
	}

	jsonStats struct {
		Instructions uint64                `json:"instructions"`
		Full         *cachegrind.FullStats `json:"cache,omitempty"`
	}

	jsonCapture struct {
		Capture string    `json:"capture"`
		Stats   jsonStats `json:"stats"`
	}

	jsonField struct {
		Name     string   `json:"name"`
		Current  uint64   `json:"current"`
		Prior    uint64   `json:"prior"`
		Absolute int64    `json:"absolute"`
		Relative *float64 `json:"relative,omitempty"`
		Class    string   `json:"class"`
	}

	jsonEvent struct {
		Event      string        `json:"event"`
		Total      int           `json:"total,omitempty"`
		Cachegrind string        `json:"cachegrind,omitempty"`
		ID         string        `json:"id,omitempty"`
		Stats      *jsonStats    `json:"stats,omitempty"`
		Captures   []jsonCapture `json:"captures,omitempty"`
		Prior      *jsonStats    `json:"prior,omitempty"`
		Diff       []jsonField   `json:"diff,omitempty"`
		Error      string        `json:"error,omitempty"`
		OK         int           `json:"ok,omitempty"`
		Failed     int           `json:"failed,omitempty"`
	}
)

// NewJSONReporter creates a reporter writing JSON lines to out.
func NewJSONReporter(out io.Writer) *JSONReporter {
	return &JSONReporter{enc: json.NewEncoder(out)}
}

// Report implements Reporter.
func (r *JSONReporter) Report(event Event) {
	var line jsonEvent
	switch event := event.(type) {
	case RunStarted:
		line = jsonEvent{Event: "run_started", Total: event.Total, Cachegrind: event.Cachegrind}
	case UnitStarted:
		line = jsonEvent{Event: "unit_started", ID: event.ID.String()}
	case UnitMeasured:
		line = jsonEvent{
			Event: "unit_measured",
			ID:    event.ID.String(),
			Stats: statsToJSON(event.Current.Stats),
		}
		for _, capture := range event.Current.Captures {
			line.Captures = append(line.Captures, jsonCapture{
				Capture: string(capture.Capture),
				Stats:   *statsToJSON(capture.Stats),
			})
		}
		if event.Prior != nil {
			line.Prior = statsToJSON(event.Prior.Stats)
		}
		if event.Diff != nil {
			for _, field := range event.Diff.Fields {
				line.Diff = append(line.Diff, jsonField{
					Name:     field.Name,
					Current:  field.Current,
					Prior:    field.Prior,
					Absolute: field.Absolute,
					Relative: field.Relative,
					Class:    field.Class.String(),
				})
			}
		}
	case UnitFailed:
		line = jsonEvent{Event: "unit_failed", ID: event.ID.String(), Error: event.Err.Error()}
	case RunFinished:
		line = jsonEvent{Event: "run_finished", OK: event.OK, Failed: event.Failed}
	}
	// Encoding of plain value types cannot fail.
	_ = r.enc.Encode(line)
}

func statsToJSON(stats cachegrind.Stats) *jsonStats {
	return &jsonStats{Instructions: stats.Instructions, Full: stats.Full}
}
