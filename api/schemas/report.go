// File: api/schemas/report.go
package schemas

import (
	"bytes"
	"sort"
)

// ExtractedValues is the mapping from capture id to extracted string.
// Insertion order follows step execution order; a later capture reusing an
// id overwrites the value but keeps the original position. The JSON form is
// an object whose keys appear in capture order.
type ExtractedValues struct {
	keys   []string
	values map[string]string
}

// NewExtractedValues returns an empty, ready-to-use mapping.
func NewExtractedValues() *ExtractedValues {
	return &ExtractedValues{values: make(map[string]string)}
}

// Set stores value under id, overwriting any earlier capture (last-write-wins).
func (ev *ExtractedValues) Set(id, value string) {
	if ev.values == nil {
		ev.values = make(map[string]string)
	}
	if _, exists := ev.values[id]; !exists {
		ev.keys = append(ev.keys, id)
	}
	ev.values[id] = value
}

// Get returns the value captured under id.
func (ev *ExtractedValues) Get(id string) (string, bool) {
	if ev == nil || ev.values == nil {
		return "", false
	}
	v, ok := ev.values[id]
	return v, ok
}

// Len reports the number of distinct capture ids.
func (ev *ExtractedValues) Len() int {
	if ev == nil {
		return 0
	}
	return len(ev.keys)
}

// Keys returns the capture ids in insertion order.
func (ev *ExtractedValues) Keys() []string {
	if ev == nil {
		return nil
	}
	out := make([]string, len(ev.keys))
	copy(out, ev.keys)
	return out
}

// MarshalJSON renders the mapping as a JSON object in capture order. An
// empty (or nil) mapping renders as {}, never null, so consumers doing
// strict structural comparison always see the extracted key.
func (ev *ExtractedValues) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if ev != nil {
		for i, k := range ev.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := json.Marshal(ev.values[k])
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			buf.Write(vb)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON rebuilds the mapping from a JSON object. Key order in the
// source document is not recoverable from a map decode, so keys are sorted
// for a stable round trip.
func (ev *ExtractedValues) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ev.keys = keys
	ev.values = m
	return nil
}

// StepError pins an execution failure to the step that caused it.
type StepError struct {
	StepIndex int    `json:"step_index"`
	Message   string `json:"message"`
}

// ExecutionReport is the final structured outcome of one plan run. It is
// built incrementally while steps execute and finalized exactly once after
// the step loop ends. Field order is significant for consumers doing strict
// structural comparison: goal, extracted, then error, with error omitted
// entirely when the run completed.
type ExecutionReport struct {
	Goal      string           `json:"goal"`
	Extracted *ExtractedValues `json:"extracted"`
	Error     *StepError       `json:"error,omitempty"`
}

// Failed reports whether execution stopped early.
func (r *ExecutionReport) Failed() bool { return r.Error != nil }

// StepsExecuted returns how many steps completed successfully given the
// total step count of the plan.
func (r *ExecutionReport) StepsExecuted(total int) int {
	if r.Error != nil {
		return r.Error.StepIndex
	}
	return total
}
