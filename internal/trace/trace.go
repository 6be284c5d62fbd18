// Package trace implements the append-only trace recorder: a stream of
// (thread_label, virtual_time, event) triples consumed by offline analysis.
// It is adapted from mrnes's trace.go TraceManager, keeping the InUse-gated
// recording and dual yaml/json WriteToFile, but dropping the NameByID/execID
// indirection that served mrnes's multi-component-pattern tracing — this
// model only ever needs one flat, time-ordered stream per run.
package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// Event is one recorded occurrence: a thread label, the virtual time it
// happened at, a kind tag (e.g. "MPSendLeading", "StoreInMailbox",
// "TPInvalidTransition", "WakeUp"), and whatever payload the emitting
// component thought worth keeping.
type Event struct {
	Thread string      `json:"thread" yaml:"thread"`
	Time   float64     `json:"time" yaml:"time"`
	Seq    int         `json:"seq" yaml:"seq"`
	Kind   string      `json:"kind" yaml:"kind"`
	Data   interface{} `json:"data,omitempty" yaml:"data,omitempty"`
}

// Recorder is the append-only trace stream for one simulation run. Like
// mrnes's TraceManager, an inactive Recorder absorbs every Add call for
// free: embedding trace calls everywhere a protocol event fires does not
// cost anything when the trace is not in use.
type Recorder struct {
	InUse   bool   `json:"inuse" yaml:"inuse"`
	ExpName string `json:"expname" yaml:"expname"`
	Events  []Event `json:"events" yaml:"events"`
	seq     int
}

// New creates a Recorder for the named experiment. active controls whether
// Add actually stores anything; when false the recorder is a no-op sink.
func New(expName string, active bool) *Recorder {
	return &Recorder{InUse: active, ExpName: expName}
}

// Active reports whether this recorder stores events.
func (r *Recorder) Active() bool {
	return r.InUse
}

// Add appends one event to the stream. Two events recorded at the same
// virtual time are ordered by Seq, the monotone insertion counter that gives
// the deterministic same-time tiebreak requires on top of whatever tiebreak
// the scheduler itself applies to task wakeups.
func (r *Recorder) Add(thread string, t float64, kind string, data any) {
	if !r.InUse {
		return
	}
	r.seq++
	r.Events = append(r.Events, Event{Thread: thread, Time: t, Seq: r.seq, Kind: kind, Data: data})
}

// WriteToFile serializes the trace to filename, choosing yaml or json by
// file extension exactly as mrnes's TraceManager.WriteToFile does.
func (r *Recorder) WriteToFile(filename string) error {
	if !r.InUse {
		return nil
	}
	var bytes []byte
	var err error

	switch path.Ext(filename) {
	case ".yaml", ".yml", ".YAML":
		bytes, err = yaml.Marshal(*r)
	case ".json", ".JSON":
		bytes, err = json.MarshalIndent(*r, "", "\t")
	default:
		return fmt.Errorf("trace: unrecognized extension on %q", filename)
	}
	if err != nil {
		return fmt.Errorf("trace: marshal: %w", err)
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("trace: create %q: %w", filename, err)
	}
	defer f.Close()
	if _, err := f.Write(bytes); err != nil {
		return fmt.Errorf("trace: write %q: %w", filename, err)
	}
	return nil
}
