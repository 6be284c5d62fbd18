// Package delaycomp implements the DelayedComp abstraction: a pure result
// paired with the virtual-time cost of computing it. Every modelled CPU
// operation in the mock crypto and tx models (signing, aggregation,
// verification, tx validation) is built as one of these; the tail server's
// client-lookup cost is a plain constant charged with simclock.Delay.
package delaycomp

import (
	"github.com/iti/evt/evtm"

	"github.com/rmourey26/hydra-sim/internal/simclock"
)

// T bundles a value with the virtual-time cost of producing it, in seconds.
type T[V any] struct {
	Value V
	Cost  float64
}

// Of builds a DelayedComp around an already-known value and cost. Use this
// when the cost is a fixed constant (see the costs in internal/mockcrypto
// and txmodel), rather than computed from the value itself.
func Of[V any](value V, cost float64) T[V] {
	return T[V]{Value: value, Cost: cost}
}

// Run schedules an empty event dc.Cost seconds ahead, so the run's clock
// reaches at least that point, and returns the value at once. It does not
// delay the caller: code after Run executes at the current virtual time.
// Callers that need to continue after the cost is charged schedule their
// continuation with simclock.Delay(evtMgr, ctx, data, dc.Cost, handler) or
// Chain instead.
func Run[V any](evtMgr *evtm.EventManager, dc T[V]) V {
	before := simclock.Now(evtMgr)
	simclock.Delay(evtMgr, nil, nil, dc.Cost, func(_ *evtm.EventManager, _, _ any) any { return nil })
	_ = before
	return dc.Value
}

// Chain schedules handler to fire after dc's cost has elapsed, passing dc's
// value through as data. This is the form state machines actually use:
// "do this fixed-cost bit of work, then resume with the result."
func Chain[V any](evtMgr *evtm.EventManager, context any, dc T[V], handler func(evtMgr *evtm.EventManager, context any, value V) any) {
	simclock.Delay(evtMgr, context, dc.Value, dc.Cost, func(em *evtm.EventManager, ctx, data any) any {
		return handler(em, ctx, data.(V))
	})
}
