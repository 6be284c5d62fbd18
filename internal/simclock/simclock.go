// Package simclock wraps the shared evtm.EventManager that every task in
// the simulation schedules continuations against.  Nothing in this package
// introduces real-time waits; every delay is virtual and charged against the
// manager's logical clock.
package simclock

import (
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// New creates the single EventManager shared by every task in a run. All
// head nodes, tail clients and the tail server schedule continuations
// against the same manager so that virtual time is total across the run.
func New() *evtm.EventManager {
	return evtm.New()
}

// Now returns the manager's current virtual time in seconds.
func Now(evtMgr *evtm.EventManager) float64 {
	return evtMgr.CurrentSeconds()
}

// NowTime returns the manager's current virtual time as a vrtime.Time,
// carrying the tiebreak priority used to order same-instant events.
func NowTime(evtMgr *evtm.EventManager) vrtime.Time {
	return evtMgr.CurrentTime()
}

// Delay schedules handler to run after dt seconds of virtual time, passing
// context and data through unchanged. It is the only primitive suspension
// point tasks use to "sleep": the call returns immediately, and the
// continuation resumes work when the manager's run loop reaches dt.
func Delay(evtMgr *evtm.EventManager, context, data any, dt float64, handler evtm.EventHandlerFunction) {
	evtMgr.Schedule(context, data, handler, vrtime.SecondsToTime(dt))
}

// Immediate schedules handler to run at the current virtual time, after
// every already-queued same-time event (FIFO tiebreak). Used to hand a
// continuation back to the scheduler without advancing the clock, e.g. a
// node picking its next inbox event.
func Immediate(evtMgr *evtm.EventManager, context, data any, handler evtm.EventHandlerFunction) {
	evtMgr.Schedule(context, data, handler, vrtime.SecondsToTime(0.0))
}

// RunToQuiescence drives evtMgr's run loop until isIdle reports no task has
// outstanding work. isIdle is consulted by the caller-supplied event loop
// (see head.Simulation and tail.Simulation); this helper exists so both
// drivers share one "are we done" idiom instead of re-deriving it.
func RunToQuiescence(evtMgr *evtm.EventManager, isIdle func() bool) {
	evtMgr.Run(func(_ *evtm.EventManager) bool {
		return isIdle()
	})
}
