// Package mplex implements the Channel/Multiplexer abstraction: a labelled,
// bandwidth- and latency-modelled point-to-point link between two simulation
// tasks. It generalizes the egress/ingress interface handshake in net.go
// (enterEgressIntrfc -> exitEgressIntrfc -> (latency) -> enterIngressIntrfc
// -> exitIngressIntrfc) from many-device network routing down to a single
// logical hop between two endpoints, which is all either protocol core
// needs: real topology and multi-hop routing are out of scope.
package mplex

import (
	"github.com/iti/evt/evtm"

	"github.com/rmourey26/hydra-sim/internal/simclock"
	"github.com/rmourey26/hydra-sim/internal/trace"
)

// Trace event kinds emitted by a Multiplexer. Package analysis matches on
// these exactly as named here.
const (
	KindMPSendLeading  = "MPSendLeading"
	KindMPRecvLeading  = "MPRecvLeading"
	KindMPRecvTrailing = "MPRecvTrailing"
)

// RecvHandler is called once a message has fully arrived (after latency
// and the receiver's per-byte read charge) and become visible to the
// owning task. It receives the message and its byte size.
type RecvHandler func(evtMgr *evtm.EventManager, msg any, size int)

type pendingSend struct {
	msg  any
	size int
}

// Multiplexer is one labelled endpoint of a point-to-point link. Connecting
// two Multiplexers with Connect installs a link characterised by a one-way
// latency; sending through either endpoint charges that endpoint's write
// capacity and the peer's read capacity.
type Multiplexer struct {
	Label      string
	rec        *trace.Recorder
	writeCap   float64 // bytes/second
	readCap    float64 // bytes/second
	outCapBytes int    // max in-flight outbound bytes
	inCapBytes  int    // stored only; no inbound byte limit is enforced
	outInUse   int
	outWaiting []pendingSend

	peer    *Multiplexer
	latency float64

	inbox   []any // messages visible to the owner, oldest first
	onRecv  RecvHandler

	// byte counters, used to check the "no bytes lost" conservation invariant
	// from outside the package.
	BytesSent     int64
	BytesReceived int64
}

// New creates a Multiplexer with the given label, write/read byte capacities
// (bytes/second) and outbound/inbound buffer sizes in bytes. Only the
// outbound size gates sends; the inbound size is kept but not enforced.
func New(rec *trace.Recorder, label string, writeCap, readCap float64, outCapBytes, inCapBytes int) *Multiplexer {
	return &Multiplexer{
		Label:       label,
		rec:         rec,
		writeCap:    writeCap,
		readCap:     readCap,
		outCapBytes: outCapBytes,
		inCapBytes:  inCapBytes,
	}
}

// Connect installs a bidirectional link between a and b with the given
// one-way latency applied in both directions.
func Connect(a, b *Multiplexer, latency float64) {
	a.peer = b
	b.peer = a
	a.latency = latency
	b.latency = latency
}

// SetRecvHandler registers the continuation invoked whenever a new message
// becomes visible in this Multiplexer's inbox, whether by ordinary arrival
// or by Reenqueue. There is exactly one reader per Multiplexer in this
// model (one task owns each endpoint).
func (m *Multiplexer) SetRecvHandler(h RecvHandler) {
	m.onRecv = h
	// If messages arrived before a handler was attached, flush them in
	// order now so nothing is silently dropped.
	for len(m.inbox) > 0 && m.onRecv != nil {
		msg := m.inbox[0]
		m.inbox = m.inbox[1:]
		m.onRecv(nil, msg, 0)
	}
}

// Send transmits msg of the given byte size to the peer endpoint. If the
// outbound buffer is saturated the send is queued and started as soon as a
// slot frees; otherwise transmission begins immediately, charging this
// endpoint's write capacity and, after latency, the peer's read capacity
// before the message becomes visible to the peer's recv handler.
func (m *Multiplexer) Send(evtMgr *evtm.EventManager, msg any, size int) {
	pend := pendingSend{msg: msg, size: size}
	if m.outInUse+pend.size > m.outCapBytes && m.outInUse > 0 {
		m.outWaiting = append(m.outWaiting, pend)
		return
	}
	m.startSend(evtMgr, pend)
}

func (m *Multiplexer) startSend(evtMgr *evtm.EventManager, pend pendingSend) {
	m.outInUse += pend.size
	m.BytesSent += int64(pend.size)
	writeDelay := float64(pend.size) / m.writeCap

	m.trace(evtMgr, KindMPSendLeading, pend.size)

	// free this endpoint's outbound capacity once the bytes have cleared
	// the write capacity, and let the next queued send (if any) begin.
	simclock.Delay(evtMgr, m, pend.size, writeDelay, func(em *evtm.EventManager, ctx, data any) any {
		mm := ctx.(*Multiplexer)
		mm.outInUse -= data.(int)
		if len(mm.outWaiting) > 0 {
			next := mm.outWaiting[0]
			mm.outWaiting = mm.outWaiting[1:]
			mm.startSend(em, next)
		}
		return nil
	})

	if m.peer != nil {
		peer := m.peer
		simclock.Delay(evtMgr, peer, pend, writeDelay+m.latency, func(em *evtm.EventManager, ctx, data any) any {
			p := ctx.(*Multiplexer)
			pm := data.(pendingSend)
			p.arrive(em, pm)
			return nil
		})
	}
}

// arrive charges the receiving endpoint's read capacity before the message
// becomes visible, then delivers it.
func (m *Multiplexer) arrive(evtMgr *evtm.EventManager, pend pendingSend) {
	m.trace(evtMgr, KindMPRecvLeading, pend.size)
	readDelay := float64(pend.size) / m.readCap
	simclock.Delay(evtMgr, m, pend, readDelay, func(em *evtm.EventManager, ctx, data any) any {
		mm := ctx.(*Multiplexer)
		pm := data.(pendingSend)
		mm.deliver(em, pm.msg, pm.size)
		return nil
	})
}

func (m *Multiplexer) deliver(evtMgr *evtm.EventManager, msg any, size int) {
	m.BytesReceived += int64(size)
	m.traceMsg(evtMgr, KindMPRecvTrailing, msg)
	if m.onRecv != nil {
		m.onRecv(evtMgr, msg, size)
		return
	}
	m.inbox = append(m.inbox, msg)
}

// Reenqueue places msg back at the front of this endpoint's visibility queue
// without charging any bandwidth — used by the tail server to retry a
// parked delivery. If a recv handler is already attached
// the message is delivered to it immediately at the current virtual time;
// otherwise it is prepended to the inbox.
func (m *Multiplexer) Reenqueue(evtMgr *evtm.EventManager, msg any) {
	if m.onRecv != nil {
		simclock.Immediate(evtMgr, m, msg, func(em *evtm.EventManager, ctx, data any) any {
			mm := ctx.(*Multiplexer)
			mm.onRecv(em, data, 0)
			return nil
		})
		return
	}
	m.inbox = append([]any{msg}, m.inbox...)
}

func (m *Multiplexer) trace(evtMgr *evtm.EventManager, kind string, size int) {
	if m.rec == nil {
		return
	}
	m.rec.Add(m.Label, timeOf(evtMgr), kind, size)
}

func (m *Multiplexer) traceMsg(evtMgr *evtm.EventManager, kind string, msg any) {
	if m.rec == nil {
		return
	}
	m.rec.Add(m.Label, timeOf(evtMgr), kind, msg)
}

func timeOf(evtMgr *evtm.EventManager) float64 {
	if evtMgr == nil {
		return 0
	}
	return simclock.Now(evtMgr)
}
