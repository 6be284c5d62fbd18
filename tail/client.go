package tail

import (
	"fmt"

	"github.com/iti/evt/evtm"

	"github.com/rmourey26/hydra-sim/internal/mplex"
	"github.com/rmourey26/hydra-sim/internal/simclock"
	"github.com/rmourey26/hydra-sim/internal/trace"
)

// Event is one entry of a client's deterministic input tape: a message the
// client itself originates, annotated with the slot it is eligible to fire
// in.
type Event struct {
	Slot int
	Msg  Msg
}

// Balance is a client's shared balance cell: Initial never changes after
// construction, Current is adjusted by sends and NotifyTx receipts and reset
// on a payment-window stall.
type Balance struct {
	Initial int64
	Current int64
}

// PaymentWindow bounds Balance.Current around Balance.Initial. Lower and
// Upper are the raw signed bounds on Current-Initial, e.g. Lower: -100,
// Upper: 100 for a symmetric ±100 window — not magnitudes. A nil
// *PaymentWindow on Client means the status is always InPaymentWindow.
type PaymentWindow struct {
	Lower int64
	Upper int64
}

func (w *PaymentWindow) inWindow(b Balance) bool {
	if w == nil {
		return true
	}
	delta := b.Current - b.Initial
	return delta >= w.Lower && delta <= w.Upper
}

// Client is one tail-protocol party. Its inbound handler and event loop are
// modelled as two independent continuation chains sharing Balance and Conn,
// rather than as real goroutines, matching the rest of this simulator's
// cooperative-scheduling style.
type Client struct {
	ID  ClientID
	rec *trace.Recorder
	mux *mplex.Multiplexer

	Conn    ConnState
	Balance Balance
	Window  *PaymentWindow

	tape   []Event
	cursor int
	slot   int

	settlementDelay int
	slotLength      float64

	running bool
}

// NewClient builds a Client around an already-connected Multiplexer
// endpoint (the Simulation driver is responsible for mplex.Connect-ing it
// to the server's corresponding endpoint) and a pre-generated event tape.
func NewClient(id ClientID, rec *trace.Recorder, mux *mplex.Multiplexer, initialBalance int64, window *PaymentWindow, settlementDelay int, slotLength float64, tape []Event) *Client {
	c := &Client{
		ID:              id,
		rec:             rec,
		mux:             mux,
		Conn:            Offline,
		Balance:         Balance{Initial: initialBalance, Current: initialBalance},
		Window:          window,
		tape:            tape,
		settlementDelay: settlementDelay,
		slotLength:      slotLength,
	}
	mux.SetRecvHandler(func(evtMgr *evtm.EventManager, msg any, _ int) {
		c.onArrive(evtMgr, msg.(Msg))
	})
	return c
}

// Start kicks off the event loop. Call once, after every client and the
// server have been wired together.
func (c *Client) Start(evtMgr *evtm.EventManager) {
	if c.running {
		return
	}
	c.running = true
	simclock.Immediate(evtMgr, c, nil, c.step)
}

// Idle reports whether this client's tape is exhausted and no delay is
// currently pending; used by the Simulation driver's quiescence check.
func (c *Client) Idle() bool {
	return c.cursor >= len(c.tape)
}

func (c *Client) onArrive(evtMgr *evtm.EventManager, msg Msg) {
	switch m := msg.(type) {
	case AckTx:
		// no-op
	case NotifyTx:
		c.Balance.Current += m.Tx.Amount()
	default:
		panic(fmt.Errorf("tail: UnexpectedClientMsg at client %d: %#v", c.ID, msg))
	}
}

// step advances the event loop by exactly one decision, matching the
// per-event cost-charging discipline used by head.Node.pump: each call
// either consumes an event, stalls for a payment-window settlement, or
// advances the slot counter, then reschedules itself.
func (c *Client) step(evtMgr *evtm.EventManager, _ any, _ any) any {
	if c.cursor >= len(c.tape) {
		c.running = false
		return nil
	}
	ev := c.tape[c.cursor]

	if ev.Slot > c.slot {
		if c.Conn == Online {
			c.send(evtMgr, Disconnect{})
			c.Conn = Offline
		}
		simclock.Delay(evtMgr, c, nil, c.slotLength, func(em *evtm.EventManager, ctx, data any) any {
			cc := ctx.(*Client)
			cc.slot++
			return cc.step(em, ctx, data)
		})
		return nil
	}

	if nt, isNewTx := ev.Msg.(NewTx); isNewTx {
		prospective := c.Balance
		prospective.Current -= nt.Tx.Amount()
		if c.Window.inWindow(prospective) {
			c.send(evtMgr, nt)
			c.Balance.Current -= nt.Tx.Amount()
			c.Conn = Offline
			c.cursor++
			return c.step(evtMgr, nil, nil)
		}

		c.send(evtMgr, SnapshotStart{})
		stallCost := float64(c.settlementDelay) * c.slotLength
		simclock.Delay(evtMgr, c, nil, stallCost, func(em *evtm.EventManager, ctx, data any) any {
			cc := ctx.(*Client)
			cc.Balance.Current = cc.Balance.Initial
			cc.send(em, SnapshotEnd{})
			cc.slot += cc.settlementDelay
			return cc.step(em, ctx, data)
		})
		return nil
	}

	if c.Conn == Offline {
		c.trace(evtMgr, "WakeUp", c.slot)
		c.send(evtMgr, Connect{})
	}
	c.send(evtMgr, ev.Msg)
	c.Conn = Online
	c.cursor++
	return c.step(evtMgr, nil, nil)
}

func (c *Client) send(evtMgr *evtm.EventManager, msg Msg) {
	c.mux.Send(evtMgr, msg, msgSize(msg))
}

func (c *Client) trace(evtMgr *evtm.EventManager, kind string, val any) {
	if c.rec == nil {
		return
	}
	c.rec.Add(fmt.Sprintf("client-%d", c.ID), simclock.Now(evtMgr), kind, val)
}
