package head

import (
	"strconv"

	"github.com/iti/evt/evtm"

	"github.com/rmourey26/hydra-sim/internal/mplex"
	"github.com/rmourey26/hydra-sim/internal/simclock"
	"github.com/rmourey26/hydra-sim/internal/trace"
)

// inboxItem is one event waiting in a node's local FIFO, tagged with the
// party it purportedly arrived from.
type inboxItem struct {
	from NodeID
	msg  HeadProtocol
}

// Node is the per-party driver task around Transition: it owns the FIFO
// inbox, the HState, and the outbound links to every other party. It never
// shares its HState with any other task.
type Node struct {
	ID    NodeID
	State *HState
	rec   *trace.Recorder

	peers  map[NodeID]*mplex.Multiplexer
	inbox  []inboxItem
	pumping bool
}

// NewNode wires a Node around an already-initialized HState.
func NewNode(id NodeID, hs *HState, rec *trace.Recorder) *Node {
	return &Node{ID: id, State: hs, rec: rec, peers: make(map[NodeID]*mplex.Multiplexer)}
}

// Link attaches the local endpoint of this node's connection to peer. The
// Simulation driver is responsible for having already mplex.Connect'd the
// two endpoints together.
func (n *Node) Link(peer NodeID, endpoint *mplex.Multiplexer) {
	n.peers[peer] = endpoint
	endpoint.SetRecvHandler(func(evtMgr *evtm.EventManager, msg any, _ int) {
		n.Deliver(evtMgr, peer, msg.(HeadProtocol))
	})
}

// Deliver hands an inbound message to this node's inbox and ensures the
// pump is running.
func (n *Node) Deliver(evtMgr *evtm.EventManager, from NodeID, msg HeadProtocol) {
	n.inbox = append(n.inbox, inboxItem{from: from, msg: msg})
	n.ensurePump(evtMgr)
}

// Inject is how the simulation driver seeds a locally-originated event
// (New(tx), NewSn) into this node's own processing loop.
func (n *Node) Inject(evtMgr *evtm.EventManager, msg HeadProtocol) {
	n.inbox = append(n.inbox, inboxItem{from: n.ID, msg: msg})
	n.ensurePump(evtMgr)
}

// Idle reports whether this node has no outstanding work, used by the
// Simulation driver's quiescence check.
func (n *Node) Idle() bool {
	return len(n.inbox) == 0 && !n.pumping
}

func (n *Node) ensurePump(evtMgr *evtm.EventManager) {
	if n.pumping {
		return
	}
	n.pumping = true
	simclock.Immediate(evtMgr, n, nil, n.pump)
}

// pump processes exactly one inbox event per invocation, charging its cost
// against virtual time before rescheduling itself for the next one. This
// mirrors a per-timeslice rescheduling discipline: work is never done in a
// single synchronous burst that would let one node's
// backlog starve the shared virtual clock of other tasks' events at the
// same instant.
func (n *Node) pump(evtMgr *evtm.EventManager, _ any, _ any) any {
	if len(n.inbox) == 0 {
		n.pumping = false
		return nil
	}

	item := n.inbox[0]
	n.inbox = n.inbox[1:]

	dec := Transition(n.State, item.msg)

	switch dec.Kind {
	case Invalid:
		n.trace(evtMgr, "TPInvalidTransition", dec.Reason)
		simclock.Delay(evtMgr, n, nil, dec.Cost, n.pump)
	case Wait:
		n.inbox = append(n.inbox, item)
		simclock.Delay(evtMgr, n, nil, dec.Cost, n.pump)
	case Apply:
		n.trace(evtMgr, dec.Trace, dec.TraceVal)
		simclock.Delay(evtMgr, n, nil, dec.Cost, func(em *evtm.EventManager, ctx, data any) any {
			nn := ctx.(*Node)
			nn.dispatch(em, dec.Outgoing)
			return nn.pump(em, ctx, data)
		})
	}
	return nil
}

func (n *Node) dispatch(evtMgr *evtm.EventManager, out Outgoing) {
	switch out.Kind {
	case SendNothing:
	case SendTo:
		n.sendTo(evtMgr, out.To, out.Msg)
	case Multicast:
		for peer := range n.peers {
			n.sendTo(evtMgr, peer, out.Msg)
		}
	}
}

func (n *Node) sendTo(evtMgr *evtm.EventManager, to NodeID, msg HeadProtocol) {
	if to == n.ID {
		// A message addressed to ourselves never touches the network; it
		// is simply fed back into our own inbox.
		n.Inject(evtMgr, msg)
		return
	}
	endpoint, known := n.peers[to]
	if !known {
		return
	}
	endpoint.Send(evtMgr, msg, headMsgSize(msg))
}

func (n *Node) trace(evtMgr *evtm.EventManager, kind string, val any) {
	if n.rec == nil {
		return
	}
	n.rec.Add(nodeLabel(n.ID), simclock.Now(evtMgr), kind, val)
}

func nodeLabel(id NodeID) string {
	return "node-" + strconv.FormatInt(int64(id), 10)
}

// headMsgSize gives each HeadProtocol message kind its wire size, using the
// fixed constants of (TxRef 32 bytes, control messages 0 bytes) and
// Tx.Size() for SigReqTx, the one wire message that carries a tx body.
func headMsgSize(msg HeadProtocol) int {
	switch m := msg.(type) {
	case SigReqTx:
		return m.Tx.Size()
	case SigAckTx:
		return 32
	case SigConfTx:
		return 32
	case SigReqSn:
		return 32 * (1 + len(m.Txs))
	case SigAckSn:
		return 32
	case SigConfSn:
		return 32
	default:
		return 0
	}
}
