package head

import (
	"github.com/rmourey26/hydra-sim/internal/mockcrypto"
	"github.com/rmourey26/hydra-sim/txmodel"
)

// HeadProtocol is the tagged union of messages the node transition function
// consumes. Every concrete message also carries the NodeID of its sender,
// attached by the driver when it dequeues the event, not by the message
// itself.
type HeadProtocol interface {
	headKind() string
}

// New is a locally-submitted transaction, not yet seen by any party.
type New struct{ Tx txmodel.Tx }

func (New) headKind() string { return "New" }

// SigReqTx asks the receiving party to countersign a transaction. Issuer
// identifies the party that originated it (needed so the receiver's
// SigAckTx reply is routed back with SendTo rather than broadcast).
type SigReqTx struct {
	Tx     txmodel.Tx
	Issuer NodeID
}

func (SigReqTx) headKind() string { return "SigReqTx" }

// SigAckTx carries one party's signature over a tx back to its issuer.
type SigAckTx struct {
	Ref    txmodel.TxRef
	Signer NodeID
	Sig    mockcrypto.Sig
}

func (SigAckTx) headKind() string { return "SigAckTx" }

// SigConfTx announces the aggregate signature once every party has signed.
type SigConfTx struct {
	Ref txmodel.TxRef
	Agg mockcrypto.ASig
}

func (SigConfTx) headKind() string { return "SigConfTx" }

// NewSn is a local trigger (not sent over the wire) asking the leader to
// seal a new candidate snapshot.
type NewSn struct{}

func (NewSn) headKind() string { return "NewSn" }

// SigReqSn asks the receiving party to sign a candidate snapshot.
type SigReqSn struct {
	N   SnapN
	Txs []txmodel.TxRef
}

func (SigReqSn) headKind() string { return "SigReqSn" }

// SigAckSn carries one party's signature over a snapshot back to the
// leader.
type SigAckSn struct {
	N      SnapN
	Signer NodeID
	Sig    mockcrypto.Sig
}

func (SigAckSn) headKind() string { return "SigAckSn" }

// SigConfSn announces the aggregate snapshot signature once every party
// has signed.
type SigConfSn struct {
	N   SnapN
	Agg mockcrypto.ASig
}

func (SigConfSn) headKind() string { return "SigConfSn" }

// DecisionKind tags which of the three transition outcomes a Decision is.
type DecisionKind int

const (
	Invalid DecisionKind = iota
	Wait
	Apply
)

// OutgoingKind tags what dispatch a Decision::Apply asks for.
type OutgoingKind int

const (
	SendNothing OutgoingKind = iota
	SendTo
	Multicast
)

// Outgoing describes the message(s) an Apply decision dispatches.
type Outgoing struct {
	Kind OutgoingKind
	To   NodeID // meaningful only when Kind == SendTo
	Msg  HeadProtocol
}

// Decision is the tri-state result of the transition function. Cost is
// always charged, regardless of Kind: Invalid pays for the validation work
// that discovered the fault, Wait pays for at least one validation attempt
// (so repeated Wait cannot busy-spin without virtual time advancing), and
// Apply pays for the state update itself. Apply here has already been
// applied to the HState passed to Transition by the time Decision is
// returned, rather than returned as a delta for the caller to apply —
// mutation-in-place is easier to test deterministically against boundary
// scenarios.
type Decision struct {
	Kind     DecisionKind
	Cost     float64
	Reason   string // set when Kind == Invalid
	Trace    string // trace kind emitted on Apply, empty otherwise
	TraceVal any
	Outgoing Outgoing
}
