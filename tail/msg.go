// Package tail implements the tail protocol's mailbox server and clients: a
// single broker task fanning out notifications to many clients over
// mplex.Multiplexer links, plus the client-side payment-window mechanism.
package tail

import (
	"github.com/rmourey26/hydra-sim/txmodel"
)

// ClientID names one tail client. Client 0 is reserved for the server's own
// address space in generated recipient lists (see getRecipients); real
// clients are numbered from 1, matching "clamped to >= 1".
type ClientID int

// Msg is the tagged union of tail protocol messages.
type Msg interface {
	tailKind() string
}

// Pull asks the server to flush this client's mailbox.
type Pull struct{}

func (Pull) tailKind() string { return "Pull" }

// NewTx submits a transaction for delivery to Recipients.
type NewTx struct {
	Tx         txmodel.Tx
	Recipients []ClientID
}

func (NewTx) tailKind() string { return "NewTx" }

// AckTx acknowledges receipt (not confirmation) of a submitted tx.
type AckTx struct{ Ref txmodel.TxRef }

func (AckTx) tailKind() string { return "AckTx" }

// NotifyTx tells a recipient a tx naming them has been submitted.
type NotifyTx struct{ Tx txmodel.Tx }

func (NotifyTx) tailKind() string { return "NotifyTx" }

// Connect marks the sending client Online.
type Connect struct{}

func (Connect) tailKind() string { return "Connect" }

// Disconnect marks the sending client Offline.
type Disconnect struct{}

func (Disconnect) tailKind() string { return "Disconnect" }

// SnapshotStart marks the sending client Blocked.
type SnapshotStart struct{}

func (SnapshotStart) tailKind() string { return "SnapshotStart" }

// SnapshotEnd marks the sending client Offline again and releases its
// parked queue.
type SnapshotEnd struct{}

func (SnapshotEnd) tailKind() string { return "SnapshotEnd" }

// ConnState is a client's connectivity state as tracked by the server and
// mirrored by the client itself.
type ConnState int

const (
	Online ConnState = iota
	Offline
	Blocked
)

func (c ConnState) String() string {
	switch c {
	case Online:
		return "Online"
	case Offline:
		return "Offline"
	case Blocked:
		return "Blocked"
	default:
		return "Unknown"
	}
}

// Wire sizes for tail protocol messages: control messages
// (Connect/Disconnect/SnapshotStart/SnapshotEnd/Pull/AckTx) cost 0 bytes, a
// recipient address is 57 bytes, and NotifyTx/NewTx cost the carried tx's
// own Size() plus one recipient address per named recipient.
func msgSize(m Msg) int {
	switch mm := m.(type) {
	case NewTx:
		return mm.Tx.Size() + 57*len(mm.Recipients)
	case NotifyTx:
		return mm.Tx.Size()
	default:
		return 0
	}
}

const recipientAddrSize = 57
