// Package head implements the head protocol's per-node state machine: a
// deterministic, event-driven transition function (HState, HeadProtocol) ->
// Decision, the per-node driver task that applies it, and a Simulation that
// wires N such nodes together with mplex.Multiplexer links. The transition
// function itself is adapted from the style of mrnes's transition.go: a big
// per-message-kind switch, with cost accounted through internal/delaycomp
// rather than left implicit.
package head

import (
	"github.com/rmourey26/hydra-sim/internal/mockcrypto"
	"github.com/rmourey26/hydra-sim/txmodel"
)

// NodeID is the per-party index and routing address.
type NodeID = mockcrypto.NodeID

// SnapN is a monotone signed snapshot number; -1 means "no snapshot yet."
type SnapN int64

const NoSnapshot SnapN = -1

// TxO is a node's local record of a transaction it has seen, mid-signing or
// already confirmed.
type TxO struct {
	Issuer NodeID
	Tx     txmodel.Tx
	Deps   map[txmodel.TxRef]struct{}
	Sigs   map[NodeID]mockcrypto.Sig
	Agg    *mockcrypto.ASig
}

func newTxO(issuer NodeID, tx txmodel.Tx, deps map[txmodel.TxRef]struct{}) *TxO {
	return &TxO{Issuer: issuer, Tx: tx, Deps: deps, Sigs: make(map[NodeID]mockcrypto.Sig)}
}

// Snap is a sealed, possibly-confirmed snapshot of the UTxO set.
type Snap struct {
	N            SnapN
	UTxO         map[txmodel.TxInput]struct{}
	IncludedTxs  map[txmodel.TxRef]struct{}
	Sigs         map[NodeID]mockcrypto.Sig
	Agg          *mockcrypto.ASig
}

func emptySnap() Snap {
	return Snap{
		N:           NoSnapshot,
		UTxO:        make(map[txmodel.TxInput]struct{}),
		IncludedTxs: make(map[txmodel.TxRef]struct{}),
		Sigs:        make(map[NodeID]mockcrypto.Sig),
	}
}

// digest produces the opaque 32-byte value signed/verified for this
// snapshot. It folds N and the sorted included tx refs; the UTxO set itself
// is not part of the signed digest in this model, matching treatment of
// Snap.agg as attesting to (n, included_txs).
func (s Snap) digest() [32]byte {
	refs := make([]txmodel.TxRef, 0, len(s.IncludedTxs))
	for r := range s.IncludedTxs {
		refs = append(refs, r)
	}
	refs = txmodel.SortRefs(refs)
	var buf []byte
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(int64(s.N)>>(56-8*i)))
	}
	for _, r := range refs {
		buf = append(buf, r[:]...)
	}
	return sha256Sum(buf)
}

// HState is one party's head-protocol state.
type HState struct {
	Self       NodeID
	SK         mockcrypto.SKey
	VKs        map[NodeID]mockcrypto.VKey // hsVKs, keyed by party
	LeaderFun  func(SnapN) NodeID

	SnapNSig  SnapN
	SnapNConf SnapN

	UTxOSig  map[txmodel.TxInput]struct{}
	UTxOConf map[txmodel.TxInput]struct{}

	SnapSig  Snap
	SnapConf Snap

	TxsSig  map[txmodel.TxRef]*TxO
	TxsConf map[txmodel.TxRef]*TxO
}

// NewHState builds the initial state for party self, given the full
// verification-key set and leader function.
func NewHState(self NodeID, sk mockcrypto.SKey, vks map[NodeID]mockcrypto.VKey, leaderFun func(SnapN) NodeID) *HState {
	return &HState{
		Self:      self,
		SK:        sk,
		VKs:       vks,
		LeaderFun: leaderFun,
		SnapNSig:  NoSnapshot,
		SnapNConf: NoSnapshot,
		UTxOSig:   make(map[txmodel.TxInput]struct{}),
		UTxOConf:  make(map[txmodel.TxInput]struct{}),
		SnapSig:   emptySnap(),
		SnapConf:  emptySnap(),
		TxsSig:    make(map[txmodel.TxRef]*TxO),
		TxsConf:   make(map[txmodel.TxRef]*TxO),
	}
}

// RoundRobinLeader is the default leader function SnapN -> NodeID: n mod
// numParties.
func RoundRobinLeader(n SnapN, numParties int) NodeID {
	idx := int64(n) % int64(numParties)
	if idx < 0 {
		idx += int64(numParties)
	}
	return NodeID(idx)
}
