package head

import (
	"github.com/rmourey26/hydra-sim/internal/mockcrypto"
	"github.com/rmourey26/hydra-sim/txmodel"
)

// WaitRetryCost is the minimum virtual-time charge for a Wait decision, so
// repeated Wait on the same event cannot busy-spin without the clock
// advancing. Branches that already derive a cost from real validation work
// (a tx.Validate() that passed before the tx's inputs were found missing)
// use that cost instead and do not need this floor.
const WaitRetryCost = 500e-6

func invalid(cost float64, reason string) Decision {
	return Decision{Kind: Invalid, Cost: cost, Reason: reason}
}

func wait(cost float64) Decision {
	return Decision{Kind: Wait, Cost: cost}
}

func apply(cost float64, traceKind string, traceVal any, out Outgoing) Decision {
	return Decision{Kind: Apply, Cost: cost, Trace: traceKind, TraceVal: traceVal, Outgoing: out}
}

// Transition is the head protocol's per-node state machine: (HState,
// HeadProtocol) -> Decision. For Apply decisions hs is mutated in place
// before Transition returns (see the note on head.Decision). Invalid and
// Wait decisions never mutate hs.
func Transition(hs *HState, ev HeadProtocol) Decision {
	switch e := ev.(type) {
	case New:
		return transitionNew(hs, e)
	case SigReqTx:
		return transitionSigReqTx(hs, e)
	case SigAckTx:
		return transitionSigAckTx(hs, e)
	case SigConfTx:
		return transitionSigConfTx(hs, e)
	case NewSn:
		return transitionNewSn(hs, e)
	case SigReqSn:
		return transitionSigReqSn(hs, e)
	case SigAckSn:
		return transitionSigAckSn(hs, e)
	case SigConfSn:
		return transitionSigConfSn(hs, e)
	default:
		return invalid(0, "unrecognized head protocol message")
	}
}

func transitionNew(hs *HState, e New) Decision {
	v := e.Tx.Validate()
	if !v.Value {
		return invalid(v.Cost, "tx failed validation")
	}
	ins := inputSet(e.Tx.Inputs())
	if !subsetOf(ins, hs.UTxOSig) {
		return wait(v.Cost)
	}
	ref := e.Tx.Ref()
	if _, present := hs.TxsSig[ref]; present {
		return invalid(v.Cost, "duplicate tx ref")
	}

	deps := derivedDeps(hs, e.Tx)
	txo := newTxO(hs.Self, e.Tx, deps)
	hs.TxsSig[ref] = txo
	removeFrom(hs.UTxOSig, ins)
	unionInto(hs.UTxOSig, inputSet(e.Tx.Outputs()))

	sigDC := mockcrypto.SignTx(hs.SK, hs.Self, ref)
	txo.Sigs[hs.Self] = sigDC.Value

	return apply(v.Cost+sigDC.Cost, "New", ref, Outgoing{Kind: Multicast, Msg: SigReqTx{Tx: e.Tx, Issuer: hs.Self}})
}

// derivedDeps finds which already-seen local txs this tx consumes outputs
// from, giving TxO.Deps.
func derivedDeps(hs *HState, tx txmodel.Tx) map[txmodel.TxRef]struct{} {
	deps := make(map[txmodel.TxRef]struct{})
	ins := inputSet(tx.Inputs())
	for ref, txo := range hs.TxsSig {
		for _, out := range txo.Tx.Outputs() {
			if _, needed := ins[out]; needed {
				deps[ref] = struct{}{}
				break
			}
		}
	}
	return deps
}

func transitionSigReqTx(hs *HState, e SigReqTx) Decision {
	v := e.Tx.Validate()
	ins := inputSet(e.Tx.Inputs())
	if !v.Value {
		return invalid(v.Cost, "tx failed validation")
	}
	if !subsetOf(ins, hs.UTxOSig) {
		return wait(v.Cost)
	}
	ref := e.Tx.Ref()
	if _, present := hs.TxsSig[ref]; !present {
		txo := newTxO(e.Issuer, e.Tx, derivedDeps(hs, e.Tx))
		hs.TxsSig[ref] = txo
		unionInto(hs.UTxOSig, inputSet(e.Tx.Outputs()))
		removeFrom(hs.UTxOSig, ins)
	}

	sigDC := mockcrypto.SignTx(hs.SK, hs.Self, ref)
	hs.TxsSig[ref].Sigs[hs.Self] = sigDC.Value

	return apply(v.Cost+sigDC.Cost, "SigReqTx", ref,
		Outgoing{Kind: SendTo, To: e.Issuer, Msg: SigAckTx{Ref: ref, Signer: hs.Self, Sig: sigDC.Value}})
}

func transitionSigAckTx(hs *HState, e SigAckTx) Decision {
	txo, present := hs.TxsSig[e.Ref]
	if !present {
		return wait(WaitRetryCost)
	}
	vk, known := hs.VKs[e.Signer]
	if !known {
		return invalid(0, "unknown signer")
	}
	vr := mockcrypto.VerifyTxSig(vk, e.Signer, e.Ref, e.Sig)
	if !vr.Value {
		return invalid(vr.Cost, "bad tx signature")
	}

	txo.Sigs[e.Signer] = e.Sig
	if len(txo.Sigs) < len(hs.VKs) {
		return apply(vr.Cost, "SigAckTx", e.Ref, Outgoing{Kind: SendNothing})
	}

	aggDC := mockcrypto.AggregateTx(e.Ref, txo.Sigs)
	return apply(vr.Cost+aggDC.Cost, "SigAckTx", e.Ref,
		Outgoing{Kind: Multicast, Msg: SigConfTx{Ref: e.Ref, Agg: aggDC.Value}})
}

func transitionSigConfTx(hs *HState, e SigConfTx) Decision {
	txo, present := hs.TxsSig[e.Ref]
	if !present {
		return wait(WaitRetryCost)
	}
	vr := mockcrypto.VerifyTx(e.Ref, hs.VKs, e.Agg)
	if !vr.Value {
		return invalid(vr.Cost, "bad aggregate tx signature")
	}

	agg := e.Agg
	txo.Agg = &agg
	hs.TxsConf[e.Ref] = txo
	unionInto(hs.UTxOConf, inputSet(txo.Tx.Outputs()))
	removeFrom(hs.UTxOConf, inputSet(txo.Tx.Inputs()))

	return apply(vr.Cost, "SigConfTx", e.Ref, Outgoing{Kind: SendNothing})
}

func transitionNewSn(hs *HState, e NewSn) Decision {
	n := hs.SnapNSig + 1
	if hs.LeaderFun(n) != hs.Self {
		return invalid(0, "not leader for this snapshot round")
	}
	if len(hs.TxsSig) != len(hs.TxsConf) {
		return wait(WaitRetryCost)
	}

	included := make(map[txmodel.TxRef]struct{})
	for ref := range hs.TxsConf {
		if _, already := hs.SnapConf.IncludedTxs[ref]; !already {
			included[ref] = struct{}{}
		}
	}

	cand := Snap{N: n, UTxO: cloneInputSet(hs.UTxOConf), IncludedTxs: included, Sigs: make(map[NodeID]mockcrypto.Sig)}
	sigDC := mockcrypto.SignSnap(hs.SK, hs.Self, cand.digest())
	cand.Sigs[hs.Self] = sigDC.Value

	hs.SnapNSig = n
	hs.SnapSig = cand

	refs := sortedRefs(included)
	return apply(sigDC.Cost, "NewSn", n, Outgoing{Kind: Multicast, Msg: SigReqSn{N: n, Txs: refs}})
}

func transitionSigReqSn(hs *HState, e SigReqSn) Decision {
	expect := hs.SnapNSig + 1
	if e.N < expect {
		return invalid(0, "snapshot number in the past")
	}
	if e.N > expect {
		return wait(WaitRetryCost)
	}
	for _, ref := range e.Txs {
		if _, present := hs.TxsConf[ref]; !present {
			return wait(WaitRetryCost)
		}
	}

	included := make(map[txmodel.TxRef]struct{}, len(e.Txs))
	for _, ref := range e.Txs {
		included[ref] = struct{}{}
	}
	cand := Snap{N: e.N, UTxO: cloneInputSet(hs.UTxOConf), IncludedTxs: included, Sigs: make(map[NodeID]mockcrypto.Sig)}
	sigDC := mockcrypto.SignSnap(hs.SK, hs.Self, cand.digest())
	cand.Sigs[hs.Self] = sigDC.Value

	hs.SnapNSig = e.N
	hs.SnapSig = cand

	leader := hs.LeaderFun(e.N)
	return apply(sigDC.Cost, "SigReqSn", e.N,
		Outgoing{Kind: SendTo, To: leader, Msg: SigAckSn{N: e.N, Signer: hs.Self, Sig: sigDC.Value}})
}

func transitionSigAckSn(hs *HState, e SigAckSn) Decision {
	if e.N != hs.SnapNSig {
		if e.N < hs.SnapNSig {
			return invalid(0, "stale snapshot ack")
		}
		return wait(WaitRetryCost)
	}
	vk, known := hs.VKs[e.Signer]
	if !known {
		return invalid(0, "unknown signer")
	}
	vr := mockcrypto.VerifySnapSig(vk, e.Signer, hs.SnapSig.digest(), e.Sig)
	if !vr.Value {
		return invalid(vr.Cost, "bad snapshot signature")
	}

	hs.SnapSig.Sigs[e.Signer] = e.Sig
	if len(hs.SnapSig.Sigs) < len(hs.VKs) {
		return apply(vr.Cost, "SigAckSn", e.N, Outgoing{Kind: SendNothing})
	}

	aggDC := mockcrypto.AggregateSnap(hs.SnapSig.digest(), hs.SnapSig.Sigs)
	return apply(vr.Cost+aggDC.Cost, "SigAckSn", e.N,
		Outgoing{Kind: Multicast, Msg: SigConfSn{N: e.N, Agg: aggDC.Value}})
}

func transitionSigConfSn(hs *HState, e SigConfSn) Decision {
	expect := hs.SnapNConf + 1
	if e.N < expect {
		return invalid(0, "stale snapshot confirmation")
	}
	if e.N > expect {
		return wait(WaitRetryCost)
	}
	if hs.SnapSig.N != e.N {
		return wait(WaitRetryCost)
	}

	vr := mockcrypto.VerifySnap(hs.SnapSig.digest(), hs.VKs, e.Agg)
	if !vr.Value {
		return invalid(vr.Cost, "bad aggregate snapshot signature")
	}

	confirmed := hs.SnapSig
	agg := e.Agg
	confirmed.Agg = &agg
	hs.SnapConf = confirmed
	hs.SnapNConf = e.N

	for ref := range confirmed.IncludedTxs {
		delete(hs.TxsConf, ref)
	}

	return apply(vr.Cost, "SigConfSn", e.N, Outgoing{Kind: SendNothing})
}

func sortedRefs(set map[txmodel.TxRef]struct{}) []txmodel.TxRef {
	refs := make([]txmodel.TxRef, 0, len(set))
	for r := range set {
		refs = append(refs, r)
	}
	refs = txmodel.SortRefs(refs)
	return refs
}
