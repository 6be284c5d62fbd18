// Package mockcrypto models the head protocol's signature scheme as opaque
// byte strings with fixed CPU cost, never as real cryptography. Every
// operation returns a delaycomp.T so callers charge virtual time for it
// exactly once.
package mockcrypto

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/rmourey26/hydra-sim/internal/delaycomp"
)

// Fixed virtual-time costs, in seconds. These are constants of the model,
// not runtime parameters.
const (
	CostSignTx        = 200e-6
	CostAggregateTx    = 150e-6
	CostVerifyTx       = 250e-6
	CostSignSnap       = 300e-6
	CostAggregateSnap  = 200e-6
	CostVerifySnap     = 350e-6
)

// NodeID is the small-integer party index used both as routing address and
// signer identity.
type NodeID int

// SKey, VKey, Sig, AVKey, ASig are opaque 32-byte model values. They carry
// no real cryptographic meaning; equality and the synthetic derivation
// below are enough for the model to enforce its invariants.
type (
	SKey [32]byte
	VKey [32]byte
	Sig  [32]byte
	AVKey [32]byte
	ASig  [32]byte
)

// KeyPair is a party's per-protocol signing identity.
type KeyPair struct {
	Party NodeID
	SK    SKey
	VK    VKey
}

// GenerateKeyPair deterministically derives a model keypair for a party so
// that repeated runs with the same party count are reproducible.
func GenerateKeyPair(party NodeID) KeyPair {
	sk := hashTo32("sk", party)
	vk := hashTo32("vk", party)
	return KeyPair{Party: party, SK: SKey(sk), VK: VKey(vk)}
}

func hashTo32(tag string, party NodeID) [32]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(party))
	return sha256.Sum256(append([]byte(tag), buf[:]...))
}

// SignTx produces a per-party signature over a tx ref, charging CostSignTx.
func SignTx(sk SKey, party NodeID, ref [32]byte) delaycomp.T[Sig] {
	s := sha256.Sum256(append(append([]byte("sig-tx"), sk[:]...), ref[:]...))
	return delaycomp.Of(Sig(s), CostSignTx)
}

// VerifyTxSig checks a per-party signature against a verification key.
// Because signatures are derived deterministically from (sk, ref) and vk is
// derived deterministically from the same party's sk, verification here is
// a recomputation rather than a real signature check — it still costs
// virtual time as if it were one.
func VerifyTxSig(vk VKey, party NodeID, ref [32]byte, sig Sig) delaycomp.T[bool] {
	ok := verifyDerived(vk, party, ref, sig, "sig-tx")
	return delaycomp.Of(ok, CostVerifyTx)
}

func verifyDerived(vk VKey, party NodeID, ref [32]byte, sig Sig, tag string) bool {
	// Recompute what SignTx/SignSnap would have produced for this party's
	// well-known sk (derivable from vk alone in the model: GenerateKeyPair
	// is a pure function of party, so vk uniquely determines sk here).
	sk := SKey(hashTo32("sk", party))
	wantVK := VKey(hashTo32("vk", party))
	if wantVK != vk {
		return false
	}
	want := sha256.Sum256(append(append([]byte(tag), sk[:]...), ref[:]...))
	return Sig(want) == sig
}

// AggregateTx combines per-party signatures for a tx ref into an aggregate
// signature, charging CostAggregateTx. The caller is responsible for having
// checked that sigs covers exactly the expected signer set.
func AggregateTx(ref [32]byte, sigs map[NodeID]Sig) delaycomp.T[ASig] {
	agg := aggregate(ref, sigs)
	return delaycomp.Of(ASig(agg), CostAggregateTx)
}

// VerifyTx checks an aggregate tx signature against the expected signer
// set and ref, charging CostVerifyTx.
func VerifyTx(ref [32]byte, vks map[NodeID]VKey, agg ASig) delaycomp.T[bool] {
	sigs := make(map[NodeID]Sig, len(vks))
	for p := range vks {
		sk := SKey(hashTo32("sk", p))
		sigs[p] = Sig(sha256.Sum256(append(append([]byte("sig-tx"), sk[:]...), ref[:]...)))
	}
	ok := aggregate(ref, sigs) == [32]byte(agg)
	return delaycomp.Of(ok, CostVerifyTx)
}

// SignSnap, AggregateSnap, VerifySnap mirror the tx family for snapshots,
// distinguished by tag so a snapshot signature never collides with a tx
// signature over the same byte ref.
func SignSnap(sk SKey, party NodeID, snapDigest [32]byte) delaycomp.T[Sig] {
	s := sha256.Sum256(append(append([]byte("sig-snap"), sk[:]...), snapDigest[:]...))
	return delaycomp.Of(Sig(s), CostSignSnap)
}

func VerifySnapSig(vk VKey, party NodeID, snapDigest [32]byte, sig Sig) delaycomp.T[bool] {
	ok := verifyDerived(vk, party, snapDigest, sig, "sig-snap")
	return delaycomp.Of(ok, CostVerifySnap)
}

func AggregateSnap(snapDigest [32]byte, sigs map[NodeID]Sig) delaycomp.T[ASig] {
	agg := aggregate(snapDigest, sigs)
	return delaycomp.Of(ASig(agg), CostAggregateSnap)
}

func VerifySnap(snapDigest [32]byte, vks map[NodeID]VKey, agg ASig) delaycomp.T[bool] {
	sigs := make(map[NodeID]Sig, len(vks))
	for p := range vks {
		sk := SKey(hashTo32("sk", p))
		sigs[p] = Sig(sha256.Sum256(append(append([]byte("sig-snap"), sk[:]...), snapDigest[:]...)))
	}
	ok := aggregate(snapDigest, sigs) == [32]byte(agg)
	return delaycomp.Of(ok, CostVerifySnap)
}

// aggregate folds a signer-indexed signature map into one 32-byte digest,
// in signer order, so it is independent of map iteration order.
func aggregate(ref [32]byte, sigs map[NodeID]Sig) [32]byte {
	h := sha256.New()
	h.Write(ref[:])
	ids := make([]NodeID, 0, len(sigs))
	for p := range sigs {
		ids = append(ids, p)
	}
	slices.Sort(ids)
	for _, p := range ids {
		fmt.Fprintf(h, "%d", p)
		sig := sigs[p]
		h.Write(sig[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
