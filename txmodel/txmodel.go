// Package txmodel defines the polymorphic transaction abstraction and the
// concrete MockTx used by both protocol simulators. TxRef is a fixed-width
// opaque byte string; nothing outside this package is allowed to assume it
// is a hash of anything in particular, even though MockTx happens to build
// one that way.
package txmodel

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/rmourey26/hydra-sim/internal/delaycomp"
)

// RefSize is the fixed wire size of a TxRef.
const RefSize = 32

// TxRef is a fixed-width opaque transaction reference.
type TxRef [RefSize]byte

// Less gives TxRef a total order so tx sets can be sorted deterministically.
func (r TxRef) Less(o TxRef) bool {
	for i := range r {
		if r[i] != o[i] {
			return r[i] < o[i]
		}
	}
	return false
}

// TxInput is a consumed or produced UTxO entry. The model does not need
// more structure than an opaque identity plus the owning client, since
// nothing downstream inspects input contents beyond set membership.
type TxInput struct {
	ClientID int
	Index    int
}

// ValidateCost is the fixed virtual-time cost of validating a MockTx: 400
// microseconds regardless of tx contents.
const ValidateCost = 400e-6

// Tx is the polymorphic transaction interface every protocol consumes.
// Concrete implementations decide what "inputs", "outputs" and "validate"
// mean; the head and tail protocols only ever touch Tx through this
// surface.
type Tx interface {
	Ref() TxRef
	Inputs() []TxInput
	Outputs() []TxInput
	Size() int
	Amount() int64
	Validate() delaycomp.T[bool]
}

// MockTx is the concrete Tx used by both simulators: a single input owned
// by the sending client, a single output owned by the recipient, an amount
// and a wire size.
type MockTx struct {
	ClientID   int
	Slot       int
	AmountPaid int64
	ByteSize   int
	Recipient  int
	input      TxInput
	output     TxInput
	ref        TxRef
}

// NewMockTx builds a MockTx whose ref is a content hash of (client, slot,
// amount).
func NewMockTx(clientID, slot int, amount int64, byteSize, recipient, outIndex int) *MockTx {
	tx := &MockTx{
		ClientID:   clientID,
		Slot:       slot,
		AmountPaid: amount,
		ByteSize:   byteSize,
		Recipient:  recipient,
		input:      TxInput{ClientID: clientID, Index: slot},
		output:     TxInput{ClientID: recipient, Index: outIndex},
	}
	tx.ref = refOf(clientID, slot, amount)
	return tx
}

func refOf(clientID, slot int, amount int64) TxRef {
	var buf [24]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(int64(clientID)))
	binary.BigEndian.PutUint64(buf[8:16], uint64(int64(slot)))
	binary.BigEndian.PutUint64(buf[16:24], uint64(amount))
	return TxRef(sha256.Sum256(buf[:]))
}

func (tx *MockTx) Ref() TxRef             { return tx.ref }
func (tx *MockTx) Inputs() []TxInput      { return []TxInput{tx.input} }
func (tx *MockTx) Outputs() []TxInput     { return []TxInput{tx.output} }
func (tx *MockTx) Size() int              { return tx.ByteSize }
func (tx *MockTx) Amount() int64          { return tx.AmountPaid }
func (tx *MockTx) Validate() delaycomp.T[bool] {
	return delaycomp.Of(true, ValidateCost)
}

// SortRefs returns txs sorted by TxRef, giving the protocol a total order
// over sets of tx references wherever determinism requires one.
func SortRefs(refs []TxRef) []TxRef {
	out := append([]TxRef(nil), refs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// amountBand and sizeBand implement fixed frequency tables: exact weights
// preserved from the source model.
type amountBand struct {
	weight   int
	lo, hi   int64 // half-open [lo, hi) in the unit named by the decade
}

var amountBands = []amountBand{
	{122, 1, 10},
	{144, 10, 100},
	{143, 100, 1_000},
	{92, 1_000, 10_000},
	{41, 10_000, 100_000},
	{12, 100_000, 1_000_000},
}

type sizeBand struct {
	weight int
	lo, hi int
}

var sizeBands = []sizeBand{
	{318, 192, 512},
	{129, 512, 1024},
	{37, 1024, 2048},
	{12, 2048, 4096},
	{43, 4096, 8192},
	{17, 8192, 16384},
}

var amountTotalWeight = func() int {
	t := 0
	for _, b := range amountBands {
		t += b.weight
	}
	return t
}()

var sizeTotalWeight = func() int {
	t := 0
	for _, b := range sizeBands {
		t += b.weight
	}
	return t
}()

// SampleAmount draws an amount from the fixed frequency table using two
// uniform [0,1) draws: one to pick the band by weight, one to pick a value
// uniformly within the band.
func SampleAmount(pickBand, withinBand float64) int64 {
	target := int(pickBand * float64(amountTotalWeight))
	acc := 0
	for _, b := range amountBands {
		acc += b.weight
		if target < acc {
			span := b.hi - b.lo
			return b.lo + int64(withinBand*float64(span))
		}
	}
	last := amountBands[len(amountBands)-1]
	return last.lo
}

// SampleSize draws a wire size in bytes from the fixed frequency table, by
// the same two-draw scheme as SampleAmount.
func SampleSize(pickBand, withinBand float64) int {
	target := int(pickBand * float64(sizeTotalWeight))
	acc := 0
	for _, b := range sizeBands {
		acc += b.weight
		if target < acc {
			span := b.hi - b.lo
			return b.lo + int(withinBand*float64(span))
		}
	}
	last := sizeBands[len(sizeBands)-1]
	return last.lo
}
