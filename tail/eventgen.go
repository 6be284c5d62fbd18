package tail

import (
	"fmt"

	"github.com/iti/rngstream"

	"github.com/rmourey26/hydra-sim/txmodel"
)

// GetRecipients chooses the recipient set for a submitted tx. The default
// oracle names the next client id modulo numClients+1, clamped to >= 1 so
// client 0 (reserved) is never targeted.
type GetRecipients func(sender ClientID, numClients int) []ClientID

// DefaultGetRecipients implements default oracle.
func DefaultGetRecipients(sender ClientID, numClients int) []ClientID {
	next := (int(sender) + 1) % (numClients + 1)
	if next < 1 {
		next = 1
	}
	return []ClientID{ClientID(next)}
}

// TapeOptions parametrizes GenerateTape.
type TapeOptions struct {
	NumClients       int
	Slots            int
	OnlineLikelihood float64 // in [0,1]
	SubmitLikelihood float64 // in [0,1]
	GetRecipients    GetRecipients
}

// GenerateTape builds one client's deterministic event tape by drawing, per
// slot, an online decision and (conditional on being online) a submit
// decision from two independent uniform draws on rng. Events are emitted
// Pull-then-NewTx within a slot.
func GenerateTape(self ClientID, rng *rngstream.RngStream, opts TapeOptions) []Event {
	getRecipients := opts.GetRecipients
	if getRecipients == nil {
		getRecipients = DefaultGetRecipients
	}

	var tape []Event
	for slot := 0; slot < opts.Slots; slot++ {
		pOnline := rng.RandU01()
		online := pOnline <= opts.OnlineLikelihood
		if !online {
			continue
		}

		pSubmit := rng.RandU01()
		submits := pSubmit <= opts.SubmitLikelihood

		tape = append(tape, Event{Slot: slot, Msg: Pull{}})
		if submits {
			amount := txmodel.SampleAmount(rng.RandU01(), rng.RandU01())
			size := txmodel.SampleSize(rng.RandU01(), rng.RandU01())
			recipients := getRecipients(self, opts.NumClients)
			tx := txmodel.NewMockTx(int(self), slot, amount, size, int(recipients[0]), 0)
			tape = append(tape, Event{Slot: slot, Msg: NewTx{Tx: tx, Recipients: recipients}})
		}
	}
	return tape
}

// NewClientRNG derives the per-client rng stream by name, matching the
// teacher's one-stream-per-device convention (never shared across
// clients).
func NewClientRNG(id ClientID) *rngstream.RngStream {
	return rngstream.New(fmt.Sprintf("tail-client-%d", id))
}
