package eventio

import (
	"reflect"
	"testing"

	"github.com/rmourey26/hydra-sim/tail"
)

// TestRoundTrip exercises invariant 7: parse(format(e)) == e for both Pull
// and NewTx rows, including the empty-recipients edge case.
func TestRoundTrip(t *testing.T) {
	cases := []Row{
		{Slot: 3, ClientID: 7, Event: eventPull},
		{Slot: 12, ClientID: 2, Event: eventNewTx, Size: 256, Amount: 500, Recipients: []tail.ClientID{3, 4}},
		{Slot: 0, ClientID: 1, Event: eventNewTx, Size: 192, Amount: 1, Recipients: nil},
	}
	for _, want := range cases {
		got, err := Parse(Format(want))
		if err != nil {
			t.Fatalf("parse(format(%+v)): %v", want, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round-trip mismatch: want %+v, got %+v", want, got)
		}
	}
}

func TestParseRejectsUnknownEvent(t *testing.T) {
	_, err := Parse([]string{"0", "1", "bogus", "", "", ""})
	if err == nil {
		t.Fatalf("expected an error for an unknown event kind")
	}
}

func TestParseRejectsWrongFieldCount(t *testing.T) {
	_, err := Parse([]string{"0", "1", "pull"})
	if err == nil {
		t.Fatalf("expected an error for a short record")
	}
}
