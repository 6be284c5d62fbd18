// Package eventio implements the fixed six-column CSV encoding of a client's
// event tape. The synthetic tape generator for runs without a recorded CSV
// is tail.GenerateTape, not part of this package. The wire format is a small, fixed grid — not a domain any parser
// library in the retrieval pack targets — so this package deliberately uses
// stdlib encoding/csv rather than reaching for a third-party CSV library
// (see DESIGN.md).
package eventio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rmourey26/hydra-sim/tail"
	"github.com/rmourey26/hydra-sim/txmodel"
)

// Header is the literal CSV header row every tape file starts with.
var Header = []string{"slot", "clientId", "event", "size", "amount", "recipients"}

// Row is one parsed CSV line, kept close to the wire shape so Format is a
// straightforward inverse of Parse.
type Row struct {
	Slot       int
	ClientID   tail.ClientID
	Event      string // "pull" or "new-tx"
	Size       int
	Amount     int64
	Recipients []tail.ClientID
}

const (
	eventPull  = "pull"
	eventNewTx = "new-tx"
)

// Format renders a Row as CSV fields: a Pull row carries no trailing
// fields, a new-tx row carries size, amount and a space-separated
// recipient list.
func Format(r Row) []string {
	if r.Event == eventPull {
		return []string{strconv.Itoa(r.Slot), strconv.Itoa(int(r.ClientID)), eventPull, "", "", ""}
	}
	recips := make([]string, len(r.Recipients))
	for i, c := range r.Recipients {
		recips[i] = strconv.Itoa(int(c))
	}
	return []string{
		strconv.Itoa(r.Slot),
		strconv.Itoa(int(r.ClientID)),
		eventNewTx,
		strconv.Itoa(r.Size),
		strconv.FormatInt(r.Amount, 10),
		strings.Join(recips, " "),
	}
}

// Parse interprets one CSV record (already split into fields) as a Row.
func Parse(fields []string) (Row, error) {
	if len(fields) != 6 {
		return Row{}, fmt.Errorf("eventio: expected 6 fields, got %d", len(fields))
	}
	slot, err := strconv.Atoi(fields[0])
	if err != nil {
		return Row{}, fmt.Errorf("eventio: bad slot %q: %w", fields[0], err)
	}
	clientID, err := strconv.Atoi(fields[1])
	if err != nil {
		return Row{}, fmt.Errorf("eventio: bad clientId %q: %w", fields[1], err)
	}

	switch fields[2] {
	case eventPull:
		return Row{Slot: slot, ClientID: tail.ClientID(clientID), Event: eventPull}, nil
	case eventNewTx:
		size, err := strconv.Atoi(fields[3])
		if err != nil {
			return Row{}, fmt.Errorf("eventio: bad size %q: %w", fields[3], err)
		}
		amount, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return Row{}, fmt.Errorf("eventio: bad amount %q: %w", fields[4], err)
		}
		var recipients []tail.ClientID
		if fields[5] != "" {
			for _, tok := range strings.Fields(fields[5]) {
				n, err := strconv.Atoi(tok)
				if err != nil {
					return Row{}, fmt.Errorf("eventio: bad recipient %q: %w", tok, err)
				}
				recipients = append(recipients, tail.ClientID(n))
			}
		}
		return Row{
			Slot: slot, ClientID: tail.ClientID(clientID), Event: eventNewTx,
			Size: size, Amount: amount, Recipients: recipients,
		}, nil
	default:
		return Row{}, fmt.Errorf("eventio: unknown event kind %q", fields[2])
	}
}

// WriteCSV writes rows to w with the required header, one row per line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("eventio: write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(Format(r)); err != nil {
			return fmt.Errorf("eventio: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a header-prefixed CSV stream into Rows.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("eventio: read: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	rows := make([]Row, 0, len(records)-1)
	for _, fields := range records[1:] {
		row, err := Parse(fields)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ToEvent converts a Row into a tail.Event carrying the concrete Msg it
// describes, using clientID/slot/amount as the MockTx ref components.
func ToEvent(r Row) tail.Event {
	if r.Event == eventPull {
		return tail.Event{Slot: r.Slot, Msg: tail.Pull{}}
	}
	tx := txmodel.NewMockTx(int(r.ClientID), r.Slot, r.Amount, r.Size, int(firstOrZero(r.Recipients)), 0)
	return tail.Event{Slot: r.Slot, Msg: tail.NewTx{Tx: tx, Recipients: r.Recipients}}
}

func firstOrZero(cs []tail.ClientID) tail.ClientID {
	if len(cs) == 0 {
		return 0
	}
	return cs[0]
}

// FromEvent is ToEvent's inverse for the two Msg shapes eventio supports,
// used by tests to check the CSV round-trip property all the way through the
// tail.Event boundary.
func FromEvent(clientID tail.ClientID, ev tail.Event) (Row, bool) {
	switch m := ev.Msg.(type) {
	case tail.Pull:
		return Row{Slot: ev.Slot, ClientID: clientID, Event: eventPull}, true
	case tail.NewTx:
		return Row{
			Slot: ev.Slot, ClientID: clientID, Event: eventNewTx,
			Size: m.Tx.Size(), Amount: m.Tx.Amount(), Recipients: m.Recipients,
		}, true
	default:
		return Row{}, false
	}
}
