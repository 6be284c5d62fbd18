package tail

import (
	"testing"

	"github.com/iti/evt/evtm"

	"github.com/rmourey26/hydra-sim/internal/mplex"
	"github.com/rmourey26/hydra-sim/internal/simclock"
	"github.com/rmourey26/hydra-sim/internal/trace"
	"github.com/rmourey26/hydra-sim/txmodel"
)

// fakeClient is a bare mplex endpoint standing in for a tail.Client in
// tests that want to drive the server directly, message by message,
// rather than through a pre-generated tape.
type fakeClient struct {
	mux      *mplex.Multiplexer
	received []Msg
}

func newServerHarness(t *testing.T, numClients int) (*trace.Recorder, *evtm.EventManager, *Server, map[ClientID]*fakeClient, map[ClientID]*mplex.Multiplexer) {
	t.Helper()
	rec := trace.New("tail-test", false)
	srv := NewServer(rec, numClients)
	clients := make(map[ClientID]*fakeClient)
	serverSides := make(map[ClientID]*mplex.Multiplexer)
	evtMgr := simclock.New()
	for i := 1; i <= numClients; i++ {
		id := ClientID(i)
		serverSide := mplex.New(rec, "server-side", 1e9, 1e9, 1<<20, 1<<20)
		clientSide := mplex.New(rec, "client-side", 1e9, 1e9, 1<<20, 1<<20)
		mplex.Connect(serverSide, clientSide, 1e-3)
		srv.Register(id, serverSide)
		fc := &fakeClient{mux: clientSide}
		fc.mux.SetRecvHandler(func(_ *evtm.EventManager, msg any, _ int) {
			fc.received = append(fc.received, msg.(Msg))
		})
		clients[id] = fc
		serverSides[id] = serverSide
	}
	return rec, evtMgr, srv, clients, serverSides
}

func (fc *fakeClient) send(evtMgr *evtm.EventManager, msg Msg) {
	fc.mux.Send(evtMgr, msg, msgSize(msg))
}

// TestOfflineMailbox exercises S3: client 2 is Offline; client 1 sends NewTx
// naming client 2. The server must park the notification in client 2's
// mailbox and ack client 1 immediately; a subsequent Connect + Pull from
// client 2 must deliver exactly one NotifyTx.
func TestOfflineMailbox(t *testing.T) {
	_, evtMgr, srv, clients, _ := newServerHarness(t, 2)

	tx := txmodel.NewMockTx(1, 0, 50, 256, 2, 0)
	clients[1].send(evtMgr, NewTx{Tx: tx, Recipients: []ClientID{2}})
	evtMgr.Run(func(_ *evtm.EventManager) bool { return srv.Idle() })

	if len(clients[1].received) != 1 {
		t.Fatalf("client 1: expected exactly one message (AckTx), got %d", len(clients[1].received))
	}
	if _, ok := clients[1].received[0].(AckTx); !ok {
		t.Fatalf("client 1: expected AckTx, got %#v", clients[1].received[0])
	}
	if len(clients[2].received) != 0 {
		t.Fatalf("client 2: expected no messages yet, got %d", len(clients[2].received))
	}
	if !srv.MailboxEmpty(ClientID(1)) {
		t.Fatalf("client 1's mailbox should be untouched")
	}

	clients[2].send(evtMgr, Connect{})
	clients[2].send(evtMgr, Pull{})
	evtMgr.Run(func(_ *evtm.EventManager) bool { return srv.Idle() })

	if len(clients[2].received) != 1 {
		t.Fatalf("client 2: expected exactly one NotifyTx after Pull, got %d", len(clients[2].received))
	}
	nt, ok := clients[2].received[0].(NotifyTx)
	if !ok {
		t.Fatalf("client 2: expected NotifyTx, got %#v", clients[2].received[0])
	}
	if nt.Tx.Ref() != tx.Ref() {
		t.Fatalf("client 2: delivered tx ref mismatch")
	}
	if !srv.MailboxEmpty(ClientID(2)) {
		t.Fatalf("client 2's mailbox must be empty immediately after Pull (invariant 5)")
	}
}

// TestBlockedRecipientParking exercises the parking behavior for a blocked
// recipient: parking is keyed on the sender but the guard fires on a
// blocked recipient, so unblocking the recipient alone does not retry the
// parked message — only a SnapshotEnd from the original sender does.
func TestBlockedRecipientParking(t *testing.T) {
	_, evtMgr, srv, clients, _ := newServerHarness(t, 2)

	clients[2].send(evtMgr, SnapshotStart{})
	evtMgr.Run(func(_ *evtm.EventManager) bool { return srv.Idle() })
	if srv.ConnState(ClientID(2)) != Blocked {
		t.Fatalf("client 2 should be Blocked")
	}

	tx := txmodel.NewMockTx(1, 0, 50, 256, 2, 0)
	clients[1].send(evtMgr, NewTx{Tx: tx, Recipients: []ClientID{2}})
	evtMgr.Run(func(_ *evtm.EventManager) bool { return srv.Idle() })

	if len(clients[1].received) != 0 {
		t.Fatalf("client 1: expected no AckTx yet, tx should be parked; got %#v", clients[1].received)
	}
	if len(clients[2].received) != 0 {
		t.Fatalf("client 2: expected no NotifyTx yet")
	}

	// Unblocking the recipient directly must not, by itself, release the
	// parked message (the flagged behaviour).
	clients[2].send(evtMgr, SnapshotEnd{})
	evtMgr.Run(func(_ *evtm.EventManager) bool { return srv.Idle() })
	if len(clients[1].received) != 0 {
		t.Fatalf("client 1: recipient's own SnapshotEnd must not release the sender-keyed parked message")
	}

	// Only the sender's own SnapshotStart/SnapshotEnd cycle retries its
	// parked queue.
	clients[1].send(evtMgr, SnapshotStart{})
	clients[1].send(evtMgr, SnapshotEnd{})
	evtMgr.Run(func(_ *evtm.EventManager) bool { return srv.Idle() })

	if len(clients[1].received) != 1 {
		t.Fatalf("client 1: expected exactly one AckTx after its own SnapshotEnd, got %d", len(clients[1].received))
	}
	if _, ok := clients[1].received[0].(AckTx); !ok {
		t.Fatalf("client 1: expected AckTx, got %#v", clients[1].received[0])
	}
	// Client 2 is Offline after its own SnapshotEnd, so the retried NotifyTx
	// is stored in its mailbox rather than delivered.
	if len(clients[2].received) != 0 || srv.MailboxEmpty(ClientID(2)) {
		t.Fatalf("client 2: expected the retried NotifyTx in its mailbox, not delivered; got %d delivered", len(clients[2].received))
	}
}

// TestConnectDisconnectIdempotent exercises invariant 8: a second Connect to
// an already-Online client, or Disconnect on an already-Offline client, is a
// no-op.
func TestConnectDisconnectIdempotent(t *testing.T) {
	_, evtMgr, srv, clients, _ := newServerHarness(t, 1)

	clients[1].send(evtMgr, Connect{})
	evtMgr.Run(func(_ *evtm.EventManager) bool { return srv.Idle() })
	if srv.ConnState(ClientID(1)) != Online {
		t.Fatalf("client 1 should be Online")
	}

	clients[1].send(evtMgr, Connect{})
	evtMgr.Run(func(_ *evtm.EventManager) bool { return srv.Idle() })
	if srv.ConnState(ClientID(1)) != Online {
		t.Fatalf("second Connect must remain a no-op, still Online")
	}

	clients[1].send(evtMgr, Disconnect{})
	clients[1].send(evtMgr, Disconnect{})
	evtMgr.Run(func(_ *evtm.EventManager) bool { return srv.Idle() })
	if srv.ConnState(ClientID(1)) != Offline {
		t.Fatalf("client 1 should be Offline after Disconnect, even applied twice")
	}
}

// TestByteConservation exercises invariant 6 over a single client-to-server
// hop: bytes the sender's multiplexer reports as sent equal bytes the
// receiving endpoint reports as received.
func TestByteConservation(t *testing.T) {
	_, evtMgr, srv, clients, serverSides := newServerHarness(t, 1)

	tx := txmodel.NewMockTx(1, 0, 50, 256, 1, 0)
	clients[1].send(evtMgr, NewTx{Tx: tx, Recipients: []ClientID{1}})
	evtMgr.Run(func(_ *evtm.EventManager) bool { return srv.Idle() })

	sent := clients[1].mux.BytesSent
	if sent == 0 {
		t.Fatalf("expected nonzero bytes sent")
	}
	if sent != serverSides[1].BytesReceived {
		t.Fatalf("byte conservation violated: sent %d, peer received %d", sent, serverSides[1].BytesReceived)
	}
}

// TestPaymentWindowStall exercises S5: a client whose balance has left the
// payment window must stall for settlementDelay slots, reset its balance,
// then resubmit the same event rather than advancing past it.
func TestPaymentWindowStall(t *testing.T) {
	rec := trace.New("s5", false)
	srv := NewServer(rec, 1)
	evtMgr := simclock.New()

	serverSide := mplex.New(rec, "server-side", 1e9, 1e9, 1<<20, 1<<20)
	clientSide := mplex.New(rec, "client-side", 1e9, 1e9, 1<<20, 1<<20)
	mplex.Connect(serverSide, clientSide, 1e-3)
	srv.Register(ClientID(1), serverSide)

	tx := txmodel.NewMockTx(1, 0, 10, 256, 1, 0)
	tape := []Event{{Slot: 0, Msg: NewTx{Tx: tx, Recipients: []ClientID{1}}}}
	window := &PaymentWindow{Lower: -100, Upper: 100}
	client := NewClient(ClientID(1), rec, clientSide, 0, window, 5, 1.0, tape)
	client.Balance.Current = -95

	client.Start(evtMgr)
	evtMgr.Run(func(_ *evtm.EventManager) bool { return srv.Idle() && client.Idle() })

	// After the settlement stall resets the balance to Initial (0), the
	// retried NewTx(amount=10) finally goes through, leaving Current at
	// Initial minus that amount.
	want := client.Balance.Initial - tx.Amount()
	if client.Balance.Current != want {
		t.Fatalf("expected balance %d after stall-then-resubmit, got %d", want, client.Balance.Current)
	}
	if simclock.Now(evtMgr) < 5.0 {
		t.Fatalf("expected at least settlementDelay*slotLength of virtual time to elapse, got %v", simclock.Now(evtMgr))
	}
}
