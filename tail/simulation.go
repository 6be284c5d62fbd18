// Simulation wires a single tail server to N clients over mplex links and
// runs the shared clock to quiescence.
package tail

import (
	"fmt"

	"github.com/iti/evt/evtm"

	"github.com/rmourey26/hydra-sim/internal/mplex"
	"github.com/rmourey26/hydra-sim/internal/simclock"
	"github.com/rmourey26/hydra-sim/internal/trace"
)

// ServerOptions configures the broker side of a Simulation.
type ServerOptions struct {
	Concurrency   int
	WriteCap      float64 // bytes/second, server endpoint
	ReadCap       float64
	OutCapBytes   int // server-side outbound cap, default 1e6 bytes
	InCapBytes    int
}

// ClientOptions configures every client side of a Simulation. Per-client
// link latency is supplied separately since it may vary by region pair.
type ClientOptions struct {
	WriteCap        float64 // client link bandwidth
	ReadCap         float64
	OutCapBytes     int // client-side outbound cap, default 1e3 bytes
	InCapBytes      int
	InitialBalance  int64
	Window          *PaymentWindow
	SettlementDelay int
	SlotLength      float64
}

// Simulation owns the server, every client, their pairwise links and the
// shared clock.
type Simulation struct {
	EvtMgr  *evtm.EventManager
	Rec     *trace.Recorder
	Server  *Server
	Clients map[ClientID]*Client
}

// NewSimulation builds a broker and numClients clients, links each client to
// the server at the given latency, and loads each client with a pre-
// generated tape.
func NewSimulation(numClients int, linkLatency float64, serverOpts ServerOptions, clientOpts ClientOptions, tapes map[ClientID][]Event, rec *trace.Recorder) *Simulation {
	evtMgr := simclock.New()
	if serverOpts.OutCapBytes == 0 {
		serverOpts.OutCapBytes = 1e6
	}
	if clientOpts.OutCapBytes == 0 {
		clientOpts.OutCapBytes = 1e3
	}
	srv := NewServer(rec, serverOpts.Concurrency)

	sim := &Simulation{EvtMgr: evtMgr, Rec: rec, Server: srv, Clients: make(map[ClientID]*Client)}
	for i := 1; i <= numClients; i++ {
		id := ClientID(i)
		serverSide := mplex.New(rec, fmt.Sprintf("server-client-%d", id), serverOpts.WriteCap, serverOpts.ReadCap, serverOpts.OutCapBytes, serverOpts.InCapBytes)
		clientSide := mplex.New(rec, fmt.Sprintf("client-%d-server", id), clientOpts.WriteCap, clientOpts.ReadCap, clientOpts.OutCapBytes, clientOpts.InCapBytes)
		mplex.Connect(serverSide, clientSide, linkLatency)

		srv.Register(id, serverSide)
		client := NewClient(id, rec, clientSide, clientOpts.InitialBalance, clientOpts.Window, clientOpts.SettlementDelay, clientOpts.SlotLength, tapes[id])
		sim.Clients[id] = client
	}
	return sim
}

// Run starts every client's event loop and drives the shared clock until
// every client's tape is exhausted and the server has no outstanding work.
func (s *Simulation) Run() {
	for _, c := range s.Clients {
		c.Start(s.EvtMgr)
	}
	simclock.RunToQuiescence(s.EvtMgr, s.idle)
}

func (s *Simulation) idle() bool {
	if !s.Server.Idle() {
		return false
	}
	for _, c := range s.Clients {
		if !c.Idle() {
			return false
		}
	}
	return true
}
