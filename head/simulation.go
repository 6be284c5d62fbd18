// Simulation wires N head nodes together with mplex links, seeds the initial
// client events, and runs the shared clock to quiescence.
package head

import (
	"github.com/iti/evt/evtm"

	"github.com/rmourey26/hydra-sim/internal/mockcrypto"
	"github.com/rmourey26/hydra-sim/internal/mplex"
	"github.com/rmourey26/hydra-sim/internal/simclock"
	"github.com/rmourey26/hydra-sim/internal/trace"
)

// Default bandwidths and link capacity for head links; the head protocol
// only ever exchanges small control messages and tx bodies, so a single pair
// of constants is enough (cf. ServerOptions for the tail side, where these
// are configurable ).
const (
	defaultWriteCap  = 10e6 // bytes/second
	defaultReadCap   = 10e6
	defaultOutCapacity = 1 << 20
	defaultInCapacity  = 1 << 20
)

// Simulation owns every node, their pairwise links and the shared clock.
type Simulation struct {
	EvtMgr *evtm.EventManager
	Rec    *trace.Recorder
	Nodes  map[NodeID]*Node
	Links  map[[2]NodeID]float64 // link latency by unordered node pair, seconds
}

// NewSimulation builds a Simulation with numParties nodes, a round-robin
// leader function, all-pairs links at the given one-way latency, and
// deterministically derived keypairs.
func NewSimulation(numParties int, linkLatency float64, rec *trace.Recorder) *Simulation {
	evtMgr := simclock.New()

	vks := make(map[NodeID]mockcrypto.VKey, numParties)
	keys := make(map[NodeID]mockcrypto.KeyPair, numParties)
	for i := 0; i < numParties; i++ {
		kp := mockcrypto.GenerateKeyPair(NodeID(i))
		keys[NodeID(i)] = kp
		vks[NodeID(i)] = kp.VK
	}

	leaderFun := func(n SnapN) NodeID { return RoundRobinLeader(n, numParties) }

	sim := &Simulation{EvtMgr: evtMgr, Rec: rec, Nodes: make(map[NodeID]*Node), Links: make(map[[2]NodeID]float64)}
	for i := 0; i < numParties; i++ {
		id := NodeID(i)
		hs := NewHState(id, keys[id].SK, vks, leaderFun)
		sim.Nodes[id] = NewNode(id, hs, rec)
	}

	for i := 0; i < numParties; i++ {
		for j := i + 1; j < numParties; j++ {
			a, b := NodeID(i), NodeID(j)
			endpointA := mplex.New(rec, nodeLabel(a)+"->"+nodeLabel(b), defaultWriteCap, defaultReadCap, defaultOutCapacity, defaultInCapacity)
			endpointB := mplex.New(rec, nodeLabel(b)+"->"+nodeLabel(a), defaultWriteCap, defaultReadCap, defaultOutCapacity, defaultInCapacity)
			mplex.Connect(endpointA, endpointB, linkLatency)
			sim.Nodes[a].Link(b, endpointA)
			sim.Nodes[b].Link(a, endpointB)
			sim.Links[[2]NodeID{a, b}] = linkLatency
		}
	}
	return sim
}

// Submit injects a locally-originated head protocol event — typically
// New(tx) — at the given node.
func (s *Simulation) Submit(at NodeID, msg HeadProtocol) {
	s.Nodes[at].Inject(s.EvtMgr, msg)
}

// TriggerSnapshot injects a NewSn event at node at, which callers pass as
// the leader of the next snapshot round. Injecting at a non-leader node is legal but yields Invalid: only the party
// hcLeaderFun designates may make progress on it.
func (s *Simulation) TriggerSnapshot(at NodeID) {
	s.Nodes[at].Inject(s.EvtMgr, NewSn{})
}

// Run drives the shared clock until every node's inbox is drained and no
// node is mid-pump: the fixed point a run settles to once no more progress
// is possible.
func (s *Simulation) Run() {
	simclock.RunToQuiescence(s.EvtMgr, s.idle)
}

func (s *Simulation) idle() bool {
	for _, n := range s.Nodes {
		if !n.Idle() {
			return false
		}
	}
	return true
}
