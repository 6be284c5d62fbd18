package mplex

// region.go implements the region x region -> latency table as a shortest-
// path query over a small weighted graph, generalizing routes.go's device-
// to-device shortest path machinery from network devices to abstract
// geographic regions.

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// Region names a geographic region a node or client is deployed in.
type Region string

// RegionTable is a deterministic region x region -> latency function backed
// by a shortest-path computation over a graph of known inter-region links.
// Building it from an edge list rather than a dense matrix lets a topology
// describe only the links that exist and have the table fill in transit
// latencies through intermediate regions, mirroring how routes.go derives
// device-to-device paths from a sparse connectivity graph.
type RegionTable struct {
	names  []Region
	idx    map[Region]int64
	g      *simple.WeightedUndirectedGraph
	cache  map[Region]path.Shortest
}

// RegionLink is one direct, directly-measured latency between two regions,
// in seconds.
type RegionLink struct {
	A, B    Region
	Latency float64
}

// NewRegionTable builds a RegionTable from a set of direct links. Regions
// not connected by any path (including through intermediates) report an
// error from Latency.
func NewRegionTable(links []RegionLink) *RegionTable {
	rt := &RegionTable{idx: make(map[Region]int64), cache: make(map[Region]path.Shortest)}
	rt.g = simple.NewWeightedUndirectedGraph(0, 0)

	regionID := func(r Region) int64 {
		id, present := rt.idx[r]
		if !present {
			id = int64(len(rt.names))
			rt.idx[r] = id
			rt.names = append(rt.names, r)
			rt.g.AddNode(simple.Node(id))
		}
		return id
	}

	for _, link := range links {
		a := regionID(link.A)
		b := regionID(link.B)
		rt.g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(a), T: simple.Node(b), W: link.Latency})
	}
	return rt
}

// Latency returns the shortest-path latency between a and b, seconds.
// Latency(a, a) is always 0. The result is deterministic for a given region
// pair and table: Dijkstra over a fixed graph never varies run to run,
// satisfying determinism requirement on the latency table.
func (rt *RegionTable) Latency(a, b Region) (float64, error) {
	if a == b {
		return 0, nil
	}
	aID, aOK := rt.idx[a]
	bID, bOK := rt.idx[b]
	if !aOK || !bOK {
		return 0, fmt.Errorf("mplex: unknown region in latency lookup: %s <-> %s", a, b)
	}

	tree, cached := rt.cache[a]
	if !cached {
		tree = path.DijkstraFrom(simple.Node(aID), rt.g)
		rt.cache[a] = tree
	}
	_, latency := tree.To(bID)
	if math.IsInf(latency, 1) {
		return 0, fmt.Errorf("mplex: no route between regions %s and %s", a, b)
	}
	return latency, nil
}

// Regions returns the known region names sorted by name, primarily useful for deterministic iteration in tests and config dumps.
func (rt *RegionTable) Regions() []Region {
	out := append([]Region(nil), rt.names...)
	slices.Sort(out)
	return out
}

var _ graph.Graph = (*simple.WeightedUndirectedGraph)(nil)
