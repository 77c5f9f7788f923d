package dag

import (
	"fmt"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// Graph represents a DAG's nodes and edges as an adjacency list with the
// traversal algorithms the dispatcher and scheduler need: frontier
// computation, topological order, and upstream/downstream lookups.
type Graph struct {
	nodes      map[string]*models.Node
	order      []string            // declared node order, for deterministic tie-breaking
	adjList    map[string][]string // nodeID -> dependents
	revAdjList map[string][]string // nodeID -> dependencies
}

// NewGraph builds a Graph from a DAG's node/edge definition.
func NewGraph(d *models.DAG) *Graph {
	g := &Graph{
		nodes:      make(map[string]*models.Node),
		adjList:    make(map[string][]string),
		revAdjList: make(map[string][]string),
	}

	for i := range d.Graph.Nodes {
		n := &d.Graph.Nodes[i]
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
		if _, ok := g.adjList[n.ID]; !ok {
			g.adjList[n.ID] = []string{}
		}
		if _, ok := g.revAdjList[n.ID]; !ok {
			g.revAdjList[n.ID] = []string{}
		}
	}

	for _, e := range d.Graph.Edges {
		g.adjList[e.Source] = append(g.adjList[e.Source], e.Target)
		g.revAdjList[e.Target] = append(g.revAdjList[e.Target], e.Source)
	}

	return g
}

// Frontier returns the node ids with zero incoming edges, in declared
// order — the set C6.createRun enqueues at run start (spec §4.4).
func (g *Graph) Frontier() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.revAdjList[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Dependents returns the nodes whose source is nodeID, in declared order.
func (g *Graph) Dependents(nodeID string) []string {
	targets := g.adjList[nodeID]
	out := make([]string, 0, len(targets))
	seen := make(map[string]bool)
	for _, id := range g.order {
		for _, t := range targets {
			if t == id && !seen[id] {
				out = append(out, id)
				seen[id] = true
			}
		}
	}
	return out
}

// Dependencies returns the immediate predecessors of a node.
func (g *Graph) Dependencies(nodeID string) []string {
	return g.revAdjList[nodeID]
}

// AllSatisfied reports whether every predecessor of nodeID is in
// successful (the ids of nodes with a success taskRecord) — the
// enqueueDependents guard in spec §4.4.
func (g *Graph) AllSatisfied(nodeID string, successful map[string]bool) bool {
	for _, dep := range g.revAdjList[nodeID] {
		if !successful[dep] {
			return false
		}
	}
	return true
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// Node returns a node by id.
func (g *Graph) Node(id string) (*models.Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return n, nil
}

// TopologicalOrder returns node ids in topological order via Kahn's
// algorithm, or an error if the graph has a cycle.
func (g *Graph) TopologicalOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = len(g.revAdjList[id])
	}

	var queue []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var result []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)

		for _, next := range g.adjList[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, fmt.Errorf("cycle detected in DAG")
	}
	return result, nil
}

// HasCycle reports whether the graph contains a cycle, i.e. violates
// invariant 1 (spec §3).
func (g *Graph) HasCycle() bool {
	_, err := g.TopologicalOrder()
	return err != nil
}
