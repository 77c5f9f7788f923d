package dag

import (
	"testing"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

func diamondDAG() *models.DAG {
	return &models.DAG{
		ID:   "test-dag",
		Name: "diamond",
		Graph: models.Graph{
			Nodes: []models.Node{
				{ID: "a", Kind: models.NodeKindHTTP},
				{ID: "b", Kind: models.NodeKindDelay},
				{ID: "c", Kind: models.NodeKindDelay},
				{ID: "d", Kind: models.NodeKindNotification},
			},
			Edges: []models.Edge{
				{Source: "a", Target: "b"},
				{Source: "a", Target: "c"},
				{Source: "b", Target: "d"},
				{Source: "c", Target: "d"},
			},
		},
	}
}

func TestGraph_Frontier(t *testing.T) {
	g := NewGraph(diamondDAG())
	frontier := g.Frontier()
	if len(frontier) != 1 || frontier[0] != "a" {
		t.Fatalf("Frontier() = %v, want [a]", frontier)
	}
}

func TestGraph_Dependents(t *testing.T) {
	g := NewGraph(diamondDAG())
	deps := g.Dependents("a")
	if len(deps) != 2 || deps[0] != "b" || deps[1] != "c" {
		t.Fatalf("Dependents(a) = %v, want [b c]", deps)
	}
}

func TestGraph_AllSatisfied(t *testing.T) {
	g := NewGraph(diamondDAG())
	if g.AllSatisfied("d", map[string]bool{"b": true}) {
		t.Error("AllSatisfied(d) should be false with only b complete")
	}
	if !g.AllSatisfied("d", map[string]bool{"b": true, "c": true}) {
		t.Error("AllSatisfied(d) should be true with b and c complete")
	}
}

func TestGraph_TopologicalOrder(t *testing.T) {
	g := NewGraph(diamondDAG())
	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder() error: %v", err)
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["a"] > pos["c"] || pos["b"] > pos["d"] || pos["c"] > pos["d"] {
		t.Fatalf("TopologicalOrder() = %v violates edge order", order)
	}
}

func TestGraph_HasCycle(t *testing.T) {
	d := diamondDAG()
	d.Graph.Edges = append(d.Graph.Edges, models.Edge{Source: "d", Target: "a"})
	g := NewGraph(d)
	if !g.HasCycle() {
		t.Error("expected cycle to be detected")
	}
}

func TestGraph_HasCycle_Acyclic(t *testing.T) {
	g := NewGraph(diamondDAG())
	if g.HasCycle() {
		t.Error("diamond DAG should not report a cycle")
	}
}
