package dag

import (
	"testing"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

func TestBuilder_BuildsValidDAG(t *testing.T) {
	d, err := NewBuilder("nightly-report").
		Owner("ops").
		Description("fetch then notify").
		Node("fetch", models.NodeKindHTTP, "Fetch report", map[string]interface{}{"url": "https://example.com"}).
		Node("notify", models.NodeKindNotification, "Notify team", nil).
		Edge("fetch", "notify").
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if d.Name != "nightly-report" || d.Owner != "ops" {
		t.Fatalf("dag = %+v", d)
	}
	if len(d.Graph.Nodes) != 2 || len(d.Graph.Edges) != 1 {
		t.Fatalf("graph = %+v", d.Graph)
	}
	notify := d.NodeByID("notify")
	if notify == nil || notify.Config == nil {
		t.Error("Node() should default a nil config to an empty map, not leave it nil")
	}
}

func TestBuilder_BuildRejectsCycle(t *testing.T) {
	_, err := NewBuilder("cyclic").
		Node("a", models.NodeKindDelay, "a", nil).
		Node("b", models.NodeKindDelay, "b", nil).
		Edge("a", "b").
		Edge("b", "a").
		Build()
	if err == nil {
		t.Fatal("expected validation error for a cyclic graph")
	}
}

func TestBuilder_MustBuildPanicsOnInvalidDAG(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected MustBuild to panic on an invalid DAG")
		}
	}()
	NewBuilder("").MustBuild()
}
