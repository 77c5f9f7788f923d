package dag

import (
	"fmt"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// Validator enforces the DAG invariants from spec §3: node-id uniqueness,
// edges referencing existing nodes, and acyclicity.
type Validator struct{}

// NewValidator creates a new DAG validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a DAG's graph against invariants 1 and 2, enforced on
// every write.
func (v *Validator) Validate(d *models.DAG) error {
	if d.Name == "" {
		return fmt.Errorf("DAG name cannot be empty")
	}

	nodeIDs := make(map[string]bool, len(d.Graph.Nodes))
	for _, n := range d.Graph.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node id cannot be empty")
		}
		if nodeIDs[n.ID] {
			return fmt.Errorf("duplicate node id: %s", n.ID)
		}
		nodeIDs[n.ID] = true
	}

	for _, e := range d.Graph.Edges {
		if !nodeIDs[e.Source] {
			return fmt.Errorf("edge references non-existent source node: %s", e.Source)
		}
		if !nodeIDs[e.Target] {
			return fmt.Errorf("edge references non-existent target node: %s", e.Target)
		}
	}

	g := NewGraph(d)
	if g.HasCycle() {
		return fmt.Errorf("cycle detected in DAG")
	}

	if d.RetryPolicy.MaxAttempts < 0 {
		return fmt.Errorf("retryPolicy.maxAttempts must be >= 1 when set")
	}

	return nil
}
