package dag

import (
	"fmt"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// Builder provides a fluent API for constructing a DAG, generalized from a
// flat task list to the spec's graph-of-nodes-and-edges model.
type Builder struct {
	dag   *models.DAG
	nodes map[string]*models.Node
	edges []models.Edge
}

// NewBuilder creates a new DAG builder.
func NewBuilder(name string) *Builder {
	return &Builder{
		dag: &models.DAG{
			Name:        name,
			Active:      true,
			RetryPolicy: models.DefaultRetryPolicy(),
			Schedule:    models.Schedule{Kind: models.ScheduleManual, Enabled: true},
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		},
		nodes: make(map[string]*models.Node),
	}
}

// ID sets the DAG ID.
func (b *Builder) ID(id string) *Builder {
	b.dag.ID = id
	return b
}

// Owner sets the owning user.
func (b *Builder) Owner(owner string) *Builder {
	b.dag.Owner = owner
	return b
}

// Description sets the DAG description.
func (b *Builder) Description(desc string) *Builder {
	b.dag.Description = desc
	return b
}

// Schedule sets the DAG's schedule variant.
func (b *Builder) Schedule(s models.Schedule) *Builder {
	b.dag.Schedule = s
	return b
}

// RetryPolicy sets the DAG-level retry policy.
func (b *Builder) RetryPolicy(p models.RetryPolicy) *Builder {
	b.dag.RetryPolicy = p
	return b
}

// Active sets whether the scheduler may trigger the DAG.
func (b *Builder) Active(active bool) *Builder {
	b.dag.Active = active
	return b
}

// Node adds a node to the DAG.
func (b *Builder) Node(id string, kind models.NodeKind, displayName string, config map[string]interface{}) *Builder {
	if config == nil {
		config = map[string]interface{}{}
	}
	b.nodes[id] = &models.Node{ID: id, Kind: kind, DisplayName: displayName, Config: config}
	return b
}

// Edge adds a dependency edge source -> target.
func (b *Builder) Edge(source, target string) *Builder {
	b.edges = append(b.edges, models.Edge{Source: source, Target: target})
	return b
}

// Build constructs and validates the final DAG.
func (b *Builder) Build() (*models.DAG, error) {
	b.dag.Graph.Nodes = make([]models.Node, 0, len(b.nodes))
	for _, n := range b.nodes {
		b.dag.Graph.Nodes = append(b.dag.Graph.Nodes, *n)
	}
	b.dag.Graph.Edges = b.edges

	if err := NewValidator().Validate(b.dag); err != nil {
		return nil, fmt.Errorf("DAG validation failed: %w", err)
	}

	return b.dag, nil
}

// MustBuild builds the DAG and panics on error (useful in tests).
func (b *Builder) MustBuild() *models.DAG {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}
