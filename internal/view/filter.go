package view

import (
	"github.com/tracelens/rootgraph/internal/models"
)

// FilterOptions is the predicate combining status flags, type allow-sets,
// and metric thresholds. Nil allow-sets admit every type.
type FilterOptions struct {
	ShowHealthy  bool                `json:"showHealthy"`
	ShowWarning  bool                `json:"showWarning"`
	ShowError    bool                `json:"showError"`
	ShowCritical bool                `json:"showCritical"`
	NodeTypes    []models.NodeType   `json:"nodeTypes,omitempty"`
	EdgeTypes    []models.EdgeType   `json:"edgeTypes,omitempty"`
	MinErrorCount int                `json:"minErrorCount"`
	MaxLatency    *float64           `json:"maxLatency,omitempty"`
}

// DefaultFilter shows everything.
func DefaultFilter() FilterOptions {
	return FilterOptions{
		ShowHealthy:  true,
		ShowWarning:  true,
		ShowError:    true,
		ShowCritical: true,
	}
}

// Apply returns the surviving nodes and edges. An edge survives only when
// its own type is admitted and both endpoints survive node filtering — an
// edge is never shown with a hidden endpoint.
func (f FilterOptions) Apply(g *models.GraphData) ([]*models.GraphNode, []models.GraphEdge) {
	nodes := make([]*models.GraphNode, 0, len(g.Nodes))
	kept := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if !f.admitsNode(n) {
			continue
		}
		nodes = append(nodes, n)
		kept[n.ID] = struct{}{}
	}

	edges := make([]models.GraphEdge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if !f.admitsEdgeType(e.Type) {
			continue
		}
		if _, ok := kept[e.Source]; !ok {
			continue
		}
		if _, ok := kept[e.Target]; !ok {
			continue
		}
		edges = append(edges, e)
	}
	return nodes, edges
}

func (f FilterOptions) admitsNode(n *models.GraphNode) bool {
	switch n.Status {
	case models.NodeStatusHealthy:
		if !f.ShowHealthy {
			return false
		}
	case models.NodeStatusWarning:
		if !f.ShowWarning {
			return false
		}
	case models.NodeStatusError:
		if !f.ShowError {
			return false
		}
	case models.NodeStatusCritical:
		if !f.ShowCritical {
			return false
		}
	}

	if len(f.NodeTypes) > 0 && !containsNodeType(f.NodeTypes, n.Type) {
		return false
	}
	if n.Metadata.ErrorCount < f.MinErrorCount {
		return false
	}
	// An absent latency is not zero: nodes without a measurement pass the
	// latency ceiling untouched.
	if f.MaxLatency != nil && n.Metadata.Latency != nil && *n.Metadata.Latency > *f.MaxLatency {
		return false
	}
	return true
}

func (f FilterOptions) admitsEdgeType(t models.EdgeType) bool {
	if len(f.EdgeTypes) == 0 {
		return true
	}
	for _, allowed := range f.EdgeTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

func containsNodeType(types []models.NodeType, t models.NodeType) bool {
	for _, allowed := range types {
		if allowed == t {
			return true
		}
	}
	return false
}
