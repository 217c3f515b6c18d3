package view

import (
	"math"

	"github.com/tracelens/rootgraph/internal/models"
)

// HitConfig holds hit-testing constants. Node radii mirror the render size
// function used by the layout.
type HitConfig struct {
	NodeBaseSize  float64
	MaxErrorBonus float64
	// EdgeThreshold is the maximum screen distance from an edge segment
	// that still counts as a hit.
	EdgeThreshold float64
}

// DefaultHitConfig returns the hit-testing defaults.
func DefaultHitConfig() HitConfig {
	return HitConfig{
		NodeBaseSize:  16,
		MaxErrorBonus: 16,
		EdgeThreshold: 6,
	}
}

// Controller tracks selection and hover state and dispatches click events
// to external collaborators. Callbacks receive the full node/edge so an
// inspector can render detail without a second lookup. State is owned by
// one session and mutated between user events only.
type Controller struct {
	hit HitConfig

	selectedNode *models.GraphNode
	selectedEdge *models.GraphEdge
	hoveredNode  *models.GraphNode
	hoverX       float64
	hoverY       float64

	onNodeClick func(models.GraphNode)
	onEdgeClick func(models.GraphEdge)
}

// NewController constructs a Controller.
func NewController(hit HitConfig) *Controller {
	if hit == (HitConfig{}) {
		hit = DefaultHitConfig()
	}
	return &Controller{hit: hit}
}

// OnNodeClick registers the node click callback.
func (c *Controller) OnNodeClick(fn func(models.GraphNode)) { c.onNodeClick = fn }

// OnEdgeClick registers the edge click callback.
func (c *Controller) OnEdgeClick(fn func(models.GraphEdge)) { c.onEdgeClick = fn }

// ClickNode toggles node selection and clears any edge selection.
func (c *Controller) ClickNode(n *models.GraphNode) {
	if n == nil {
		return
	}
	c.selectedEdge = nil
	if c.selectedNode != nil && c.selectedNode.ID == n.ID {
		c.selectedNode = nil
		return
	}
	c.selectedNode = n
	if c.onNodeClick != nil {
		c.onNodeClick(*n)
	}
}

// ClickEdge toggles edge selection and clears any node selection.
func (c *Controller) ClickEdge(e *models.GraphEdge) {
	if e == nil {
		return
	}
	c.selectedNode = nil
	if c.selectedEdge != nil && c.selectedEdge.ID == e.ID {
		c.selectedEdge = nil
		return
	}
	c.selectedEdge = e
	if c.onEdgeClick != nil {
		c.onEdgeClick(*e)
	}
}

// Hover marks a node as hovered with the screen position for tooltip
// placement.
func (c *Controller) Hover(n *models.GraphNode, px, py float64) {
	c.hoveredNode = n
	c.hoverX = px
	c.hoverY = py
}

// Leave clears the hover state.
func (c *Controller) Leave() {
	c.hoveredNode = nil
}

// SelectedNode returns the selected node, or nil.
func (c *Controller) SelectedNode() *models.GraphNode { return c.selectedNode }

// SelectedEdge returns the selected edge, or nil.
func (c *Controller) SelectedEdge() *models.GraphEdge { return c.selectedEdge }

// HoveredNode returns the hovered node and tooltip position.
func (c *Controller) HoveredNode() (*models.GraphNode, float64, float64) {
	return c.hoveredNode, c.hoverX, c.hoverY
}

// NodeAt hit-tests visible nodes at a screen position, returning the last
// match (topmost in draw order), or nil.
func (c *Controller) NodeAt(nodes []*models.GraphNode, vp *Viewport, px, py float64) *models.GraphNode {
	gx, gy := vp.ToGraph(px, py)
	var hit *models.GraphNode
	for _, n := range nodes {
		size := c.nodeSize(n)
		if math.Hypot(n.Position.X-gx, n.Position.Y-gy) <= size {
			hit = n
		}
	}
	return hit
}

// EdgeAt hit-tests visible edges at a screen position using point-to-
// segment distance in graph space, or nil.
func (c *Controller) EdgeAt(nodes []*models.GraphNode, edges []models.GraphEdge, vp *Viewport, px, py float64) *models.GraphEdge {
	byID := make(map[string]*models.GraphNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	gx, gy := vp.ToGraph(px, py)
	threshold := c.hit.EdgeThreshold / vp.Transform().Scale

	for i := range edges {
		src, ok := byID[edges[i].Source]
		if !ok {
			continue
		}
		dst, ok := byID[edges[i].Target]
		if !ok {
			continue
		}
		d := pointSegmentDistance(gx, gy, src.Position.X, src.Position.Y, dst.Position.X, dst.Position.Y)
		if d <= threshold {
			return &edges[i]
		}
	}
	return nil
}

func (c *Controller) nodeSize(n *models.GraphNode) float64 {
	bonus := float64(n.Metadata.ErrorCount) * 2
	if bonus > c.hit.MaxErrorBonus {
		bonus = c.hit.MaxErrorBonus
	}
	return c.hit.NodeBaseSize + bonus
}

func pointSegmentDistance(px, py, x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	lengthSq := dx*dx + dy*dy
	if lengthSq == 0 {
		return math.Hypot(px-x1, py-y1)
	}
	t := ((px-x1)*dx + (py-y1)*dy) / lengthSq
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return math.Hypot(px-(x1+t*dx), py-(y1+t*dy))
}
