package view

import (
	"context"
	"testing"
	"time"

	"github.com/tracelens/rootgraph/internal/models"
)

func TestNodeSelectionToggle(t *testing.T) {
	c := NewController(HitConfig{})
	n := &models.GraphNode{ID: "a"}

	var clicked []string
	c.OnNodeClick(func(node models.GraphNode) { clicked = append(clicked, node.ID) })

	c.ClickNode(n)
	if c.SelectedNode() == nil || c.SelectedNode().ID != "a" {
		t.Fatalf("expected node selected")
	}
	c.ClickNode(n)
	if c.SelectedNode() != nil {
		t.Fatalf("second click should deselect")
	}
	if len(clicked) != 1 {
		t.Fatalf("callback should fire on select only, fired %d times", len(clicked))
	}
}

func TestNodeAndEdgeSelectionAreExclusive(t *testing.T) {
	c := NewController(HitConfig{})
	n := &models.GraphNode{ID: "a"}
	e := &models.GraphEdge{ID: "e"}

	c.ClickNode(n)
	c.ClickEdge(e)
	if c.SelectedNode() != nil {
		t.Fatalf("edge click should clear node selection")
	}
	if c.SelectedEdge() == nil || c.SelectedEdge().ID != "e" {
		t.Fatalf("expected edge selected")
	}

	c.ClickNode(n)
	if c.SelectedEdge() != nil {
		t.Fatalf("node click should clear edge selection")
	}
}

func TestEdgeClickCallbackReceivesFullEdge(t *testing.T) {
	c := NewController(HitConfig{})
	e := &models.GraphEdge{ID: "e", Metadata: models.EdgeMetadata{CallCount: 7}}

	var got models.GraphEdge
	c.OnEdgeClick(func(edge models.GraphEdge) { got = edge })

	c.ClickEdge(e)
	if got.ID != "e" || got.Metadata.CallCount != 7 {
		t.Fatalf("callback received incomplete edge: %+v", got)
	}
}

func TestHoverAndLeave(t *testing.T) {
	c := NewController(HitConfig{})
	n := &models.GraphNode{ID: "a"}

	c.Hover(n, 12, 34)
	hovered, x, y := c.HoveredNode()
	if hovered == nil || x != 12 || y != 34 {
		t.Fatalf("hover state not recorded")
	}

	c.Leave()
	if hovered, _, _ := c.HoveredNode(); hovered != nil {
		t.Fatalf("leave should clear hover")
	}
}

func TestNodeHitTest(t *testing.T) {
	c := NewController(HitConfig{})
	v := NewViewport(Config{})
	nodes := []*models.GraphNode{
		{ID: "a", Position: models.Position{X: 100, Y: 100}},
		{ID: "b", Position: models.Position{X: 300, Y: 300}},
	}

	if hit := c.NodeAt(nodes, v, 105, 95); hit == nil || hit.ID != "a" {
		t.Fatalf("expected hit on a, got %+v", hit)
	}
	if hit := c.NodeAt(nodes, v, 200, 200); hit != nil {
		t.Fatalf("expected miss, got %s", hit.ID)
	}

	// Hit-testing respects the zoom transform.
	v.ZoomAt(0, 0, 2)
	if hit := c.NodeAt(nodes, v, 600, 600); hit == nil || hit.ID != "b" {
		t.Fatalf("expected zoomed hit on b, got %+v", hit)
	}
}

func TestEdgeHitTest(t *testing.T) {
	c := NewController(HitConfig{})
	v := NewViewport(Config{})
	nodes := []*models.GraphNode{
		{ID: "a", Position: models.Position{X: 0, Y: 0}},
		{ID: "b", Position: models.Position{X: 100, Y: 0}},
	}
	edges := []models.GraphEdge{{ID: "e", Source: "a", Target: "b"}}

	if hit := c.EdgeAt(nodes, edges, v, 50, 3); hit == nil || hit.ID != "e" {
		t.Fatalf("expected hit near the segment midpoint")
	}
	if hit := c.EdgeAt(nodes, edges, v, 50, 40); hit != nil {
		t.Fatalf("expected miss far from the segment")
	}
}

func TestPlaybackWrapsAtHundred(t *testing.T) {
	p := NewPlayer(nil, 30)
	for i := 0; i < 4; i++ {
		p.Advance()
	}
	// 4 frames at speed 30 = 120, wrapped to 20.
	if got := p.Position(); got != 20 {
		t.Fatalf("expected wrapped position 20, got %f", got)
	}
}

func TestPlaybackPauseStopsFrames(t *testing.T) {
	p := NewPlayer(nil, 1)
	p.Play(context.Background())
	if !p.Playing() {
		t.Fatalf("expected playing after Play")
	}
	p.Pause()
	if p.Playing() {
		t.Fatalf("expected stopped after Pause")
	}

	pos := p.Position()
	time.Sleep(40 * time.Millisecond)
	if p.Position() != pos {
		t.Fatalf("cursor advanced after pause")
	}
}

func TestPlaybackCurrentTimeMapping(t *testing.T) {
	p := NewPlayer(nil, 1)
	tr := models.TimeRange{Start: 1000, End: 2000}

	p.Seek(50)
	if got := p.CurrentTime(tr); got != 1500 {
		t.Fatalf("expected midpoint 1500, got %d", got)
	}

	// Degenerate range pins the cursor to the start.
	if got := p.CurrentTime(models.TimeRange{Start: 700, End: 700}); got != 700 {
		t.Fatalf("expected 700 for empty range, got %d", got)
	}
}
