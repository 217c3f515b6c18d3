package view

import (
	"github.com/tracelens/rootgraph/internal/models"
)

// Transform is the pan/zoom mapping between graph space and screen space:
// screen = graph·scale + offset.
type Transform struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

// Config holds the viewport's tunable constants.
type Config struct {
	MinScale float64
	MaxScale float64
	// ZoomStep is the multiplicative factor per zoom notch.
	ZoomStep float64
	// FocusScale is the zoom applied when centering on a node.
	FocusScale float64
}

// DefaultConfig returns the viewport defaults.
func DefaultConfig() Config {
	return Config{
		MinScale:   0.1,
		MaxScale:   5,
		ZoomStep:   1.1,
		FocusScale: 1.5,
	}
}

// Viewport tracks the pan/zoom transform and the drag state machine.
// It is owned by a single session and mutated between user events only.
type Viewport struct {
	cfg Config
	t   Transform

	dragging    bool
	dragOriginX float64
	dragOriginY float64
	dragStartX  float64
	dragStartY  float64
}

// NewViewport constructs a Viewport at the identity transform.
func NewViewport(cfg Config) *Viewport {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Viewport{cfg: cfg, t: Transform{Scale: 1}}
}

// Transform returns the current viewport transform.
func (v *Viewport) Transform() Transform {
	return v.t
}

// ZoomAt applies a multiplicative zoom anchored at the pointer, keeping
// the graph point under the cursor fixed on screen.
func (v *Viewport) ZoomAt(px, py, factor float64) {
	newScale := clampScale(v.t.Scale*factor, v.cfg.MinScale, v.cfg.MaxScale)
	ratio := newScale / v.t.Scale
	v.t.X = px - (px-v.t.X)*ratio
	v.t.Y = py - (py-v.t.Y)*ratio
	v.t.Scale = newScale
}

// ZoomIn applies one zoom notch without a pointer anchor.
func (v *Viewport) ZoomIn() {
	v.t.Scale = clampScale(v.t.Scale*v.cfg.ZoomStep, v.cfg.MinScale, v.cfg.MaxScale)
}

// ZoomOut applies one inverse zoom notch without a pointer anchor.
func (v *Viewport) ZoomOut() {
	v.t.Scale = clampScale(v.t.Scale/v.cfg.ZoomStep, v.cfg.MinScale, v.cfg.MaxScale)
}

// Reset restores the identity transform.
func (v *Viewport) Reset() {
	v.t = Transform{Scale: 1}
}

// CenterOn sets the transform so the node's position maps to the canvas
// centre at the focus zoom.
func (v *Viewport) CenterOn(node *models.GraphNode, canvasWidth, canvasHeight float64) {
	if node == nil {
		return
	}
	scale := clampScale(v.cfg.FocusScale, v.cfg.MinScale, v.cfg.MaxScale)
	v.t = Transform{
		X:     canvasWidth/2 - node.Position.X*scale,
		Y:     canvasHeight/2 - node.Position.Y*scale,
		Scale: scale,
	}
}

// StartDrag begins a pan, recording the pointer origin and current offset.
func (v *Viewport) StartDrag(px, py float64) {
	v.dragging = true
	v.dragOriginX = px
	v.dragOriginY = py
	v.dragStartX = v.t.X
	v.dragStartY = v.t.Y
}

// DragTo pans the viewport by the pointer delta since StartDrag. Ignored
// when no drag is active. There is no momentum: the offset tracks the
// pointer exactly.
func (v *Viewport) DragTo(px, py float64) {
	if !v.dragging {
		return
	}
	v.t.X = v.dragStartX + (px - v.dragOriginX)
	v.t.Y = v.dragStartY + (py - v.dragOriginY)
}

// EndDrag finishes a pan.
func (v *Viewport) EndDrag() {
	v.dragging = false
}

// Dragging reports whether a pan is in progress.
func (v *Viewport) Dragging() bool {
	return v.dragging
}

// ToGraph converts screen coordinates to graph space.
func (v *Viewport) ToGraph(px, py float64) (float64, float64) {
	return (px - v.t.X) / v.t.Scale, (py - v.t.Y) / v.t.Scale
}

// ToScreen converts graph coordinates to screen space.
func (v *Viewport) ToScreen(x, y float64) (float64, float64) {
	return x*v.t.Scale + v.t.X, y*v.t.Scale + v.t.Y
}

func clampScale(s, lo, hi float64) float64 {
	if s < lo {
		return lo
	}
	if s > hi {
		return hi
	}
	return s
}
