package sim

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tracelens/rootgraph/internal/models"
)

// Config holds the simulation's tunable constants. The force magnitudes
// are empirically chosen presentation values; tests treat them as
// parameters, not physical truths.
type Config struct {
	// TickRate is the scheduling interval, targeting ~60 Hz.
	TickRate time.Duration
	// Budget bounds the total wall-clock runtime of one layout run.
	Budget time.Duration

	CenterStrength    float64
	RepulsionStrength float64
	SpringStrength    float64
	IdealDistance     float64
	Damping           float64

	BaseNodeSize  float64
	MaxErrorBonus float64
	MassDivisor   float64
	// SlowLatencyMs is the average latency above which an edge gets the
	// extra connection-strength bonus.
	SlowLatencyMs float64
}

// DefaultConfig returns the simulation defaults.
func DefaultConfig() Config {
	return Config{
		TickRate:          16 * time.Millisecond,
		Budget:            5 * time.Second,
		CenterStrength:    0.001,
		RepulsionStrength: 0.1,
		SpringStrength:    0.01,
		IdealDistance:     150,
		Damping:           0.9,
		BaseNodeSize:      16,
		MaxErrorBonus:     16,
		MassDivisor:       10,
		SlowLatencyMs:     1000,
	}
}

// NodePosition is a point-in-time position sample for streaming.
type NodePosition struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Simulation runs the iterative force layout over one graph. It owns node
// positions and velocities between Reset calls; statuses and the rest of
// the graph are never touched. All mutation happens under the internal
// lock, so a tick's positions are fully visible to the next tick and to
// concurrent snapshot readers.
type Simulation struct {
	mu      sync.Mutex
	cfg     Config
	logger  *slog.Logger
	clk     clock.Clock
	nodes   []*models.GraphNode
	edges   []models.GraphEdge
	byID    map[string]*models.GraphNode
	width   float64
	height  float64
	ticks   int64
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSimulation constructs a Simulation. A zero-value config is replaced
// with defaults; a nil clock uses the wall clock.
func NewSimulation(logger *slog.Logger, cfg Config, clk clock.Clock) *Simulation {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Simulation{cfg: cfg, logger: logger, clk: clk}
}

// Reset installs a new node/edge set and canvas, discarding all previous
// state. Any running layout is stopped first: a graph rebuild always
// restarts from the transformer's seed positions, never patches
// incrementally.
func (s *Simulation) Reset(nodes []*models.GraphNode, edges []models.GraphEdge, width, height float64) {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = nodes
	s.edges = edges
	s.width = width
	s.height = height
	s.ticks = 0
	s.byID = make(map[string]*models.GraphNode, len(nodes))
	for _, n := range nodes {
		n.VX, n.VY = 0, 0
		s.byID[n.ID] = n
	}
}

// Start schedules the tick loop until the budget elapses or the context is
// cancelled. Starting an already-running simulation is a no-op.
func (s *Simulation) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running || len(s.nodes) == 0 {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.loop(runCtx, done)
}

// Stop cancels the tick loop and waits for it to exit. Cancellation
// operates at tick granularity: an in-flight Step always completes.
func (s *Simulation) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the tick loop is currently scheduled.
func (s *Simulation) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Ticks returns the number of steps executed since the last Reset.
func (s *Simulation) Ticks() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Snapshot copies current node positions for streaming or rendering.
func (s *Simulation) Snapshot() []NodePosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]NodePosition, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = NodePosition{ID: n.ID, X: n.Position.X, Y: n.Position.Y}
	}
	return out
}

// CopyNodes returns value copies of the simulation's nodes, taken under the
// simulation lock so a concurrent Step never tears a read.
func (s *Simulation) CopyNodes() []models.GraphNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.GraphNode, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = *n
	}
	return out
}

func (s *Simulation) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
		close(done)
	}()

	ticker := s.clk.Ticker(s.cfg.TickRate)
	defer ticker.Stop()
	deadline := s.clk.Now().Add(s.cfg.Budget)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			// The budget trades convergence guarantees for bounded cost:
			// once it elapses no further ticks are scheduled.
			if !now.Before(deadline) {
				s.logger.Debug("layout budget elapsed", slog.Int64("ticks", s.Ticks()))
				return
			}
			s.Step()
		}
	}
}

// Step advances the simulation by one tick: centering, pairwise repulsion,
// edge springs, damping, integration, boundary clamp, in that order.
func (s *Simulation) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applyCentering()
	s.applyRepulsion()
	s.applySprings()

	for _, n := range s.nodes {
		n.VX *= s.cfg.Damping
		n.VY *= s.cfg.Damping

		if n.Pinned() {
			n.Position.X = *n.FX
			n.Position.Y = *n.FY
			n.VX, n.VY = 0, 0
		} else {
			n.Position.X += n.VX
			n.Position.Y += n.VY
		}

		size := s.nodeSize(n)
		n.Position.X = clamp(n.Position.X, size, s.width-size)
		n.Position.Y = clamp(n.Position.Y, size, s.height-size)
	}

	s.ticks++
}

// applyCentering pulls every node toward the canvas centre with a small
// constant magnitude. A node exactly at the centre is skipped to avoid a
// zero-length direction vector.
func (s *Simulation) applyCentering() {
	cx, cy := s.width/2, s.height/2
	for _, n := range s.nodes {
		dx := cx - n.Position.X
		dy := cy - n.Position.Y
		dist := math.Hypot(dx, dy)
		if dist == 0 {
			continue
		}
		mass := s.mass(n)
		n.VX += dx / dist * s.cfg.CenterStrength / mass
		n.VY += dy / dist * s.cfg.CenterStrength / mass
	}
}

// applyRepulsion pushes overlapping pairs apart. Distance is floored at 1
// so coincident nodes cannot blow up the division.
func (s *Simulation) applyRepulsion() {
	for i := 0; i < len(s.nodes); i++ {
		for j := i + 1; j < len(s.nodes); j++ {
			a, b := s.nodes[i], s.nodes[j]
			dx := b.Position.X - a.Position.X
			dy := b.Position.Y - a.Position.Y
			dist := math.Hypot(dx, dy)
			if dist < 1 {
				dist = 1
			}
			minDist := (s.nodeSize(a) + s.nodeSize(b)) * 2
			if dist >= minDist {
				continue
			}
			force := (minDist - dist) / dist * s.cfg.RepulsionStrength
			fx := dx * force
			fy := dy * force
			a.VX -= fx / s.mass(a)
			a.VY -= fy / s.mass(a)
			b.VX += fx / s.mass(b)
			b.VY += fy / s.mass(b)
		}
	}
}

// applySprings pulls edge endpoints toward the ideal separation, scaled by
// the per-edge connection strength.
func (s *Simulation) applySprings() {
	for _, edge := range s.edges {
		src, ok := s.byID[edge.Source]
		if !ok {
			continue
		}
		dst, ok := s.byID[edge.Target]
		if !ok {
			continue
		}

		dx := dst.Position.X - src.Position.X
		dy := dst.Position.Y - src.Position.Y
		dist := math.Hypot(dx, dy)
		if dist < 1 {
			dist = 1
		}

		strength := s.connectionStrength(edge)
		force := (dist - s.cfg.IdealDistance) * strength * s.cfg.SpringStrength
		fx := dx / dist * force
		fy := dy / dist * force

		src.VX += fx / s.mass(src)
		src.VY += fy / s.mass(src)
		dst.VX -= fx / s.mass(dst)
		dst.VY -= fy / s.mass(dst)
	}
}

// connectionStrength combines call volume, error rate, and a latency bonus
// into a spring weight in [0, ~1].
func (s *Simulation) connectionStrength(edge models.GraphEdge) float64 {
	strength := math.Log(float64(edge.Metadata.CallCount)+1) * 0.1
	strength += edge.Metadata.ErrorRate * 0.5
	if edge.Metadata.AverageLatency > s.cfg.SlowLatencyMs {
		strength += 0.2
	}
	return strength
}

// nodeSize is the render radius: error-heavy nodes draw larger, capped by
// MaxErrorBonus.
func (s *Simulation) nodeSize(n *models.GraphNode) float64 {
	bonus := float64(n.Metadata.ErrorCount) * 2
	if bonus > s.cfg.MaxErrorBonus {
		bonus = s.cfg.MaxErrorBonus
	}
	return s.cfg.BaseNodeSize + bonus
}

// mass scales force application for inertia: bigger (error-heavier) nodes
// move more sluggishly.
func (s *Simulation) mass(n *models.GraphNode) float64 {
	return s.nodeSize(n) / s.cfg.MassDivisor
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
