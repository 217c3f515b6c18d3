package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/tracelens/rootgraph/internal/cluster"
	"github.com/tracelens/rootgraph/internal/metrics"
	"github.com/tracelens/rootgraph/internal/models"
	"github.com/tracelens/rootgraph/internal/sim"
	"github.com/tracelens/rootgraph/internal/store"
	"github.com/tracelens/rootgraph/internal/transform"
	"github.com/tracelens/rootgraph/internal/utils"
	"github.com/tracelens/rootgraph/internal/view"
)

// TraceSource fetches raw traces for a project and service window.
type TraceSource interface {
	FetchTraces(ctx context.Context, projectID, service string, start, end int64) ([]models.Trace, error)
}

// Config carries the session-scoped tunables the service seeds new
// sessions with.
type Config struct {
	// CanvasWidth and CanvasHeight bound the simulation area.
	CanvasWidth  float64
	CanvasHeight float64
	// PlaybackSpeed is the initial timeline playback speed.
	PlaybackSpeed float64
}

// DefaultConfig mirrors the dashboard's default canvas.
func DefaultConfig() Config {
	return Config{
		CanvasWidth:   800,
		CanvasHeight:  600,
		PlaybackSpeed: 1,
	}
}

// BuildRequest describes one graph build. When Traces is non-empty the
// source is bypassed and the inline traces are used directly.
type BuildRequest struct {
	ProjectID string
	Service   string
	Start     int64
	End       int64
	Traces    []models.Trace
}

// GraphService orchestrates trace fetching, graph construction, cluster
// detection and per-session layout/interaction state.
type GraphService struct {
	logger      *slog.Logger
	source      TraceSource
	transformer *transform.Transformer
	detector    *cluster.Detector
	advisor     *cluster.AdviceEngine
	sessions    *store.MemoryStore
	cfg         Config
	simCfg      sim.Config
	viewCfg     view.Config
	hitCfg      view.HitConfig
	clk         clock.Clock
	latencies   *utils.LatencyTracker
}

// NewGraphService constructs the graph service facade. The advisor may be
// nil when no advice rules are configured.
func NewGraphService(
	logger *slog.Logger,
	source TraceSource,
	transformer *transform.Transformer,
	detector *cluster.Detector,
	advisor *cluster.AdviceEngine,
	sessions *store.MemoryStore,
	cfg Config,
	simCfg sim.Config,
	viewCfg view.Config,
	clk clock.Clock,
) *GraphService {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.New()
	}
	if cfg.CanvasWidth <= 0 || cfg.CanvasHeight <= 0 {
		cfg = DefaultConfig()
	}
	if cfg.PlaybackSpeed <= 0 {
		cfg.PlaybackSpeed = 1
	}
	return &GraphService{
		logger:      logger,
		source:      source,
		transformer: transformer,
		detector:    detector,
		advisor:     advisor,
		sessions:    sessions,
		cfg:         cfg,
		simCfg:      simCfg,
		viewCfg:     viewCfg,
		hitCfg:      view.DefaultHitConfig(),
		clk:         clk,
		latencies:   utils.NewLatencyTracker(1024),
	}
}

// BuildGraph builds a new graph session from the request and starts its
// layout simulation.
func (s *GraphService) BuildGraph(ctx context.Context, req BuildRequest) (*store.Session, error) {
	traces, err := s.resolveTraces(ctx, req)
	if err != nil {
		metrics.ObserveBuild(0, metrics.OutcomeError)
		return nil, err
	}

	start := time.Now()
	graph := s.buildGraphData(traces)
	duration := time.Since(start)

	session := &store.Session{
		ID:         uuid.NewString(),
		Graph:      graph,
		Sim:        sim.NewSimulation(s.logger, s.simCfg, s.clk),
		Viewport:   view.NewViewport(s.viewCfg),
		Controller: view.NewController(s.hitCfg),
		Player:     view.NewPlayer(s.clk, s.cfg.PlaybackSpeed),
		Filter:     view.DefaultFilter(),
		CreatedAt:  s.clk.Now(),
	}
	session.Sim.Reset(graph.Nodes, graph.Edges, s.cfg.CanvasWidth, s.cfg.CanvasHeight)
	// The layout outlives the triggering request; only Stop or the tick
	// budget ends it.
	session.Sim.Start(context.WithoutCancel(ctx))

	s.sessions.Put(session)
	metrics.SetActiveSessions(s.sessions.Len())

	s.latencies.Observe(duration)
	metrics.ObserveBuild(duration, metrics.OutcomeSuccess)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("graph build latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Int("samples", count))
	}

	s.logger.Debug("graph built",
		slog.String("session_id", session.ID),
		slog.Int("nodes", len(graph.Nodes)),
		slog.Int("edges", len(graph.Edges)),
		slog.Int("clusters", len(graph.FailureClusters)))

	return session, nil
}

// RefreshSession rebuilds an existing session's graph in place, restarting
// its layout simulation from a fresh seed. Viewport, selection and playback
// state survive the refresh.
func (s *GraphService) RefreshSession(ctx context.Context, id string, req BuildRequest) (*store.Session, error) {
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, utils.NewAppError("service.RefreshSession", "session not found", nil)
	}

	traces, err := s.resolveTraces(ctx, req)
	if err != nil {
		metrics.ObserveBuild(0, metrics.OutcomeError)
		return nil, err
	}

	start := time.Now()
	graph := s.buildGraphData(traces)
	duration := time.Since(start)

	session.Sim.Stop()
	metrics.ObserveLayout(session.Sim.Ticks())

	session.Lock()
	session.Graph = graph
	session.Unlock()

	session.Sim.Reset(graph.Nodes, graph.Edges, s.cfg.CanvasWidth, s.cfg.CanvasHeight)
	session.Sim.Start(context.WithoutCancel(ctx))

	s.latencies.Observe(duration)
	metrics.ObserveBuild(duration, metrics.OutcomeSuccess)

	s.logger.Debug("graph refreshed",
		slog.String("session_id", session.ID),
		slog.Int("nodes", len(graph.Nodes)))

	return session, nil
}

// RunLayout restarts the layout simulation for a session from the current
// positions, reporting the previous run's tick count.
func (s *GraphService) RunLayout(ctx context.Context, id string) (*store.Session, error) {
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, utils.NewAppError("service.RunLayout", "session not found", nil)
	}

	if session.Sim.Running() {
		session.Sim.Stop()
	}
	metrics.ObserveLayout(session.Sim.Ticks())

	session.Lock()
	graph := session.Graph
	session.Unlock()

	session.Sim.Reset(graph.Nodes, graph.Edges, s.cfg.CanvasWidth, s.cfg.CanvasHeight)
	session.Sim.Start(context.WithoutCancel(ctx))
	return session, nil
}

// GetSession looks up a live session by id.
func (s *GraphService) GetSession(id string) (*store.Session, bool) {
	return s.sessions.Get(id)
}

// DeleteSession removes a session, stopping its background loops through
// the store's evict hook.
func (s *GraphService) DeleteSession(id string) bool {
	deleted := s.sessions.Delete(id)
	metrics.SetActiveSessions(s.sessions.Len())
	return deleted
}

// Advice returns advisory strings for the graph's failure clusters. With
// no advisor configured it returns nil.
func (s *GraphService) Advice(graph *models.GraphData) []string {
	if s.advisor == nil || graph == nil {
		return nil
	}
	return s.advisor.Advise(graph.FailureClusters)
}

// LatencyP95 reports the current p95 graph build latency.
func (s *GraphService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

func (s *GraphService) resolveTraces(ctx context.Context, req BuildRequest) ([]models.Trace, error) {
	if len(req.Traces) > 0 {
		return req.Traces, nil
	}
	if s.source == nil {
		return nil, utils.NewAppError("service.BuildGraph", "no traces supplied and no trace source configured", nil)
	}
	start, end := utils.ClampRange(req.Start, req.End)
	traces, err := s.source.FetchTraces(ctx, req.ProjectID, req.Service, start, end)
	if err != nil {
		return nil, utils.NewAppError("service.BuildGraph", "fetching traces failed", err)
	}
	return traces, nil
}

func (s *GraphService) buildGraphData(traces []models.Trace) *models.GraphData {
	graph := s.transformer.Transform(traces)
	if s.detector != nil {
		graph.FailureClusters = s.detector.Detect(graph.Nodes, graph.Timeline)
	}
	return &graph
}

// StopSession halts a session's background loops. The store calls this on
// eviction so expired sessions never leak goroutines.
func StopSession(session *store.Session) {
	if session == nil {
		return
	}
	if session.Sim != nil {
		session.Sim.Stop()
	}
	if session.Player != nil {
		session.Player.Pause()
	}
}
