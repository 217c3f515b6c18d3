package transform

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/tracelens/rootgraph/internal/models"
)

// Config holds the tunable constants of the transformer. The cutoffs and
// seed geometry are empirically chosen presentation values, kept
// configurable rather than re-derived.
type Config struct {
	// ServiceCriticalCutoff is the error count above which a trace-level
	// node is critical rather than error.
	ServiceCriticalCutoff int
	// SpanCriticalCutoff is the span-level equivalent.
	SpanCriticalCutoff int
	// SeedRadius is the radius of the circle trace nodes are seeded on.
	SeedRadius float64
	// SeedCenter anchors the seed circle in graph space.
	SeedCenter models.Position
	// SlowLatencyMs marks an edge slow when its average latency exceeds it.
	SlowLatencyMs float64
	// SpikeZScore is the z-score above which a span duration is reported
	// as a performance spike.
	SpikeZScore float64
}

// DefaultConfig returns the transformer defaults.
func DefaultConfig() Config {
	return Config{
		ServiceCriticalCutoff: 5,
		SpanCriticalCutoff:    3,
		SeedRadius:            200,
		SeedCenter:            models.Position{X: 400, Y: 300},
		SlowLatencyMs:         1000,
		SpikeZScore:           2.0,
	}
}

// Transformer converts trace batches into the graph data model. It is a
// pure function of its input: identical batches yield identical graphs,
// seed positions included.
type Transformer struct {
	logger *slog.Logger
	cfg    Config
}

// NewTransformer constructs a Transformer. A zero-value config is replaced
// with defaults.
func NewTransformer(logger *slog.Logger, cfg Config) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Transformer{logger: logger, cfg: cfg}
}

// builder accumulates graph parts during one Transform call.
type builder struct {
	cfg      Config
	nodes    []*models.GraphNode
	edges    []models.GraphEdge
	edgeSeen map[string]struct{}
	timeline []models.TimelineEvent
}

// Transform builds a GraphData from the given trace batch. A trace with no
// spans still yields a valid single-node graph. Malformed input (duplicate
// ids, cyclic span references) is the ingest boundary's problem, not
// guarded here.
func (t *Transformer) Transform(traces []models.Trace) models.GraphData {
	b := &builder{
		cfg:      t.cfg,
		edgeSeen: make(map[string]struct{}),
	}

	total := len(traces)
	for i, trace := range traces {
		angle := 2 * math.Pi * float64(i) / float64(maxInt(total, 1))
		node := &models.GraphNode{
			ID:          trace.ID,
			Label:       trace.ServiceName,
			Type:        models.NodeTypeService,
			Status:      deriveStatus(trace.ErrorCount, trace.WarningCount, t.cfg.ServiceCriticalCutoff),
			ServiceName: trace.ServiceName,
			Position: models.Position{
				X: t.cfg.SeedCenter.X + t.cfg.SeedRadius*math.Cos(angle),
				Y: t.cfg.SeedCenter.Y + t.cfg.SeedRadius*math.Sin(angle),
			},
			Metadata: models.NodeMetadata{
				ErrorCount:   trace.ErrorCount,
				WarningCount: trace.WarningCount,
				Latency:      copyFloat(trace.Duration),
				TraceID:      trace.ID,
				StartTime:    trace.StartTime,
				EndTime:      trace.EndTime,
				Duration:     copyFloat(trace.Duration),
			},
		}
		b.nodes = append(b.nodes, node)
		b.recordEvents(node, trace.ErrorCount, t.cfg.ServiceCriticalCutoff)
		b.walkSpans(node, trace.ID, trace.ServiceName, trace.Spans, 1)
	}

	b.detectSpikes()

	sort.SliceStable(b.timeline, func(i, j int) bool {
		return b.timeline[i].Timestamp < b.timeline[j].Timestamp
	})

	graph := models.GraphData{
		Nodes:           b.nodes,
		Edges:           b.edges,
		Timeline:        b.timeline,
		FailureClusters: []models.FailureCluster{},
	}
	if len(b.timeline) > 0 {
		graph.TimeRange = models.TimeRange{
			Start: b.timeline[0].Timestamp,
			End:   b.timeline[len(b.timeline)-1].Timestamp,
		}
		graph.CurrentTime = graph.TimeRange.Start
	}

	t.logger.Debug("graph built",
		slog.Int("traces", len(traces)),
		slog.Int("nodes", len(graph.Nodes)),
		slog.Int("edges", len(graph.Edges)),
		slog.Int("events", len(graph.Timeline)),
	)
	return graph
}

// walkSpans descends the span tree, emitting one node per span and one
// deduplicated edge per (parent, child) pair. Child seed positions fan out
// around the parent, shrinking with depth so deep trees stay compact.
func (b *builder) walkSpans(parent *models.GraphNode, traceID, serviceName string, spans []models.Span, depth int) {
	denom := len(spans) - 1
	if denom < 1 {
		denom = 1
	}
	radius := math.Max(100-float64(depth)*20, 40)

	for i, span := range spans {
		angle := (float64(i)/float64(denom))*math.Pi - math.Pi/2 + float64(depth)*0.3
		svc := span.ServiceName
		if svc == "" {
			svc = serviceName
		}
		node := &models.GraphNode{
			ID:           span.ID,
			Label:        span.Name,
			Type:         models.NodeTypeFunction,
			Status:       deriveStatus(span.ErrorCount, span.WarningCount, b.cfg.SpanCriticalCutoff),
			ServiceName:  svc,
			FunctionName: span.Name,
			Position: models.Position{
				X: parent.Position.X + radius*math.Cos(angle),
				Y: parent.Position.Y + radius*math.Sin(angle),
			},
			Metadata: models.NodeMetadata{
				ErrorCount:   span.ErrorCount,
				WarningCount: span.WarningCount,
				Latency:      copyFloat(span.Duration),
				TraceID:      traceID,
				SpanID:       span.ID,
				StartTime:    span.StartTime,
				EndTime:      span.EndTime,
				Duration:     copyFloat(span.Duration),
			},
		}
		b.nodes = append(b.nodes, node)
		b.addEdge(parent, node)
		b.recordEvents(node, span.ErrorCount, b.cfg.SpanCriticalCutoff)
		b.walkSpans(node, traceID, svc, span.Spans, depth+1)
	}
}

// addEdge appends a parent→child edge unless the pair already exists.
func (b *builder) addEdge(parent, child *models.GraphNode) {
	key := parent.ID + "->" + child.ID
	if _, ok := b.edgeSeen[key]; ok {
		return
	}
	b.edgeSeen[key] = struct{}{}

	edgeType := models.EdgeTypeFunctionCall
	if parent.Type == models.NodeTypeService {
		edgeType = models.EdgeTypeAPICall
	}

	avgLatency := 0.0
	if child.Metadata.Latency != nil {
		avgLatency = *child.Metadata.Latency
	}

	edge := models.GraphEdge{
		ID:     "edge-" + key,
		Source: parent.ID,
		Target: child.ID,
		Type:   edgeType,
		Status: deriveEdgeStatus(child.Status, avgLatency, b.cfg.SlowLatencyMs),
		Metadata: models.EdgeMetadata{
			CallCount:      1,
			AverageLatency: avgLatency,
			ErrorRate:      errorRate(child.Metadata.ErrorCount),
		},
	}
	b.edges = append(b.edges, edge)
}

// recordEvents appends the api_call event for a node's start and, when the
// node saw errors, an error event at its end.
func (b *builder) recordEvents(node *models.GraphNode, errorCount, criticalCutoff int) {
	b.timeline = append(b.timeline, models.TimelineEvent{
		Timestamp:   node.Metadata.StartTime,
		Type:        models.EventTypeAPICall,
		NodeID:      node.ID,
		Description: fmt.Sprintf("%s invoked", node.Label),
		Severity:    models.SeverityLow,
	})

	if errorCount <= 0 {
		return
	}
	severity := models.SeverityHigh
	if errorCount > criticalCutoff {
		severity = models.SeverityCritical
	}
	b.timeline = append(b.timeline, models.TimelineEvent{
		Timestamp:   node.Metadata.EndTime,
		Type:        models.EventTypeError,
		NodeID:      node.ID,
		Description: fmt.Sprintf("%d errors in %s", errorCount, node.Label),
		Severity:    severity,
	})
}

// detectSpikes runs a z-score pass over span durations and reports outliers
// as performance_spike events. Spans without a recorded duration are
// excluded rather than treated as zero.
func (b *builder) detectSpikes() {
	durations := make([]float64, 0, len(b.nodes))
	for _, node := range b.nodes {
		if node.Type == models.NodeTypeService || node.Metadata.Duration == nil {
			continue
		}
		durations = append(durations, *node.Metadata.Duration)
	}
	if len(durations) < 2 {
		return
	}

	mean := 0.0
	for _, d := range durations {
		mean += d
	}
	mean /= float64(len(durations))

	variance := 0.0
	for _, d := range durations {
		diff := d - mean
		variance += diff * diff
	}
	variance /= float64(len(durations))
	std := math.Sqrt(variance)
	if std == 0 {
		return
	}

	for _, node := range b.nodes {
		if node.Type == models.NodeTypeService || node.Metadata.Duration == nil {
			continue
		}
		score := (*node.Metadata.Duration - mean) / std
		if score < b.cfg.SpikeZScore {
			continue
		}
		b.timeline = append(b.timeline, models.TimelineEvent{
			Timestamp:   node.Metadata.StartTime,
			Type:        models.EventTypePerformanceSpike,
			NodeID:      node.ID,
			Description: fmt.Sprintf("%s ran %.0fms against a %.0fms mean", node.Label, *node.Metadata.Duration, mean),
			Severity:    models.SeverityMedium,
		})
	}
}

// deriveStatus applies the strict priority chain: critical overrides error
// overrides warning overrides healthy.
func deriveStatus(errorCount, warningCount, criticalCutoff int) models.NodeStatus {
	switch {
	case errorCount > criticalCutoff:
		return models.NodeStatusCritical
	case errorCount > 0:
		return models.NodeStatusError
	case warningCount > 0:
		return models.NodeStatusWarning
	default:
		return models.NodeStatusHealthy
	}
}

// deriveEdgeStatus keeps the invariant that an edge is failing iff its
// target node is error or critical.
func deriveEdgeStatus(target models.NodeStatus, avgLatency, slowCutoff float64) models.EdgeStatus {
	switch {
	case target == models.NodeStatusError || target == models.NodeStatusCritical:
		return models.EdgeStatusFailing
	case avgLatency > slowCutoff:
		return models.EdgeStatusSlow
	default:
		return models.EdgeStatusHealthy
	}
}

// errorRate maps an error count onto [0,1]. Five or more errors saturate
// the rate.
func errorRate(errorCount int) float64 {
	if errorCount <= 0 {
		return 0
	}
	return math.Min(1, float64(errorCount)/5)
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
