package cluster

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/tracelens/rootgraph/internal/models"
)

const (
	// CauseSingleComponent labels a cluster confined to one node.
	CauseSingleComponent = "Single component failure"
	// CauseCascading labels a cluster spanning multiple nodes.
	CauseCascading = "Cascading failure"
)

// Config holds the detector's tunable constants. The two-tier confidence
// scale is a coarse heuristic, not a statistical estimate; it is kept
// configurable rather than re-derived.
type Config struct {
	// WindowMs is the fixed partition width in epoch milliseconds.
	WindowMs int64
	// HighConfidenceCount is the event count above which the high tier
	// applies (strictly greater than).
	HighConfidenceCount int
	HighConfidence      float64
	LowConfidence       float64
}

// DefaultConfig returns the detector defaults: 5-minute windows with a
// 0.7/0.9 confidence step at more than 3 events.
func DefaultConfig() Config {
	return Config{
		WindowMs:            5 * 60 * 1000,
		HighConfidenceCount: 3,
		HighConfidence:      0.9,
		LowConfidence:       0.7,
	}
}

// Detector groups timeline error events into fixed time windows and emits
// a cluster per window with co-occurring failures. It is a co-occurrence
// heuristic, not causal inference.
type Detector struct {
	logger *slog.Logger
	cfg    Config
}

// NewDetector constructs a Detector. A zero-value config is replaced with
// defaults.
func NewDetector(logger *slog.Logger, cfg Config) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Detector{logger: logger, cfg: cfg}
}

// Detect returns the failure clusters found in the timeline. Fewer than two
// error events yield an empty slice: isolated failures are not clusters,
// and "no clusters" is a valid steady state rather than an error.
func (d *Detector) Detect(nodes []*models.GraphNode, timeline []models.TimelineEvent) []models.FailureCluster {
	errorEvents := make([]models.TimelineEvent, 0)
	for _, ev := range timeline {
		if ev.Type == models.EventTypeError {
			errorEvents = append(errorEvents, ev)
		}
	}
	if len(errorEvents) < 2 {
		return []models.FailureCluster{}
	}

	windows := make(map[int64][]models.TimelineEvent)
	for _, ev := range errorEvents {
		start := (ev.Timestamp / d.cfg.WindowMs) * d.cfg.WindowMs
		windows[start] = append(windows[start], ev)
	}

	starts := make([]int64, 0, len(windows))
	for start := range windows {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	clusters := make([]models.FailureCluster, 0)
	for _, start := range starts {
		events := windows[start]
		if len(events) < 2 {
			continue
		}
		clusters = append(clusters, d.buildCluster(start, events))
	}

	d.logger.Debug("failure clusters detected",
		slog.Int("error_events", len(errorEvents)),
		slog.Int("clusters", len(clusters)),
	)
	return clusters
}

func (d *Detector) buildCluster(windowStart int64, events []models.TimelineEvent) models.FailureCluster {
	affected := make([]string, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if _, ok := seen[ev.NodeID]; ok {
			continue
		}
		seen[ev.NodeID] = struct{}{}
		affected = append(affected, ev.NodeID)
	}

	cause := CauseCascading
	if len(affected) == 1 {
		cause = CauseSingleComponent
	}

	confidence := d.cfg.LowConfidence
	if len(events) > d.cfg.HighConfidenceCount {
		confidence = d.cfg.HighConfidence
	}

	return models.FailureCluster{
		ID:      fmt.Sprintf("cluster-%d", windowStart),
		Pattern: fmt.Sprintf("%d errors across %d components within %dm", len(events), len(affected), d.cfg.WindowMs/60000),
		Count:   len(events),
		TimeWindow: models.TimeWindow{
			Start: windowStart,
			End:   windowStart + d.cfg.WindowMs,
		},
		AffectedNodes: affected,
		CommonCause:   cause,
		Confidence:    confidence,
	}
}
