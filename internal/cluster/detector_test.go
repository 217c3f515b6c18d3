package cluster

import (
	"testing"

	"github.com/tracelens/rootgraph/internal/models"
)

func errorEvent(ts int64, nodeID string) models.TimelineEvent {
	return models.TimelineEvent{
		Timestamp: ts,
		Type:      models.EventTypeError,
		NodeID:    nodeID,
		Severity:  models.SeverityHigh,
	}
}

func TestDetectCoOccurringErrors(t *testing.T) {
	d := NewDetector(nil, Config{})
	base := int64(1_700_000_100_000)

	// Three errors on two distinct nodes inside one 5-minute window.
	timeline := []models.TimelineEvent{
		errorEvent(base, "a"),
		errorEvent(base+1000, "b"),
		errorEvent(base+4000, "a"),
		{Timestamp: base + 2000, Type: models.EventTypeAPICall, NodeID: "a"},
	}

	clusters := d.Detect(nil, timeline)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if c.Count != 3 {
		t.Fatalf("expected count 3, got %d", c.Count)
	}
	if c.CommonCause != CauseCascading {
		t.Fatalf("expected cascading cause, got %q", c.CommonCause)
	}
	// The confidence step is a tunable two-tier heuristic: 3 events sit on
	// the low tier, only more than 3 reach the high tier.
	if c.Confidence != 0.7 {
		t.Fatalf("expected confidence 0.7 at exactly 3 events, got %f", c.Confidence)
	}
	if len(c.AffectedNodes) != 2 {
		t.Fatalf("expected 2 affected nodes, got %v", c.AffectedNodes)
	}
	windowStart := (base / (5 * 60 * 1000)) * (5 * 60 * 1000)
	if c.TimeWindow.Start != windowStart || c.TimeWindow.End != windowStart+5*60*1000 {
		t.Fatalf("unexpected window %+v", c.TimeWindow)
	}
}

func TestDetectConfidenceBoundary(t *testing.T) {
	d := NewDetector(nil, Config{})
	base := int64(600_000)

	three := []models.TimelineEvent{
		errorEvent(base, "a"), errorEvent(base+1, "a"), errorEvent(base+2, "a"),
	}
	four := append(append([]models.TimelineEvent(nil), three...), errorEvent(base+3, "a"))

	if got := d.Detect(nil, three)[0].Confidence; got != 0.7 {
		t.Fatalf("3 events: expected 0.7, got %f", got)
	}
	if got := d.Detect(nil, four)[0].Confidence; got != 0.9 {
		t.Fatalf("4 events: expected 0.9, got %f", got)
	}
}

func TestDetectSingleComponentCause(t *testing.T) {
	d := NewDetector(nil, Config{})
	timeline := []models.TimelineEvent{
		errorEvent(1000, "only"),
		errorEvent(2000, "only"),
	}

	clusters := d.Detect(nil, timeline)
	if len(clusters) != 1 || clusters[0].CommonCause != CauseSingleComponent {
		t.Fatalf("expected single component cause, got %+v", clusters)
	}
	if len(clusters[0].AffectedNodes) != 1 {
		t.Fatalf("affected nodes should be deduplicated, got %v", clusters[0].AffectedNodes)
	}
}

func TestDetectIsolatedFailuresYieldNoClusters(t *testing.T) {
	d := NewDetector(nil, Config{})

	if got := d.Detect(nil, nil); len(got) != 0 {
		t.Fatalf("empty timeline: expected no clusters, got %d", len(got))
	}
	if got := d.Detect(nil, []models.TimelineEvent{errorEvent(1000, "a")}); len(got) != 0 {
		t.Fatalf("single error: expected no clusters, got %d", len(got))
	}

	// Two errors in different windows never co-occur.
	far := []models.TimelineEvent{
		errorEvent(0, "a"),
		errorEvent(10*60*1000, "b"),
	}
	if got := d.Detect(nil, far); len(got) != 0 {
		t.Fatalf("separated errors: expected no clusters, got %d", len(got))
	}
}

func TestDetectWindowAssignment(t *testing.T) {
	d := NewDetector(nil, Config{})
	w := int64(5 * 60 * 1000)

	// t and t+1000 share a window; t+400000 falls in the next one and
	// stays unclustered on its own.
	timeline := []models.TimelineEvent{
		errorEvent(0, "a"),
		errorEvent(1000, "b"),
		errorEvent(400_000, "c"),
	}

	clusters := d.Detect(nil, timeline)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].TimeWindow.Start != 0 || clusters[0].TimeWindow.End != w {
		t.Fatalf("unexpected window %+v", clusters[0].TimeWindow)
	}
}

func TestDetectOrderedDeterministically(t *testing.T) {
	d := NewDetector(nil, Config{})
	w := int64(5 * 60 * 1000)

	timeline := []models.TimelineEvent{
		errorEvent(3*w, "x"), errorEvent(3*w+1, "x"),
		errorEvent(0, "a"), errorEvent(1, "b"),
		errorEvent(w, "c"), errorEvent(w+1, "d"),
	}

	clusters := d.Detect(nil, timeline)
	if len(clusters) != 3 {
		t.Fatalf("expected 3 clusters, got %d", len(clusters))
	}
	for i := 1; i < len(clusters); i++ {
		if clusters[i].TimeWindow.Start <= clusters[i-1].TimeWindow.Start {
			t.Fatalf("clusters not ordered by window start")
		}
	}
}

func TestAdviceEngineMatch(t *testing.T) {
	engine := &AdviceEngine{rules: []Rule{
		{
			ID:     "cascade",
			Match:  RuleMatch{Cause: CauseCascading, MinCount: 3},
			Advice: []string{"Inspect shared upstream dependency"},
		},
		{
			ID:     "noisy",
			Match:  RuleMatch{MinConfidence: 0.95},
			Advice: []string{"Never matches"},
		},
	}}

	clusters := []models.FailureCluster{{
		Count:       3,
		CommonCause: CauseCascading,
		Confidence:  0.7,
	}}

	advice := engine.Advise(clusters)
	if len(advice) != 1 || advice[0] != "Inspect shared upstream dependency" {
		t.Fatalf("unexpected advice %v", advice)
	}
}

func TestAdviceEngineNilSafe(t *testing.T) {
	var engine *AdviceEngine
	if got := engine.Advise([]models.FailureCluster{{Count: 2}}); got != nil {
		t.Fatalf("nil engine should return nil, got %v", got)
	}
}
