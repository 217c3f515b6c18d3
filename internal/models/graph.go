package models

// NodeType classifies what a graph node represents.
type NodeType string

const (
	NodeTypeService  NodeType = "service"
	NodeTypeFunction NodeType = "function"
	NodeTypeModule   NodeType = "module"
	NodeTypeEndpoint NodeType = "endpoint"
)

// NodeStatus captures the derived health of a node. It is fixed at build
// time from log counts and never mutated by the layout simulation.
type NodeStatus string

const (
	NodeStatusHealthy  NodeStatus = "healthy"
	NodeStatusWarning  NodeStatus = "warning"
	NodeStatusError    NodeStatus = "error"
	NodeStatusCritical NodeStatus = "critical"
)

// EdgeType classifies the relationship an edge represents.
type EdgeType string

const (
	EdgeTypeAPICall      EdgeType = "api_call"
	EdgeTypeFunctionCall EdgeType = "function_call"
	EdgeTypeDataFlow     EdgeType = "data_flow"
	EdgeTypeDependency   EdgeType = "dependency"
)

// EdgeStatus captures derived edge health.
type EdgeStatus string

const (
	EdgeStatusHealthy EdgeStatus = "healthy"
	EdgeStatusSlow    EdgeStatus = "slow"
	EdgeStatusFailing EdgeStatus = "failing"
)

// EventType enumerates timeline event categories.
type EventType string

const (
	EventTypeAPICall          EventType = "api_call"
	EventTypeError            EventType = "error"
	EventTypePerformanceSpike EventType = "performance_spike"
	EventTypeDeployment       EventType = "deployment"
	EventTypeLogEntry         EventType = "log_entry"
)

// Severity captures impact levels for timeline events.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Position is a node's location in graph space. Owned by the simulation
// after seeding.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeMetadata carries telemetry detail for the inspector panel. Optional
// numeric fields are pointers so an absent measurement is distinguishable
// from zero.
type NodeMetadata struct {
	ErrorCount   int      `json:"errorCount"`
	Latency      *float64 `json:"latency,omitempty"`
	MemoryUsage  *float64 `json:"memoryUsage,omitempty"`
	CPUUsage     *float64 `json:"cpuUsage,omitempty"`
	LastError    string   `json:"lastError,omitempty"`
	TraceID      string   `json:"traceId,omitempty"`
	SpanID       string   `json:"spanId,omitempty"`
	StartTime    int64    `json:"startTime,omitempty"`
	EndTime      int64    `json:"endTime,omitempty"`
	Duration     *float64 `json:"duration,omitempty"`
	Logs         []string `json:"logs,omitempty"`
	StackTrace   []string `json:"stackTrace,omitempty"`
	SourceCode   string   `json:"sourceCode,omitempty"`
	WarningCount int      `json:"warningCount,omitempty"`
}

// GraphNode is a vertex representing a service or a span.
type GraphNode struct {
	ID           string       `json:"id"`
	Label        string       `json:"label"`
	Type         NodeType     `json:"type"`
	Status       NodeStatus   `json:"status"`
	ServiceName  string       `json:"serviceName,omitempty"`
	FunctionName string       `json:"functionName,omitempty"`
	ModuleName   string       `json:"moduleName,omitempty"`
	Position     Position     `json:"position"`
	Metadata     NodeMetadata `json:"metadata"`

	// Simulation-private velocity. Never serialised.
	VX float64 `json:"-"`
	VY float64 `json:"-"`

	// Optional pin overrides. A pinned node keeps its fixed position
	// regardless of accumulated forces.
	FX *float64 `json:"-"`
	FY *float64 `json:"-"`
}

// Pinned reports whether the node has a fixed-position override.
func (n *GraphNode) Pinned() bool {
	return n.FX != nil && n.FY != nil
}

// EdgeMetadata carries call statistics for an edge.
type EdgeMetadata struct {
	CallCount      int     `json:"callCount"`
	AverageLatency float64 `json:"averageLatency"`
	ErrorRate      float64 `json:"errorRate"`
	LastCall       *int64  `json:"lastCall,omitempty"`
	Protocol       string  `json:"protocol,omitempty"`
	Method         string  `json:"method,omitempty"`
	Endpoint       string  `json:"endpoint,omitempty"`
}

// GraphEdge is a directed call relationship between two nodes.
type GraphEdge struct {
	ID       string       `json:"id"`
	Source   string       `json:"source"`
	Target   string       `json:"target"`
	Type     EdgeType     `json:"type"`
	Status   EdgeStatus   `json:"status"`
	Metadata EdgeMetadata `json:"metadata"`
}

// TimelineEvent records a notable moment in the trace window. Timestamps
// are epoch milliseconds, matching the telemetry backend.
type TimelineEvent struct {
	Timestamp   int64     `json:"timestamp"`
	Type        EventType `json:"type"`
	NodeID      string    `json:"nodeId"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
}

// TimeWindow bounds a cluster in epoch milliseconds.
type TimeWindow struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// FailureCluster groups error events co-located in time.
type FailureCluster struct {
	ID            string     `json:"id"`
	Pattern       string     `json:"pattern"`
	Count         int        `json:"count"`
	TimeWindow    TimeWindow `json:"timeWindow"`
	AffectedNodes []string   `json:"affectedNodes"`
	CommonCause   string     `json:"commonCause,omitempty"`
	Confidence    float64    `json:"confidence"`
}

// TimeRange bounds the whole timeline in epoch milliseconds.
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// GraphData is the aggregate produced by one transformer invocation.
// It is immutable after construction except for node positions/velocities
// (owned by the simulation) and CurrentTime (owned by playback).
type GraphData struct {
	Nodes           []*GraphNode     `json:"nodes"`
	Edges           []GraphEdge      `json:"edges"`
	Timeline        []TimelineEvent  `json:"timeline"`
	FailureClusters []FailureCluster `json:"failureClusters"`
	TimeRange       TimeRange        `json:"timeRange"`
	CurrentTime     int64            `json:"currentTime"`
}

// NodeByID returns the node with the given id, or nil.
func (g *GraphData) NodeByID(id string) *GraphNode {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
