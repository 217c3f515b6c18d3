package models

// Span is a single operation within a trace. Spans nest recursively; the
// transformer walks the tree depth-first. Field names follow the telemetry
// backend's snake_case wire format, timestamps are epoch milliseconds.
type Span struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	ServiceName   string   `json:"service_name,omitempty"`
	StartTime     int64    `json:"start_time"`
	EndTime       int64    `json:"end_time"`
	Duration      *float64 `json:"duration,omitempty"`
	ErrorCount    int      `json:"error_count"`
	WarningCount  int      `json:"warning_count"`
	CriticalCount int      `json:"critical_count"`
	Spans         []Span   `json:"spans,omitempty"`
}

// Trace is one end-to-end request recorded by the telemetry backend.
// The transformer assumes well-formed input: unique ids and an acyclic
// span tree. Validation belongs at the ingest boundary, not here.
type Trace struct {
	ID            string   `json:"id"`
	ServiceName   string   `json:"service_name"`
	StartTime     int64    `json:"start_time"`
	EndTime       int64    `json:"end_time"`
	Duration      *float64 `json:"duration,omitempty"`
	ErrorCount    int      `json:"error_count"`
	WarningCount  int      `json:"warning_count"`
	CriticalCount int      `json:"critical_count"`
	Spans         []Span   `json:"spans,omitempty"`
}
