package api

import (
	"github.com/tracelens/rootgraph/internal/models"
	"github.com/tracelens/rootgraph/internal/service"
	"github.com/tracelens/rootgraph/internal/sim"
	"github.com/tracelens/rootgraph/internal/store"
)

// buildGraphRequest is the POST body for graph builds. Trace payloads use
// the telemetry backend's snake_case wire format; inline traces take
// precedence over a backend fetch.
type buildGraphRequest struct {
	ProjectID string         `json:"project_id"`
	Service   string         `json:"service"`
	Start     int64          `json:"start"`
	End       int64          `json:"end"`
	Traces    []models.Trace `json:"traces,omitempty"`
}

// refreshGraphRequest triggers a server-side rebuild. With a session id the
// existing session is refreshed in place, otherwise a new one is created.
type refreshGraphRequest struct {
	SessionID string `json:"session_id,omitempty"`
	buildGraphRequest
}

func (r buildGraphRequest) toBuildRequest() service.BuildRequest {
	return service.BuildRequest{
		ProjectID: r.ProjectID,
		Service:   r.Service,
		Start:     r.Start,
		End:       r.End,
		Traces:    r.Traces,
	}
}

// graphResponse is the dashboard-facing session snapshot. Graph fields use
// camelCase, matching the frontend's data contract.
type graphResponse struct {
	SessionID     string            `json:"sessionId"`
	Graph         *models.GraphData `json:"graph"`
	LayoutRunning bool              `json:"layoutRunning"`
	Advice        []string          `json:"advice,omitempty"`
}

// positionFrame is one websocket frame of live layout positions.
type positionFrame struct {
	Tick      int64              `json:"tick"`
	Running   bool               `json:"running"`
	Positions []sim.NodePosition `json:"positions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toGraphResponse(session *store.Session, advice []string) graphResponse {
	session.Lock()
	graph := session.Graph
	session.Unlock()

	return graphResponse{
		SessionID:     session.ID,
		Graph:         snapshotGraph(graph, session.Sim.CopyNodes()),
		LayoutRunning: session.Sim.Running(),
		Advice:        advice,
	}
}

// snapshotGraph shallow-copies the graph with node values taken from the
// simulation's locked copy, so serialisation never reads coordinates the
// layout goroutine is writing.
func snapshotGraph(graph *models.GraphData, nodes []models.GraphNode) *models.GraphData {
	copied := *graph
	copied.Nodes = make([]*models.GraphNode, len(nodes))
	for i := range nodes {
		copied.Nodes[i] = &nodes[i]
	}
	return &copied
}

func toPositionFrame(session *store.Session) positionFrame {
	return positionFrame{
		Tick:      session.Sim.Ticks(),
		Running:   session.Sim.Running(),
		Positions: session.Sim.Snapshot(),
	}
}
