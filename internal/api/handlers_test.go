package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tracelens/rootgraph/internal/cluster"
	"github.com/tracelens/rootgraph/internal/config"
	"github.com/tracelens/rootgraph/internal/models"
	"github.com/tracelens/rootgraph/internal/service"
	"github.com/tracelens/rootgraph/internal/sim"
	"github.com/tracelens/rootgraph/internal/store"
	"github.com/tracelens/rootgraph/internal/transform"
	"github.com/tracelens/rootgraph/internal/view"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()

	sessions := store.NewMemoryStore(0, nil, service.StopSession)
	simCfg := sim.DefaultConfig()
	simCfg.TickRate = 2 * time.Millisecond
	simCfg.Budget = 40 * time.Millisecond

	svc := service.NewGraphService(
		nil,
		nil,
		transform.NewTransformer(nil, transform.Config{}),
		cluster.NewDetector(nil, cluster.Config{}),
		nil,
		sessions,
		service.DefaultConfig(),
		simCfg,
		view.DefaultConfig(),
		nil,
	)
	return NewHandlers(nil, svc, config.StreamConfig{FrameRate: 2 * time.Millisecond, BurstLimit: 2})
}

func buildBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	payload := buildGraphRequest{
		Traces: []models.Trace{
			{
				ID:          "trace-1",
				ServiceName: "checkout",
				StartTime:   1000,
				EndTime:     5000,
				ErrorCount:  6,
				Spans: []models.Span{
					{ID: "span-1", Name: "charge", StartTime: 1200, EndTime: 2400, ErrorCount: 4},
				},
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		t.Fatalf("encode request: %v", err)
	}
	return &buf
}

func buildSession(t *testing.T, h *Handlers) graphResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/graphs", buildBody(t)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp graphResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	h := newTestHandlers(t)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBuildGraph(t *testing.T) {
	h := newTestHandlers(t)
	resp := buildSession(t, h)
	defer h.svc.DeleteSession(resp.SessionID)

	if resp.SessionID == "" {
		t.Fatalf("expected a session id")
	}
	if len(resp.Graph.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(resp.Graph.Nodes))
	}
	if len(resp.Graph.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(resp.Graph.Edges))
	}
}

func TestBuildGraphRejectsEmptyRequest(t *testing.T) {
	h := newTestHandlers(t)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/graphs", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetGraph(t *testing.T) {
	h := newTestHandlers(t)
	created := buildSession(t, h)
	defer h.svc.DeleteSession(created.SessionID)

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/graphs/"+created.SessionID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp graphResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != created.SessionID {
		t.Fatalf("expected session %s, got %s", created.SessionID, resp.SessionID)
	}
}

func TestGetGraphNotFound(t *testing.T) {
	h := newTestHandlers(t)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/graphs/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteGraph(t *testing.T) {
	h := newTestHandlers(t)
	created := buildSession(t, h)

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/graphs/"+created.SessionID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/graphs/"+created.SessionID, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestRunLayout(t *testing.T) {
	h := newTestHandlers(t)
	created := buildSession(t, h)
	defer h.svc.DeleteSession(created.SessionID)

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/graphs/"+created.SessionID+"/layout", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var frame positionFrame
	if err := json.Unmarshal(rec.Body.Bytes(), &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if len(frame.Positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(frame.Positions))
	}
}

func TestRefreshExistingSession(t *testing.T) {
	h := newTestHandlers(t)
	created := buildSession(t, h)
	defer h.svc.DeleteSession(created.SessionID)

	payload := refreshGraphRequest{SessionID: created.SessionID}
	payload.Traces = []models.Trace{{ID: "trace-2", ServiceName: "payments", StartTime: 0, EndTime: 100}}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/graphs/refresh", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp graphResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != created.SessionID {
		t.Fatalf("expected refresh to keep session %s, got %s", created.SessionID, resp.SessionID)
	}
	if len(resp.Graph.Nodes) != 1 {
		t.Fatalf("expected 1 node after refresh, got %d", len(resp.Graph.Nodes))
	}
}

func TestStreamEmitsFramesUntilSettled(t *testing.T) {
	h := newTestHandlers(t)
	created := buildSession(t, h)
	defer h.svc.DeleteSession(created.SessionID)

	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/graphs/" + created.SessionID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	frames := 0
	for {
		var frame positionFrame
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		frames++
		if len(frame.Positions) != 2 {
			t.Fatalf("expected 2 positions per frame, got %d", len(frame.Positions))
		}
		if !frame.Running {
			break
		}
		if frames > 1000 {
			t.Fatalf("stream never settled")
		}
	}
	if frames == 0 {
		t.Fatalf("expected at least one frame")
	}
}
