package api

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tracelens/rootgraph/internal/config"
	"github.com/tracelens/rootgraph/internal/service"
	"github.com/tracelens/rootgraph/internal/store"
)

// Handlers exposes the graph engine over HTTP/JSON for the dashboard
// frontend, plus a websocket stream of layout frames.
type Handlers struct {
	logger   *slog.Logger
	svc      *service.GraphService
	stream   config.StreamConfig
	upgrader websocket.Upgrader
}

// NewHandlers constructs the HTTP handler set.
func NewHandlers(logger *slog.Logger, svc *service.GraphService, stream config.StreamConfig) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if stream.FrameRate <= 0 {
		stream.FrameRate = 50 * time.Millisecond
	}
	if stream.BurstLimit <= 0 {
		stream.BurstLimit = 5
	}
	return &Handlers{
		logger: logger,
		svc:    svc,
		stream: stream,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Sessions are unauthenticated capability handles; the id
			// itself gates access, so cross-origin upgrades are fine.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router wires all routes onto a gorilla/mux router.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/graphs", h.handleBuildGraph).Methods(http.MethodPost)
	v1.HandleFunc("/graphs/refresh", h.handleRefreshGraph).Methods(http.MethodPost)
	v1.HandleFunc("/graphs/{id}", h.handleGetGraph).Methods(http.MethodGet)
	v1.HandleFunc("/graphs/{id}", h.handleDeleteGraph).Methods(http.MethodDelete)
	v1.HandleFunc("/graphs/{id}/layout", h.handleRunLayout).Methods(http.MethodPost)
	v1.HandleFunc("/graphs/{id}/stream", h.handleStream).Methods(http.MethodGet)

	return r
}

func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) handleBuildGraph(w http.ResponseWriter, r *http.Request) {
	var req buildGraphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Traces) == 0 && req.ProjectID == "" {
		h.writeError(w, http.StatusBadRequest, "either traces or project_id is required")
		return
	}

	session, err := h.svc.BuildGraph(r.Context(), req.toBuildRequest())
	if err != nil {
		h.logger.Error("graph build failed", slog.Any("error", err))
		h.writeError(w, http.StatusBadGateway, "graph build failed")
		return
	}

	h.writeJSON(w, http.StatusCreated, toGraphResponse(session, h.svc.Advice(session.Graph)))
}

func (h *Handlers) handleRefreshGraph(w http.ResponseWriter, r *http.Request) {
	var req refreshGraphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Traces) == 0 && req.ProjectID == "" {
		h.writeError(w, http.StatusBadRequest, "either traces or project_id is required")
		return
	}

	var (
		session *store.Session
		err     error
	)
	if req.SessionID != "" {
		session, err = h.svc.RefreshSession(r.Context(), req.SessionID, req.toBuildRequest())
	} else {
		session, err = h.svc.BuildGraph(r.Context(), req.toBuildRequest())
	}
	if err != nil {
		h.logger.Error("graph refresh failed", slog.Any("error", err))
		h.writeError(w, http.StatusBadGateway, "graph refresh failed")
		return
	}

	h.writeJSON(w, http.StatusOK, toGraphResponse(session, h.svc.Advice(session.Graph)))
}

func (h *Handlers) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	session, ok := h.svc.GetSession(mux.Vars(r)["id"])
	if !ok {
		h.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	h.writeJSON(w, http.StatusOK, toGraphResponse(session, h.svc.Advice(session.Graph)))
}

func (h *Handlers) handleDeleteGraph(w http.ResponseWriter, r *http.Request) {
	if !h.svc.DeleteSession(mux.Vars(r)["id"]) {
		h.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleRunLayout(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.RunLayout(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	h.writeJSON(w, http.StatusAccepted, toPositionFrame(session))
}

func (h *Handlers) handleStream(w http.ResponseWriter, r *http.Request) {
	session, ok := h.svc.GetSession(mux.Vars(r)["id"])
	if !ok {
		h.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	limiter := rate.NewLimiter(rate.Every(h.stream.FrameRate), h.stream.BurstLimit)
	ctx := r.Context()
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		frame := toPositionFrame(session)
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
		// One final frame with Running=false lets the client settle.
		if !frame.Running {
			return
		}
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response failed", slog.Any("error", err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.status),
			slog.Duration("duration", time.Since(start)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes through so the websocket upgrade keeps working behind the
// logging middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hj.Hijack()
}
