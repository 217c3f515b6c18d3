package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

type span struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	StartTime    int64   `json:"start_time"`
	EndTime      int64   `json:"end_time"`
	Duration     float64 `json:"duration"`
	ErrorCount   int     `json:"error_count"`
	WarningCount int     `json:"warning_count"`
	Spans        []span  `json:"spans,omitempty"`
}

type trace struct {
	ID          string  `json:"id"`
	ServiceName string  `json:"service_name"`
	StartTime   int64   `json:"start_time"`
	EndTime     int64   `json:"end_time"`
	Duration    float64 `json:"duration"`
	ErrorCount  int     `json:"error_count"`
	Spans       []span  `json:"spans,omitempty"`
}

func sampleTraces() []trace {
	base := time.Now().Add(-5 * time.Minute).UnixMilli()
	return []trace{
		{
			ID:          "trace-checkout-1",
			ServiceName: "checkout",
			StartTime:   base,
			EndTime:     base + 4000,
			Duration:    4000,
			ErrorCount:  6,
			Spans: []span{
				{
					ID:         "span-charge",
					Name:       "POST /payments/charge",
					StartTime:  base + 200,
					EndTime:    base + 2400,
					Duration:   2200,
					ErrorCount: 4,
					Spans: []span{
						{ID: "span-db", Name: "db.update payments", StartTime: base + 400, EndTime: base + 2100, Duration: 1700, ErrorCount: 4},
					},
				},
				{ID: "span-reserve", Name: "inventory.reserve", StartTime: base + 300, EndTime: base + 900, Duration: 600, WarningCount: 2},
			},
		},
		{
			ID:          "trace-inventory-1",
			ServiceName: "inventory",
			StartTime:   base + 500,
			EndTime:     base + 1800,
			Duration:    1300,
			Spans: []span{
				{ID: "span-lookup", Name: "stock.lookup", StartTime: base + 600, EndTime: base + 1500, Duration: 900},
			},
		},
	}
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/telemetry/traces", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		writeJSON(w, map[string]any{"traces": sampleTraces()})
	})

	logger := log.New(log.Writer(), "telemetry-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8090",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8090")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
