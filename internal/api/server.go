// Package api serves the local status surface: a JSON snapshot of the
// reporter, a live event stream, and a health probe. It is meant for
// loopback use while tuning a patch, not for exposure beyond the machine.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/lid.report/internal/httputil"
	"github.com/banshee-data/lid.report/internal/monitoring"
	"github.com/banshee-data/lid.report/internal/network"
	"github.com/banshee-data/lid.report/internal/report"
	"github.com/banshee-data/lid.report/internal/serialangle"
	"github.com/banshee-data/lid.report/internal/version"
)

// ANSI escape codes for request logging
const (
	colorCyan      = "\033[36m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
	colorReset     = "\033[0m"
)

// Server exposes reporter state over HTTP. The bridge is nil unless the
// serial backend is active.
type Server struct {
	reporter *report.Reporter
	sender   *network.Sender
	bridge   *serialangle.Bridge
}

// NewServer wires the status surface to a running reporter and its sender.
func NewServer(reporter *report.Reporter, sender *network.Sender, bridge *serialangle.Bridge) *Server {
	return &Server{
		reporter: reporter,
		sender:   sender,
		bridge:   bridge,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return colorBoldGreen
	case code >= 300 && code < 400:
		return colorYellow
	default:
		return colorBoldRed
	}
}

// LoggingMiddleware logs method, path, status, and duration for each
// request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s%d%s] %s %s%s%s %vms",
			statusColor(lrw.statusCode), lrw.statusCode, colorReset,
			r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthz)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/stream", s.streamEvents)
	return mux
}

// statusResponse flattens the reporter snapshot and adds delivery and
// backend detail.
type statusResponse struct {
	report.Snapshot
	Version string                   `json:"version"`
	Target  string                   `json:"target"`
	Address string                   `json:"address"`
	Sender  network.SenderStats      `json:"sender"`
	Bridge  *serialangle.BridgeStats `json:"bridge,omitempty"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"session": s.reporter.Session(),
	})
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	response := statusResponse{
		Snapshot: s.reporter.Snapshot(),
		Version:  version.Version,
		Target:   s.sender.Target(),
		Address:  s.sender.Address(),
		Sender:   s.sender.Stats(),
	}
	if s.bridge != nil {
		stats := s.bridge.Stats()
		response.Bridge = &stats
	}

	httputil.WriteJSON(w, http.StatusOK, response)
}

// streamEvents issues Server-Sent Events for every delivery the reporter
// makes, one JSON object per event.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, events := s.reporter.Subscribe()
	defer s.reporter.Unsubscribe(id)

	// Initial ping establishes the stream before the first delivery.
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
