// Package api exposes the director over HTTP: status, calibration
// start/apply, and a WebSocket status push. spec.md §1 treats this
// surface as an external collaborator — it is specified only for
// interface compatibility (spec.md §6) and defers every decision to
// pkg/director.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/autoswitch/director/pkg/config"
	"github.com/autoswitch/director/pkg/director"
)

// Engine is the subset of *director.Director the HTTP surface needs.
// Defined as an interface so tests can supply a fake without spinning up
// a real audio device.
type Engine interface {
	StartCalibration(micID string, now time.Time) error
	CalibrationResult(micID string) (director.CalibrationResult, bool)
	AuditLog() []director.AuditEntry
}

// ConfigStore abstracts the apply-calibration config rewrite + reload so
// Server doesn't need to know about file paths or the director's Reload
// signature directly.
type ConfigStore interface {
	Apply(micID string, result director.CalibrationResult) error
}

// StatusProvider returns the most recent tick's Status. The director
// loop (cmd/director) updates this after every Tick; the HTTP surface
// only ever reads it.
type StatusProvider func() director.Status

// Server wires the three routes from spec.md §6 plus a /ws status push.
type Server struct {
	router  chi.Router
	engine  Engine
	store   ConfigStore
	status  StatusProvider
	logger  director.Logger
	clock   func() time.Time
}

// NewServer builds the chi router. logger may be nil (defaults to a
// no-op logger).
func NewServer(engine Engine, store ConfigStore, status StatusProvider, logger director.Logger) *Server {
	if logger == nil {
		logger = director.NoOpLogger{}
	}
	s := &Server{
		engine: engine,
		store:  store,
		status: status,
		logger: logger,
		clock:  time.Now,
	}

	r := chi.NewRouter()
	r.Get("/api/status", s.handleStatus)
	r.Post("/api/calibrate/{mic_id}", s.handleCalibrate)
	r.Post("/api/apply/{mic_id}", s.handleApply)
	r.Get("/ws", s.handleWS)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	micID := chi.URLParam(r, "mic_id")
	if err := s.engine.StartCalibration(micID, s.clock()); err != nil {
		s.logger.Warn("api: calibrate failed", "mic", micID, "error", err)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	micID := chi.URLParam(r, "mic_id")

	result, ok := s.engine.CalibrationResult(micID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]bool{"applied": false})
		return
	}

	if err := s.store.Apply(micID, result); err != nil {
		// Config write failure: surface as applied:false, in-memory
		// config is not updated (spec.md §7).
		s.logger.Error("api: apply calibration failed", "mic", micID, "error", err)
		writeJSON(w, http.StatusOK, map[string]bool{"applied": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"applied": true})
}

// handleWS pushes the current status over a WebSocket connection once
// per tick, avoiding the client having to poll /api/status.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("api: websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
			wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := wsjson.Write(wctx, conn, s.status())
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// fileConfigStore is the production ConfigStore: it rewrites config.json
// atomically and triggers a full director re-init via reload.
type fileConfigStore struct {
	path   string
	cfg    config.Config
	reload func(config.Config)
}

// NewFileConfigStore builds a ConfigStore backed by the on-disk JSON
// config. reload is called with the freshly-applied Config so the caller
// can convert it to director.Options and call Director.Reload.
func NewFileConfigStore(path string, cfg config.Config, reload func(config.Config)) ConfigStore {
	return &fileConfigStore{path: path, cfg: cfg, reload: reload}
}

func (f *fileConfigStore) Apply(micID string, result director.CalibrationResult) error {
	updated, err := config.ApplyCalibration(f.path, f.cfg, micID, result)
	if err != nil {
		return err
	}
	f.cfg = updated
	if f.reload != nil {
		f.reload(updated)
	}
	return nil
}
