package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/autoswitch/director/pkg/director"
)

type fakeEngine struct {
	startErr     error
	results      map[string]director.CalibrationResult
	startCalled  string
	auditEntries []director.AuditEntry
}

func (f *fakeEngine) StartCalibration(micID string, now time.Time) error {
	f.startCalled = micID
	return f.startErr
}

func (f *fakeEngine) CalibrationResult(micID string) (director.CalibrationResult, bool) {
	r, ok := f.results[micID]
	return r, ok
}

func (f *fakeEngine) AuditLog() []director.AuditEntry {
	return f.auditEntries
}

type fakeStore struct {
	applyErr   error
	appliedMic string
}

func (f *fakeStore) Apply(micID string, result director.CalibrationResult) error {
	f.appliedMic = micID
	return f.applyErr
}

func newTestServer(engine *fakeEngine, store *fakeStore, status director.Status) *Server {
	return NewServer(engine, store, func() director.Status { return status }, nil)
}

func TestHandleStatusReturnsCurrentStatus(t *testing.T) {
	s := newTestServer(&fakeEngine{}, &fakeStore{}, director.Status{State: director.StateActive})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var status director.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.State != director.StateActive {
		t.Errorf("expected state ACTIVE, got %s", status.State)
	}
}

func TestHandleCalibrateStartsSession(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine, &fakeStore{}, director.Status{})

	req := httptest.NewRequest(http.MethodPost, "/api/calibrate/mic-a", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if engine.startCalled != "mic-a" {
		t.Errorf("expected StartCalibration to be called with mic-a, got %q", engine.startCalled)
	}

	var body map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !body["ok"] {
		t.Errorf("expected ok:true, got %+v", body)
	}
}

func TestHandleCalibrateUnknownMicReturnsOkFalse(t *testing.T) {
	engine := &fakeEngine{startErr: director.ErrUnknownMic}
	s := newTestServer(engine, &fakeStore{}, director.Status{})

	req := httptest.NewRequest(http.MethodPost, "/api/calibrate/ghost", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var body map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["ok"] {
		t.Errorf("expected ok:false for an unknown mic, got %+v", body)
	}
}

func TestHandleApplyWithNoResultReturnsAppliedFalse(t *testing.T) {
	engine := &fakeEngine{results: map[string]director.CalibrationResult{}}
	store := &fakeStore{}
	s := newTestServer(engine, store, director.Status{})

	req := httptest.NewRequest(http.MethodPost, "/api/apply/mic-a", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var body map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["applied"] {
		t.Errorf("expected applied:false when no calibration result exists")
	}
	if store.appliedMic != "" {
		t.Errorf("expected the config store never to be called without a result")
	}
}

func TestHandleApplyWritesResultThroughStore(t *testing.T) {
	result := director.CalibrationResult{MicID: "mic-a", SuggestedThreshold: -30, SuggestedWeight: 1.1}
	engine := &fakeEngine{results: map[string]director.CalibrationResult{"mic-a": result}}
	store := &fakeStore{}
	s := newTestServer(engine, store, director.Status{})

	req := httptest.NewRequest(http.MethodPost, "/api/apply/mic-a", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var body map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !body["applied"] {
		t.Errorf("expected applied:true, got %+v", body)
	}
	if store.appliedMic != "mic-a" {
		t.Errorf("expected the store to be called with mic-a, got %q", store.appliedMic)
	}
}

func TestHandleApplyStoreFailureReturnsAppliedFalse(t *testing.T) {
	result := director.CalibrationResult{MicID: "mic-a"}
	engine := &fakeEngine{results: map[string]director.CalibrationResult{"mic-a": result}}
	store := &fakeStore{applyErr: director.ErrUnknownMic}
	s := newTestServer(engine, store, director.Status{})

	req := httptest.NewRequest(http.MethodPost, "/api/apply/mic-a", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var body map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["applied"] {
		t.Errorf("expected applied:false when the config store write fails")
	}
}
