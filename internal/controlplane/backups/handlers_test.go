package backups

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleCreateUnknownDevice(t *testing.T) {
	rig := newRig(t)
	handler := NewHandler(rig.store, rig.orchestrator)

	body := `{"device_id":"ghost"}`
	rec := httptest.NewRecorder()
	handler.HandleCreate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/backups", strings.NewReader(body)))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCreateRefusedDevice(t *testing.T) {
	rig := newRig(t)
	handler := NewHandler(rig.store, rig.orchestrator)

	// dev2 exists but is INACTIVE: a refusal, not a missing device.
	body := `{"device_id":"dev2"}`
	rec := httptest.NewRecorder()
	handler.HandleCreate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/backups", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "backup_refused") {
		t.Errorf("body = %s, want backup_refused code", rec.Body.String())
	}
}

func TestHandleCreateRejectsBadMode(t *testing.T) {
	rig := newRig(t)
	handler := NewHandler(rig.store, rig.orchestrator)

	body := `{"device_id":"dev1","mode":"zip"}`
	rec := httptest.NewRecorder()
	handler.HandleCreate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/backups", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}
