package backups

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nettriq/rosfleet/internal/controlplane/devices"
	"github.com/nettriq/rosfleet/internal/routeros/cli"
)

const defaultDownloadTTL = 15 * time.Minute

// Handler serves the backup and restore API.
type Handler struct {
	store        *Store
	orchestrator *Orchestrator
}

func NewHandler(store *Store, orchestrator *Orchestrator) *Handler {
	return &Handler{store: store, orchestrator: orchestrator}
}

type createBackupRequest struct {
	DeviceID string `json:"device_id"`
	Mode     string `json:"mode"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createBackupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "device_id is required")
		return
	}

	mode := cli.ExportMode(strings.ToLower(strings.TrimSpace(req.Mode)))
	switch mode {
	case "", cli.ExportVerbose, cli.ExportCompact:
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "mode must be verbose or compact")
		return
	}

	backup, err := h.orchestrator.CreateBackup(r.Context(), req.DeviceID, CreateOptions{
		Trigger: TriggerManual,
		Mode:    mode,
	})
	if err != nil {
		if backup != nil {
			// The run failed after the row was created; report the row.
			writeJSON(w, http.StatusBadGateway, map[string]any{"backup": backup, "error": err.Error()})
			return
		}
		if devices.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "device not found")
			return
		}
		writeError(w, http.StatusBadRequest, "backup_refused", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"backup": backup})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		DeviceID: strings.TrimSpace(q.Get("device_id")),
		Status:   strings.ToUpper(strings.TrimSpace(q.Get("status"))),
	}
	switch strings.ToLower(q.Get("safety")) {
	case "only":
		filter.SafetyOnly = true
	case "exclude":
		filter.ExcludeSafety = true
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	list, err := h.store.ListBackups(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list backups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": list})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	backup, ok := h.loadBackup(w, id)
	if !ok {
		return
	}

	restores, err := h.store.ListRestoresForBackup(backup.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load restore history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backup": backup, "restores": restores})
}

func (h *Handler) HandlePin(w http.ResponseWriter, r *http.Request) {
	h.setPinned(w, r, true)
}

func (h *Handler) HandleUnpin(w http.ResponseWriter, r *http.Request) {
	h.setPinned(w, r, false)
}

func (h *Handler) setPinned(w http.ResponseWriter, r *http.Request, pinned bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "backup id required")
		return
	}
	backup, err := h.store.SetPinned(id, pinned)
	if err != nil {
		if IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "backup not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update backup")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backup": backup})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "backup id required")
		return
	}
	if err := h.orchestrator.DeleteBackup(r.Context(), id); err != nil {
		if IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "backup not found")
			return
		}
		writeError(w, http.StatusConflict, "delete_refused", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

func (h *Handler) HandleDownloadURL(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "backup id required")
		return
	}
	url, err := h.orchestrator.PresignedDownloadURL(r.Context(), id, defaultDownloadTTL)
	if err != nil {
		if IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "backup not found")
			return
		}
		writeError(w, http.StatusConflict, "download_refused", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":        url,
		"expires_in": int(defaultDownloadTTL.Seconds()),
	})
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "backup id required")
		return
	}
	if err := h.orchestrator.VerifyBackup(r.Context(), id); err != nil {
		var integrity *IntegrityError
		if errors.As(err, &integrity) {
			writeJSON(w, http.StatusOK, map[string]any{"id": id, "valid": false, "error": integrity.Error()})
			return
		}
		if IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "backup not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "valid": true})
}

type restoreRequest struct {
	DeviceID         string `json:"device_id"`
	SkipSafetyBackup bool   `json:"skip_safety_backup"`
}

func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "backup id required")
		return
	}

	// The body is optional; an absent body restores to the original device
	// with the safety backup enabled.
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	restore, err := h.orchestrator.RestoreBackup(r.Context(), id, RestoreOptions{
		DeviceID:         strings.TrimSpace(req.DeviceID),
		SkipSafetyBackup: req.SkipSafetyBackup,
	})
	if err != nil {
		if restore != nil {
			writeJSON(w, http.StatusBadGateway, map[string]any{"restore": restore, "error": err.Error()})
			return
		}
		if IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "backup not found")
			return
		}
		writeError(w, http.StatusConflict, "restore_refused", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restore": restore})
}

func (h *Handler) loadBackup(w http.ResponseWriter, id string) (*Backup, bool) {
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "backup id required")
		return nil, false
	}
	backup, err := h.store.GetBackup(id)
	if err != nil {
		if IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "backup not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load backup")
		return nil, false
	}
	return backup, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":  code,
		"error": message,
	})
}
