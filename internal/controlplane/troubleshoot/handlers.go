package troubleshoot

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Handler serves the diagnostics API.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) HandlePing(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "device id required")
		return
	}

	var params PingParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	result, err := h.engine.Ping(r.Context(), id, params)
	if err != nil {
		writeError(w, http.StatusBadGateway, "ping_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (h *Handler) HandleTraceroute(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "device id required")
		return
	}

	var params TracerouteParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	result, err := h.engine.Traceroute(r.Context(), id, params)
	if err != nil {
		writeError(w, http.StatusBadGateway, "traceroute_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

type continuousPingRequest struct {
	PingParams
	Iterations int `json:"iterations"`
}

func (h *Handler) HandleContinuousPing(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "device id required")
		return
	}

	var req continuousPingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Iterations < 1 || req.Iterations > 60 {
		writeError(w, http.StatusBadRequest, "invalid_request", "iterations must be between 1 and 60")
		return
	}

	results, err := h.engine.ContinuousPing(r.Context(), id, req.PingParams, req.Iterations)
	if err != nil {
		// Completed rounds are still worth returning.
		writeJSON(w, http.StatusBadGateway, map[string]any{"results": results, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type reachabilityRequest struct {
	DeviceIDs []string `json:"device_ids"`
}

func (h *Handler) HandleTestAll(w http.ResponseWriter, r *http.Request) {
	var req reachabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if len(req.DeviceIDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "device_ids is required")
		return
	}

	results := h.engine.TestAll(r.Context(), req.DeviceIDs)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
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
