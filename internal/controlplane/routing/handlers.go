package routing

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Handler serves BGP state reads and device user management.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleBGPConnections(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	connections, err := h.service.BGPConnections(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "device_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": connections})
}

func (h *Handler) HandleBGPSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	sessions, err := h.service.BGPSessions(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "device_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) HandleBGPAdvertisements(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	advertisements, err := h.service.BGPAdvertisements(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "device_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"advertisements": advertisements})
}

func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	users, err := h.service.Users(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "device_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) HandleAddUser(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	var spec UserSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if strings.TrimSpace(spec.Name) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	if err := h.service.AddUser(r.Context(), id, spec); err != nil {
		writeError(w, http.StatusBadGateway, "device_error", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "created", "name": spec.Name})
}

func (h *Handler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user name required")
		return
	}
	var spec UserSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if err := h.service.UpdateUser(r.Context(), id, name, spec); err != nil {
		writeError(w, http.StatusBadGateway, "device_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "name": name})
}

func (h *Handler) HandleRemoveUser(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user name required")
		return
	}
	if err := h.service.RemoveUser(r.Context(), id, name); err != nil {
		writeError(w, http.StatusBadGateway, "device_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "removed", "name": name})
}

func (h *Handler) HandleResetBGPSession(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session name required")
		return
	}
	if err := h.service.ResetBGPSession(r.Context(), id, name); err != nil {
		writeError(w, http.StatusBadGateway, "device_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset", "name": name})
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) HandleSetUserEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user name required")
		return
	}
	var req setEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if err := h.service.SetUserEnabled(r.Context(), id, name, req.Enabled); err != nil {
		writeError(w, http.StatusBadGateway, "device_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "name": name, "enabled": req.Enabled})
}

func deviceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "device id required")
		return "", false
	}
	return id, true
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
