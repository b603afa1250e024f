package devices

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Sealer encrypts a plaintext secret for storage. Satisfied by the
// credentials secretbox.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
}

// Handler serves device registry CRUD. Plaintext passwords arrive only on
// create/update and are sealed before they touch the store.
type Handler struct {
	store *Store
	box   Sealer
}

func NewHandler(store *Store, box Sealer) *Handler {
	return &Handler{store: store, box: box}
}

type deviceWriteRequest struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	APIPort  int    `json:"api_port"`
	SSHPort  int    `json:"ssh_port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Status   string `json:"status"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))

	var (
		list []Device
		err  error
	)
	if status != "" {
		list, err = h.store.ListByStatus(strings.ToUpper(status))
	} else {
		list, err = h.store.List()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": list})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req deviceWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if msg := validateWriteRequest(req, true); msg != "" {
		writeError(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	sealed, err := h.box.Encrypt(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to seal credentials")
		return
	}

	device, err := h.store.Create(Device{
		Name:            strings.TrimSpace(req.Name),
		Host:            strings.TrimSpace(req.Host),
		APIPort:         req.APIPort,
		SSHPort:         req.SSHPort,
		Username:        strings.TrimSpace(req.Username),
		EncryptedSecret: sealed,
		Status:          req.Status,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"device": device})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "device id required")
		return
	}

	device, err := h.store.Get(id)
	if err != nil {
		if IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load device")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device": device})
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "device id required")
		return
	}

	var req deviceWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if msg := validateWriteRequest(req, false); msg != "" {
		writeError(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	update := Device{
		Name:     strings.TrimSpace(req.Name),
		Host:     strings.TrimSpace(req.Host),
		APIPort:  req.APIPort,
		SSHPort:  req.SSHPort,
		Username: strings.TrimSpace(req.Username),
		Status:   strings.TrimSpace(req.Status),
	}
	if req.Password != "" {
		sealed, err := h.box.Encrypt(req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to seal credentials")
			return
		}
		update.EncryptedSecret = sealed
	}

	device, err := h.store.Update(id, update)
	if err != nil {
		if IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "device not found")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device": device})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "device id required")
		return
	}
	if err := h.store.Delete(id); err != nil {
		if IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete device")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

func validateWriteRequest(req deviceWriteRequest, requireFields bool) string {
	name := strings.TrimSpace(req.Name)
	host := strings.TrimSpace(req.Host)
	username := strings.TrimSpace(req.Username)
	status := strings.ToUpper(strings.TrimSpace(req.Status))

	if requireFields && name == "" {
		return "name is required"
	}
	if requireFields && host == "" {
		return "host is required"
	}
	if requireFields && username == "" {
		return "username is required"
	}
	if requireFields && req.Password == "" {
		return "password is required"
	}
	if req.APIPort != 0 && (req.APIPort < 1 || req.APIPort > 65535) {
		return "api_port must be between 1 and 65535"
	}
	if req.SSHPort != 0 && (req.SSHPort < 1 || req.SSHPort > 65535) {
		return "ssh_port must be between 1 and 65535"
	}
	if status != "" && !supportedStatus(status) {
		return "status must be one of: ACTIVE, INACTIVE, MAINTENANCE"
	}
	return ""
}

func supportedStatus(status string) bool {
	switch status {
	case StatusActive, StatusInactive, StatusMaintenance:
		return true
	default:
		return false
	}
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
