package server

import (
	"encoding/json"
	"net/http"
)

func registerRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /version", handleVersion)

	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	// Device registry
	mux.HandleFunc("GET /api/v1/devices", deps.Devices.HandleList)
	mux.HandleFunc("POST /api/v1/devices", deps.Devices.HandleCreate)
	mux.HandleFunc("GET /api/v1/devices/{id}", deps.Devices.HandleGet)
	mux.HandleFunc("PUT /api/v1/devices/{id}", deps.Devices.HandleUpdate)
	mux.HandleFunc("DELETE /api/v1/devices/{id}", deps.Devices.HandleDelete)

	// Backups + restores
	mux.HandleFunc("POST /api/v1/backups", deps.Backups.HandleCreate)
	mux.HandleFunc("GET /api/v1/backups", deps.Backups.HandleList)
	mux.HandleFunc("GET /api/v1/backups/{id}", deps.Backups.HandleGet)
	mux.HandleFunc("POST /api/v1/backups/{id}/pin", deps.Backups.HandlePin)
	mux.HandleFunc("POST /api/v1/backups/{id}/unpin", deps.Backups.HandleUnpin)
	mux.HandleFunc("POST /api/v1/backups/{id}/verify", deps.Backups.HandleVerify)
	mux.HandleFunc("POST /api/v1/backups/{id}/restore", deps.Backups.HandleRestore)
	mux.HandleFunc("GET /api/v1/backups/{id}/download-url", deps.Backups.HandleDownloadURL)
	mux.HandleFunc("DELETE /api/v1/backups/{id}", deps.Backups.HandleDelete)

	// Diagnostics
	mux.HandleFunc("POST /api/v1/devices/{id}/ping", deps.Troubleshoot.HandlePing)
	mux.HandleFunc("POST /api/v1/devices/{id}/traceroute", deps.Troubleshoot.HandleTraceroute)
	mux.HandleFunc("POST /api/v1/devices/{id}/continuous-ping", deps.Troubleshoot.HandleContinuousPing)
	mux.HandleFunc("POST /api/v1/troubleshoot/reachability", deps.Troubleshoot.HandleTestAll)

	// Routing state + device users
	mux.HandleFunc("GET /api/v1/devices/{id}/bgp/connections", deps.Routing.HandleBGPConnections)
	mux.HandleFunc("GET /api/v1/devices/{id}/bgp/sessions", deps.Routing.HandleBGPSessions)
	mux.HandleFunc("GET /api/v1/devices/{id}/bgp/advertisements", deps.Routing.HandleBGPAdvertisements)
	mux.HandleFunc("POST /api/v1/devices/{id}/bgp/sessions/{name}/reset", deps.Routing.HandleResetBGPSession)
	mux.HandleFunc("GET /api/v1/devices/{id}/users", deps.Routing.HandleListUsers)
	mux.HandleFunc("POST /api/v1/devices/{id}/users", deps.Routing.HandleAddUser)
	mux.HandleFunc("PUT /api/v1/devices/{id}/users/{name}", deps.Routing.HandleUpdateUser)
	mux.HandleFunc("DELETE /api/v1/devices/{id}/users/{name}", deps.Routing.HandleRemoveUser)
	mux.HandleFunc("POST /api/v1/devices/{id}/users/{name}/enabled", deps.Routing.HandleSetUserEnabled)
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
