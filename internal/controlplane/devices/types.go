// Package devices is the registry of managed RouterOS devices: identity,
// addressing for both transports, credentials at rest, and lifecycle
// status. The device integration layer only reads devices; the single
// mutation it performs is touching last_seen after a successful operation.
package devices

import "time"

const (
	// StatusActive devices accept backups, restores, and troubleshooting.
	StatusActive = "ACTIVE"
	// StatusInactive devices are registered but deliberately untouched.
	StatusInactive = "INACTIVE"
	// StatusMaintenance devices are temporarily excluded from operations.
	StatusMaintenance = "MAINTENANCE"
)

// Device is a managed RouterOS target.
type Device struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Host            string     `json:"host"`
	APIPort         int        `json:"api_port"`
	SSHPort         int        `json:"ssh_port"`
	Username        string     `json:"username"`
	EncryptedSecret string     `json:"-"`
	Status          string     `json:"status"`
	Version         string     `json:"version,omitempty"`
	LastSeen        *time.Time `json:"last_seen,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Active reports whether the device may be operated on.
func (d Device) Active() bool {
	return d.Status == StatusActive
}
