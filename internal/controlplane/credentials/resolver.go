package credentials

import (
	"context"
	"fmt"

	"github.com/nettriq/rosfleet/internal/controlplane/devices"
)

// ConnectionParams is everything a transport needs to reach one device.
type ConnectionParams struct {
	DeviceID string
	Host     string
	APIPort  int
	SSHPort  int
	Username string
	Secret   string
}

// DeviceSource is the slice of the device store the resolver reads.
type DeviceSource interface {
	Get(id string) (*devices.Device, error)
}

// Resolver loads a device row and decrypts its secret.
type Resolver struct {
	source DeviceSource
	box    *Box
}

// NewResolver creates a resolver over a device source and a secretbox.
func NewResolver(source DeviceSource, box *Box) *Resolver {
	return &Resolver{source: source, box: box}
}

// Resolve returns connection parameters with the secret decrypted.
func (r *Resolver) Resolve(ctx context.Context, deviceID string) (ConnectionParams, error) {
	if err := ctx.Err(); err != nil {
		return ConnectionParams{}, err
	}
	device, err := r.source.Get(deviceID)
	if err != nil {
		return ConnectionParams{}, fmt.Errorf("load device %s: %w", deviceID, err)
	}
	secret, err := r.box.Decrypt(device.EncryptedSecret)
	if err != nil {
		return ConnectionParams{}, fmt.Errorf("decrypt secret for device %s: %w", deviceID, err)
	}
	return ConnectionParams{
		DeviceID: device.ID,
		Host:     device.Host,
		APIPort:  device.APIPort,
		SSHPort:  device.SSHPort,
		Username: device.Username,
		Secret:   secret,
	}, nil
}
