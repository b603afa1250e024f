// Package blob stores backup payloads. Two backends exist: a local
// filesystem store for single-node deployments and tests, and an
// S3-compatible store for production. Both report a SHA-256 checksum that
// the caller can (and does) recompute independently; the orchestrator never
// trusts a stored checksum blindly.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Object describes a stored payload.
type Object struct {
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// Store is the payload storage contract.
type Store interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (Object, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Checksum computes the hex SHA-256 digest of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
