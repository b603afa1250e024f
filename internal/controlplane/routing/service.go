// Package routing reads BGP state and manages local users on devices over
// the binary API, with retries handled by the executor.
package routing

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nettriq/rosfleet/internal/controlplane/credentials"
	"github.com/nettriq/rosfleet/internal/routeros"
	"github.com/nettriq/rosfleet/internal/routeros/executor"
	"github.com/nettriq/rosfleet/internal/routeros/parse"
)

// Resolver loads decrypted connection parameters for a device.
type Resolver interface {
	Resolve(ctx context.Context, deviceID string) (credentials.ConnectionParams, error)
}

// TransportFactory builds a fresh binary transport for one device call.
type TransportFactory func(params credentials.ConnectionParams) executor.Transport

// Service fetches routing state and edits device users.
type Service struct {
	resolver Resolver
	open     TransportFactory
	exec     *executor.Executor
	logger   *zap.Logger
}

// NewService wires a routing service.
func NewService(resolver Resolver, open TransportFactory, exec *executor.Executor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{resolver: resolver, open: open, exec: exec, logger: logger}
}

// BGPConnections lists configured BGP peer definitions.
func (s *Service) BGPConnections(ctx context.Context, deviceID string) ([]parse.BGPConnection, error) {
	records, err := s.fetch(ctx, deviceID, "/routing/bgp/connection/print", nil)
	if err != nil {
		return nil, err
	}
	connections := make([]parse.BGPConnection, 0, len(records))
	for _, rec := range records {
		connections = append(connections, parse.BGPConnectionFromRecord(rec))
	}
	return connections, nil
}

// BGPSessions lists live BGP sessions with normalized state names.
func (s *Service) BGPSessions(ctx context.Context, deviceID string) ([]parse.BGPSession, error) {
	records, err := s.fetch(ctx, deviceID, "/routing/bgp/session/print", nil)
	if err != nil {
		return nil, err
	}
	sessions := make([]parse.BGPSession, 0, len(records))
	for _, rec := range records {
		sessions = append(sessions, parse.BGPSessionFromRecord(rec))
	}
	return sessions, nil
}

// BGPAdvertisements lists prefixes the device is advertising to peers.
func (s *Service) BGPAdvertisements(ctx context.Context, deviceID string) ([]parse.BGPAdvertisement, error) {
	records, err := s.fetch(ctx, deviceID, "/routing/bgp/advertisements/print", nil)
	if err != nil {
		return nil, err
	}
	advertisements := make([]parse.BGPAdvertisement, 0, len(records))
	for _, rec := range records {
		advertisements = append(advertisements, parse.BGPAdvertisementFromRecord(rec))
	}
	return advertisements, nil
}

// ResetBGPSession tears down and re-establishes one live session,
// addressed by its `.id` like the other action commands.
func (s *Service) ResetBGPSession(ctx context.Context, deviceID, name string) error {
	id, err := s.bgpSessionID(ctx, deviceID, name)
	if err != nil {
		return err
	}
	return s.mutate(ctx, deviceID, "/routing/bgp/session/reset", map[string]string{".id": id})
}

// bgpSessionID looks a session up by name with a query word.
func (s *Service) bgpSessionID(ctx context.Context, deviceID, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("session name is required")
	}
	records, err := s.fetch(ctx, deviceID, "/routing/bgp/session/print", map[string]string{"?name": name})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("bgp session %q not found on device %s", name, deviceID)
	}
	id := records[0][".id"]
	if id == "" {
		return "", fmt.Errorf("bgp session %q has no .id on device %s", name, deviceID)
	}
	return id, nil
}

// Users lists the device's local accounts.
func (s *Service) Users(ctx context.Context, deviceID string) ([]parse.DeviceUser, error) {
	records, err := s.fetch(ctx, deviceID, "/user/print", nil)
	if err != nil {
		return nil, err
	}
	users := make([]parse.DeviceUser, 0, len(records))
	for _, rec := range records {
		users = append(users, parse.DeviceUserFromRecord(rec))
	}
	return users, nil
}

// UserSpec describes a user to create or update on a device.
type UserSpec struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
	Group    string `json:"group,omitempty"`
	Comment  string `json:"comment,omitempty"`
	Address  string `json:"address,omitempty"`
}

// AddUser creates a local account on the device.
func (s *Service) AddUser(ctx context.Context, deviceID string, spec UserSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("user name is required")
	}
	args := map[string]string{"name": spec.Name}
	if spec.Password != "" {
		args["password"] = spec.Password
	}
	if spec.Group != "" {
		args["group"] = spec.Group
	}
	if spec.Comment != "" {
		args["comment"] = spec.Comment
	}
	if spec.Address != "" {
		args["address"] = spec.Address
	}
	return s.mutate(ctx, deviceID, "/user/add", args)
}

// UpdateUser edits an existing account; only non-empty fields change.
func (s *Service) UpdateUser(ctx context.Context, deviceID, name string, spec UserSpec) error {
	id, err := s.userID(ctx, deviceID, name)
	if err != nil {
		return err
	}
	args := map[string]string{".id": id}
	if spec.Password != "" {
		args["password"] = spec.Password
	}
	if spec.Group != "" {
		args["group"] = spec.Group
	}
	if spec.Comment != "" {
		args["comment"] = spec.Comment
	}
	if spec.Address != "" {
		args["address"] = spec.Address
	}
	if len(args) == 1 {
		return fmt.Errorf("nothing to update for user %q", name)
	}
	return s.mutate(ctx, deviceID, "/user/set", args)
}

// RemoveUser deletes a local account by name.
func (s *Service) RemoveUser(ctx context.Context, deviceID, name string) error {
	id, err := s.userID(ctx, deviceID, name)
	if err != nil {
		return err
	}
	return s.mutate(ctx, deviceID, "/user/remove", map[string]string{".id": id})
}

// SetUserEnabled enables or disables an account without deleting it.
func (s *Service) SetUserEnabled(ctx context.Context, deviceID, name string, enabled bool) error {
	id, err := s.userID(ctx, deviceID, name)
	if err != nil {
		return err
	}
	command := "/user/disable"
	if enabled {
		command = "/user/enable"
	}
	return s.mutate(ctx, deviceID, command, map[string]string{".id": id})
}

// userID looks an account up by name, using a query word so the device
// does the filtering.
func (s *Service) userID(ctx context.Context, deviceID, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("user name is required")
	}
	records, err := s.fetch(ctx, deviceID, "/user/print", map[string]string{"?name": name})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("user %q not found on device %s", name, deviceID)
	}
	id := records[0][".id"]
	if id == "" {
		return "", fmt.Errorf("user %q has no .id on device %s", name, deviceID)
	}
	return id, nil
}

func (s *Service) mutate(ctx context.Context, deviceID, command string, args map[string]string) error {
	result, err := s.run(ctx, deviceID, command, args)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%s on device %s: %s", command, deviceID, result.Err)
	}
	return nil
}

func (s *Service) fetch(ctx context.Context, deviceID, command string, args map[string]string) ([]routeros.Record, error) {
	result, err := s.run(ctx, deviceID, command, args)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("%s on device %s: %s", command, deviceID, result.Err)
	}
	return result.Records, nil
}

func (s *Service) run(ctx context.Context, deviceID, command string, args map[string]string) (*routeros.CommandResult, error) {
	params, err := s.resolver.Resolve(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	transport := s.open(params)
	defer transport.Close()

	return s.exec.ExecuteWithRetry(ctx, transport, command, args), nil
}
