// rosfleetd is the fleet control plane for RouterOS devices: a device
// registry, backup/restore orchestration, diagnostics, and routing state,
// all behind one HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nettriq/rosfleet/internal/controlplane/backups"
	"github.com/nettriq/rosfleet/internal/controlplane/blob"
	"github.com/nettriq/rosfleet/internal/controlplane/config"
	"github.com/nettriq/rosfleet/internal/controlplane/credentials"
	"github.com/nettriq/rosfleet/internal/controlplane/devices"
	"github.com/nettriq/rosfleet/internal/controlplane/metrics"
	"github.com/nettriq/rosfleet/internal/controlplane/routing"
	"github.com/nettriq/rosfleet/internal/controlplane/server"
	"github.com/nettriq/rosfleet/internal/controlplane/troubleshoot"
	"github.com/nettriq/rosfleet/internal/routeros"
	"github.com/nettriq/rosfleet/internal/routeros/api"
	"github.com/nettriq/rosfleet/internal/routeros/cli"
	"github.com/nettriq/rosfleet/internal/routeros/executor"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.CredentialKey == "" {
		fmt.Fprintln(os.Stderr, "config: credential_key is required (64 hex chars)")
		os.Exit(1)
	}

	logger := buildLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("rosfleetd failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	deviceStore, err := devices.NewStore(filepath.Join(cfg.DataDir, "devices.db"))
	if err != nil {
		return fmt.Errorf("open device store: %w", err)
	}
	defer deviceStore.Close()

	backupStore, err := backups.NewStore(filepath.Join(cfg.DataDir, "backups.db"))
	if err != nil {
		return fmt.Errorf("open backup store: %w", err)
	}
	defer backupStore.Close()

	blobStore, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	box, err := credentials.NewBox(cfg.CredentialKey)
	if err != nil {
		return fmt.Errorf("credential key: %w", err)
	}
	resolver := credentials.NewResolver(deviceStore, box)

	collectors := metrics.New()

	dialTimeout := config.Duration(cfg.DialTimeout, 10*time.Second)
	commandTimeout := config.Duration(cfg.CommandTimeout, 60*time.Second)

	transports := transportFactory{
		logger:         logger.Named("transport"),
		metrics:        collectors,
		dialTimeout:    dialTimeout,
		commandTimeout: commandTimeout,
	}

	exec := executor.New(executor.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   config.Duration(cfg.Retry.BaseDelay, time.Second),
		Multiplier:  cfg.Retry.Multiplier,
	}, logger.Named("executor"))
	exec.OnRetry = collectors.CommandRetried

	orchestrator := backups.NewOrchestrator(deviceStore, backupStore, blobStore,
		resolver, transports, collectors, logger.Named("backups"))

	engine := troubleshoot.NewEngine(resolver, transports.OpenCLI, collectors,
		logger.Named("troubleshoot"))

	routingService := routing.NewService(resolver, transports.OpenAPI, exec,
		logger.Named("routing"))

	if cfg.BackupSchedule != "" {
		scheduler, err := backups.NewScheduler(orchestrator, deviceStore,
			cfg.BackupSchedule, logger.Named("scheduler"))
		if err != nil {
			return fmt.Errorf("backup schedule: %w", err)
		}
		if cfg.RetentionDays > 0 {
			scheduler.Retention = time.Duration(cfg.RetentionDays) * 24 * time.Hour
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	srv := server.New(cfg.ListenAddr, server.Deps{
		Devices:      devices.NewHandler(deviceStore, box),
		Backups:      backups.NewHandler(backupStore, orchestrator),
		Troubleshoot: troubleshoot.NewHandler(engine),
		Routing:      routing.NewHandler(routingService),
		Metrics:      collectors.Handler(),
	}, logger.Named("server"))

	return srv.Run(ctx)
}

func buildBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	switch cfg.Blob.Backend {
	case "", "local":
		root := cfg.Blob.LocalDir
		if root == "" {
			root = filepath.Join(cfg.DataDir, "blobs")
		}
		return blob.NewLocalStore(root)
	case "s3":
		return blob.NewS3Store(ctx, blob.S3Options{
			Endpoint:  cfg.Blob.Endpoint,
			AccessKey: cfg.Blob.AccessKey,
			SecretKey: cfg.Blob.SecretKey,
			Bucket:    cfg.Blob.Bucket,
			UseSSL:    cfg.Blob.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}
}

func buildLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if parsed, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = parsed
	}
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

// transportFactory builds per-operation device sessions. It satisfies the
// backup orchestrator's Transports interface directly and hands closures
// to the troubleshoot engine and routing service.
type transportFactory struct {
	logger         *zap.Logger
	metrics        *metrics.Metrics
	dialTimeout    time.Duration
	commandTimeout time.Duration
}

func (f transportFactory) API(params credentials.ConnectionParams) backups.APIClient {
	return f.newAPI(params)
}

func (f transportFactory) CLI(params credentials.ConnectionParams) backups.CLIClient {
	return f.newCLI(params)
}

// OpenAPI wraps the binary client so transport failures feed the metrics.
func (f transportFactory) OpenAPI(params credentials.ConnectionParams) executor.Transport {
	return &meteredTransport{inner: f.newAPI(params), metrics: f.metrics}
}

// OpenCLI opens a connected SSH session for the troubleshoot engine.
func (f transportFactory) OpenCLI(ctx context.Context, params credentials.ConnectionParams) (troubleshoot.Session, error) {
	client := f.newCLI(params)
	if err := client.Connect(ctx); err != nil {
		f.metrics.TransportError("ssh")
		return nil, err
	}
	return client, nil
}

func (f transportFactory) newAPI(params credentials.ConnectionParams) *api.Client {
	return api.New(params.Host, params.APIPort, params.Username, params.Secret,
		api.WithLogger(f.logger),
		api.WithDialTimeout(f.dialTimeout),
		api.WithCommandTimeout(f.commandTimeout))
}

func (f transportFactory) newCLI(params credentials.ConnectionParams) *cli.Client {
	return cli.New(params.Host, params.SSHPort, params.Username, params.Secret,
		cli.WithLogger(f.logger),
		cli.WithDialTimeout(f.dialTimeout),
		cli.WithCommandTimeout(f.commandTimeout))
}

// meteredTransport counts connect failures without changing behavior.
type meteredTransport struct {
	inner   executor.Transport
	metrics *metrics.Metrics
}

func (t *meteredTransport) Connect(ctx context.Context) error {
	if err := t.inner.Connect(ctx); err != nil {
		t.metrics.TransportError("api")
		return err
	}
	return nil
}

func (t *meteredTransport) Connected() bool { return t.inner.Connected() }

func (t *meteredTransport) Execute(ctx context.Context, command string, args map[string]string) *routeros.CommandResult {
	return t.inner.Execute(ctx, command, args)
}

func (t *meteredTransport) Close() { t.inner.Close() }
