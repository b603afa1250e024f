package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.ListenAddr != ":8730" {
		t.Errorf("ListenAddr = %q, want :8730", cfg.ListenAddr)
	}
	if cfg.Blob.Backend != "local" {
		t.Errorf("Blob.Backend = %q, want local", cfg.Blob.Backend)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelay != "1s" || cfg.Retry.Multiplier != 2 {
		t.Errorf("Retry = %+v, want 3 attempts, 1s base, x2", cfg.Retry)
	}
}

func TestLoadFileAndEnvOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"listen_addr": ":9000",
		"data_dir": "/tmp/rosfleet-test",
		"credential_key": "` + testKey + `",
		"backup_schedule": "0 3 * * *",
		"retention_days": 30,
		"log_level": "debug"
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("ROSFLEET_LISTEN_ADDR", ":9001")
	t.Setenv("ROSFLEET_RETENTION_DAYS", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9001" {
		t.Errorf("ListenAddr = %q, want the env override", cfg.ListenAddr)
	}
	if cfg.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d, want the env override", cfg.RetentionDays)
	}
	if cfg.DataDir != "/tmp/rosfleet-test" || cfg.BackupSchedule != "0 3 * * *" || cfg.LogLevel != "debug" {
		t.Errorf("file values lost: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("missing config file should fail")
	}
}

func TestValidateCredentialKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr string
	}{
		{name: "empty allowed", key: "", wantErr: ""},
		{name: "valid", key: testKey, wantErr: ""},
		{name: "not hex", key: "zz", wantErr: "must be hex"},
		{name: "short", key: "0011", wantErr: "32 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.CredentialKey = tt.key
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateBlobBackend(t *testing.T) {
	cfg := Default()
	cfg.Blob.Backend = "s3"
	if err := cfg.Validate(); err == nil {
		t.Error("s3 backend without endpoint and bucket should fail")
	}
	cfg.Blob.Endpoint = "minio.local:9000"
	cfg.Blob.Bucket = "backups"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil for a complete s3 config", err)
	}
	cfg.Blob.Backend = "ftp"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestValidateDurations(t *testing.T) {
	cfg := Default()
	cfg.DialTimeout = "not-a-duration"
	if err := cfg.Validate(); err == nil {
		t.Error("bad dial_timeout should fail")
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("", 5*time.Second); got != 5*time.Second {
		t.Errorf("Duration(\"\") = %v, want fallback", got)
	}
	if got := Duration("250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("Duration(250ms) = %v, want 250ms", got)
	}
	if got := Duration("-1s", time.Second); got != time.Second {
		t.Errorf("Duration(-1s) = %v, want fallback", got)
	}
}
