package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/dooropener-core/internal/auth"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("DOOROPENER_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidStoreBackend verifies run rejects an unknown store backend.
func TestRun_InvalidStoreBackend(t *testing.T) {
	configPath := writeTestConfig(t, "redis")
	t.Setenv("DOOROPENER_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with unknown store backend")
	}
}

// TestRun_StartupAndShutdown drives a full startup with the file backend
// and optional channels disabled, then shuts down on context expiry.
func TestRun_StartupAndShutdown(t *testing.T) {
	configPath := writeTestConfig(t, "file")
	t.Setenv("DOOROPENER_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error: %v", err)
	}
}

// TestPrintPasswordHash verifies the -hash-password helper emits a hash
// that the admin login verifier accepts.
func TestPrintPasswordHash(t *testing.T) {
	var buf bytes.Buffer
	if err := printPasswordHash(&buf, "hunter2"); err != nil {
		t.Fatalf("printPasswordHash: %v", err)
	}

	hash := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("output = %q, want Argon2id PHC string", hash)
	}

	ok, err := auth.VerifyPassword("hunter2", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Error("emitted hash does not verify against the input password")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("DOOROPENER_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("DOOROPENER_CONFIG", "/etc/dooropener/config.yaml")
	if got := getConfigPath(); got != "/etc/dooropener/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env override", got)
	}
}

// writeTestConfig writes a minimal config into a temp dir using the
// given credential store backend.
func writeTestConfig(t *testing.T, backend string) string {
	t.Helper()

	dir := t.TempDir()
	base := `
api:
  host: "127.0.0.1"
  port: 19099
  timeouts:
    read: 5
    write: 30
    idle: 5

pins:
  alice: "1234"

store:
  backend: "` + backend + `"
  path: "` + filepath.Join(dir, "users.json") + `"

audit:
  path: "` + filepath.Join(dir, "attempts.log") + `"
  history_limit: 100

security:
  admin:
    password: "test-admin-password"
  jwt:
    secret: "test-secret-key-at-least-32-characters-long"
    session_ttl: 15

actuator:
  url: "http://127.0.0.1:18123"
  token: "test-token"
  open_entity: "switch.front_door"

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(base), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}
