package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("creating temp config: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `
album_id: "album-abc"
client_id: "client-123.apps.googleusercontent.com"
client_secret: "secret"
poll_interval: 10m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AlbumID != "album-abc" {
		t.Errorf("AlbumID = %q, want %q", cfg.AlbumID, "album-abc")
	}
	if cfg.ClientID != "client-123.apps.googleusercontent.com" {
		t.Errorf("ClientID = %q, want the configured value", cfg.ClientID)
	}
	if cfg.PollInterval != 10*time.Minute {
		t.Errorf("PollInterval = %v, want 10m", cfg.PollInterval)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
album_id: "album-abc"
client_id: "client"
client_secret: "secret"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PollInterval != 5*time.Minute {
		t.Errorf("PollInterval = %v, want default 5m", cfg.PollInterval)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want default 30s", cfg.HTTPTimeout)
	}
}

func TestLoad_MissingAlbumID(t *testing.T) {
	path := writeConfig(t, `
client_id: "client"
client_secret: "secret"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing album_id, got nil")
	}
}

func TestLoad_MissingClientCredentials(t *testing.T) {
	path := writeConfig(t, `
album_id: "album-abc"
client_id: "client"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing client_secret, got nil")
	}
}

func TestLoad_PollIntervalBounds(t *testing.T) {
	tooShort := writeConfig(t, `
album_id: "album-abc"
client_id: "client"
client_secret: "secret"
poll_interval: 10s
`)
	if _, err := Load(tooShort); err == nil {
		t.Error("expected error for poll_interval below minimum, got nil")
	}

	tooLong := writeConfig(t, `
album_id: "album-abc"
client_id: "client"
client_secret: "secret"
poll_interval: 48h
`)
	if _, err := Load(tooLong); err == nil {
		t.Error("expected error for poll_interval above maximum, got nil")
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, `
album_id: "album-abc"
client_id: "client"
client_secret: "secret"
albun_id: "typo"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
}

func TestLoad_TelemetryRequiresEndpoint(t *testing.T) {
	path := writeConfig(t, `
album_id: "album-abc"
client_id: "client"
client_secret: "secret"
telemetry:
  insecure: true
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for telemetry without otlp_endpoint, got nil")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestWrite_Roundtrip(t *testing.T) {
	cfg := &Config{
		AlbumID:      "album-abc",
		ClientID:     "client",
		ClientSecret: "secret",
		PollInterval: 10 * time.Minute,
	}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := cfg.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat written config: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Write: %v", err)
	}
	if loaded.AlbumID != cfg.AlbumID || loaded.PollInterval != cfg.PollInterval {
		t.Errorf("loaded = %+v, want %+v", loaded, cfg)
	}
}

func TestWrite_RejectsInvalid(t *testing.T) {
	cfg := &Config{ClientID: "client", ClientSecret: "secret"} // no album
	err := cfg.Write(filepath.Join(t.TempDir(), "config.yaml"))
	if err == nil {
		t.Fatal("expected error writing invalid config, got nil")
	}
	if !strings.Contains(err.Error(), "album_id") {
		t.Errorf("error = %v, want mention of album_id", err)
	}
}
