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
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
client:
  id: "test-client"
server:
  base_url: "https://catalog.example.com/api"
  timeout: 3
store:
  driver: "sqlite"
  path: "/tmp/session.db"
console:
  port: 4300
navigation:
  missing_roles: "allow"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Client.ID != "test-client" {
		t.Errorf("Client.ID = %q, want %q", cfg.Client.ID, "test-client")
	}
	if cfg.Server.BaseURL != "https://catalog.example.com/api" {
		t.Errorf("Server.BaseURL = %q, want %q", cfg.Server.BaseURL, "https://catalog.example.com/api")
	}
	if cfg.Store.Path != "/tmp/session.db" {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, "/tmp/session.db")
	}
	if cfg.Navigation.MissingRoles != MissingRolesAllow {
		t.Errorf("Navigation.MissingRoles = %q, want %q", cfg.Navigation.MissingRoles, MissingRolesAllow)
	}
	if got := cfg.GetServerTimeout(); got != 3*time.Second {
		t.Errorf("GetServerTimeout() = %v, want 3s", got)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	configPath := writeConfig(t, "client:\n  id: \"c1\"\n")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Console.PublicEntry != "/auth/login" {
		t.Errorf("Console.PublicEntry = %q, want /auth/login", cfg.Console.PublicEntry)
	}
	if cfg.Console.Unauthorized != "/unauthorized" {
		t.Errorf("Console.Unauthorized = %q, want /unauthorized", cfg.Console.Unauthorized)
	}
	if cfg.Navigation.MissingRoles != MissingRolesDeny {
		t.Errorf("Navigation.MissingRoles = %q, want %q", cfg.Navigation.MissingRoles, MissingRolesDeny)
	}
	if cfg.Store.Namespace != cfg.Server.BaseURL {
		t.Errorf("Store.Namespace = %q, want it to default to %q", cfg.Store.Namespace, cfg.Server.BaseURL)
	}
	if cfg.Store.AuditRetention != 90 {
		t.Errorf("Store.AuditRetention = %d, want 90", cfg.Store.AuditRetention)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
server:
  base_url: "not a url"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error for relative base_url, got nil")
	}
	if !strings.Contains(err.Error(), "server.base_url") {
		t.Errorf("Load() error = %v, want mention of server.base_url", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	configPath := writeConfig(t, "client:\n  id: \"c1\"\n")

	t.Setenv("CATALOG_SERVER_BASE_URL", "https://override.example.com")
	t.Setenv("CATALOG_STORE_DRIVER", "memory")
	t.Setenv("CATALOG_CONSOLE_PORT", "5000")
	t.Setenv("CATALOG_NAVIGATION_MISSING_ROLES", "allow")
	t.Setenv("CATALOG_STORE_AUDIT_RETENTION", "0")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.BaseURL != "https://override.example.com" {
		t.Errorf("Server.BaseURL = %q, want override", cfg.Server.BaseURL)
	}
	if cfg.Store.Driver != StoreDriverMemory {
		t.Errorf("Store.Driver = %q, want %q", cfg.Store.Driver, StoreDriverMemory)
	}
	if cfg.Console.Port != 5000 {
		t.Errorf("Console.Port = %d, want 5000", cfg.Console.Port)
	}
	if cfg.Navigation.MissingRoles != MissingRolesAllow {
		t.Errorf("Navigation.MissingRoles = %q, want allow", cfg.Navigation.MissingRoles)
	}
	if cfg.Store.AuditRetention != 0 {
		t.Errorf("Store.AuditRetention = %d, want 0 from env", cfg.Store.AuditRetention)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing client id",
			mutate:  func(c *Config) { c.Client.ID = "" },
			wantErr: true,
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Server.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.Store.Driver = "redis" },
			wantErr: true,
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Store.Path = "" },
			wantErr: true,
		},
		{
			name: "memory without path",
			mutate: func(c *Config) {
				c.Store.Driver = StoreDriverMemory
				c.Store.Path = ""
			},
			wantErr: false,
		},
		{
			name:    "negative audit retention",
			mutate:  func(c *Config) { c.Store.AuditRetention = -1 },
			wantErr: true,
		},
		{
			name:    "invalid console port",
			mutate:  func(c *Config) { c.Console.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "unauthorized equals public entry",
			mutate:  func(c *Config) { c.Console.Unauthorized = c.Console.PublicEntry },
			wantErr: true,
		},
		{
			name:    "relative public entry",
			mutate:  func(c *Config) { c.Console.PublicEntry = "auth/login" },
			wantErr: true,
		},
		{
			name:    "unknown missing roles policy",
			mutate:  func(c *Config) { c.Navigation.MissingRoles = "maybe" },
			wantErr: true,
		},
		{
			name: "mqtt enabled with invalid qos",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: true,
		},
		{
			name:    "mqtt disabled ignores qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: false,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.Console.Timeouts.ReadTimeout(); got != 30*time.Second {
		t.Errorf("ReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.Console.Timeouts.WriteTimeout(); got != 30*time.Second {
		t.Errorf("WriteTimeout() = %v, want 30s", got)
	}
	if got := cfg.Console.Timeouts.IdleTimeout(); got != 60*time.Second {
		t.Errorf("IdleTimeout() = %v, want 60s", got)
	}
}
