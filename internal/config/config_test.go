package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  name: studio
log:
  level: debug
websocket:
  listen_addr: 127.0.0.1:5004
  path: /ws
peers:
  echo: [echo]
  monitor: [tap]
routes:
  - from: keyboard
    to: tap
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.Name != "studio" {
		t.Errorf("Instance.Name = %q, want %q", cfg.Instance.Name, "studio")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.WebSocket.ListenAddr != "127.0.0.1:5004" {
		t.Errorf("WebSocket.ListenAddr = %q, want %q", cfg.WebSocket.ListenAddr, "127.0.0.1:5004")
	}
	if len(cfg.Peers.Echo) != 1 || cfg.Peers.Echo[0] != "echo" {
		t.Errorf("Peers.Echo = %v, want [echo]", cfg.Peers.Echo)
	}
	if len(cfg.Routes) != 1 || cfg.Routes[0].From != "keyboard" || cfg.Routes[0].To != "tap" {
		t.Errorf("Routes = %+v, want keyboard -> tap", cfg.Routes)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
database:
  enabled: true
  host: localhost
  name: midi
  user: midi
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Errorf("error = %q, want read config file prefix", err.Error())
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTempFile(t, "routes: [from: a\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "instance:\n  name: studio\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.WebSocket.ListenAddr != DefaultWSListenAddr {
		t.Errorf("WebSocket.ListenAddr = %q, want default %q", cfg.WebSocket.ListenAddr, DefaultWSListenAddr)
	}
	if cfg.WebSocket.Path != DefaultWSPath {
		t.Errorf("WebSocket.Path = %q, want default %q", cfg.WebSocket.Path, DefaultWSPath)
	}
	if cfg.WebSocket.WriteTimeout != DefaultWSWriteTimeout {
		t.Errorf("WebSocket.WriteTimeout = %v, want default %v", cfg.WebSocket.WriteTimeout, DefaultWSWriteTimeout)
	}
	if cfg.WebSocket.QueueSize != DefaultWSQueueSize {
		t.Errorf("WebSocket.QueueSize = %d, want default %d", cfg.WebSocket.QueueSize, DefaultWSQueueSize)
	}
	if cfg.HTTP.ListenAddr != DefaultHTTPListenAddr {
		t.Errorf("HTTP.ListenAddr = %q, want default %q", cfg.HTTP.ListenAddr, DefaultHTTPListenAddr)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Stats.FlushInterval != DefaultStatsFlush {
		t.Errorf("Stats.FlushInterval = %v, want default %v", cfg.Stats.FlushInterval, DefaultStatsFlush)
	}
	if cfg.Peers.MonitorKeep != DefaultMonitorKeep {
		t.Errorf("Peers.MonitorKeep = %d, want default %d", cfg.Peers.MonitorKeep, DefaultMonitorKeep)
	}
	if cfg.Instance.Name != "studio" {
		t.Errorf("Instance.Name = %q, want %q", cfg.Instance.Name, "studio")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() unexpected error: %v", err)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "log:\n  level: loud\n")

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.HasPrefix(err.Error(), "validate config: ") {
		t.Errorf("error = %q, want validate config prefix", err.Error())
	}
}

func TestValidate(t *testing.T) {
	valid := func() DaemonConfig {
		return *Default()
	}

	tests := []struct {
		name    string
		mutate  func(c *DaemonConfig)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *DaemonConfig) { c.Log.Level = "verbose" },
			wantErr: `log.level must be one of debug, info, warn, error, got "verbose"`,
		},
		{
			name:    "bad log format",
			mutate:  func(c *DaemonConfig) { c.Log.Format = "xml" },
			wantErr: `log.format must be text or json, got "xml"`,
		},
		{
			name:    "relative websocket path",
			mutate:  func(c *DaemonConfig) { c.WebSocket.Path = "midi" },
			wantErr: `websocket.path must start with /, got "midi"`,
		},
		{
			name:    "zero queue size",
			mutate:  func(c *DaemonConfig) { c.WebSocket.QueueSize = -1 },
			wantErr: "websocket.queue_size must be >= 1",
		},
		{
			name:    "database enabled without host",
			mutate:  func(c *DaemonConfig) { c.Database.Enabled = true },
			wantErr: "database.host is required",
		},
		{
			name: "database min_conns exceeds max_conns",
			mutate: func(c *DaemonConfig) {
				c.Database = DBConfig{Enabled: true, Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 2, MinConns: 5}
			},
			wantErr: "database.min_conns (5) cannot exceed max_conns (2)",
		},
		{
			name: "database disabled skips checks",
			mutate: func(c *DaemonConfig) {
				c.Database = DBConfig{Enabled: false}
			},
			wantErr: "",
		},
		{
			name: "duplicate peer names",
			mutate: func(c *DaemonConfig) {
				c.Peers.Echo = []string{"tap"}
				c.Peers.Monitor = []string{"tap"}
			},
			wantErr: `peer name "tap" used by both peers.echo and peers.monitor`,
		},
		{
			name:    "empty route end",
			mutate:  func(c *DaemonConfig) { c.Routes = []RouteConfig{{From: "a"}} },
			wantErr: "routes[0] needs both from and to",
		},
		{
			name: "valid config",
			mutate: func(c *DaemonConfig) {
				c.Database = DBConfig{Enabled: true, Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 4, MinConns: 1}
				c.Stats.FlushInterval = time.Second
				c.Peers.Echo = []string{"echo"}
				c.Routes = []RouteConfig{{From: "keyboard", To: "echo"}}
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
