package config

import "time"

// DaemonConfig is the root configuration for a midirouterd instance.
type DaemonConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Log       LogConfig       `yaml:"log"`
	Router    RouterConfig    `yaml:"router"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DBConfig        `yaml:"database"`
	Stats     StatsConfig     `yaml:"stats"`
	Peers     PeersConfig     `yaml:"peers"`
	Routes    []RouteConfig   `yaml:"routes"`
}

// InstanceConfig identifies this daemon.
type InstanceConfig struct {
	Name string `yaml:"name"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// RouterConfig holds MIDI router settings.
type RouterConfig struct {
	TraceRoutes bool `yaml:"trace_routes"`
}

// WebSocketConfig holds the websocket peer transport settings.
type WebSocketConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	Path         string        `yaml:"path"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	ReadLimit    int64         `yaml:"read_limit"` // Max inbound message size in bytes
	QueueSize    int           `yaml:"queue_size"` // Max queued outbound packets per peer
}

// HTTPConfig holds the control, health and metrics server settings.
type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DBConfig holds the optional PostgreSQL connection used for traffic stats.
type DBConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// StatsConfig holds stats writer settings.
type StatsConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// PeersConfig lists built-in peers created at startup.
type PeersConfig struct {
	Echo        []string `yaml:"echo"`
	Monitor     []string `yaml:"monitor"`
	MonitorKeep int      `yaml:"monitor_keep"` // Packets kept per monitor for /debug/monitor
}

// RouteConfig connects two peers by name once both are registered.
type RouteConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}
