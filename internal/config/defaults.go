package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceName   = "midirouterd"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultWSListenAddr   = ":5004"
	DefaultWSPath         = "/midi"
	DefaultWSWriteTimeout = 5 * time.Second
	DefaultWSPingInterval = 30 * time.Second
	DefaultWSReadLimit    = 64 * 1024
	DefaultWSQueueSize    = 1024
	DefaultHTTPListenAddr = ":9090"
	DefaultDBPort         = 5432
	DefaultDBSSLMode      = "prefer"
	DefaultMaxConns       = 4
	DefaultMinConns       = 1
	DefaultStatsFlush     = 10 * time.Second
	DefaultMonitorKeep    = 64
)

func (c *DaemonConfig) applyDefaults() {
	if c.Instance.Name == "" {
		c.Instance.Name = DefaultInstanceName
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// WebSocket defaults
	if c.WebSocket.ListenAddr == "" {
		c.WebSocket.ListenAddr = DefaultWSListenAddr
	}
	if c.WebSocket.Path == "" {
		c.WebSocket.Path = DefaultWSPath
	}
	if c.WebSocket.WriteTimeout == 0 {
		c.WebSocket.WriteTimeout = DefaultWSWriteTimeout
	}
	if c.WebSocket.PingInterval == 0 {
		c.WebSocket.PingInterval = DefaultWSPingInterval
	}
	if c.WebSocket.ReadLimit == 0 {
		c.WebSocket.ReadLimit = DefaultWSReadLimit
	}
	if c.WebSocket.QueueSize == 0 {
		c.WebSocket.QueueSize = DefaultWSQueueSize
	}

	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = DefaultHTTPListenAddr
	}

	applyDBDefaults(&c.Database)

	if c.Stats.FlushInterval == 0 {
		c.Stats.FlushInterval = DefaultStatsFlush
	}

	if c.Peers.MonitorKeep == 0 {
		c.Peers.MonitorKeep = DefaultMonitorKeep
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
