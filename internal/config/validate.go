package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *DaemonConfig) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.WebSocket.ListenAddr == "" {
		return errors.New("websocket.listen_addr is required")
	}
	if !strings.HasPrefix(c.WebSocket.Path, "/") {
		return fmt.Errorf("websocket.path must start with /, got %q", c.WebSocket.Path)
	}
	if c.WebSocket.ReadLimit < 1 {
		return errors.New("websocket.read_limit must be >= 1")
	}
	if c.WebSocket.QueueSize < 1 {
		return errors.New("websocket.queue_size must be >= 1")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return errors.New("websocket.write_timeout must be > 0")
	}

	if c.HTTP.ListenAddr == "" {
		return errors.New("http.listen_addr is required")
	}

	if c.Database.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
		if c.Stats.FlushInterval <= 0 {
			return errors.New("stats.flush_interval must be > 0")
		}
	}

	if err := c.validatePeers(); err != nil {
		return err
	}

	for i, r := range c.Routes {
		if r.From == "" || r.To == "" {
			return fmt.Errorf("routes[%d] needs both from and to", i)
		}
	}

	return nil
}

// validatePeers rejects duplicate built-in peer names, since routes refer to
// peers by name.
func (c *DaemonConfig) validatePeers() error {
	seen := make(map[string]string)
	check := func(kind string, names []string) error {
		for _, name := range names {
			if name == "" {
				return fmt.Errorf("peers.%s contains an empty name", kind)
			}
			if prev, ok := seen[name]; ok {
				return fmt.Errorf("peer name %q used by both peers.%s and peers.%s", name, prev, kind)
			}
			seen[name] = kind
		}
		return nil
	}

	if err := check("echo", c.Peers.Echo); err != nil {
		return err
	}
	if err := check("monitor", c.Peers.Monitor); err != nil {
		return err
	}
	if c.Peers.MonitorKeep < 1 {
		return errors.New("peers.monitor_keep must be >= 1")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
