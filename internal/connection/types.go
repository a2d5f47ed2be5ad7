package connection

import (
	"errors"
	"time"

	"github.com/rtpmididns/midirouter/internal/model"
	"github.com/rtpmididns/midirouter/internal/router"
)

// KindWebSocket is the router kind of websocket peers.
const KindWebSocket = "websocket"

// Errors
var (
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Registrar is the router surface the server uses.
type Registrar interface {
	AddPeer(peer router.Peer) router.PeerID
	RemovePeer(id router.PeerID)
	SendMIDI(from router.PeerID, data model.MIDIData)
}

// NameBinder associates peer names with ids (see package session).
type NameBinder interface {
	Bind(name string, id router.PeerID) error
	Unbind(name string, id router.PeerID)
	Lookup(name string) (router.PeerID, bool)
}

// ClientConfig configures one websocket peer.
type ClientConfig struct {
	WriteTimeout time.Duration // Write deadline per message
	PingInterval time.Duration // Interval between keepalive pings
	PingTimeout  time.Duration // Max time without pong before the connection is stale
	ReadLimit    int64         // Max inbound message size in bytes
	QueueSize    int           // Max queued outbound packets
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
		PingTimeout:  60 * time.Second,
		ReadLimit:    64 * 1024,
		QueueSize:    1024,
	}
}

// ServerStats provides statistics about the websocket server.
type ServerStats struct {
	Connected int
	Accepted  int64
	Rejected  int64
}
