package router

import (
	"errors"
	"sync/atomic"

	"github.com/rtpmididns/midirouter/internal/model"
)

// Drop reasons. They are only used as log attributes and metric labels;
// dispatch never returns them.
var (
	ErrUnknownSourcePeer      = errors.New("unknown source peer")
	ErrUnknownDestinationPeer = errors.New("unknown destination peer")
)

// PeerID identifies a registered peer. Zero is never issued, and the
// 64-bit space cannot wrap within a process lifetime.
type PeerID uint64

// Dispatcher is the part of the router a peer may call back into.
// Peers hold it as a plain reference; it carries no ownership.
type Dispatcher interface {
	SendMIDI(from PeerID, data model.MIDIData)
	SendMIDITo(from, to PeerID, data model.MIDIData)
	Connect(from, to PeerID)
	RemovePeer(id PeerID)
}

// Peer is anything the router can deliver MIDI to.
//
// Implementations embed PeerBase, which provides Base and the router-managed
// state (id, dispatcher, counters).
type Peer interface {
	// SendMIDI delivers data that originated at peer from. It is called
	// synchronously from dispatch and must not block for long; peers that
	// write to the network queue the data themselves.
	SendMIDI(from PeerID, data model.MIDIData)

	// Base returns the embedded router-managed state.
	Base() *PeerBase
}

// PeerBase holds the state the router stamps on and updates in a peer.
// It must not be copied after the peer has been added.
type PeerBase struct {
	Kind string // e.g. "websocket", "echo"
	Name string // optional human readable name

	id              atomic.Uint64
	dispatcher      atomic.Pointer[dispatcherRef]
	packetsSent     atomic.Int64
	packetsReceived atomic.Int64
}

type dispatcherRef struct {
	d Dispatcher
}

// Base returns b, so that embedding PeerBase satisfies half of Peer.
func (b *PeerBase) Base() *PeerBase {
	return b
}

// ID returns the id assigned at registration, or 0 if never registered.
func (b *PeerBase) ID() PeerID {
	return PeerID(b.id.Load())
}

// Router returns the dispatcher the peer was registered with, or nil.
func (b *PeerBase) Router() Dispatcher {
	ref := b.dispatcher.Load()
	if ref == nil {
		return nil
	}
	return ref.d
}

// PacketsSent returns how many packets from this peer were delivered.
func (b *PeerBase) PacketsSent() int64 {
	return b.packetsSent.Load()
}

// PacketsReceived returns how many packets were delivered to this peer.
func (b *PeerBase) PacketsReceived() int64 {
	return b.packetsReceived.Load()
}

// attach stamps id and dispatcher. Only the first call has an effect.
func (b *PeerBase) attach(id PeerID, d Dispatcher) bool {
	if !b.dispatcher.CompareAndSwap(nil, &dispatcherRef{d: d}) {
		return false
	}
	b.id.Store(uint64(id))
	return true
}

// Observer receives routing events. The metrics package implements it.
type Observer interface {
	PeerAdded(kind string)
	PeerRemoved(kind string)
	PacketRouted(size int)
	PacketDropped(reason error)
}

// Config holds configuration for the MIDI Router.
type Config struct {
	// TraceRoutes logs every delivered packet at debug level.
	TraceRoutes bool
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		TraceRoutes: false,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Peers                     int   `json:"peers"`
	PacketsRouted             int64 `json:"packets_routed"`
	DroppedUnknownSource      int64 `json:"dropped_unknown_source"`
	DroppedUnknownDestination int64 `json:"dropped_unknown_destination"`
}

// PeerStatus is a point-in-time view of one registry entry.
type PeerStatus struct {
	ID              PeerID   `json:"id"`
	Kind            string   `json:"kind"`
	Name            string   `json:"name,omitempty"`
	SendTo          []PeerID `json:"send_to"`
	PacketsSent     int64    `json:"packets_sent"`
	PacketsReceived int64    `json:"packets_received"`
}
