package router

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rtpmididns/midirouter/internal/model"
)

// Router owns the peer registry and the connection graph, and dispatches
// MIDI packets between peers.
type Router struct {
	cfg      Config
	logger   *slog.Logger
	observer Observer

	// Registry
	mu     sync.RWMutex
	nextID PeerID
	peers  map[PeerID]*peerConnection

	// Stats
	routed     atomic.Int64
	droppedSrc atomic.Int64
	droppedDst atomic.Int64
}

// peerConnection is one registry entry. sendTo lists the peers that receive
// a copy of every packet originated by peer.
type peerConnection struct {
	id     PeerID
	peer   Peer
	sendTo []PeerID
}

// Option configures a Router.
type Option func(*Router)

// WithObserver sets an observer notified of every routing event.
func WithObserver(o Observer) Option {
	return func(r *Router) {
		r.observer = o
	}
}

// New creates an empty router. The first peer added gets id 1.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		cfg:    cfg,
		logger: logger,
		nextID: 1,
		peers:  make(map[PeerID]*peerConnection),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddPeer registers peer and returns its new id. It never fails.
func (r *Router) AddPeer(peer Peer) PeerID {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.mu.Unlock()

	// Stamp before publishing so concurrent senders never see an unattached peer.
	base := peer.Base()
	if !base.attach(id, r) {
		r.logger.Warn("peer already attached, keeping its first id",
			"peer_id", id,
			"attached_id", base.ID(),
		)
	}

	r.mu.Lock()
	r.peers[id] = &peerConnection{id: id, peer: peer}
	r.mu.Unlock()

	r.logger.Info("added peer", "peer_id", id, "kind", base.Kind, "name", base.Name)
	if r.observer != nil {
		r.observer.PeerAdded(base.Kind)
	}
	return id
}

// RemovePeer erases the registry entry for id. Unknown ids are ignored.
// Other peers' subscriber lists may still name id afterwards; sends to it are
// then dropped as unknown destination.
func (r *Router) RemovePeer(id PeerID) {
	r.mu.Lock()
	pc, ok := r.peers[id]
	if ok {
		delete(r.peers, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	base := pc.peer.Base()
	r.logger.Info("removed peer", "peer_id", id, "kind", base.Kind, "name", base.Name)
	if r.observer != nil {
		r.observer.PeerRemoved(base.Kind)
	}
}

// Connect makes every packet from peer from also go to peer to.
// Both must be registered. Repeated calls add repeated deliveries.
func (r *Router) Connect(from, to PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pc, ok := r.peers[from]
	if !ok {
		r.logger.Warn("connect from unknown peer", "from", from, "to", to)
		return
	}
	if _, ok := r.peers[to]; !ok {
		r.logger.Warn("connect to unknown peer", "from", from, "to", to)
		return
	}

	pc.sendTo = append(pc.sendTo, to)
	r.logger.Debug("connected peers", "from", from, "to", to)
}

// Disconnect removes every occurrence of to from from's subscriber list and
// returns how many were removed. to does not need to be registered, so
// dangling entries left by RemovePeer can be cleaned up.
func (r *Router) Disconnect(from, to PeerID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	pc, ok := r.peers[from]
	if !ok {
		r.logger.Warn("disconnect from unknown peer", "from", from, "to", to)
		return 0
	}

	before := len(pc.sendTo)
	pc.sendTo = slices.DeleteFunc(pc.sendTo, func(id PeerID) bool {
		return id == to
	})
	removed := before - len(pc.sendTo)

	if removed > 0 {
		r.logger.Debug("disconnected peers", "from", from, "to", to, "count", removed)
	}
	return removed
}

// SendMIDI delivers data from peer from to each of its subscribers, in the
// order they were connected. The subscriber list is read once, at call time.
func (r *Router) SendMIDI(from PeerID, data model.MIDIData) {
	r.mu.RLock()
	pc, ok := r.peers[from]
	var sendTo []PeerID
	if ok {
		sendTo = slices.Clone(pc.sendTo)
	}
	r.mu.RUnlock()

	if !ok {
		r.drop(ErrUnknownSourcePeer, from, 0)
		return
	}

	for _, to := range sendTo {
		r.SendMIDITo(from, to, data)
	}
}

// SendMIDITo delivers data from peer from to peer to, bypassing the graph.
// If either peer is unknown the packet is logged and dropped.
func (r *Router) SendMIDITo(from, to PeerID, data model.MIDIData) {
	r.mu.RLock()
	dst, okTo := r.peers[to]
	src, okFrom := r.peers[from]
	r.mu.RUnlock()

	if !okTo {
		r.drop(ErrUnknownDestinationPeer, from, to)
		return
	}
	if !okFrom {
		r.drop(ErrUnknownSourcePeer, from, to)
		return
	}

	src.peer.Base().packetsSent.Add(1)
	dst.peer.Base().packetsReceived.Add(1)
	r.routed.Add(1)

	if r.cfg.TraceRoutes {
		r.logger.Debug("route packet", "from", from, "to", to, "size", len(data))
	}
	if r.observer != nil {
		r.observer.PacketRouted(len(data))
	}

	dst.peer.SendMIDI(from, data)
}

// drop logs an undeliverable send. to is 0 for broadcasts.
func (r *Router) drop(reason error, from, to PeerID) {
	switch reason {
	case ErrUnknownSourcePeer:
		r.droppedSrc.Add(1)
		if to == 0 {
			r.logger.Warn("send from unknown peer", "from", from, "error", reason)
		} else {
			r.logger.Warn("send from unknown peer", "from", from, "to", to, "error", reason)
		}
	case ErrUnknownDestinationPeer:
		r.droppedDst.Add(1)
		r.logger.Warn("send to unknown peer", "from", from, "to", to, "error", reason)
	}

	if r.observer != nil {
		r.observer.PacketDropped(reason)
	}
}

// Peer returns the registered peer with the given id.
func (r *Router) Peer(id PeerID) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pc, ok := r.peers[id]
	if !ok {
		return nil, false
	}
	return pc.peer, true
}

// Status returns a snapshot of every registry entry, ordered by id.
func (r *Router) Status() []PeerStatus {
	r.mu.RLock()
	out := make([]PeerStatus, 0, len(r.peers))
	for id, pc := range r.peers {
		base := pc.peer.Base()
		out = append(out, PeerStatus{
			ID:              id,
			Kind:            base.Kind,
			Name:            base.Name,
			SendTo:          append([]PeerID{}, pc.sendTo...),
			PacketsSent:     base.PacketsSent(),
			PacketsReceived: base.PacketsReceived(),
		})
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b PeerStatus) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	r.mu.RLock()
	n := len(r.peers)
	r.mu.RUnlock()

	return Stats{
		Peers:                     n,
		PacketsRouted:             r.routed.Load(),
		DroppedUnknownSource:      r.droppedSrc.Load(),
		DroppedUnknownDestination: r.droppedDst.Load(),
	}
}
