package session

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/rtpmididns/midirouter/internal/config"
	"github.com/rtpmididns/midirouter/internal/router"
)

// ErrNameTaken is returned by Bind when another live peer holds the name.
var ErrNameTaken = errors.New("peer name already bound")

// Connector is the router surface the binder needs.
type Connector interface {
	Connect(from, to router.PeerID)
	Disconnect(from, to router.PeerID) int
}

// appliedRoute is a route the binder connected, kept so Unbind can undo it.
type appliedRoute struct {
	fromName, toName string
	from, to         router.PeerID
}

func (a appliedRoute) involves(name string, id router.PeerID) bool {
	return (a.fromName == name && a.from == id) || (a.toName == name && a.to == id)
}

// Binder maps names to peer ids and connects configured routes.
type Binder struct {
	conn   Connector
	routes []config.RouteConfig
	logger *slog.Logger

	mu      sync.Mutex
	names   map[string]router.PeerID
	applied []appliedRoute
}

// NewBinder creates a binder applying routes through conn.
func NewBinder(conn Connector, routes []config.RouteConfig, logger *slog.Logger) *Binder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Binder{
		conn:   conn,
		routes: routes,
		logger: logger,
		names:  make(map[string]router.PeerID),
	}
}

// Bind associates name with id and connects every route whose other end is
// already bound. Empty names are ignored.
func (b *Binder) Bind(name string, id router.PeerID) error {
	if name == "" {
		return nil
	}

	b.mu.Lock()
	if _, ok := b.names[name]; ok {
		b.mu.Unlock()
		return ErrNameTaken
	}
	b.names[name] = id

	var links []appliedRoute
	for _, r := range b.routes {
		if r.From != name && r.To != name {
			continue
		}
		from, okFrom := b.names[r.From]
		to, okTo := b.names[r.To]
		if okFrom && okTo {
			links = append(links, appliedRoute{fromName: r.From, toName: r.To, from: from, to: to})
		}
	}
	// Graph changes happen under b.mu so a concurrent Unbind of the other end
	// cannot run between recording a route and connecting it.
	for _, l := range links {
		b.conn.Connect(l.from, l.to)
		b.logger.Info("applied route", "name", name, "from", l.from, "to", l.to)
	}
	b.applied = append(b.applied, links...)
	b.mu.Unlock()
	return nil
}

// Unbind releases name if it is still bound to id and disconnects the routes
// that were applied for it, so a reconnecting peer does not leave stale
// subscribers behind.
func (b *Binder) Unbind(name string, id router.PeerID) {
	if name == "" {
		return
	}

	b.mu.Lock()
	if cur, ok := b.names[name]; !ok || cur != id {
		b.mu.Unlock()
		return
	}
	delete(b.names, name)

	var stale []appliedRoute
	b.applied = slices.DeleteFunc(b.applied, func(a appliedRoute) bool {
		if a.involves(name, id) {
			stale = append(stale, a)
			return true
		}
		return false
	})
	for _, a := range stale {
		if n := b.conn.Disconnect(a.from, a.to); n > 0 {
			b.logger.Info("removed route", "name", name, "from", a.from, "to", a.to)
		}
	}
	b.mu.Unlock()
}

// Lookup returns the id bound to name.
func (b *Binder) Lookup(name string) (router.PeerID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.names[name]
	return id, ok
}
