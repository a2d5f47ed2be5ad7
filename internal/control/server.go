package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rtpmididns/midirouter/internal/peers"
	"github.com/rtpmididns/midirouter/internal/router"
	"github.com/rtpmididns/midirouter/internal/version"
)

// Router is the router surface exposed over HTTP.
type Router interface {
	Status() []router.PeerStatus
	Stats() router.Stats
	Connect(from, to router.PeerID)
	Disconnect(from, to router.PeerID) int
}

// Resolver looks up peers by name.
type Resolver interface {
	Lookup(name string) (router.PeerID, bool)
}

// Pinger checks a dependency (the database pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds what the handler serves. Only Router is required.
type Deps struct {
	Router   Router
	Resolver Resolver
	Database Pinger
	Metrics  http.Handler
	Monitors map[string]*peers.Monitor
}

var errBadPeer = errors.New("peer must be a numeric id or a bound name")

// NewHandler creates the control mux.
func NewHandler(deps Deps, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{deps: deps, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /status", h.status)
	mux.HandleFunc("POST /connect", h.connect)
	mux.HandleFunc("POST /disconnect", h.disconnect)
	mux.HandleFunc("GET /debug/monitor", h.monitor)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}
	return mux
}

// NewServer wraps the control handler in an http.Server.
func NewServer(addr string, deps Deps, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandler(deps, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

type handler struct {
	deps   Deps
	logger *slog.Logger
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := struct {
		Status     string         `json:"status"`
		Version    string         `json:"version"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Version:    version.Version,
		Components: make(map[string]any),
	}

	health.Components["router"] = map[string]any{
		"peers": h.deps.Router.Stats().Peers,
	}

	if h.deps.Database != nil {
		if err := h.deps.Database.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["database"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["database"] = "connected"
		}
	}

	code := http.StatusOK
	if health.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": h.deps.Router.Stats(),
		"peers": h.deps.Router.Status(),
	})
}

func (h *handler) connect(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.endpoints(w, r)
	if !ok {
		return
	}
	h.deps.Router.Connect(from, to)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) disconnect(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.endpoints(w, r)
	if !ok {
		return
	}
	h.deps.Router.Disconnect(from, to)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) monitor(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	m, ok := h.deps.Monitors[name]
	if !ok {
		http.Error(w, "unknown monitor", http.StatusNotFound)
		return
	}
	history := m.History()
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    name,
		"count":   len(history),
		"packets": history,
	})
}

// endpoints parses the from and to query parameters, writing a 400 on failure.
func (h *handler) endpoints(w http.ResponseWriter, r *http.Request) (from, to router.PeerID, ok bool) {
	q := r.URL.Query()
	from, err := h.resolve(q.Get("from"))
	if err != nil {
		http.Error(w, "from: "+err.Error(), http.StatusBadRequest)
		return 0, 0, false
	}
	to, err = h.resolve(q.Get("to"))
	if err != nil {
		http.Error(w, "to: "+err.Error(), http.StatusBadRequest)
		return 0, 0, false
	}
	return from, to, true
}

// resolve accepts a numeric peer id or, with a Resolver, a bound name.
func (h *handler) resolve(s string) (router.PeerID, error) {
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return router.PeerID(n), nil
	}
	if s != "" && h.deps.Resolver != nil {
		if id, ok := h.deps.Resolver.Lookup(s); ok {
			return id, nil
		}
	}
	return 0, errBadPeer
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
