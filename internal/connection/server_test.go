package connection

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rtpmididns/midirouter/internal/config"
	"github.com/rtpmididns/midirouter/internal/model"
	"github.com/rtpmididns/midirouter/internal/router"
	"github.com/rtpmididns/midirouter/internal/session"
)

type testEnv struct {
	router *router.Router
	binder *session.Binder
	server *Server
	http   *httptest.Server
}

func newTestEnv(t *testing.T, cfg ClientConfig, routes []config.RouteConfig, opts ...ServerOption) *testEnv {
	t.Helper()
	r := router.New(router.DefaultConfig(), nil)
	b := session.NewBinder(r, routes, nil)
	opts = append([]ServerOption{WithBinder(b)}, opts...)
	srv := NewServer(cfg, r, nil, opts...)
	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
	})
	return &testEnv{router: r, binder: b, server: srv, http: hs}
}

func (e *testEnv) dial(t *testing.T, name string) *websocket.Conn {
	t.Helper()
	u := wsURL(e.http)
	if name != "" {
		u += "?name=" + name
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("Dial(%q) failed: %v", name, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (e *testEnv) waitBound(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		waitFor(t, "bind "+name, func() bool {
			_, ok := e.binder.Lookup(name)
			return ok
		})
	}
}

func testClientConfig() ClientConfig {
	cfg := DefaultClientConfig()
	cfg.WriteTimeout = time.Second
	return cfg
}

func TestServer_RoutesBetweenNamedPeers(t *testing.T) {
	env := newTestEnv(t, testClientConfig(), []config.RouteConfig{{From: "keys", To: "synth"}})

	keys := env.dial(t, "keys")
	synth := env.dial(t, "synth")
	env.waitBound(t, "keys", "synth")

	want := []byte{0x90, 0x3c, 0x64}
	if err := keys.WriteMessage(websocket.BinaryMessage, want); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	synth.SetReadDeadline(time.Now().Add(time.Second))
	msgType, got, err := synth.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Errorf("message type = %d, want %d", msgType, websocket.BinaryMessage)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("payload = %x, want %x", got, want)
	}

	keysID, _ := env.binder.Lookup("keys")
	p, ok := env.router.Peer(keysID)
	if !ok {
		t.Fatal("keys peer not registered")
	}
	if got := p.Base().PacketsSent(); got != 1 {
		t.Errorf("PacketsSent = %d, want 1", got)
	}
	if got := env.router.Stats().PacketsRouted; got != 1 {
		t.Errorf("PacketsRouted = %d, want 1", got)
	}
}

func TestServer_IgnoresTextMessages(t *testing.T) {
	env := newTestEnv(t, testClientConfig(), []config.RouteConfig{{From: "a", To: "b"}})

	a := env.dial(t, "a")
	b := env.dial(t, "b")
	env.waitBound(t, "a", "b")

	if err := a.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if err := a.WriteMessage(websocket.BinaryMessage, []byte{0xf8}); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	b.SetReadDeadline(time.Now().Add(time.Second))
	_, got, err := b.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if !bytes.Equal(got, []byte{0xf8}) {
		t.Errorf("payload = %x, want f8", got)
	}
}

func TestServer_NameConflict(t *testing.T) {
	env := newTestEnv(t, testClientConfig(), nil)

	env.dial(t, "dup")
	env.waitBound(t, "dup")

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(env.http)+"?name=dup", nil)
	if err == nil {
		conn.Close()
		t.Fatal("expected second dial with same name to fail")
	}
	if resp == nil {
		t.Fatalf("expected HTTP response, got error %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
	if got := env.server.Stats().Rejected; got != 1 {
		t.Errorf("Rejected = %d, want 1", got)
	}
}

func TestServer_DisconnectRemovesPeer(t *testing.T) {
	env := newTestEnv(t, testClientConfig(), nil)

	conn := env.dial(t, "gone")
	env.waitBound(t, "gone")
	if got := env.router.Stats().Peers; got != 1 {
		t.Fatalf("Peers = %d, want 1", got)
	}

	conn.Close()

	waitFor(t, "peer removal", func() bool { return env.router.Stats().Peers == 0 })
	waitFor(t, "name release", func() bool {
		_, ok := env.binder.Lookup("gone")
		return !ok
	})
	waitFor(t, "untrack", func() bool { return env.server.Stats().Connected == 0 })

	// The name is free again.
	env.dial(t, "gone")
	env.waitBound(t, "gone")
}

func TestServer_AnonymousPeer(t *testing.T) {
	env := newTestEnv(t, testClientConfig(), nil)

	env.dial(t, "")
	waitFor(t, "registration", func() bool { return env.router.Stats().Peers == 1 })

	status := env.router.Status()
	if status[0].Kind != KindWebSocket {
		t.Errorf("Kind = %q, want %q", status[0].Kind, KindWebSocket)
	}
	if status[0].Name != "" {
		t.Errorf("Name = %q, want empty", status[0].Name)
	}
}

func TestServer_ReadLimitClosesConnection(t *testing.T) {
	cfg := testClientConfig()
	cfg.ReadLimit = 8
	env := newTestEnv(t, cfg, nil)

	conn := env.dial(t, "big")
	env.waitBound(t, "big")

	if err := conn.WriteMessage(websocket.BinaryMessage, make([]byte, 64)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to be closed after oversized message")
	}
	waitFor(t, "peer removal", func() bool { return env.router.Stats().Peers == 0 })
}

func TestServer_Close(t *testing.T) {
	env := newTestEnv(t, testClientConfig(), nil)

	conn := env.dial(t, "x")
	env.waitBound(t, "x")

	if err := env.server.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after server close")
	}
	if got := env.router.Stats().Peers; got != 0 {
		t.Errorf("Peers = %d, want 0", got)
	}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(env.http), nil)
	if err == nil {
		t.Fatal("expected dial to fail after Close")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected %d response, got %v", http.StatusServiceUnavailable, resp)
	}
}

func TestServer_Pings(t *testing.T) {
	cfg := testClientConfig()
	cfg.PingInterval = 10 * time.Millisecond
	env := newTestEnv(t, cfg, nil)

	conn := env.dial(t, "p")
	var pings atomic.Int32
	conn.SetPingHandler(func(appData string) error {
		pings.Add(1)
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	waitFor(t, "pings", func() bool { return pings.Load() >= 2 })
}

func TestClient_QueueOverflow(t *testing.T) {
	cfg := testClientConfig()
	cfg.QueueSize = 2

	var drops atomic.Int32
	c := newClient(nil, cfg, "slow", nil)
	c.onDrop = func() { drops.Add(1) }

	for i := range 3 {
		c.SendMIDI(1, model.MIDIData{byte(i)})
	}

	if got := drops.Load(); got != 1 {
		t.Errorf("drops = %d, want 1", got)
	}
	stats := c.QueueStats()
	if stats.Count != 2 {
		t.Errorf("Count = %d, want 2", stats.Count)
	}
	if stats.TotalDropped != 1 {
		t.Errorf("TotalDropped = %d, want 1", stats.TotalDropped)
	}

	// Oldest packet was dropped.
	first, _ := c.outbox.TryReceive()
	if !bytes.Equal(first, model.MIDIData{1}) {
		t.Errorf("first queued = %x, want 01", first)
	}
}

func TestClient_DoubleClose(t *testing.T) {
	c := newClient(nil, testClientConfig(), "", nil)

	if err := c.Close(); err != nil {
		t.Errorf("first Close = %v, want nil", err)
	}
	if err := c.Close(); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("second Close = %v, want %v", err, ErrAlreadyClosed)
	}

	// Sends after close are discarded.
	c.SendMIDI(1, model.MIDIData{0x90})
	if got := c.QueueStats().Count; got != 0 {
		t.Errorf("Count = %d, want 0", got)
	}
}

func TestClient_SessionIDsDiffer(t *testing.T) {
	a := newClient(nil, testClientConfig(), "", nil)
	b := newClient(nil, testClientConfig(), "", nil)
	if a.Session() == b.Session() {
		t.Error("expected distinct session ids")
	}
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()
	if cfg.WriteTimeout != 5*time.Second {
		t.Errorf("WriteTimeout = %v, want 5s", cfg.WriteTimeout)
	}
	if cfg.PingTimeout <= cfg.PingInterval {
		t.Errorf("PingTimeout %v should exceed PingInterval %v", cfg.PingTimeout, cfg.PingInterval)
	}
	if cfg.QueueSize != 1024 {
		t.Errorf("QueueSize = %d, want 1024", cfg.QueueSize)
	}
}
