package connection

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rtpmididns/midirouter/internal/model"
	"github.com/rtpmididns/midirouter/internal/queue"
	"github.com/rtpmididns/midirouter/internal/router"
)

// Client is one accepted websocket connection acting as a router peer.
type Client struct {
	router.PeerBase

	cfg     ClientConfig
	logger  *slog.Logger
	session uuid.UUID

	conn   *websocket.Conn
	outbox *queue.Buffer[model.MIDIData]
	onDrop func()

	done      chan struct{}
	closeOnce sync.Once

	mu         sync.RWMutex
	lastPongAt time.Time
}

func newClient(conn *websocket.Conn, cfg ClientConfig, name string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	initial := cfg.QueueSize
	if initial > 64 {
		initial = 64
	}
	session := uuid.New()

	return &Client{
		PeerBase:   router.PeerBase{Kind: KindWebSocket, Name: name},
		cfg:        cfg,
		logger:     logger.With("session", session.String()),
		session:    session,
		conn:       conn,
		outbox:     queue.New[model.MIDIData](initial, cfg.QueueSize),
		done:       make(chan struct{}),
		lastPongAt: time.Now(),
	}
}

// Session returns the unique id of this connection, stable across the
// lifetime of the connection and distinct from the router id.
func (c *Client) Session() uuid.UUID {
	return c.session
}

// SendMIDI implements router.Peer. It never blocks.
func (c *Client) SendMIDI(from router.PeerID, data model.MIDIData) {
	ok, dropped := c.outbox.Send(data)
	if !ok {
		return
	}
	if dropped {
		c.logger.Debug("send queue full, dropped oldest packet", "peer_id", c.ID(), "from", from)
		if c.onDrop != nil {
			c.onDrop()
		}
	}
}

// QueueStats returns statistics of the outbound queue.
func (c *Client) QueueStats() queue.Stats {
	return c.outbox.Stats()
}

// Close closes the connection. Safe to call more than once.
func (c *Client) Close() error {
	err := ErrAlreadyClosed
	c.closeOnce.Do(func() {
		close(c.done)
		c.outbox.Close()
		err = nil
		if c.conn != nil {
			c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			err = c.conn.Close()
		}
	})
	return err
}

// run reads packets and hands them to deliver until the connection fails or
// is closed. It starts the writer and heartbeat goroutines and waits for them.
func (c *Client) run(deliver func(model.MIDIData)) {
	c.conn.SetReadLimit(c.cfg.ReadLimit)
	c.conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastPongAt = time.Now()
		c.mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()
	go func() {
		defer wg.Done()
		c.heartbeatLoop()
	}()

	c.readLoop(deliver)
	c.Close()
	wg.Wait()
}

// readLoop reads messages until an error. Only binary messages carry MIDI.
func (c *Client) readLoop(deliver func(model.MIDIData)) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Warn("websocket read failed", "peer_id", c.ID(), "error", err)
				} else {
					c.logger.Debug("websocket closed", "peer_id", c.ID(), "error", err)
				}
			}
			return
		}

		if msgType != websocket.BinaryMessage {
			c.logger.Debug("ignoring non-binary message", "peer_id", c.ID(), "type", msgType)
			continue
		}
		deliver(model.MIDIData(data))
	}
}

// writeLoop drains the outbound queue to the socket.
func (c *Client) writeLoop() {
	for {
		data, ok := c.outbox.Receive()
		if !ok {
			return
		}

		c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			c.logger.Debug("websocket write failed", "peer_id", c.ID(), "error", err)
			c.Close()
			return
		}
	}
}

// heartbeatLoop sends pings and closes the connection when pongs stop.
func (c *Client) heartbeatLoop() {
	if c.cfg.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			c.mu.RLock()
			lastPong := c.lastPongAt
			c.mu.RUnlock()

			if c.cfg.PingTimeout > 0 && time.Since(lastPong) > c.cfg.PingTimeout {
				c.logger.Warn("no pong received, closing connection",
					"peer_id", c.ID(),
					"last_pong", lastPong,
					"timeout", c.cfg.PingTimeout,
					"error", ErrStaleConnection,
				)
				c.Close()
				return
			}
		}
	}
}
