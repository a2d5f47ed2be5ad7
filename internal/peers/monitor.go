package peers

import (
	"log/slog"
	"time"

	"github.com/rtpmididns/midirouter/internal/model"
	"github.com/rtpmididns/midirouter/internal/queue"
	"github.com/rtpmididns/midirouter/internal/router"
)

// KindMonitor is the router kind of Monitor peers.
const KindMonitor = "monitor"

// Captured is one packet seen by a Monitor.
type Captured struct {
	From       router.PeerID `json:"from"`
	Data       string        `json:"data"` // hex
	Size       int           `json:"size"`
	ReceivedAt time.Time     `json:"received_at"`
}

// Monitor logs every packet at debug level and remembers the most recent ones.
type Monitor struct {
	router.PeerBase

	logger  *slog.Logger
	history *queue.Buffer[Captured]
	now     func() time.Time
}

// NewMonitor creates an unregistered monitor keeping the last keep packets.
func NewMonitor(name string, keep int, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if keep < 1 {
		keep = 1
	}
	return &Monitor{
		PeerBase: router.PeerBase{Kind: KindMonitor, Name: name},
		logger:   logger,
		history:  queue.New[Captured](keep, keep),
		now:      time.Now,
	}
}

// SendMIDI implements router.Peer.
func (m *Monitor) SendMIDI(from router.PeerID, data model.MIDIData) {
	c := Captured{
		From:       from,
		Data:       data.Hex(),
		Size:       data.Len(),
		ReceivedAt: m.now(),
	}
	m.history.Send(c)

	m.logger.Debug("midi packet",
		"monitor", m.Name,
		"from", from,
		"data", c.Data,
	)
}

// History returns the remembered packets, oldest first.
func (m *Monitor) History() []Captured {
	return m.history.Snapshot()
}
