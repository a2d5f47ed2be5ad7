package model

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Routing Types
// -----------------------------------------------------------------------------

// MIDIData is a MIDI event payload as received from a transport.
// The router never inspects or mutates it; receivers must not mutate it either,
// since the same slice is handed to every subscriber.
type MIDIData []byte

// Len returns the payload size in bytes.
func (d MIDIData) Len() int {
	return len(d)
}

// Hex renders the payload as space separated hex bytes ("90 3c 7f").
func (d MIDIData) Hex() string {
	if len(d) == 0 {
		return ""
	}
	out := make([]byte, 0, len(d)*3-1)
	for i, b := range d {
		if i > 0 {
			out = append(out, ' ')
		}
		out = hex.AppendEncode(out, []byte{b})
	}
	return string(out)
}

// -----------------------------------------------------------------------------
// Statistics Types
// -----------------------------------------------------------------------------

// PeerStats is one traffic sample for a peer, as persisted by the stats writer.
type PeerStats struct {
	RunID           uuid.UUID // Daemon run that produced the sample
	PeerID          uint64    // Router-assigned peer id
	Name            string    // Peer name, empty if unnamed
	Kind            string    // "websocket", "echo", "monitor"
	PacketsSent     int64     // Packets originated by this peer and delivered
	PacketsReceived int64     // Packets delivered to this peer
	RecordedAt      int64     // Sample time (µs since epoch)
}
