package peers

import (
	"github.com/rtpmididns/midirouter/internal/model"
	"github.com/rtpmididns/midirouter/internal/router"
)

// KindEcho is the router kind of Echo peers.
const KindEcho = "echo"

// Echo sends each packet it receives straight back to its sender, from inside
// the router's dispatch call.
type Echo struct {
	router.PeerBase
}

// NewEcho creates an unregistered echo peer.
func NewEcho(name string) *Echo {
	return &Echo{PeerBase: router.PeerBase{Kind: KindEcho, Name: name}}
}

// SendMIDI implements router.Peer.
func (e *Echo) SendMIDI(from router.PeerID, data model.MIDIData) {
	d := e.Router()
	if d == nil {
		return
	}
	d.SendMIDITo(e.ID(), from, data)
}
