// Package router implements the MIDI Router component.
//
// The MIDI Router:
//   - Registers peers and assigns each a unique, never reused PeerID
//   - Keeps the directed graph of which peers receive another peer's output
//   - Dispatches MIDI packets synchronously to every subscriber
//   - Counts packets sent and received on the peers themselves
//   - Logs and drops sends involving unknown peers (never returned as errors)
//
// The registry lock is never held while a peer's SendMIDI runs, so a peer may
// call back into the router from its delivery path.
package router
