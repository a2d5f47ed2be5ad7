// Package connection implements the websocket peer transport.
//
// The Server:
//   - Upgrades HTTP requests to websocket connections
//   - Registers each connection as a router peer (optionally named via ?name=)
//   - Forwards every inbound binary message to the router as one MIDI packet
//   - Removes the peer when the connection ends
//
// Each Client queues outbound packets in a bounded buffer drained by its own
// writer goroutine, so router dispatch never waits on the network. When the
// queue is full the oldest packet is dropped.
package connection
