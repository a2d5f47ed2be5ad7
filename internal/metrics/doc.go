// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Registered peers by kind
//   - Routed packets and bytes
//   - Dropped packets by reason (unknown source, unknown destination)
//   - Websocket send queue overflow
//   - Stats writer flush latency
package metrics
