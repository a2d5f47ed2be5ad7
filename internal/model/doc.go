// Package model defines shared data types used across the MIDI router daemon.
//
// Conventions:
//   - Payloads: MIDIData is opaque to the router and passed by reference
//   - Timestamps: int64 microseconds since Unix epoch
//   - IDs: uint32 router-assigned peer ids, uuid.UUID for runs and sessions
package model
