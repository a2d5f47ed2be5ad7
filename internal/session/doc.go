// Package session binds human readable peer names to router ids and applies
// the statically configured routes between named peers.
//
// Routes are applied when their second end registers, so peers may appear in
// any order. Unbinding a name disconnects the routes applied for it, so a
// peer that reconnects under a new id gets its routes again without leaving
// stale subscribers behind.
package session
