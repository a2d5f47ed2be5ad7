// Package peers implements the built-in, in-process peers of the daemon.
//
//   - Echo reflects every packet back to the peer that sent it.
//   - Monitor logs packets and keeps a short history for /debug/monitor.
package peers
