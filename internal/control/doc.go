// Package control serves the daemon's HTTP control surface: health, router
// status, manual connect/disconnect, Prometheus metrics and monitor history.
package control
