// Package server wires the truvy-web components together and runs the HTTP
// server on a TCP or tsnet (Tailscale) listener with graceful shutdown.
package server
