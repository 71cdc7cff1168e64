// Package timeouts holds the durations shared by the match day process,
// its health probe and its tests.
package timeouts

import "time"

// GRPCDial caps the wait when dialing the health endpoint.
const GRPCDial = 2 * time.Second

// HealthCheck bounds a single health RPC inside a probe loop.
const HealthCheck = time.Second

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// ViewerWrite bounds one websocket frame write to a live viewer.
const ViewerWrite = 10 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
