// Package server composes and runs the match day process boundary.
//
// It hosts the JSON/HTTP API with the websocket viewers, a gRPC health
// endpoint and the live broadcaster, all sharing one SQLite store.
package server
