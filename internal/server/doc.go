// Package server implements the TCP listener for device connections and the
// HTTP API. The TCP side owns connection lifecycles (read deadlines, acks,
// teardown); the HTTP side exposes the current reading, a liveness probe, and
// the admin session endpoints.
package server
