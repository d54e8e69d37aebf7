// Package session provides the admin session store and lifecycle handling.
// It mints unguessable tokens with a fixed TTL, validates them against the
// store, and sweeps expired entries opportunistically before login and check
// operations.
package session
