// Package timeouts defines shared timeout constants used across the service.
package timeouts

import "time"

// StoreRequest caps a single read or write round-trip to the session store.
const StoreRequest = 2 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second
