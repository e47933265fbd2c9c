// Package domain holds the session model and the pure matchmaking algorithms:
// identifier and slot allocation, session ranking, liveness pruning and
// latency-driven region selection.
//
// Nothing here performs I/O. The registry package fetches the stored
// collection, runs these functions over a private copy and writes it back.
package domain
