// Package errors provides the service's structured domain errors.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unclassified failure.
	CodeUnknown Code = "UNKNOWN"

	// CodeNotFound means the addressed session or player is absent.
	CodeNotFound Code = "NOT_FOUND"
	// CodeSlotsExhausted means the session already holds four players.
	CodeSlotsExhausted Code = "SLOTS_EXHAUSTED"
	// CodeNoSamples means region selection had no latency data.
	CodeNoSamples Code = "NO_SAMPLES"
	// CodeMalformed means the caller's input could not be parsed or validated.
	CodeMalformed Code = "MALFORMED"
	// CodeStoreUnavailable means a session store round-trip failed.
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeMalformed:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeSlotsExhausted:
		return http.StatusConflict
	case CodeNoSamples:
		return http.StatusUnprocessableEntity
	case CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
