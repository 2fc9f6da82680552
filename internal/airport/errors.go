package airport

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no record matches a code-based lookup.
var ErrNotFound = errors.New("airport not found")

// ErrNoCode is returned when neither the IATA nor the ICAO field yields
// a usable canonical code.
var ErrNoCode = errors.New("no usable airport code")

// ErrMissingCoordinates is returned when a geo operation is missing its
// latitude or longitude input.
var ErrMissingCoordinates = errors.New("latitude and longitude are required")

// PartialIndexError reports that the authoritative write succeeded but a
// derived-index write failed. The record store is not rolled back; the
// system stays in a known-inconsistent state until the next reconciliation.
type PartialIndexError struct {
	Op   string // the index operation that failed, e.g. "geo add"
	Code string
	Err  error
}

func (e *PartialIndexError) Error() string {
	return fmt.Sprintf("record stored but %s failed for %s: %v", e.Op, e.Code, e.Err)
}

func (e *PartialIndexError) Unwrap() error { return e.Err }
