package suoserial

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped indicates the session has been told to stop.
	ErrStopped = errors.New("stopped")
	// ErrLineOverflow indicates a line exceeded the line buffer and was
	// discarded up to its terminator.
	ErrLineOverflow = errors.New("line overflow")
)

// Status is the result code returned by a Backend.
// It is a closed enumeration rendered by name to the client.
type Status int

// Backend result codes.
const (
	StatusOK Status = iota
	StatusReadNotPermitted
	StatusRequestNotSupported
	StatusAttributeNotFound
	StatusAttributeNotLong
	StatusApplicationError
	StatusUnknown
)

var statusNames = [...]string{
	StatusOK:                  "OK",
	StatusReadNotPermitted:    "READ_NOT_PERMITTED",
	StatusRequestNotSupported: "REQUEST_NOT_SUPPORTED",
	StatusAttributeNotFound:   "ATTRIBUTE_NOT_FOUND",
	StatusAttributeNotLong:    "ATTRIBUTE_NOT_LONG",
	StatusApplicationError:    "APPLICATION_ERROR",
	StatusUnknown:             "UNKNOWN",
}

// String returns the wire name of the status.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return statusNames[StatusUnknown]
	}
	return statusNames[s]
}

// Error implements error.
func (s Status) Error() string {
	return s.String()
}

// StatusOf maps an error returned by a Backend to a Status.
// nil is StatusOK, errors not wrapping a Status are StatusUnknown.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return StatusUnknown
}

// HexError reports an invalid hex digit found in strict decoding.
type HexError struct {
	Offset int
	Char   byte
}

// Error implements error.
func (e *HexError) Error() string {
	return fmt.Sprintf("invalid hex digit %q at %d", e.Char, e.Offset)
}
