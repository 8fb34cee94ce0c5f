package host

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robotalks/suoserial/pkg/suota"
)

var (
	// ErrTimeout indicates no response arrived in time.
	ErrTimeout = errors.New("response timeout")
	// ErrNotInUpdate indicates a request outside the update sub-protocol.
	ErrNotInUpdate = errors.New("not in update mode")
	// ErrUnexpected indicates a response which doesn't fit the request.
	ErrUnexpected = errors.New("unexpected response")
)

// ResponseError is an "ERROR ..." response.
type ResponseError struct {
	Request string
	Lines   []string
}

// Error implements error.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Request, strings.Join(e.Lines, "; "))
}

// UpdateError reports a failed image update with the device status.
type UpdateError struct {
	Stage  string
	Status suota.Status
	Err    error
}

// Error implements error.
func (e *UpdateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("update %s: %s: %v", e.Stage, e.Status, e.Err)
	}
	return fmt.Sprintf("update %s: %s", e.Stage, e.Status)
}

// Unwrap returns the underlying error.
func (e *UpdateError) Unwrap() error {
	return e.Err
}
