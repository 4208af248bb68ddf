package grist

import "fmt"

// TransportError reports a failed destination call: either the request never
// completed (Err set) or the API answered with a non-2xx status.
type TransportError struct {
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("grist %s: %v", e.Op, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("grist %s: status %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("grist %s: status %d", e.Op, e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
