package parser

import (
	"errors"
	"fmt"
)

// ErrHistoricalNotSupported is raised when a target datetime is requested
// from a source that only serves live data. It is surfaced to the caller and
// never retried.
var ErrHistoricalNotSupported = errors.New("historical data not supported")

// Error is the catch-all fault for fetch, decode and normalize failures
// inside a parser. The tick is marked failed; the fault never reaches the
// read API.
type Error struct {
	Parser string
	Zone   string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("parser %s (%s): %v", e.Parser, e.Zone, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf wraps a fault with the parser name and zone (or exchange) key.
func Errorf(parserName, key, format string, args ...any) *Error {
	return &Error{Parser: parserName, Zone: key, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches parser identity to err, passing through nil and keeping an
// already-typed *Error or ErrHistoricalNotSupported intact.
func Wrap(parserName, key string, err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) || errors.Is(err, ErrHistoricalNotSupported) {
		return err
	}
	return &Error{Parser: parserName, Zone: key, Err: err}
}
