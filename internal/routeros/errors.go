package routeros

import (
	"errors"
	"fmt"
)

// ConnectionError reports a network-level failure reaching a device. It is
// the only error class the executor retries.
type ConnectionError struct {
	Host string
	Port int
	Op   string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthenticationError reports rejected credentials. Retrying cannot succeed,
// so it is surfaced immediately.
type AuthenticationError struct {
	Host string
	User string
	Err  error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for %s@%s: %v", e.User, e.Host, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ParseError reports a malformed or unexpected response shape. Parsers
// downgrade to partial results where an identifier survives; this error is
// for inputs where nothing usable remains.
type ParseError struct {
	What  string
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: unexpected input %q", e.What, e.Input)
}

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsAuthenticationError reports whether err is (or wraps) an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}
