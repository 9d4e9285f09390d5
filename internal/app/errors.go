package app

import (
	"errors"
	"fmt"
)

// ErrConnection represents a backend that could not be reached or
// authenticated against.
type ErrConnection struct {
	Backend string
	Cause   error
}

func (e *ErrConnection) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("connection error (%s): %v", e.Backend, e.Cause)
	}
	return fmt.Sprintf("connection error: %v", e.Cause)
}

func (e *ErrConnection) Unwrap() error {
	return e.Cause
}

// ErrQuery represents a statement or lookup the backend rejected.
type ErrQuery struct {
	Query string
	Cause error
}

func (e *ErrQuery) Error() string {
	return fmt.Sprintf("query error: %v", e.Cause)
}

func (e *ErrQuery) Unwrap() error {
	return e.Cause
}

// ErrConfig represents invalid or mutually exclusive module parameters.
type ErrConfig struct {
	Cause error
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("config error: %v", e.Cause)
}

func (e *ErrConfig) Unwrap() error {
	return e.Cause
}

// Exit codes reported by the CLI for each error class.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitConfig     = 2
	ExitConnection = 3
	ExitExecution  = 4
)

// ExitCode maps an invocation error to a process exit code.
func ExitCode(err error) int {
	var (
		cfgErr  *ErrConfig
		connErr *ErrConnection
		qErr    *ErrQuery
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.As(err, &connErr):
		return ExitConnection
	case errors.As(err, &qErr):
		return ExitExecution
	default:
		return ExitFailure
	}
}
