package main

import (
	"errors"
	"fmt"

	"github.com/benaskins/launchpad/internal/port"
	"github.com/benaskins/launchpad/internal/supervisor"
)

// Exit codes for launchpad
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitConfigError  = 2
	ExitNoFreePort   = 3
	ExitSpawnFailed  = 4
	ExitNotReady     = 5
)

// exitError carries an explicit exit code.
type exitError struct {
	Code  int
	Cause error
}

func (e *exitError) Error() string {
	return e.Cause.Error()
}

func (e *exitError) Unwrap() error {
	return e.Cause
}

func configError(err error) error {
	return &exitError{Code: ExitConfigError, Cause: fmt.Errorf("config: %w", err)}
}

// exitCode maps an error from a command to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	switch {
	case errors.Is(err, port.ErrInvalidRange):
		return ExitConfigError
	case errors.Is(err, port.ErrNoFreePort):
		return ExitNoFreePort
	case errors.Is(err, supervisor.ErrSpawn):
		return ExitSpawnFailed
	default:
		return ExitGeneralError
	}
}
