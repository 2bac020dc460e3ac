// Package port finds a free loopback TCP port for the worker to bind.
//
// Allocation is a probe, not a reservation: each candidate is bound and
// released immediately. Another process may claim the returned port before
// the worker binds it. That window is accepted; a worker that loses the race
// never becomes reachable and the launcher reports a readiness timeout.
package port

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// DefaultStart and DefaultEnd bound the default scan range [8400, 8500).
const (
	DefaultStart = 8400
	DefaultEnd   = 8500
)

var (
	// ErrNoFreePort is matched by every *NoFreePortError.
	ErrNoFreePort = errors.New("no free port")

	// ErrInvalidRange is returned when the scan range is empty or out of bounds.
	ErrInvalidRange = errors.New("invalid port range")
)

// NoFreePortError reports that every candidate in [Start, End) was taken.
type NoFreePortError struct {
	Start int
	End   int
}

func (e *NoFreePortError) Error() string {
	return fmt.Sprintf("no free port in range [%d, %d)", e.Start, e.End)
}

func (e *NoFreePortError) Is(target error) bool {
	return target == ErrNoFreePort
}

// Allocator scans the half-open range [Start, End) for a bindable port.
type Allocator struct {
	Start int
	End   int
	Host  string // defaults to 127.0.0.1
}

// NewAllocator creates an allocator for [start, end).
func NewAllocator(start, end int) *Allocator {
	return &Allocator{Start: start, End: end, Host: "127.0.0.1"}
}

// Allocate returns the lowest port in range that could be bound at the time
// of the check. The probing listener is closed before returning.
func (a *Allocator) Allocate() (int, error) {
	if err := a.validate(); err != nil {
		return 0, err
	}

	for port := a.Start; port < a.End; port++ {
		if a.available(port) {
			return port, nil
		}
	}
	return 0, &NoFreePortError{Start: a.Start, End: a.End}
}

// Available reports whether port can currently be bound on the allocator host.
func (a *Allocator) Available(port int) bool {
	return a.available(port)
}

func (a *Allocator) validate() error {
	if a.Start < 1 || a.End > 65536 || a.Start >= a.End {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, a.Start, a.End)
	}
	return nil
}

func (a *Allocator) available(port int) bool {
	host := a.Host
	if host == "" {
		host = "127.0.0.1"
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
