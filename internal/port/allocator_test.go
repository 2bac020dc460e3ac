package port

import (
	"errors"
	"net"
	"strconv"
	"testing"
)

// freeRange returns a start port such that [start, start+n) is currently
// unbound. It lets the OS pick a base port so tests don't collide with
// whatever else runs on the machine.
func freeRange(t *testing.T, n int) int {
	t.Helper()
	for attempt := 0; attempt < 20; attempt++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		start := ln.Addr().(*net.TCPAddr).Port
		ln.Close()
		if start+n > 65535 {
			continue
		}
		a := NewAllocator(start, start+n)
		ok := true
		for p := start; p < start+n; p++ {
			if !a.Available(p) {
				ok = false
				break
			}
		}
		if ok {
			return start
		}
	}
	t.Fatal("could not find a free port range")
	return 0
}

func bind(t *testing.T, port int) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		t.Fatalf("binding fixture port %d: %v", port, err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}

func TestAllocateInRange(t *testing.T) {
	start := freeRange(t, 10)
	a := NewAllocator(start, start+10)

	p, err := a.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if p < start || p >= start+10 {
		t.Errorf("port %d outside range [%d, %d)", p, start, start+10)
	}
	if p != start {
		t.Errorf("expected lowest free port %d, got %d", start, p)
	}
}

func TestAllocateReleasesProbe(t *testing.T) {
	start := freeRange(t, 3)
	a := NewAllocator(start, start+3)

	p, err := a.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	// The probe listener must be closed so the worker can bind the port.
	ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(p))
	if err != nil {
		t.Fatalf("allocated port %d is still held: %v", p, err)
	}
	ln.Close()
}

func TestAllocateSkipsBoundPort(t *testing.T) {
	start := freeRange(t, 5)
	bind(t, start)

	p, err := NewAllocator(start, start+5).Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if p != start+1 {
		t.Errorf("expected %d, got %d", start+1, p)
	}
}

func TestAllocateDefaultRangeFirstPortTaken(t *testing.T) {
	a := NewAllocator(DefaultStart, DefaultEnd)
	if !a.Available(DefaultStart) || !a.Available(DefaultStart+1) {
		t.Skipf("ports %d-%d in use on this machine", DefaultStart, DefaultStart+1)
	}
	bind(t, DefaultStart)

	p, err := a.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if p != 8401 {
		t.Errorf("expected 8401, got %d", p)
	}
}

func TestAllocateExhausted(t *testing.T) {
	start := freeRange(t, 3)
	for p := start; p < start+3; p++ {
		bind(t, p)
	}

	a := NewAllocator(start, start+3)
	_, err := a.Allocate()
	if err == nil {
		t.Fatal("expected error when every port is bound")
	}
	if !errors.Is(err, ErrNoFreePort) {
		t.Errorf("expected ErrNoFreePort, got %v", err)
	}
	var nfp *NoFreePortError
	if !errors.As(err, &nfp) {
		t.Fatalf("expected *NoFreePortError, got %T", err)
	}
	if nfp.Start != start || nfp.End != start+3 {
		t.Errorf("error carries range [%d, %d), want [%d, %d)", nfp.Start, nfp.End, start, start+3)
	}
}

func TestAllocateExhaustedHoldsNothing(t *testing.T) {
	start := freeRange(t, 2)
	held := []net.Listener{bind(t, start), bind(t, start+1)}

	if _, err := NewAllocator(start, start+2).Allocate(); err == nil {
		t.Fatal("expected error")
	}

	for _, ln := range held {
		ln.Close()
	}
	for p := start; p < start+2; p++ {
		ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(p))
		if err != nil {
			t.Errorf("port %d still bound after failed allocation: %v", p, err)
			continue
		}
		ln.Close()
	}
}

func TestAllocateInvalidRange(t *testing.T) {
	cases := [][2]int{{8500, 8400}, {8400, 8400}, {0, 10}, {65000, 70000}}
	for _, c := range cases {
		_, err := NewAllocator(c[0], c[1]).Allocate()
		if !errors.Is(err, ErrInvalidRange) {
			t.Errorf("range [%d, %d): expected ErrInvalidRange, got %v", c[0], c[1], err)
		}
	}
}
