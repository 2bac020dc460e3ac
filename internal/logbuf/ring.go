// Package logbuf keeps the tail of a worker's combined output so a failed
// launch can show what the worker printed before it went quiet.
package logbuf

import (
	"bytes"
	"sync"
)

// MaxLineBytes bounds a single stored line. Output with no newline for
// longer than this is broken into several lines.
const MaxLineBytes = 4096

// Ring holds the last N lines written to it. It is an io.Writer, so it can
// stand in for a process's stdout and stderr at once.
type Ring struct {
	mu    sync.Mutex
	lines []string
	next  int    // slot the next complete line goes into
	count int    // complete lines stored, at most len(lines)
	tail  []byte // output after the last newline
}

// New returns a ring that keeps n lines. n below 1 keeps one.
func New(n int) *Ring {
	if n < 1 {
		n = 1
	}
	return &Ring{lines: make([]string, n)}
}

// Write stores each newline-terminated line of p. Trailing "\r" is dropped.
// Bytes after the last newline are held until the line completes, and are
// still visible through Lines and Last in the meantime.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			r.tail = append(r.tail, p...)
			break
		}
		r.tail = append(r.tail, p[:i]...)
		r.push(string(bytes.TrimRight(r.tail, "\r")))
		r.tail = r.tail[:0]
		p = p[i+1:]
	}

	for len(r.tail) > MaxLineBytes {
		r.push(string(r.tail[:MaxLineBytes]))
		r.tail = append(r.tail[:0], r.tail[MaxLineBytes:]...)
	}
	return n, nil
}

func (r *Ring) push(line string) {
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// Lines returns the stored lines, oldest first. An unterminated final line
// is included as the newest.
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := len(r.lines)
	out := make([]string, 0, r.count+1)
	start := (r.next - r.count + size) % size
	for i := 0; i < r.count; i++ {
		out = append(out, r.lines[(start+i)%size])
	}
	if tail := bytes.TrimRight(r.tail, "\r"); len(tail) > 0 {
		out = append(out, string(tail))
		if len(out) > size {
			out = out[1:]
		}
	}
	return out
}

// Last returns at most the newest n lines.
func (r *Ring) Last(n int) []string {
	if n <= 0 {
		return nil
	}
	all := r.Lines()
	if n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}
