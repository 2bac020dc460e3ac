// Package journal provides an append-only record of launcher runs.
//
// Every run writes its lifecycle events (port allocated, worker spawned,
// ready or timed out, terminated) to <state_dir>/runs.log as
// newline-delimited JSON, so a failed start can be inspected after the
// surface has closed.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event describes what happened.
type Event string

const (
	EventRunStarted       Event = "run_started"
	EventPortAllocated    Event = "port_allocated"
	EventWorkerSpawned    Event = "worker_spawned"
	EventWorkerReady      Event = "worker_ready"
	EventWorkerTimeout    Event = "worker_timeout"
	EventWorkerTerminated Event = "worker_terminated"
	EventStartupFailed    Event = "startup_failed"
)

// Entry is a single journal record.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	RunID     string    `json:"run_id"`
	Event     Event     `json:"event"`
	Port      int       `json:"port,omitempty"`
	PID       int       `json:"pid,omitempty"`
	ElapsedMS int64     `json:"elapsed_ms,omitempty"`
	Attempts  int       `json:"attempts,omitempty"`
	Stage     string    `json:"stage,omitempty"` // startup_failed only
	Error     string    `json:"error,omitempty"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Journal writes entries for one run to an append-only file.
type Journal struct {
	mu    sync.Mutex
	file  *os.File
	path  string
	runID string
}

// Open creates or opens the journal at path for appending. Entries are
// stamped with runID.
func Open(path, runID string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return &Journal{file: f, path: path, runID: runID}, nil
}

// RunID returns the run identifier entries are stamped with.
func (j *Journal) RunID() string {
	return j.runID
}

// Record writes an entry. Zero timestamp and empty run id are filled in.
func (j *Journal) Record(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.RunID == "" {
		entry.RunID = j.runID
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling journal entry: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing journal entry: %w", err)
	}
	return nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	return j.file.Close()
}

// Read returns every entry in the journal at path, oldest first. Lines that
// do not parse are skipped. A missing file yields no entries.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("reading journal: %w", err)
	}
	return entries, nil
}

// Run returns the entries for one run id, oldest first.
func Run(entries []Entry, runID string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out
}
