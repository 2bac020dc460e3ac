package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestJournalWritesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.log")
	j, err := Open(path, "run-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	ts := time.Date(2026, 2, 19, 10, 30, 0, 0, time.UTC)

	j.Record(Entry{Timestamp: ts, Event: EventPortAllocated, Port: 8401})
	j.Record(Entry{Timestamp: ts.Add(time.Second), Event: EventWorkerSpawned, Port: 8401, PID: 4242})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var e1 Entry
	json.Unmarshal([]byte(lines[0]), &e1)
	if e1.Event != EventPortAllocated {
		t.Errorf("expected port_allocated, got %v", e1.Event)
	}
	if e1.Port != 8401 {
		t.Errorf("expected port 8401, got %d", e1.Port)
	}
	if e1.RunID != "run-1" {
		t.Errorf("expected run id filled in, got %q", e1.RunID)
	}

	var e2 Entry
	json.Unmarshal([]byte(lines[1]), &e2)
	if e2.PID != 4242 {
		t.Errorf("expected pid 4242, got %d", e2.PID)
	}
	if !e2.Timestamp.Equal(ts.Add(time.Second)) {
		t.Errorf("unexpected timestamp %v", e2.Timestamp)
	}
}

func TestJournalDefaultTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.log")
	j, err := Open(path, NewRunID())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	before := time.Now().UTC()
	j.Record(Entry{Event: EventRunStarted})
	after := time.Now().UTC()

	entries, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Timestamp.Before(before) || entries[0].Timestamp.After(after) {
		t.Errorf("timestamp %v not between %v and %v", entries[0].Timestamp, before, after)
	}
}

func TestJournalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.log")

	j1, _ := Open(path, "first")
	j1.Record(Entry{Event: EventRunStarted})
	j1.Close()

	j2, _ := Open(path, "second")
	j2.Record(Entry{Event: EventRunStarted})
	j2.Record(Entry{Event: EventWorkerTimeout, Attempts: 12, ElapsedMS: 1500})
	j2.Close()

	entries, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries across runs, got %d", len(entries))
	}

	second := Run(entries, "second")
	if len(second) != 2 {
		t.Fatalf("expected 2 entries for second run, got %d", len(second))
	}
	if second[1].Attempts != 12 || second[1].ElapsedMS != 1500 {
		t.Errorf("unexpected timeout entry %+v", second[1])
	}
}

func TestJournalCreatesStateDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", "runs.log")
	j, err := Open(path, "x")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	j.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("journal not created: %v", err)
	}
}

func TestReadMissing(t *testing.T) {
	entries, err := Read(filepath.Join(t.TempDir(), "nope.log"))
	if err != nil || entries != nil {
		t.Errorf("expected empty result, got %v, %v", entries, err)
	}
}

func TestReadSkipsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.log")
	content := `{"run_id":"a","event":"run_started"}
not json
{"run_id":"a","event":"worker_ready","port":8400}
`
	os.WriteFile(path, []byte(content), 0600)

	entries, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 parsed entries, got %d", len(entries))
	}
	if entries[1].Event != EventWorkerReady {
		t.Errorf("expected worker_ready, got %s", entries[1].Event)
	}
}

func TestNewRunIDUnique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b || len(a) != 36 {
		t.Errorf("unexpected run ids %q %q", a, b)
	}
}

func TestJournalFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.log")
	j, err := Open(path, "x")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	j.Close()

	info, _ := os.Stat(path)
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}
}
