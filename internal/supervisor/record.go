package supervisor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/benaskins/launchpad/internal/driver"
)

// WorkerRecord is the persisted identity of a running worker, used to reap
// a worker orphaned by a launcher that died without running its shutdown hook.
type WorkerRecord struct {
	PID        int    `json:"pid"`
	Port       int    `json:"port"`
	Command    string `json:"command"`
	CreateTime int64  `json:"create_time,omitempty"` // OS-reported, ms since epoch
	StartedAt  int64  `json:"started_at"`            // Unix timestamp
}

func newWorkerRecord(pid, port int, command string) WorkerRecord {
	rec := WorkerRecord{
		PID:       pid,
		Port:      port,
		Command:   command,
		StartedAt: time.Now().Unix(),
	}
	if ct, err := processCreateTime(pid); err == nil {
		rec.CreateTime = ct
	}
	return rec
}

// recordFile persists the worker record between runs.
type recordFile struct {
	path string
	mu   sync.Mutex
}

func newRecordFile(dir string) *recordFile {
	return &recordFile{path: filepath.Join(dir, "worker.json")}
}

func (rf *recordFile) load() (*WorkerRecord, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	data, err := os.ReadFile(rf.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading worker record: %w", err)
	}

	var rec WorkerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing worker record: %w", err)
	}
	return &rec, nil
}

func (rf *recordFile) save(rec WorkerRecord) error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(rf.path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := rf.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, rf.path)
}

func (rf *recordFile) remove() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if err := os.Remove(rf.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ReapStale kills a worker left running by a previous launcher run, if the
// recorded process still exists and is the same process (pid and create time
// match). The record is removed either way. Returns the reaped pid, or 0.
func (s *Supervisor) ReapStale() (int, error) {
	if s.record == nil {
		return 0, nil
	}

	rec, err := s.record.load()
	if err != nil {
		// A corrupt record is useless; drop it so the next run starts clean.
		_ = s.record.remove()
		return 0, err
	}
	if rec == nil {
		return 0, nil
	}
	defer s.record.remove()

	if !sameProcess(*rec) {
		s.logger.Debug("stale worker record does not match a live process", "pid", rec.PID)
		return 0, nil
	}

	s.logger.Warn("reaping worker left by a previous run", "pid", rec.PID, "port", rec.Port)
	if err := driver.KillGroup(rec.PID); err != nil {
		return 0, fmt.Errorf("killing stale worker %d: %w", rec.PID, err)
	}
	return rec.PID, nil
}

// sameProcess guards against PID reuse between runs.
func sameProcess(rec WorkerRecord) bool {
	if rec.PID <= 0 {
		return false
	}
	alive, err := process.PidExists(int32(rec.PID))
	if err != nil || !alive {
		return false
	}

	if rec.CreateTime != 0 {
		ct, err := processCreateTime(rec.PID)
		return err == nil && ct == rec.CreateTime
	}

	p, err := process.NewProcess(int32(rec.PID))
	if err != nil {
		return false
	}
	name, err := p.Name()
	return err == nil && name == filepath.Base(rec.Command)
}

func processCreateTime(pid int) (int64, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, err
	}
	return p.CreateTime()
}
