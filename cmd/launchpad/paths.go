package main

import (
	"os"
	"path/filepath"

	"github.com/benaskins/launchpad/internal/config"
)

// launcherDir returns the directory holding the launchpad executable; a
// bundled worker is looked up there.
func launcherDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// statePaths are the files kept under state_dir.
type statePaths struct {
	Dir     string
	Journal string
	Log     string
	Pages   string
}

func newStatePaths(cfg *config.Config) (statePaths, error) {
	dir, err := cfg.ResolvedStateDir()
	if err != nil {
		return statePaths{}, err
	}
	return statePaths{
		Dir:     dir,
		Journal: filepath.Join(dir, "runs.log"),
		Log:     filepath.Join(dir, "launchpad.log"),
		Pages:   filepath.Join(dir, "pages"),
	}, nil
}
