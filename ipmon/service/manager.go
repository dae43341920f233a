package service

import (
	"os"
	"path/filepath"
	"sync"

	"git.unix.lgbt/diamondburned/ipmon/ipmon/exec"
	"github.com/pkg/errors"
)

// ScriptsDir is the directory the default manager looks up control scripts
// in. It must be set before the first call to Default or GetController to have
// any effect. It defaults to the scripts directory next to the executable.
var ScriptsDir = defaultScriptsDir()

func defaultScriptsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "scripts"
	}
	return filepath.Join(filepath.Dir(exe), "scripts")
}

// Manager holds the single controller for the host. The host is detected and
// the controller built on the first call to Controller; the outcome never
// changes afterwards.
type Manager struct {
	Detect     func() (Kind, error)
	ScriptsDir string
	Runner     exec.Runner

	once sync.Once
	ctrl Controller
	err  error
}

// Controller returns the host's controller, or the error that prevented
// building it.
func (m *Manager) Controller() (Controller, error) {
	m.once.Do(func() {
		detect := m.Detect
		if detect == nil {
			detect = DetectKind
		}

		kind, err := detect()
		if err != nil {
			m.err = errors.Wrap(err, "failed to detect platform")
			return
		}

		runner := m.Runner
		if runner == nil {
			runner = exec.CommandRunner{}
		}

		m.ctrl, m.err = NewController(kind, m.ScriptsDir, runner)
	})

	return m.ctrl, m.err
}

var (
	defaultOnce    sync.Once
	defaultManager *Manager
)

// Default returns the process-wide manager.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultManager = &Manager{
			Detect:     DetectKind,
			ScriptsDir: ScriptsDir,
			Runner:     exec.CommandRunner{},
		}
	})

	return defaultManager
}

// GetController returns the process-wide controller.
func GetController() (Controller, error) {
	return Default().Controller()
}
