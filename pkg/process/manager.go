package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Veraticus/caffeinate/pkg/interfaces"
	"github.com/Veraticus/caffeinate/pkg/ui"
)

// ExitCodeNotFound is reported when the wrapped command cannot be executed.
const ExitCodeNotFound = 127

// ErrAlreadyWrapped is returned when caffeinate would wrap itself.
var ErrAlreadyWrapped = errors.New("already running under caffeinate")

// wrappedEnv marks children so a nested caffeinate can refuse to wrap again.
const wrappedEnv = "CAFFEINATE_WRAPPED"

// Manager manages the wrapped child process
type Manager struct {
	launcher Launcher
	exitCode int
	mu       sync.Mutex
	sigChan  chan os.Signal
	done     chan struct{}
	doneOnce sync.Once
}

// Ensure Manager implements ProcessWrapper
var _ interfaces.ProcessWrapper = (*Manager)(nil)

// NewManager creates a new process manager. With usePTY the child is
// attached to a pseudo-terminal instead of inheriting our stdio.
func NewManager(usePTY bool) *Manager {
	var launcher Launcher = NewExecLauncher()
	if usePTY {
		launcher = NewPTYManager()
	}
	return NewManagerWithLauncher(launcher)
}

// NewManagerWithLauncher creates a manager around an existing launcher
func NewManagerWithLauncher(launcher Launcher) *Manager {
	return &Manager{
		launcher: launcher,
		done:     make(chan struct{}),
	}
}

// Start starts the child process
func (m *Manager) Start(command string, args []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if os.Getenv(wrappedEnv) == "1" && os.Getenv("CAFFEINATE_ALLOW_NESTED") != "1" {
		return ErrAlreadyWrapped
	}

	env := append(os.Environ(), wrappedEnv+"=1")

	if err := m.launcher.Start(command, args, env); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			m.exitCode = ExitCodeNotFound
		}
		return fmt.Errorf("failed to start process: %w", err)
	}

	if p, ok := m.launcher.(PTY); ok {
		go func() {
			if err := p.CopyIO(os.Stdin, os.Stdout); err != nil {
				ui.Debugf("pty I/O error: %v", err)
			}
		}()
	}

	m.setupSignalForwarding()

	return nil
}

// Wait waits for the process to exit
func (m *Manager) Wait() error {
	if m.launcher == nil {
		return fmt.Errorf("process not started")
	}

	err := m.launcher.Wait()

	m.mu.Lock()
	if state := m.launcher.ProcessState(); state != nil {
		m.exitCode = exitStatus(state)
	}
	m.mu.Unlock()

	// Ensure terminal is restored
	_ = m.launcher.Stop()

	m.doneOnce.Do(func() { close(m.done) })

	m.cleanupSignals()

	return err
}

// ExitCode returns the exit code of the process
func (m *Manager) ExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitCode
}

// exitStatus maps a finished process to a shell-style status: the exit code,
// or 128+signal when the child was killed by a signal.
func exitStatus(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

// setupSignalForwarding forwards user signals to the child. Terminating
// signals belong to the signal guard, which stops the child itself.
func (m *Manager) setupSignalForwarding() {
	m.sigChan = make(chan os.Signal, 1)
	signal.Notify(m.sigChan, syscall.SIGUSR1, syscall.SIGUSR2)

	go m.forwardSignals()
}

// forwardSignals forwards signals to the child process
func (m *Manager) forwardSignals() {
	for {
		select {
		case sig, ok := <-m.sigChan:
			if !ok {
				return
			}
			if m.launcher != nil && m.launcher.Process() != nil {
				if err := m.launcher.Process().Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
					ui.Debugf("signal forward error: %v", err)
				}
			}
		case <-m.done:
			return
		}
	}
}

// cleanupSignals stops signal forwarding
func (m *Manager) cleanupSignals() {
	if m.sigChan != nil {
		signal.Stop(m.sigChan)
	}
}

// Stop asks the child to terminate, killing it if SIGTERM cannot be delivered
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.launcher == nil {
		return nil
	}

	// Ensure terminal is restored
	_ = m.launcher.Stop()

	proc := m.launcher.Process()
	if proc == nil {
		return nil
	}

	select {
	case <-m.done:
		return nil
	default:
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return proc.Kill()
	}
	return nil
}
