package process

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// ExecLauncher runs the child with our stdin, stdout and stderr.
type ExecLauncher struct {
	cmd *exec.Cmd
	mu  sync.Mutex
}

// Ensure ExecLauncher implements Launcher
var _ Launcher = (*ExecLauncher)(nil)

// NewExecLauncher creates a new direct launcher
func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{}
}

// Start starts the command
func (e *ExecLauncher) Start(command string, args []string, env []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd != nil {
		return fmt.Errorf("process already started")
	}

	cmd := exec.Command(command, args...)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return err
	}
	e.cmd = cmd
	return nil
}

// Wait waits for the command to exit
func (e *ExecLauncher) Wait() error {
	e.mu.Lock()
	cmd := e.cmd
	e.mu.Unlock()

	if cmd == nil {
		return fmt.Errorf("process not started")
	}
	return cmd.Wait()
}

// ProcessState returns the process state
func (e *ExecLauncher) ProcessState() *os.ProcessState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil {
		return nil
	}
	return e.cmd.ProcessState
}

// Process returns the underlying process
func (e *ExecLauncher) Process() *os.Process {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil {
		return nil
	}
	return e.cmd.Process
}

// Stop is a no-op; there is no terminal state to restore.
func (e *ExecLauncher) Stop() error {
	return nil
}
