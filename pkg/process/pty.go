package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/Veraticus/caffeinate/pkg/ui"
)

// outputDrainTimeout bounds how long Wait lets CopyIO finish reading the
// child's output. A grandchild holding the terminal open would otherwise
// keep the master alive forever.
const outputDrainTimeout = 2 * time.Second

// PTYManager handles PTY-based process execution
type PTYManager struct {
	cmd         *exec.Cmd
	pty         *os.File
	mu          sync.Mutex
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	restoreFunc func()
	copyDone    chan struct{}
}

// Ensure PTYManager implements PTY
var _ PTY = (*PTYManager)(nil)

// NewPTYManager creates a new PTY manager
func NewPTYManager() *PTYManager {
	return &PTYManager{
		stopChan: make(chan struct{}),
	}
}

// Start starts a process with PTY
func (p *PTYManager) Start(command string, args []string, env []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return fmt.Errorf("process already started")
	}

	cmd := exec.Command(command, args...)
	cmd.Env = env

	f, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("failed to start PTY: %w", err)
	}
	p.cmd = cmd
	p.pty = f

	// Some environments don't have a terminal to copy from
	if err := p.copyTerminalSize(); err != nil {
		ui.Debugf("failed to copy terminal size: %v", err)
	}

	p.wg.Add(1)
	go p.monitorTerminalSize()

	return nil
}

// GetPTY returns the PTY file descriptor
func (p *PTYManager) GetPTY() *os.File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pty
}

// Wait waits for the process to complete
func (p *PTYManager) Wait() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()

	if cmd == nil {
		return fmt.Errorf("process not started")
	}

	err := cmd.Wait()

	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()

	// The master still buffers the tail of the output; closing it now
	// would cut CopyIO short.
	p.mu.Lock()
	copyDone := p.copyDone
	p.mu.Unlock()
	if copyDone != nil {
		select {
		case <-copyDone:
		case <-time.After(outputDrainTimeout):
			ui.Debugf("pty output still open %v after exit", outputDrainTimeout)
		}
	}

	p.mu.Lock()
	if p.pty != nil {
		_ = p.pty.Close()
	}
	p.mu.Unlock()

	return err
}

// ProcessState returns the process state
func (p *PTYManager) ProcessState() *os.ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil {
		return nil
	}
	return p.cmd.ProcessState
}

// Process returns the underlying process
func (p *PTYManager) Process() *os.Process {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil {
		return nil
	}
	return p.cmd.Process
}

// Stop restores the terminal state. It does not signal the child.
func (p *PTYManager) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.restoreFunc != nil {
		p.restoreFunc()
		p.restoreFunc = nil
	}

	return nil
}

// copyTerminalSize copies the terminal size from stdin to the PTY.
// Callers hold p.mu.
func (p *PTYManager) copyTerminalSize() error {
	size, err := pty.GetsizeFull(os.Stdin)
	if err != nil {
		return err
	}

	return pty.Setsize(p.pty, size)
}

// monitorTerminalSize monitors for terminal size changes
func (p *PTYManager) monitorTerminalSize() {
	defer p.wg.Done()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGWINCH)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-sigChan:
			p.mu.Lock()
			if p.pty != nil {
				if err := p.copyTerminalSize(); err != nil {
					ui.Debugf("failed to resize PTY: %v", err)
				}
			}
			p.mu.Unlock()
		case <-p.stopChan:
			return
		}
	}
}

// CopyIO copies stdin to the PTY and the PTY to stdout until the child
// closes its side. Stdin is put into raw mode when it is a terminal. Wait
// holds the master open until the output copy has drained.
func (p *PTYManager) CopyIO(stdin io.Reader, stdout io.Writer) error {
	p.mu.Lock()
	if p.pty == nil {
		p.mu.Unlock()
		return fmt.Errorf("PTY not initialized")
	}
	ptyFile := p.pty
	done := make(chan struct{})
	p.copyDone = done
	p.mu.Unlock()
	defer close(done)

	if file, ok := stdin.(*os.File); ok {
		if restore, err := setRawMode(int(file.Fd())); err == nil {
			p.mu.Lock()
			p.restoreFunc = restore
			p.mu.Unlock()
			defer func() {
				_ = p.Stop()
			}()
		}
	}

	// stdin is not waited on: it may block until the user types, long
	// after the child has gone.
	go func() {
		_, _ = io.Copy(ptyFile, stdin)
	}()

	if _, err := io.Copy(stdout, ptyFile); err != nil && !isPTYClosed(err) {
		return fmt.Errorf("stdout copy error: %w", err)
	}
	return nil
}

// setRawMode switches fd to raw mode and returns a function restoring it.
func setRawMode(fd int) (func(), error) {
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("fd %d is not a terminal", fd)
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { _ = term.Restore(fd, state) }, nil
}

// isPTYClosed reports whether err is the EIO Linux returns once the child
// side of the PTY has been closed, or the error from reading a master Wait
// already closed.
func isPTYClosed(err error) bool {
	if errors.Is(err, os.ErrClosed) {
		return true
	}
	var pathErr *os.PathError
	return errors.As(err, &pathErr) && errors.Is(pathErr.Err, syscall.EIO)
}
