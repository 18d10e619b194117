package testutil

import (
	"sync"

	"github.com/Veraticus/caffeinate/pkg/interfaces"
)

// MockProcess is a mock implementation of interfaces.ProcessWrapper for testing
type MockProcess struct {
	mu         sync.Mutex
	command    string
	args       []string
	exitCode   int
	startErr   error
	waitErr    error
	startCount int
	waitCount  int
	stopCount  int
	onWait     func()
	release    chan struct{}
}

// Ensure MockProcess implements ProcessWrapper
var _ interfaces.ProcessWrapper = (*MockProcess)(nil)

// NewMockProcess creates a mock process that exits immediately with status 0
func NewMockProcess() *MockProcess {
	return &MockProcess{}
}

// Start implements the ProcessWrapper interface
func (m *MockProcess) Start(command string, args []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.startCount++
	if m.startErr != nil {
		return m.startErr
	}
	m.command = command
	m.args = args
	return nil
}

// Wait implements the ProcessWrapper interface. When blocking is enabled it
// returns only after Stop.
func (m *MockProcess) Wait() error {
	m.mu.Lock()
	m.waitCount++
	hook := m.onWait
	release := m.release
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if release != nil {
		<-release
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waitErr
}

// ExitCode implements the ProcessWrapper interface
func (m *MockProcess) ExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitCode
}

// Stop implements the ProcessWrapper interface
func (m *MockProcess) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopCount++
	if m.release != nil {
		close(m.release)
		m.release = nil
	}
	return nil
}

// SetExitCode sets the exit code
func (m *MockProcess) SetExitCode(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exitCode = code
}

// SetStartError sets the error to return from Start
func (m *MockProcess) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// SetWaitError sets the error to return from Wait
func (m *MockProcess) SetWaitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waitErr = err
}

// SetWaitHook registers a callback run at the start of Wait
func (m *MockProcess) SetWaitHook(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onWait = fn
}

// BlockUntilStopped makes Wait block until Stop is called
func (m *MockProcess) BlockUntilStopped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release = make(chan struct{})
}

// GetCommand returns the command and arguments passed to Start
func (m *MockProcess) GetCommand() (string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.command, m.args
}

// GetStartCount returns how many times Start was called
func (m *MockProcess) GetStartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCount
}

// GetWaitCount returns how many times Wait was called
func (m *MockProcess) GetWaitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waitCount
}

// GetStopCount returns how many times Stop was called
func (m *MockProcess) GetStopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCount
}
