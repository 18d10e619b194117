package process

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"testing"
)

// MockLauncher is a mock implementation of Launcher for testing
type MockLauncher struct {
	mu           sync.Mutex
	started      bool
	waited       bool
	stopped      int
	command      string
	args         []string
	env          []string
	startError   error
	waitError    error
	process      *os.Process
	processState *os.ProcessState
}

func (m *MockLauncher) Start(command string, args []string, env []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startError != nil {
		return m.startError
	}
	m.started = true
	m.command = command
	m.args = args
	m.env = env
	return nil
}

func (m *MockLauncher) Wait() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waited = true
	return m.waitError
}

func (m *MockLauncher) ProcessState() *os.ProcessState {
	return m.processState
}

func (m *MockLauncher) Process() *os.Process {
	return m.process
}

func (m *MockLauncher) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
	return nil
}

func TestManager_Start(t *testing.T) {
	tests := []struct {
		name         string
		envWrapped   string
		startError   error
		wantError    bool
		errorMsg     string
		wantExitCode int
	}{
		{
			name:       "successful start",
			envWrapped: "",
			startError: nil,
			wantError:  false,
		},
		{
			name:       "already wrapped",
			envWrapped: "1",
			startError: nil,
			wantError:  true,
			errorMsg:   "already running",
		},
		{
			name:       "start error",
			envWrapped: "",
			startError: errors.New("start failed"),
			wantError:  true,
			errorMsg:   "failed to start process",
		},
		{
			name:         "command not found",
			envWrapped:   "",
			startError:   &exec.Error{Name: "nope", Err: exec.ErrNotFound},
			wantError:    true,
			errorMsg:     "failed to start process",
			wantExitCode: ExitCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CAFFEINATE_WRAPPED", tt.envWrapped)
			t.Setenv("CAFFEINATE_ALLOW_NESTED", "")

			mock := &MockLauncher{startError: tt.startError}
			manager := NewManagerWithLauncher(mock)

			err := manager.Start("test", []string{"arg1"})

			if tt.wantError {
				if err == nil {
					t.Errorf("expected error but got none")
				} else if tt.errorMsg != "" && !contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing %q but got %q", tt.errorMsg, err.Error())
				}
				if manager.ExitCode() != tt.wantExitCode {
					t.Errorf("expected exit code %d but got %d", tt.wantExitCode, manager.ExitCode())
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !mock.started {
				t.Error("launcher was not started")
			}
			if mock.command != "test" || len(mock.args) != 1 || mock.args[0] != "arg1" {
				t.Errorf("unexpected command %q %v", mock.command, mock.args)
			}
			found := false
			for _, kv := range mock.env {
				if kv == "CAFFEINATE_WRAPPED=1" {
					found = true
				}
			}
			if !found {
				t.Error("expected child environment to carry CAFFEINATE_WRAPPED=1")
			}
			manager.cleanupSignals()
		})
	}
}

func TestManager_Wait(t *testing.T) {
	t.Run("wait with error", func(t *testing.T) {
		mock := &MockLauncher{waitError: errors.New("wait failed")}
		manager := NewManagerWithLauncher(mock)

		if err := manager.Wait(); err == nil {
			t.Error("expected error but got none")
		}
		if !mock.waited {
			t.Error("launcher Wait was not called")
		}
		if mock.stopped != 1 {
			t.Errorf("expected terminal restore once, got %d", mock.stopped)
		}
	})

	t.Run("process not started", func(t *testing.T) {
		manager := &Manager{done: make(chan struct{})}
		if err := manager.Wait(); err == nil {
			t.Error("expected error but got none")
		}
	})
}

func TestManager_StopWithoutProcess(t *testing.T) {
	mock := &MockLauncher{}
	manager := NewManagerWithLauncher(mock)

	if err := manager.Stop(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if mock.stopped != 1 {
		t.Errorf("expected launcher Stop once, got %d", mock.stopped)
	}
}

func TestManager_ExitCodePropagation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	t.Setenv("CAFFEINATE_WRAPPED", "")

	tests := []struct {
		name     string
		script   string
		wantCode int
	}{
		{name: "success", script: "exit 0", wantCode: 0},
		{name: "exit 7", script: "exit 7", wantCode: 7},
		{name: "killed by SIGTERM", script: "kill -TERM $$", wantCode: 128 + 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewManager(false)
			if err := manager.Start("sh", []string{"-c", tt.script}); err != nil {
				t.Fatalf("failed to start: %v", err)
			}

			err := manager.Wait()
			if tt.wantCode == 0 && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantCode != 0 {
				var exitErr *exec.ExitError
				if !errors.As(err, &exitErr) {
					t.Errorf("expected *exec.ExitError, got %v", err)
				}
			}
			if manager.ExitCode() != tt.wantCode {
				t.Errorf("expected exit code %d but got %d", tt.wantCode, manager.ExitCode())
			}
		})
	}
}

func TestManager_StopTerminatesChild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires POSIX signals")
	}
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	t.Setenv("CAFFEINATE_WRAPPED", "")

	manager := NewManager(false)
	if err := manager.Start("sleep", []string{"30"}); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	if err := manager.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	_ = manager.Wait()

	if manager.ExitCode() != 128+15 {
		t.Errorf("expected exit code %d after SIGTERM, got %d", 128+15, manager.ExitCode())
	}
	if err := manager.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
}

// Helper function to check if a string contains a substring
func contains(s, substr string) bool {
	return bytes.Contains([]byte(s), []byte(substr))
}
