package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/Veraticus/caffeinate/pkg/config"
	"github.com/Veraticus/caffeinate/pkg/duration"
	"github.com/Veraticus/caffeinate/pkg/interfaces"
	"github.com/Veraticus/caffeinate/pkg/testutil"
	"github.com/Veraticus/caffeinate/pkg/x11"
)

// testEnv builds an Application whose dependencies are all mocks.
type testEnv struct {
	backend  *testutil.MockBackend
	surfaces *testutil.MockSurfaceFactory
	proc     *testutil.MockProcess
	injector *testutil.MockInjector
	source   *testutil.MockKeySource
	clock    *testutil.ManualClock

	mu        sync.Mutex
	modes     []Mode
	slept     []time.Duration
	exitCodes []int
	factErr   error
	onSleep   func(ctx context.Context) error

	stdout *bytes.Buffer
	app    *Application
}

func newTestEnv() *testEnv {
	e := &testEnv{
		backend:  testutil.NewMockBackend(),
		surfaces: testutil.NewMockSurfaceFactory(),
		proc:     testutil.NewMockProcess(),
		injector: testutil.NewMockInjector(),
		source:   testutil.NewMockKeySource(),
		clock:    testutil.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		stdout:   &bytes.Buffer{},
	}
	e.app = NewApplication(e.factory, e.stdout)
	return e
}

func (e *testEnv) factory(cfg *config.Config, mode Mode) (*Dependencies, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.modes = append(e.modes, mode)
	if e.factErr != nil {
		return nil, e.factErr
	}
	return &Dependencies{
		Config:    cfg,
		Injector:  e.injector,
		KeySource: e.source,
		Clock:     e.clock,
		Backend:   e.backend,
		Surfaces:  e.surfaces,
		NewProcess: func(bool) interfaces.ProcessWrapper {
			return e.proc
		},
		Sleep: func(ctx context.Context, d time.Duration) error {
			e.mu.Lock()
			e.slept = append(e.slept, d)
			onSleep := e.onSleep
			e.mu.Unlock()
			if onSleep != nil {
				return onSleep(ctx)
			}
			return ctx.Err()
		},
		Exit: func(code int) {
			e.mu.Lock()
			e.exitCodes = append(e.exitCodes, code)
			e.mu.Unlock()
		},
	}, nil
}

func (e *testEnv) assertReleasedOnce(t *testing.T) {
	t.Helper()
	if got := e.backend.GetSuspended(); len(got) != 1 {
		t.Fatalf("suspended %v, want exactly one handle", got)
	}
	resumed := e.backend.GetResumed()
	if len(resumed) != 1 || resumed[0] != e.backend.GetSuspended()[0] {
		t.Errorf("resumed %v, want %v", resumed, e.backend.GetSuspended())
	}
	for _, s := range e.surfaces.GetSurfaces() {
		if s.GetCloseCount() != 1 {
			t.Errorf("surface %s closed %d times, want 1", s.ID(), s.GetCloseCount())
		}
	}
}

func TestApplication_Do(t *testing.T) {
	tests := []struct {
		name      string
		exitCode  int
		startErr  error
		waitErr   error
		wantCode  int
		wantStart int
	}{
		{name: "success", exitCode: 0, wantCode: exitOK, wantStart: 1},
		{name: "exit status propagates", exitCode: 7, wantCode: 7, wantStart: 1},
		{name: "killed child", exitCode: 143, waitErr: testutil.ErrMock, wantCode: 143, wantStart: 1},
		{name: "start failure", startErr: testutil.ErrMock, wantCode: exitFailure, wantStart: 1},
		{name: "wait failure without status", waitErr: testutil.ErrMock, wantCode: exitFailure, wantStart: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv()
			e.proc.SetExitCode(tt.exitCode)
			e.proc.SetStartError(tt.startErr)
			e.proc.SetWaitError(tt.waitErr)

			cfg := config.DefaultConfig()
			err := e.app.Do(context.Background(), cfg, "make", []string{"-j4", "test"})

			if got := exitCodeFor(err); got != tt.wantCode {
				t.Errorf("exit code = %d (err %v), want %d", got, err, tt.wantCode)
			}
			if got := e.proc.GetStartCount(); got != tt.wantStart {
				t.Errorf("start count = %d, want %d", got, tt.wantStart)
			}
			e.assertReleasedOnce(t)

			if tt.startErr == nil {
				cmd, args := e.proc.GetCommand()
				if cmd != "make" || strings.Join(args, " ") != "-j4 test" {
					t.Errorf("command = %q %v", cmd, args)
				}
			}
		})
	}
}

func TestApplication_DoSuspendedWhileRunning(t *testing.T) {
	e := newTestEnv()

	var suspendedDuringWait, resumedDuringWait int
	e.proc.SetWaitHook(func() {
		suspendedDuringWait = len(e.backend.GetSuspended())
		resumedDuringWait = len(e.backend.GetResumed())
	})

	if err := e.app.Do(context.Background(), config.DefaultConfig(), "true", nil); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if suspendedDuringWait != 1 || resumedDuringWait != 0 {
		t.Errorf("during wait: suspended %d resumed %d, want 1 and 0", suspendedDuringWait, resumedDuringWait)
	}
	e.assertReleasedOnce(t)
}

func TestApplication_DoBackendFailure(t *testing.T) {
	e := newTestEnv()
	e.backend.SetSuspendError(testutil.ErrMock)

	err := e.app.Do(context.Background(), config.DefaultConfig(), "true", nil)
	if exitCodeFor(err) != exitFailure {
		t.Errorf("exit code = %d, want %d", exitCodeFor(err), exitFailure)
	}
	if e.proc.GetStartCount() != 0 {
		t.Error("command should not start when suspension fails")
	}
	if len(e.backend.GetResumed()) != 0 {
		t.Error("nothing should be resumed when suspension fails")
	}
}

func TestApplication_DependencyFailure(t *testing.T) {
	e := newTestEnv()
	e.factErr = testutil.ErrMock

	if err := e.app.Sleep(context.Background(), config.DefaultConfig(), duration.Seconds(1)); !errors.Is(err, testutil.ErrMock) {
		t.Errorf("Sleep() error = %v, want ErrMock", err)
	}
	if err := e.app.Do(context.Background(), config.DefaultConfig(), "true", nil); !errors.Is(err, testutil.ErrMock) {
		t.Errorf("Do() error = %v, want ErrMock", err)
	}
}

func TestApplication_Sleep(t *testing.T) {
	e := newTestEnv()

	if err := e.app.Sleep(context.Background(), config.DefaultConfig(), duration.MustParse("1:30")); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}

	if len(e.slept) != 1 || e.slept[0] != 90*time.Second {
		t.Errorf("slept %v, want [1m30s]", e.slept)
	}
	if got := e.stdout.String(); got != "Sleeping for 90 seconds\n" {
		t.Errorf("stdout = %q", got)
	}
	if len(e.modes) != 1 || e.modes[0] != ModeInhibit {
		t.Errorf("modes = %v, want [ModeInhibit]", e.modes)
	}
	e.assertReleasedOnce(t)
}

func TestApplication_SleepCancelled(t *testing.T) {
	e := newTestEnv()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.app.Sleep(ctx, config.DefaultConfig(), duration.Seconds(5))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep() error = %v, want context.Canceled", err)
	}
	if got := exitCodeFor(err); got != exitFailure {
		t.Errorf("exit code = %d, want %d", got, exitFailure)
	}
	e.assertReleasedOnce(t)
}

// terminateSelf delivers SIGTERM to the test process, where the installed
// guard catches it.
func terminateSelf(t *testing.T) {
	t.Helper()
	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("failed to signal self: %v", err)
	}
}

func (e *testEnv) getExitCodes() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.exitCodes...)
}

func TestApplication_SleepSignalled(t *testing.T) {
	e := newTestEnv()
	e.onSleep = func(ctx context.Context) error {
		terminateSelf(t)
		<-ctx.Done()
		return ctx.Err()
	}

	err := e.app.Sleep(context.Background(), config.DefaultConfig(), duration.Seconds(60))

	if got := exitCodeFor(err); got != exitFailure {
		t.Errorf("exit code = %d (err %v), want %d", got, err, exitFailure)
	}
	if got := e.getExitCodes(); len(got) != 1 || got[0] != exitFailure {
		t.Errorf("exit called with %v, want [1]", got)
	}
	e.assertReleasedOnce(t)
}

func TestApplication_DoSignalled(t *testing.T) {
	e := newTestEnv()
	e.proc.BlockUntilStopped()
	e.proc.SetWaitHook(func() { terminateSelf(t) })

	err := e.app.Do(context.Background(), config.DefaultConfig(), "sleep", []string{"60"})

	if got := exitCodeFor(err); got != exitFailure {
		t.Errorf("exit code = %d (err %v), want %d", got, err, exitFailure)
	}
	if got := e.getExitCodes(); len(got) != 1 || got[0] != exitFailure {
		t.Errorf("exit called with %v, want [1]", got)
	}
	if e.proc.GetStopCount() != 1 {
		t.Errorf("child stopped %d times, want 1", e.proc.GetStopCount())
	}
	e.assertReleasedOnce(t)
}

func TestApplication_Loop(t *testing.T) {
	e := newTestEnv()
	cfg := config.DefaultConfig()

	var once sync.Once
	e.clock.SetSleepHook(func(now time.Time) {
		if e.clock.GetSleepCount() < 5 {
			return
		}
		once.Do(func() {
			for i := 0; i < 3; i++ {
				e.source.Release(x11.KeysymEscape)
			}
		})
	})

	if err := e.app.Loop(context.Background(), cfg, duration.Seconds(2)); err != nil {
		t.Fatalf("Loop() error = %v", err)
	}

	injected := e.injector.GetInjected()
	if len(injected) < 4 {
		t.Fatalf("injected %d events, want at least two pings", len(injected))
	}
	if injected[0].Keysym != x11.KeysymShiftL || !injected[0].Pressed {
		t.Errorf("first event = %+v, want Shift_L press", injected[0])
	}

	want := "Serving caffeine every 2 seconds.\nTo quit, press the Escape key three times.\n"
	if got := e.stdout.String(); got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if len(e.modes) != 1 || e.modes[0] != ModeLoop {
		t.Errorf("modes = %v, want [ModeLoop]", e.modes)
	}
	if e.source.GetStopCount() != 1 {
		t.Errorf("key source stopped %d times, want 1", e.source.GetStopCount())
	}
}

func TestApplication_LoopCancelled(t *testing.T) {
	e := newTestEnv()
	ctx, cancel := context.WithCancel(context.Background())

	e.clock.SetSleepHook(func(time.Time) {
		if e.clock.GetSleepCount() == 3 {
			cancel()
		}
	})

	err := e.app.Loop(ctx, config.DefaultConfig(), duration.Seconds(60))
	if got := exitCodeFor(err); got != exitFailure {
		t.Errorf("exit code = %d, want %d", got, exitFailure)
	}
	if len(e.injector.GetInjected()) != 0 {
		t.Error("no ping is due before the cadence elapses")
	}
}

func TestApplication_LoopInjectionFailure(t *testing.T) {
	e := newTestEnv()
	e.injector.SetPressError(testutil.ErrMock)

	err := e.app.Loop(context.Background(), config.DefaultConfig(), duration.Seconds(1))
	if !errors.Is(err, testutil.ErrMock) {
		t.Errorf("Loop() error = %v, want ErrMock", err)
	}
	if exitCodeFor(err) != exitFailure {
		t.Errorf("exit code = %d, want %d", exitCodeFor(err), exitFailure)
	}
}

func TestApplication_LoopUnknownKey(t *testing.T) {
	e := newTestEnv()
	cfg := config.DefaultConfig()
	cfg.SentinelKey = "NoSuchKey"

	err := e.app.Loop(context.Background(), cfg, duration.Seconds(1))
	if exitCodeFor(err) != exitUsage {
		t.Errorf("exit code = %d, want %d", exitCodeFor(err), exitUsage)
	}
	if len(e.modes) != 0 {
		t.Error("dependencies should not be built for a bad key name")
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("sleepContext() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext() error = %v, want context.Canceled", err)
	}
}

func TestDependencies_Close(t *testing.T) {
	var order []int
	deps := &Dependencies{}
	deps.closers = append(deps.closers, func() { order = append(order, 1) }, func() { order = append(order, 2) })

	deps.Close()
	deps.Close()

	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("close order = %v, want [2 1]", order)
	}
}
