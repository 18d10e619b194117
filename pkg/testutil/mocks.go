package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/caffeinate/pkg/interfaces"
)

// MockKeySource is a thread-safe mock implementation of interfaces.KeySource for testing
type MockKeySource struct {
	mu         sync.Mutex
	events     chan interfaces.KeyEvent
	started    bool
	closed     bool
	startErr   error
	stopErr    error
	startCount int
	stopCount  int
}

// NewMockKeySource creates a new mock key source with a buffered event channel
func NewMockKeySource() *MockKeySource {
	return &MockKeySource{
		events: make(chan interfaces.KeyEvent, 64),
	}
}

// Start implements the KeySource interface
func (m *MockKeySource) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.startCount++
	if m.startErr != nil {
		return m.startErr
	}
	m.started = true
	return nil
}

// Stop implements the KeySource interface. The event channel is closed once.
func (m *MockKeySource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopCount++
	if !m.closed {
		close(m.events)
		m.closed = true
	}
	return m.stopErr
}

// Events implements the KeySource interface
func (m *MockKeySource) Events() <-chan interfaces.KeyEvent {
	return m.events
}

// Emit queues an event. Events emitted after Stop are dropped.
func (m *MockKeySource) Emit(ev interfaces.KeyEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.events <- ev
}

// Release queues a release of keysym
func (m *MockKeySource) Release(keysym uint32) {
	m.Emit(interfaces.KeyEvent{Keysym: keysym})
}

// Press queues a press of keysym
func (m *MockKeySource) Press(keysym uint32) {
	m.Emit(interfaces.KeyEvent{Keysym: keysym, Pressed: true})
}

// SetStartError sets the error to return on Start calls
func (m *MockKeySource) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// Started reports whether Start succeeded
func (m *MockKeySource) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// GetStopCount returns how many times Stop was called
func (m *MockKeySource) GetStopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCount
}

// InjectedKey records one synthetic key event
type InjectedKey struct {
	Keysym  uint32
	Pressed bool
}

// MockInjector is a thread-safe mock implementation of interfaces.KeyInjector for testing
type MockInjector struct {
	mu         sync.Mutex
	injected   []InjectedKey
	pressErr   error
	releaseErr error
}

// NewMockInjector creates a new mock injector
func NewMockInjector() *MockInjector {
	return &MockInjector{}
}

// PressKey implements the KeyInjector interface
func (m *MockInjector) PressKey(keysym uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pressErr != nil {
		return m.pressErr
	}
	m.injected = append(m.injected, InjectedKey{Keysym: keysym, Pressed: true})
	return nil
}

// ReleaseKey implements the KeyInjector interface
func (m *MockInjector) ReleaseKey(keysym uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.releaseErr != nil {
		return m.releaseErr
	}
	m.injected = append(m.injected, InjectedKey{Keysym: keysym})
	return nil
}

// GetInjected returns a copy of all injected events
func (m *MockInjector) GetInjected() []InjectedKey {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]InjectedKey, len(m.injected))
	copy(result, m.injected)
	return result
}

// SetPressError sets the error to return on PressKey calls
func (m *MockInjector) SetPressError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pressErr = err
}

// SetReleaseError sets the error to return on ReleaseKey calls
func (m *MockInjector) SetReleaseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseErr = err
}

// MockBackend is a thread-safe mock implementation of interfaces.InhibitBackend for testing
type MockBackend struct {
	mu           sync.Mutex
	suspended    []string
	resumed      []string
	suspendErr   error
	resumeErr    error
	suspendDelay time.Duration
}

// NewMockBackend creates a new mock inhibition backend
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// Name implements the InhibitBackend interface
func (m *MockBackend) Name() string {
	return "mock"
}

// Suspend implements the InhibitBackend interface
func (m *MockBackend) Suspend(ctx context.Context, handle string) error {
	m.mu.Lock()
	delay := m.suspendDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.suspendErr != nil {
		return m.suspendErr
	}
	m.suspended = append(m.suspended, handle)
	return nil
}

// Resume implements the InhibitBackend interface
func (m *MockBackend) Resume(_ context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resumed = append(m.resumed, handle)
	return m.resumeErr
}

// SetSuspendError sets the error to return on Suspend calls
func (m *MockBackend) SetSuspendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspendErr = err
}

// SetResumeError sets the error to return on Resume calls
func (m *MockBackend) SetResumeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumeErr = err
}

// SetSuspendDelay makes Suspend block for d or until its context is done
func (m *MockBackend) SetSuspendDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspendDelay = d
}

// GetSuspended returns a copy of the handles passed to Suspend
func (m *MockBackend) GetSuspended() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]string, len(m.suspended))
	copy(result, m.suspended)
	return result
}

// GetResumed returns a copy of the handles passed to Resume
func (m *MockBackend) GetResumed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]string, len(m.resumed))
	copy(result, m.resumed)
	return result
}

// MockSurface is a mock implementation of interfaces.Surface for testing
type MockSurface struct {
	mu     sync.Mutex
	id     string
	closes int
}

// ID implements the Surface interface
func (s *MockSurface) ID() string {
	return s.id
}

// Close implements the Surface interface
func (s *MockSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// GetCloseCount returns how many times Close was called
func (s *MockSurface) GetCloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// MockSurfaceFactory hands out sequentially numbered MockSurfaces
type MockSurfaceFactory struct {
	mu       sync.Mutex
	surfaces []*MockSurface
	err      error
}

// NewMockSurfaceFactory creates a new mock surface factory
func NewMockSurfaceFactory() *MockSurfaceFactory {
	return &MockSurfaceFactory{}
}

// NewSurface implements the SurfaceFactory interface
func (f *MockSurfaceFactory) NewSurface() (interfaces.Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	s := &MockSurface{id: fmt.Sprintf("0x%x", len(f.surfaces)+1)}
	f.surfaces = append(f.surfaces, s)
	return s, nil
}

// SetError sets the error to return on NewSurface calls
func (f *MockSurfaceFactory) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// GetSurfaces returns the surfaces created so far
func (f *MockSurfaceFactory) GetSurfaces() []*MockSurface {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]*MockSurface, len(f.surfaces))
	copy(result, f.surfaces)
	return result
}

// MockReleaser counts Release calls
type MockReleaser struct {
	mu    sync.Mutex
	count int
	err   error
}

// NewMockReleaser creates a new mock releaser
func NewMockReleaser() *MockReleaser {
	return &MockReleaser{}
}

// Release implements the Releaser interface
func (r *MockReleaser) Release(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return r.err
}

// SetError sets the error to return on Release calls
func (r *MockReleaser) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// GetReleaseCount returns how many times Release was called
func (r *MockReleaser) GetReleaseCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// ManualClock is a Clock whose time only moves when Sleep or Advance is called
type ManualClock struct {
	mu        sync.Mutex
	now       time.Time
	sleepHook func(now time.Time)
	sleeps    int
}

// NewManualClock creates a clock starting at start
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now implements the Clock interface
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the clock by d and then runs the sleep hook, if any
func (c *ManualClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps++
	now := c.now
	hook := c.sleepHook
	c.mu.Unlock()

	if hook != nil {
		hook(now)
	}
}

// Advance moves the clock forward without running the hook
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SetSleepHook registers a callback run at the end of every Sleep
func (c *ManualClock) SetSleepHook(fn func(now time.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleepHook = fn
}

// GetSleepCount returns how many times Sleep was called
func (c *ManualClock) GetSleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}

// ErrMock is a generic error for tests that only need a non-nil error
var ErrMock = errors.New("mock failure")
