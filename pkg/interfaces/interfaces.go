// Package interfaces defines the core interfaces used throughout the application.
package interfaces

import (
	"context"
	"time"
)

// KeyEvent is a single key press or release observed on the keyboard.
type KeyEvent struct {
	Keysym  uint32
	Pressed bool
}

// KeySource delivers keyboard events asynchronously.
type KeySource interface {
	Start() error
	Stop() error
	Events() <-chan KeyEvent
}

// KeyInjector synthesizes key presses and releases.
type KeyInjector interface {
	PressKey(keysym uint32) error
	ReleaseKey(keysym uint32) error
}

// Surface is the opaque target handle an inhibition is scoped to.
type Surface interface {
	ID() string
	Close() error
}

// SurfaceFactory allocates a fresh Surface.
type SurfaceFactory interface {
	NewSurface() (Surface, error)
}

// InhibitBackend suspends and resumes the desktop idle machinery for a handle.
type InhibitBackend interface {
	Name() string
	Suspend(ctx context.Context, handle string) error
	Resume(ctx context.Context, handle string) error
}

// Releaser releases a held inhibition. Release must be safe to call repeatedly.
type Releaser interface {
	Release(ctx context.Context) error
}

// Clock abstracts time for the keep-awake cadence.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// ProcessWrapper wraps and monitors a process.
type ProcessWrapper interface {
	Start(command string, args []string) error
	Wait() error
	ExitCode() int
	Stop() error
}
