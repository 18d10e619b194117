// Package inhibit scopes screensaver inhibition to a single operation.
package inhibit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Veraticus/caffeinate/pkg/interfaces"
	"github.com/Veraticus/caffeinate/pkg/ui"
)

// ErrBackend is returned when the desktop refuses to suspend or resume.
var ErrBackend = errors.New("inhibition backend failed")

// Operation is the work performed while inhibition is held.
type Operation func(ctx context.Context) error

// Session is one inhibition request. Release is serialized with Acquire and
// is safe to call from a signal handler while the operation runs.
type Session struct {
	backend  interfaces.InhibitBackend
	surfaces interfaces.SurfaceFactory

	mu      sync.Mutex
	surface interfaces.Surface
	active  bool
}

// Ensure Session implements Releaser
var _ interfaces.Releaser = (*Session)(nil)

// NewSession creates an inactive session
func NewSession(backend interfaces.InhibitBackend, surfaces interfaces.SurfaceFactory) *Session {
	return &Session{
		backend:  backend,
		surfaces: surfaces,
	}
}

// Acquire creates the target surface and suspends the screensaver for it.
// On failure the surface is closed and the session stays inactive.
func (s *Session) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return fmt.Errorf("inhibition already held for %s", s.surface.ID())
	}

	surface, err := s.surfaces.NewSurface()
	if err != nil {
		return fmt.Errorf("%w: create target surface: %w", ErrBackend, err)
	}

	if err := s.backend.Suspend(ctx, surface.ID()); err != nil {
		if cerr := surface.Close(); cerr != nil {
			ui.Debugf("close surface %s: %v", surface.ID(), cerr)
		}
		if errors.Is(err, ErrBackend) {
			return err
		}
		return fmt.Errorf("%w: %s suspend: %w", ErrBackend, s.backend.Name(), err)
	}

	s.surface = surface
	s.active = true
	ui.Debugf("inhibition acquired via %s for %s", s.backend.Name(), surface.ID())
	return nil
}

// Release resumes the screensaver and closes the surface. It is a no-op
// when the session is not active, so repeated calls release once.
func (s *Session) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil
	}

	surface := s.surface
	s.active = false
	s.surface = nil

	var errs []error
	if err := s.backend.Resume(ctx, surface.ID()); err != nil {
		if !errors.Is(err, ErrBackend) {
			err = fmt.Errorf("%w: %s resume: %w", ErrBackend, s.backend.Name(), err)
		}
		errs = append(errs, err)
	}
	if err := surface.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close surface %s: %w", surface.ID(), err))
	}

	ui.Debugf("inhibition released for %s", surface.ID())
	return errors.Join(errs...)
}

// Active reports whether inhibition is currently held.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Handle returns the target surface id while active, otherwise "".
func (s *Session) Handle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surface == nil {
		return ""
	}
	return s.surface.ID()
}

// Run acquires inhibition, runs op and releases on every exit path,
// including a panic in op. If Acquire fails op never runs.
func (s *Session) Run(ctx context.Context, op Operation) (err error) {
	if err := s.Acquire(ctx); err != nil {
		return err
	}

	defer func() {
		// The operation context may already be cancelled; resuming must
		// still reach the backend.
		if rerr := s.Release(context.WithoutCancel(ctx)); rerr != nil {
			if err == nil {
				err = rerr
			} else {
				ui.Warn("failed to release inhibition: %v", rerr)
			}
		}
	}()

	return op(ctx)
}
