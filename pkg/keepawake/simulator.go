// Package keepawake keeps the session from going idle by periodically
// tapping a harmless key until the user presses the sentinel key three
// times in a row.
package keepawake

import (
	"errors"
	"fmt"

	"github.com/Veraticus/caffeinate/pkg/interfaces"
)

// ErrInjection is returned when a synthetic key event could not be delivered.
var ErrInjection = errors.New("key injection failed")

// Simulator taps a single key to reset the idle timer.
type Simulator struct {
	injector interfaces.KeyInjector
	keysym   uint32
}

// NewSimulator creates a Simulator tapping keysym through injector.
func NewSimulator(injector interfaces.KeyInjector, keysym uint32) *Simulator {
	return &Simulator{
		injector: injector,
		keysym:   keysym,
	}
}

// Ping presses and releases the key once.
func (s *Simulator) Ping() error {
	if err := s.injector.PressKey(s.keysym); err != nil {
		return fmt.Errorf("%w: press %#x: %w", ErrInjection, s.keysym, err)
	}
	if err := s.injector.ReleaseKey(s.keysym); err != nil {
		return fmt.Errorf("%w: release %#x: %w", ErrInjection, s.keysym, err)
	}
	return nil
}
