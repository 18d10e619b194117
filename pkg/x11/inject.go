package x11

import (
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgb/xtest"
	"github.com/pkg/errors"

	"github.com/Veraticus/caffeinate/pkg/interfaces"
)

// Injector synthesizes key events with the XTEST extension.
type Injector struct {
	conn *Conn
}

// Ensure Injector implements interfaces.KeyInjector
var _ interfaces.KeyInjector = (*Injector)(nil)

// NewInjector initializes XTEST on conn.
func NewInjector(conn *Conn) (*Injector, error) {
	if err := xtest.Init(conn.xc); err != nil {
		return nil, errors.Wrap(err, "XTEST extension unavailable")
	}
	return &Injector{conn: conn}, nil
}

// PressKey sends a key press for keysym
func (i *Injector) PressKey(keysym uint32) error {
	return i.fake(xproto.KeyPress, keysym)
}

// ReleaseKey sends a key release for keysym
func (i *Injector) ReleaseKey(keysym uint32) error {
	return i.fake(xproto.KeyRelease, keysym)
}

func (i *Injector) fake(eventType byte, keysym uint32) error {
	km, err := i.conn.keyboardMapping()
	if err != nil {
		return err
	}

	code, ok := km.keycodeFor(keysym)
	if !ok {
		return errors.Errorf("no keycode produces keysym %#x", keysym)
	}

	err = xtest.FakeInputChecked(i.conn.xc, eventType, byte(code), 0, i.conn.root(), 0, 0, 0).Check()
	return errors.Wrapf(err, "fake input for keycode %d", code)
}
