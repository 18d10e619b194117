// Package x11 talks to the X server through xgb: it creates the off-screen
// window handed to screensaver backends, injects key events through XTEST and
// watches the keyboard by polling the keymap.
package x11

import (
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
)

// Conn is a shared connection to the X server. It is safe for concurrent use.
type Conn struct {
	xc     *xgb.Conn
	screen *xproto.ScreenInfo
	min    xproto.Keycode
	max    xproto.Keycode

	mu     sync.Mutex
	keymap *keyMap
}

// Open connects to display, or to $DISPLAY when display is empty.
func Open(display string) (*Conn, error) {
	var (
		xc  *xgb.Conn
		err error
	)
	if display == "" {
		xc, err = xgb.NewConn()
	} else {
		xc, err = xgb.NewConnDisplay(display)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to X server")
	}

	setup := xproto.Setup(xc)
	return &Conn{
		xc:     xc,
		screen: setup.DefaultScreen(xc),
		min:    setup.MinKeycode,
		max:    setup.MaxKeycode,
	}, nil
}

// Close closes the connection.
func (c *Conn) Close() {
	c.xc.Close()
}

func (c *Conn) root() xproto.Window {
	return c.screen.Root
}

// keyboardMapping fetches the keycode to keysym table once and caches it.
func (c *Conn) keyboardMapping() (*keyMap, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.keymap != nil {
		return c.keymap, nil
	}

	count := byte(int(c.max) - int(c.min) + 1)
	reply, err := xproto.GetKeyboardMapping(c.xc, c.min, count).Reply()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get keyboard mapping")
	}

	c.keymap = newKeyMap(c.min, int(reply.KeysymsPerKeycode), reply.Keysyms)
	return c.keymap, nil
}

// keyMap is the server's keyboard mapping: perKeycode keysyms for every
// keycode starting at min.
type keyMap struct {
	min        xproto.Keycode
	perKeycode int
	keysyms    []xproto.Keysym
}

func newKeyMap(min xproto.Keycode, perKeycode int, keysyms []xproto.Keysym) *keyMap {
	return &keyMap{min: min, perKeycode: perKeycode, keysyms: keysyms}
}

// keycodeFor returns the first keycode producing keysym in any column.
func (m *keyMap) keycodeFor(keysym uint32) (xproto.Keycode, bool) {
	if m.perKeycode <= 0 || keysym == 0 {
		return 0, false
	}
	for i, ks := range m.keysyms {
		if uint32(ks) == keysym {
			return m.min + xproto.Keycode(i/m.perKeycode), true
		}
	}
	return 0, false
}

// keysymFor returns the unshifted keysym of code, or 0 when unmapped.
func (m *keyMap) keysymFor(code xproto.Keycode) uint32 {
	if m.perKeycode <= 0 || code < m.min {
		return 0
	}
	idx := int(code-m.min) * m.perKeycode
	if idx >= len(m.keysyms) {
		return 0
	}
	return uint32(m.keysyms[idx])
}
