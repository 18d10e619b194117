package x11

import (
	"fmt"
	"sync"

	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/Veraticus/caffeinate/pkg/interfaces"
)

// surfaceName is set as WM_NAME on every window we create.
const surfaceName = "caffeinate"

// SurfaceFactory creates unmapped 1x1 windows to name in inhibition requests.
type SurfaceFactory struct {
	conn *Conn
}

// Ensure SurfaceFactory implements interfaces.SurfaceFactory
var _ interfaces.SurfaceFactory = (*SurfaceFactory)(nil)

// NewSurfaceFactory creates a factory on conn
func NewSurfaceFactory(conn *Conn) *SurfaceFactory {
	return &SurfaceFactory{conn: conn}
}

// NewSurface creates a window. It is never mapped, so nothing is drawn.
func (f *SurfaceFactory) NewSurface() (interfaces.Surface, error) {
	xc := f.conn.xc

	wid, err := xproto.NewWindowId(xc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate window id")
	}

	screen := f.conn.screen
	err = xproto.CreateWindowChecked(xc, xproto.WindowClassCopyFromParent, wid, screen.Root,
		0, 0, 1, 1, 0,
		xproto.WindowClassInputOutput, screen.RootVisual,
		0, nil).Check()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create window")
	}

	err = xproto.ChangePropertyChecked(xc, xproto.PropModeReplace, wid,
		xproto.AtomWmName, xproto.AtomString, 8,
		uint32(len(surfaceName)), []byte(surfaceName)).Check()
	if err != nil {
		_ = xproto.DestroyWindowChecked(xc, wid).Check()
		return nil, errors.Wrap(err, "failed to name window")
	}

	return &Window{conn: f.conn, id: wid}, nil
}

// Window is an off-screen X11 window.
type Window struct {
	conn      *Conn
	id        xproto.Window
	closeOnce sync.Once
	closeErr  error
}

// ID returns the window id in the 0x-prefixed hex form xdg-screensaver takes.
func (w *Window) ID() string {
	return FormatWindowID(uint32(w.id))
}

// Close destroys the window. Only the first call does anything.
func (w *Window) Close() error {
	w.closeOnce.Do(func() {
		if err := xproto.DestroyWindowChecked(w.conn.xc, w.id).Check(); err != nil {
			w.closeErr = errors.Wrapf(err, "failed to destroy window %s", w.ID())
		}
	})
	return w.closeErr
}

// FormatWindowID renders id as 0x-prefixed lower-case hex.
func FormatWindowID(id uint32) string {
	return fmt.Sprintf("0x%x", id)
}
