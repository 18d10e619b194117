package inhibit

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/Veraticus/caffeinate/pkg/interfaces"
)

// DBusName is the backend name used in configuration.
const DBusName = "dbus"

const (
	screensaverDest  = "org.freedesktop.ScreenSaver"
	screensaverPath  = "/org/freedesktop/ScreenSaver"
	screensaverIface = "org.freedesktop.ScreenSaver"

	inhibitReason = "caffeinate is keeping the session awake"
)

// busObject is the part of dbus.BusObject the backend calls.
type busObject interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DBusScreenSaver inhibits through the org.freedesktop.ScreenSaver session
// bus interface. Each handle maps to the cookie Inhibit returned for it.
type DBusScreenSaver struct {
	appName string
	obj     busObject

	mu      sync.Mutex
	cookies map[string]uint32
}

// Ensure DBusScreenSaver implements InhibitBackend
var _ interfaces.InhibitBackend = (*DBusScreenSaver)(nil)

// NewDBusScreenSaver connects to the session bus.
func NewDBusScreenSaver(appName string) (*DBusScreenSaver, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: session bus connect failed: %w", ErrBackend, err)
	}
	return newDBusScreenSaver(appName, conn.Object(screensaverDest, screensaverPath)), nil
}

func newDBusScreenSaver(appName string, obj busObject) *DBusScreenSaver {
	return &DBusScreenSaver{
		appName: appName,
		obj:     obj,
		cookies: make(map[string]uint32),
	}
}

// Name implements InhibitBackend
func (d *DBusScreenSaver) Name() string {
	return DBusName
}

// Suspend calls Inhibit(appName, reason) and remembers the cookie for handle.
func (d *DBusScreenSaver) Suspend(ctx context.Context, handle string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.cookies[handle]; ok {
		return fmt.Errorf("%w: %s already inhibited", ErrBackend, handle)
	}

	var cookie uint32
	err := d.obj.CallWithContext(ctx, screensaverIface+".Inhibit", 0, d.appName, inhibitReason).Store(&cookie)
	if err != nil {
		return fmt.Errorf("%w: Inhibit: %w", ErrBackend, err)
	}
	d.cookies[handle] = cookie
	return nil
}

// Resume calls UnInhibit with the cookie recorded for handle.
func (d *DBusScreenSaver) Resume(ctx context.Context, handle string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cookie, ok := d.cookies[handle]
	if !ok {
		return nil
	}
	delete(d.cookies, handle)

	if err := d.obj.CallWithContext(ctx, screensaverIface+".UnInhibit", 0, cookie).Err; err != nil {
		return fmt.Errorf("%w: UnInhibit(%d): %w", ErrBackend, cookie, err)
	}
	return nil
}

// NameSurfaceFactory hands out surfaces that are only names. The D-Bus
// interface identifies requests by cookie, so no window is needed.
type NameSurfaceFactory struct {
	prefix string

	mu   sync.Mutex
	next int
}

// Ensure NameSurfaceFactory implements SurfaceFactory
var _ interfaces.SurfaceFactory = (*NameSurfaceFactory)(nil)

// NewNameSurfaceFactory creates a factory producing prefix-1, prefix-2, ...
func NewNameSurfaceFactory(prefix string) *NameSurfaceFactory {
	return &NameSurfaceFactory{prefix: prefix}
}

// NewSurface implements SurfaceFactory
func (f *NameSurfaceFactory) NewSurface() (interfaces.Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return nameSurface(fmt.Sprintf("%s-%d", f.prefix, f.next)), nil
}

type nameSurface string

func (n nameSurface) ID() string   { return string(n) }
func (n nameSurface) Close() error { return nil }
