package inhibit

import (
	"fmt"
	"strings"

	"github.com/Veraticus/caffeinate/pkg/interfaces"
)

// Backends lists the accepted backend names, default first.
var Backends = []string{XDGScreensaverName, DBusName}

// NormalizeBackend checks and lower-cases a configured backend name. An
// empty name selects xdg-screensaver.
func NormalizeBackend(name string) (string, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "":
		return XDGScreensaverName, nil
	case XDGScreensaverName, DBusName:
		return n, nil
	default:
		return "", fmt.Errorf("unknown inhibition backend %q (want one of %s)", name, strings.Join(Backends, ", "))
	}
}

// NewBackend creates the named backend.
func NewBackend(name string) (interfaces.InhibitBackend, error) {
	n, err := NormalizeBackend(name)
	if err != nil {
		return nil, err
	}
	if n == DBusName {
		return NewDBusScreenSaver("caffeinate")
	}
	return NewXDGScreensaver(), nil
}

// NeedsWindow reports whether the named backend identifies requests by X11
// window id rather than by an opaque name.
func NeedsWindow(name string) bool {
	return !strings.EqualFold(strings.TrimSpace(name), DBusName)
}
