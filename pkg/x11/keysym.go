package x11

import (
	"fmt"
	"strconv"
	"strings"
)

// Keysyms used as defaults.
const (
	KeysymEscape uint32 = 0xff1b
	KeysymShiftL uint32 = 0xffe1
)

// keysyms maps the key names accepted in configuration to X keysyms.
var keysyms = map[string]uint32{
	"Escape":      KeysymEscape,
	"Shift_L":     KeysymShiftL,
	"Shift_R":     0xffe2,
	"Control_L":   0xffe3,
	"Control_R":   0xffe4,
	"Caps_Lock":   0xffe5,
	"Alt_L":       0xffe9,
	"Alt_R":       0xffea,
	"Super_L":     0xffeb,
	"Super_R":     0xffec,
	"Pause":       0xff13,
	"Scroll_Lock": 0xff14,
	"Num_Lock":    0xff7f,
	"F13":         0xffca,
	"F14":         0xffcb,
	"F15":         0xffcc,
	"F16":         0xffcd,
}

// LookupKeysym resolves a key name such as "Escape" or "Shift_L", or a
// numeric keysym such as "0xff1b". Names are matched case-insensitively.
func LookupKeysym(name string) (uint32, error) {
	name = strings.TrimSpace(name)
	if ks, ok := keysyms[name]; ok {
		return ks, nil
	}
	for n, ks := range keysyms {
		if strings.EqualFold(n, name) {
			return ks, nil
		}
	}
	if strings.HasPrefix(name, "0x") || strings.HasPrefix(name, "0X") {
		v, err := strconv.ParseUint(name[2:], 16, 32)
		if err == nil && v != 0 {
			return uint32(v), nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", name)
}

// KeysymName returns the configured name of keysym, or its hex form.
func KeysymName(keysym uint32) string {
	for n, ks := range keysyms {
		if ks == keysym {
			return n
		}
	}
	return fmt.Sprintf("%#x", keysym)
}
