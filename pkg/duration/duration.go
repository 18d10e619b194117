// Package duration parses the human time strings accepted on the command
// line and in the config file: "1:30", "1:01:01", "90", "2h", "15m", "45s".
package duration

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	// ErrInvalidFormat is returned when a string matches none of the accepted grammars.
	ErrInvalidFormat = errors.New("invalid time string")

	// ErrOutOfRange is returned when a component is outside its allowed range.
	ErrOutOfRange = errors.New("time component out of range")
)

// Grammars are tried in order; the first match wins.
var (
	hmsPattern    = regexp.MustCompile(`^([0-9]{1,2}):([0-9]{2}):([0-9]{2})$`)
	msPattern     = regexp.MustCompile(`^([0-9]{1,2}):([0-9]{2})$`)
	suffixPattern = regexp.MustCompile(`^([0-9]+)([hms]?)$`)
)

// Duration is a whole number of seconds. The zero value is zero seconds.
type Duration struct {
	seconds int64
}

// Seconds builds a Duration from a count of seconds. Negative counts clamp to zero.
func Seconds(n int64) Duration {
	if n < 0 {
		n = 0
	}
	return Duration{seconds: n}
}

// Parse converts text into a Duration.
func Parse(text string) (Duration, error) {
	if m := hmsPattern.FindStringSubmatch(text); m != nil {
		h, _ := strconv.ParseInt(m[1], 10, 64)
		mins, _ := strconv.ParseInt(m[2], 10, 64)
		secs, _ := strconv.ParseInt(m[3], 10, 64)
		if mins >= 60 {
			return Duration{}, fmt.Errorf("%w: minutes %d in %q", ErrOutOfRange, mins, text)
		}
		if secs >= 60 {
			return Duration{}, fmt.Errorf("%w: seconds %d in %q", ErrOutOfRange, secs, text)
		}
		return Duration{seconds: h*3600 + mins*60 + secs}, nil
	}

	if m := msPattern.FindStringSubmatch(text); m != nil {
		mins, _ := strconv.ParseInt(m[1], 10, 64)
		secs, _ := strconv.ParseInt(m[2], 10, 64)
		if secs >= 60 {
			return Duration{}, fmt.Errorf("%w: seconds %d in %q", ErrOutOfRange, secs, text)
		}
		return Duration{seconds: mins*60 + secs}, nil
	}

	if m := suffixPattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return Duration{}, fmt.Errorf("%w: %q is too large", ErrOutOfRange, text)
		}
		if n == 0 {
			return Duration{}, fmt.Errorf("%w: %q must be positive", ErrOutOfRange, text)
		}

		unit := int64(1)
		switch m[2] {
		case "h":
			unit = 3600
		case "m":
			unit = 60
		}
		if n > (1<<62)/unit {
			return Duration{}, fmt.Errorf("%w: %q is too large", ErrOutOfRange, text)
		}
		return Duration{seconds: n * unit}, nil
	}

	return Duration{}, fmt.Errorf("%w %q (want [[HH:]M]M:SS or N[h|m|s])", ErrInvalidFormat, text)
}

// MustParse is like Parse but panics on error. Intended for defaults.
func MustParse(text string) Duration {
	d, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return d
}

// TotalSeconds returns the duration as a count of seconds.
func (d Duration) TotalSeconds() int64 {
	return d.seconds
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d.seconds) * time.Second
}

// IsZero reports whether the duration is zero seconds.
func (d Duration) IsZero() bool {
	return d.seconds == 0
}

// String renders the most compact form Parse accepts back: H:MM:SS, M:SS or S.
// Hours beyond 99 do not fit the clock grammar and render with an "h" suffix
// when they divide evenly, otherwise as plain seconds.
func (d Duration) String() string {
	h := d.seconds / 3600
	m := (d.seconds % 3600) / 60
	s := d.seconds % 60

	switch {
	case h > 99:
		if m == 0 && s == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return strconv.FormatInt(d.seconds, 10)
	case h > 0:
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	case m > 0:
		return fmt.Sprintf("%d:%02d", m, s)
	default:
		return strconv.FormatInt(s, 10)
	}
}
