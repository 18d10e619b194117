package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/term"
)

// Prefix starts every line written to stderr.
const Prefix = "caffeinate: "

// ANSI color/style codes
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	cyan   = "\033[36m"
	green  = "\033[32m"
	yellow = "\033[33m"
	red    = "\033[31m"
)

var (
	mu     sync.Mutex
	out    io.Writer = os.Stderr
	styled           = isTTY(os.Stderr)
	debug  atomic.Bool
)

func init() {
	if os.Getenv("CAFFEINATE_DEBUG") == "1" {
		debug.Store(true)
	}
}

// isTTY returns true if w is a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// SetOutput redirects diagnostics to w and returns the previous writer.
// Colour is used only when w is a terminal.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	styled = isTTY(w)
	return prev
}

// SetDebug turns debug output on or off.
func SetDebug(on bool) {
	debug.Store(on)
}

// DebugEnabled reports whether Debugf writes anything.
func DebugEnabled() bool {
	return debug.Load()
}

// s wraps text with ANSI codes only when the output is a TTY.
// Callers hold mu.
func s(codes, text string) string {
	if !styled {
		return text
	}
	return codes + text + reset
}

func emit(codes, format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	msg := fmt.Sprintf(format, a...)
	fmt.Fprintf(out, "%s%s\n", s(codes, Prefix), msg)
}

// Info prints an informational line:  caffeinate: message
func Info(format string, a ...any) {
	emit(cyan, format, a...)
}

// Success prints a line for a completed operation.
func Success(format string, a ...any) {
	emit(green, format, a...)
}

// Warn prints a warning line.
func Warn(format string, a ...any) {
	emit(yellow, format, a...)
}

// Error prints an error line:  caffeinate: message
func Error(format string, a ...any) {
	emit(bold+red, format, a...)
}

// Debugf prints a dimmed diagnostic line when debug output is enabled.
func Debugf(format string, a ...any) {
	if !debug.Load() {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	msg := fmt.Sprintf(format, a...)
	fmt.Fprintf(out, "%s%s\n", s(dim, Prefix+"debug: "), msg)
}

// KeyValue prints a labeled debug line:  caffeinate: label  value
func KeyValue(label, value string) {
	Debugf("%-12s %s", label, value)
}

// Dim wraps text in dim style (for use in other formatted output).
func Dim(text string) string {
	mu.Lock()
	defer mu.Unlock()
	return s(dim, text)
}
