package ui

import (
	"bytes"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := SetOutput(buf)
	wasDebug := DebugEnabled()
	t.Cleanup(func() {
		SetOutput(prev)
		SetDebug(wasDebug)
	})
	return buf
}

func TestLinesArePrefixed(t *testing.T) {
	tests := []struct {
		name string
		emit func()
		want string
	}{
		{name: "info", emit: func() { Info("Serving caffeine every %s", "1:30") }, want: "caffeinate: Serving caffeine every 1:30\n"},
		{name: "warn", emit: func() { Warn("backend %q unavailable", "dbus") }, want: "caffeinate: backend \"dbus\" unavailable\n"},
		{name: "error", emit: func() { Error("bad duration") }, want: "caffeinate: bad duration\n"},
		{name: "success", emit: func() { Success("released") }, want: "caffeinate: released\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureOutput(t)
			tt.emit()
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDebugfGating(t *testing.T) {
	buf := captureOutput(t)

	SetDebug(false)
	Debugf("hidden %d", 1)
	if buf.Len() != 0 {
		t.Errorf("expected no output with debug off, got %q", buf.String())
	}

	SetDebug(true)
	Debugf("shown %d", 2)
	KeyValue("backend", "xdg-screensaver")

	got := buf.String()
	if !strings.Contains(got, "caffeinate: debug: shown 2\n") {
		t.Errorf("missing debug line in %q", got)
	}
	if !strings.Contains(got, "backend") || !strings.Contains(got, "xdg-screensaver") {
		t.Errorf("missing key/value line in %q", got)
	}
}

func TestNoColourWhenNotTerminal(t *testing.T) {
	buf := captureOutput(t)
	Error("plain")
	if strings.Contains(buf.String(), "\033[") {
		t.Errorf("expected no escape codes for a non-terminal writer, got %q", buf.String())
	}
	if Dim("x") != "x" {
		t.Errorf("Dim should not style for a non-terminal writer")
	}
}
