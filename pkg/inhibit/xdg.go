package inhibit

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Veraticus/caffeinate/pkg/interfaces"
)

// XDGScreensaverName is the backend name used in configuration.
const XDGScreensaverName = "xdg-screensaver"

// CommandRunner runs name with args and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// outputWaitDelay bounds how long a command's output pipe is drained after it
// exits. xdg-screensaver suspend leaves a tracker running that may inherit
// the pipe until resume.
const outputWaitDelay = 2 * time.Second

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return newCommandRunner(outputWaitDelay)(ctx, name, args...)
}

func newCommandRunner(waitDelay time.Duration) CommandRunner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.WaitDelay = waitDelay
		out, err := cmd.CombinedOutput()
		// Only reported when the command itself exited successfully.
		if errors.Is(err, exec.ErrWaitDelay) {
			err = nil
		}
		return out, err
	}
}

// XDGScreensaver drives the xdg-screensaver script from xdg-utils.
type XDGScreensaver struct {
	command string
	run     CommandRunner
}

// Ensure XDGScreensaver implements InhibitBackend
var _ interfaces.InhibitBackend = (*XDGScreensaver)(nil)

// NewXDGScreensaver creates a backend running xdg-screensaver from PATH.
func NewXDGScreensaver() *XDGScreensaver {
	return &XDGScreensaver{command: XDGScreensaverName, run: runCommand}
}

// NewXDGScreensaverWithRunner creates a backend that runs commands through run.
func NewXDGScreensaverWithRunner(run CommandRunner) *XDGScreensaver {
	return &XDGScreensaver{command: XDGScreensaverName, run: run}
}

// Name implements InhibitBackend
func (x *XDGScreensaver) Name() string {
	return XDGScreensaverName
}

// Suspend runs `xdg-screensaver suspend <handle>`.
func (x *XDGScreensaver) Suspend(ctx context.Context, handle string) error {
	return x.invoke(ctx, "suspend", handle)
}

// Resume runs `xdg-screensaver resume <handle>`.
func (x *XDGScreensaver) Resume(ctx context.Context, handle string) error {
	return x.invoke(ctx, "resume", handle)
}

func (x *XDGScreensaver) invoke(ctx context.Context, verb, handle string) error {
	out, err := x.run(ctx, x.command, verb, handle)
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(string(out))
	if msg == "" {
		return fmt.Errorf("%w: %s %s %s: %w", ErrBackend, x.command, verb, handle, err)
	}
	return fmt.Errorf("%w: %s %s %s: %w: %s", ErrBackend, x.command, verb, handle, err, msg)
}
