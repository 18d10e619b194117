package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Veraticus/caffeinate/pkg/duration"
	"github.com/Veraticus/caffeinate/pkg/ui"
)

// Exit statuses other than those propagated from a wrapped command.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// ExitError carries a specific exit status out of a subcommand. A nil Err
// means the status is reported without a message.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// usageError marks a mistake on the command line.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, a ...any) error {
	return &usageError{err: fmt.Errorf(format, a...)}
}

func main() {
	app := NewApplication(NewDependencies, os.Stdout)
	os.Exit(run(app, os.Args[1:], os.Stdout))
}

// run executes the command line and returns the process exit status.
func run(app *Application, args []string, stdout io.Writer) int {
	root := newRootCmd(app)
	root.SetArgs(args)
	root.SetOut(stdout)

	err := root.Execute()
	code := exitCodeFor(err)

	var exitErr *ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && exitErr.Err == nil:
	default:
		ui.Error("%v", err)
		if code == exitUsage {
			ui.Info("run '%s --help' for usage", root.Name())
		}
	}
	return code
}

// exitCodeFor maps an error returned by a subcommand to an exit status.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var usage *usageError
	if errors.As(err, &usage) ||
		errors.Is(err, duration.ErrInvalidFormat) ||
		errors.Is(err, duration.ErrOutOfRange) {
		return exitUsage
	}

	return exitFailure
}
