package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Veraticus/caffeinate/pkg/config"
	"github.com/Veraticus/caffeinate/pkg/duration"
	"github.com/Veraticus/caffeinate/pkg/guard"
	"github.com/Veraticus/caffeinate/pkg/inhibit"
	"github.com/Veraticus/caffeinate/pkg/interfaces"
	"github.com/Veraticus/caffeinate/pkg/keepawake"
	"github.com/Veraticus/caffeinate/pkg/process"
	"github.com/Veraticus/caffeinate/pkg/ui"
	"github.com/Veraticus/caffeinate/pkg/x11"
)

// Mode selects which dependencies a subcommand needs.
type Mode int

const (
	// ModeLoop needs a key injector and a key source.
	ModeLoop Mode = iota
	// ModeInhibit needs an inhibition backend and target surfaces.
	ModeInhibit
)

// Dependencies holds all the dependencies for the application
type Dependencies struct {
	Config *config.Config

	// Loop mode
	Injector  interfaces.KeyInjector
	KeySource interfaces.KeySource
	Clock     interfaces.Clock

	// Do and sleep mode
	Backend    interfaces.InhibitBackend
	Surfaces   interfaces.SurfaceFactory
	NewProcess func(usePTY bool) interfaces.ProcessWrapper
	Sleep      func(ctx context.Context, d time.Duration) error

	// Exit is called by the signal guard after releasing.
	Exit func(code int)

	closers []func()
}

// DependencyFactory builds the dependencies for a mode.
type DependencyFactory func(cfg *config.Config, mode Mode) (*Dependencies, error)

// NewDependencies creates all dependencies with the given configuration
func NewDependencies(cfg *config.Config, mode Mode) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Clock:  keepawake.SystemClock(),
		NewProcess: func(usePTY bool) interfaces.ProcessWrapper {
			return process.NewManager(usePTY)
		},
		Sleep: sleepContext,
		Exit:  os.Exit,
	}

	needWindow := mode == ModeLoop || inhibit.NeedsWindow(cfg.Backend)

	var conn *x11.Conn
	if needWindow {
		c, err := x11.Open("")
		if err != nil {
			if mode == ModeInhibit {
				return nil, fmt.Errorf("%w: %w", inhibit.ErrBackend, err)
			}
			return nil, err
		}
		conn = c
		deps.closers = append(deps.closers, conn.Close)
	}

	switch mode {
	case ModeLoop:
		injector, err := x11.NewInjector(conn)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("%w: %w", keepawake.ErrInjection, err)
		}
		deps.Injector = injector
		deps.KeySource = x11.NewKeySource(conn, cfg.KeymapPollInterval)

	case ModeInhibit:
		backend, err := inhibit.NewBackend(cfg.Backend)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.Backend = backend
		if needWindow {
			deps.Surfaces = x11.NewSurfaceFactory(conn)
		} else {
			deps.Surfaces = inhibit.NewNameSurfaceFactory("caffeinate")
		}
	}

	return deps, nil
}

// Close cleans up all dependencies
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Application runs the three modes
type Application struct {
	newDeps DependencyFactory
	stdout  io.Writer
}

// NewApplication creates a new application with the given dependency factory
func NewApplication(factory DependencyFactory, stdout io.Writer) *Application {
	return &Application{
		newDeps: factory,
		stdout:  stdout,
	}
}

// Loop pings on cadence until the sentinel key is released three times in
// a row. Cancelling ctx ends the loop with exit status 1.
func (a *Application) Loop(ctx context.Context, cfg *config.Config, cadence duration.Duration) error {
	sentinel, err := x11.LookupKeysym(cfg.SentinelKey)
	if err != nil {
		return &usageError{err: err}
	}
	pingKey, err := x11.LookupKeysym(cfg.PingKey)
	if err != nil {
		return &usageError{err: err}
	}

	deps, err := a.newDeps(cfg, ModeLoop)
	if err != nil {
		return err
	}
	defer deps.Close()

	loop := keepawake.NewLoop(
		keepawake.NewSimulator(deps.Injector, pingKey),
		deps.KeySource,
		keepawake.NewSentinelListener(sentinel),
		keepawake.WithClock(deps.Clock),
		keepawake.WithPollInterval(cfg.PollInterval),
		keepawake.WithPingHook(func(time.Time) { ui.Debugf("ping") }),
	)

	fmt.Fprintf(a.stdout, "Serving caffeine every %d seconds.\n", cadence.TotalSeconds())
	fmt.Fprintf(a.stdout, "To quit, press the %s key three times.\n", x11.KeysymName(sentinel))

	err = loop.Run(ctx, cadence.Std())
	if keepawake.IsCancellation(err) {
		ui.Info("interrupted after %d pings", loop.Pings())
		return &ExitError{Code: guard.ExitCode}
	}
	if err == nil {
		ui.Debugf("stopped by %s after %d pings", x11.KeysymName(sentinel), loop.Pings())
	}
	return err
}

// Do runs command under inhibition and returns its exit status as an
// ExitError when it is not zero.
func (a *Application) Do(ctx context.Context, cfg *config.Config, command string, args []string) error {
	deps, err := a.newDeps(cfg, ModeInhibit)
	if err != nil {
		return err
	}
	defer deps.Close()

	proc := deps.NewProcess(cfg.PTY)

	var exitCode int
	err = a.guarded(ctx, deps, []func(){func() { _ = proc.Stop() }}, func(ctx context.Context) error {
		if err := proc.Start(command, args); err != nil {
			code := proc.ExitCode()
			if code == 0 {
				code = exitFailure
			}
			return &ExitError{Code: code, Err: err}
		}

		werr := proc.Wait()
		exitCode = proc.ExitCode()
		if werr != nil && exitCode == 0 {
			return fmt.Errorf("waiting for %s: %w", command, werr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ui.Debugf("%s exited with status %d", command, exitCode)
	if exitCode != 0 {
		return &ExitError{Code: exitCode}
	}
	return nil
}

// Sleep holds inhibition for d.
func (a *Application) Sleep(ctx context.Context, cfg *config.Config, d duration.Duration) error {
	deps, err := a.newDeps(cfg, ModeInhibit)
	if err != nil {
		return err
	}
	defer deps.Close()

	return a.guarded(ctx, deps, nil, func(ctx context.Context) error {
		fmt.Fprintf(a.stdout, "Sleeping for %d seconds\n", d.TotalSeconds())
		return deps.Sleep(ctx, d.Std())
	})
}

// guarded installs the signal guard, then runs op inside an inhibition
// session. On a signal the guard cancels op, runs stops, releases and exits.
func (a *Application) guarded(ctx context.Context, deps *Dependencies, stops []func(), op inhibit.Operation) error {
	session := inhibit.NewSession(deps.Backend, deps.Surfaces)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := guard.New(session, guard.WithExit(deps.Exit))
	g.Install(append([]func(){cancel}, stops...)...)
	defer g.Uninstall()

	err := session.Run(ctx, op)

	// A signal that ended op is still being handled; wait for the handler
	// before deciding the outcome.
	g.Uninstall()
	select {
	case <-g.Fired():
		return &ExitError{Code: guard.ExitCode}
	default:
	}

	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return &ExitError{Code: guard.ExitCode, Err: err}
	}
	return err
}
