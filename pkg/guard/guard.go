// Package guard releases a held inhibition when the process is told to stop.
package guard

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Veraticus/caffeinate/pkg/interfaces"
	"github.com/Veraticus/caffeinate/pkg/ui"
)

// ExitCode is the process status after a termination signal.
const ExitCode = 1

// Signals are the signals that trigger a release.
var Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}

// Guard binds the termination signals to a release. Install it before the
// inhibition is acquired so no signal can slip past it.
type Guard struct {
	releaser interfaces.Releaser
	exit     func(int)

	mu       sync.Mutex
	sigCh    chan os.Signal
	done     chan struct{}
	cleanups []func()
	wg       sync.WaitGroup
	fired    chan struct{}
	fireOnce sync.Once
}

// Option configures a Guard.
type Option func(*Guard)

// WithExit replaces os.Exit.
func WithExit(fn func(int)) Option {
	return func(g *Guard) { g.exit = fn }
}

// New creates a guard that releases r.
func New(r interfaces.Releaser, opts ...Option) *Guard {
	g := &Guard{
		releaser: r,
		exit:     os.Exit,
		fired:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Install starts listening. cleanups run in order before the release, e.g.
// to cancel the operation or stop a child process.
func (g *Guard) Install(cleanups ...func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sigCh != nil {
		return
	}

	g.cleanups = cleanups
	g.sigCh = make(chan os.Signal, 1)
	g.done = make(chan struct{})
	signal.Notify(g.sigCh, Signals...)

	g.wg.Add(1)
	go g.watch(g.sigCh, g.done)
}

// Uninstall stops listening. A handler already running finishes first.
func (g *Guard) Uninstall() {
	g.mu.Lock()
	sigCh, done := g.sigCh, g.done
	g.sigCh, g.done = nil, nil
	g.mu.Unlock()

	if sigCh == nil {
		return
	}
	signal.Stop(sigCh)
	close(done)
	g.wg.Wait()
}

// Fired is closed once a signal has been handled.
func (g *Guard) Fired() <-chan struct{} {
	return g.fired
}

func (g *Guard) watch(sigCh <-chan os.Signal, done <-chan struct{}) {
	defer g.wg.Done()

	select {
	case sig := <-sigCh:
		g.handle(sig)
	case <-done:
	}
}

// handle runs the cleanups, releases and exits. Only the first call acts.
func (g *Guard) handle(sig os.Signal) {
	g.fireOnce.Do(func() {
		ui.Debugf("received %v, releasing inhibition", sig)

		g.mu.Lock()
		cleanups := g.cleanups
		g.mu.Unlock()

		for _, fn := range cleanups {
			fn()
		}

		if err := g.releaser.Release(context.Background()); err != nil {
			ui.Error("failed to release inhibition: %v", err)
		}

		ui.Info("interrupted by %v", sig)
		close(g.fired)
		g.exit(ExitCode)
	})
}
