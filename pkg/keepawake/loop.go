package keepawake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/caffeinate/pkg/interfaces"
)

// DefaultPollInterval is how often the loop checks whether a ping is due.
const DefaultPollInterval = time.Second

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock returns a Clock backed by the time package.
func SystemClock() interfaces.Clock {
	return systemClock{}
}

// Loop pings the simulator on a fixed cadence until the listener signals stop.
type Loop struct {
	simulator *Simulator
	source    interfaces.KeySource
	listener  *SentinelListener
	clock     interfaces.Clock
	poll      time.Duration
	onPing    func(time.Time)

	mu       sync.Mutex
	lastPing time.Time
	pings    int
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the system clock.
func WithClock(c interfaces.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithPollInterval sets how long the loop sleeps between checks.
func WithPollInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.poll = d
		}
	}
}

// WithPingHook registers a callback run after every successful ping.
func WithPingHook(fn func(time.Time)) Option {
	return func(l *Loop) { l.onPing = fn }
}

// NewLoop wires a simulator, key source and sentinel listener into a Loop.
func NewLoop(sim *Simulator, source interfaces.KeySource, listener *SentinelListener, opts ...Option) *Loop {
	l := &Loop{
		simulator: sim,
		source:    source,
		listener:  listener,
		clock:     SystemClock(),
		poll:      DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run blocks until the sentinel key has been released StrikeLimit times in a
// row, ctx is cancelled, or a ping fails. It returns only after the listener
// goroutine has exited and the key source has been stopped.
func (l *Loop) Run(ctx context.Context, cadence time.Duration) error {
	if cadence <= 0 {
		return fmt.Errorf("cadence must be positive, got %v", cadence)
	}

	if err := l.source.Start(); err != nil {
		return fmt.Errorf("failed to start key listener: %w", err)
	}

	l.mu.Lock()
	l.lastPing = l.clock.Now()
	l.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.listener.Listen(l.source.Events())
	}()

	runErr := l.cadence(ctx, cadence)

	// Stop closes the event channel, which releases a listener still waiting on it.
	stopErr := l.source.Stop()
	wg.Wait()

	if runErr != nil {
		return runErr
	}
	if stopErr != nil {
		return fmt.Errorf("failed to stop key listener: %w", stopErr)
	}
	return nil
}

func (l *Loop) cadence(ctx context.Context, cadence time.Duration) error {
	for {
		select {
		case <-l.listener.Stopped():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := l.pingIfDue(cadence); err != nil {
			return err
		}
		l.clock.Sleep(l.poll)
	}
}

func (l *Loop) pingIfDue(cadence time.Duration) error {
	now := l.clock.Now()

	l.mu.Lock()
	due := now.Sub(l.lastPing) >= cadence
	l.mu.Unlock()

	if !due {
		return nil
	}

	if err := l.simulator.Ping(); err != nil {
		return err
	}

	l.mu.Lock()
	l.lastPing = now
	l.pings++
	l.mu.Unlock()

	if l.onPing != nil {
		l.onPing(now)
	}
	return nil
}

// LastPing returns the time of the most recent ping, or the loop start time.
func (l *Loop) LastPing() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastPing
}

// Pings returns how many pings have been sent.
func (l *Loop) Pings() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pings
}

// Stopped is closed once the sentinel threshold has been reached.
func (l *Loop) Stopped() <-chan struct{} {
	return l.listener.Stopped()
}

// IsCancellation reports whether err came from context cancellation rather
// than a failure.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
