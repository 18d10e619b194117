package keepawake

import (
	"sync"

	"github.com/Veraticus/caffeinate/pkg/interfaces"
)

// StrikeLimit is the number of consecutive sentinel releases that stop the loop.
const StrikeLimit = 3

// SentinelListener counts consecutive releases of the sentinel key.
type SentinelListener struct {
	sentinel uint32

	mu       sync.Mutex
	strikes  int
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewSentinelListener creates a listener for the given sentinel keysym.
func NewSentinelListener(sentinel uint32) *SentinelListener {
	return &SentinelListener{
		sentinel: sentinel,
		stopped:  make(chan struct{}),
	}
}

// Handle processes one event and reports whether the stop threshold has been reached.
// Presses are ignored. A release of any other key resets the count.
func (l *SentinelListener) Handle(ev interfaces.KeyEvent) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.isStopped() {
		return true
	}
	if ev.Pressed {
		return false
	}

	if ev.Keysym != l.sentinel {
		l.strikes = 0
		return false
	}

	l.strikes++
	if l.strikes < StrikeLimit {
		return false
	}

	l.stopOnce.Do(func() { close(l.stopped) })
	return true
}

// Listen consumes events until the threshold is reached or events is closed.
func (l *SentinelListener) Listen(events <-chan interfaces.KeyEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if l.Handle(ev) {
				return
			}
		case <-l.stopped:
			return
		}
	}
}

// Strikes returns the current count of consecutive sentinel releases.
func (l *SentinelListener) Strikes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.strikes
}

// Stopped is closed once the threshold has been reached.
func (l *SentinelListener) Stopped() <-chan struct{} {
	return l.stopped
}

// isStopped must be called with mu held.
func (l *SentinelListener) isStopped() bool {
	select {
	case <-l.stopped:
		return true
	default:
		return false
	}
}
