package x11

import (
	"sync"
	"time"

	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/Veraticus/caffeinate/pkg/interfaces"
	"github.com/Veraticus/caffeinate/pkg/ui"
)

// DefaultKeymapPollInterval is how often KeySource samples the keyboard.
const DefaultKeymapPollInterval = 20 * time.Millisecond

// KeySource reports key presses and releases anywhere on the display by
// sampling QueryKeymap and comparing consecutive samples. Keys are not
// grabbed, so other clients keep receiving them.
type KeySource struct {
	conn     *Conn
	interval time.Duration

	mu       sync.Mutex
	started  bool
	events   chan interfaces.KeyEvent
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Ensure KeySource implements interfaces.KeySource
var _ interfaces.KeySource = (*KeySource)(nil)

// NewKeySource creates a key source sampling every interval
func NewKeySource(conn *Conn, interval time.Duration) *KeySource {
	if interval <= 0 {
		interval = DefaultKeymapPollInterval
	}
	return &KeySource{
		conn:     conn,
		interval: interval,
		events:   make(chan interfaces.KeyEvent, 16),
		stop:     make(chan struct{}),
	}
}

// Start takes the first sample and begins polling.
func (k *KeySource) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.started {
		return errors.New("key source already started")
	}

	km, err := k.conn.keyboardMapping()
	if err != nil {
		return err
	}
	first, err := k.sample()
	if err != nil {
		return err
	}

	k.started = true
	k.wg.Add(1)
	go k.poll(km, first)
	return nil
}

// Events returns the event channel. It is closed by Stop.
func (k *KeySource) Events() <-chan interfaces.KeyEvent {
	return k.events
}

// Stop ends polling and closes the event channel.
func (k *KeySource) Stop() error {
	k.stopOnce.Do(func() {
		close(k.stop)
		k.wg.Wait()
		close(k.events)
	})
	return nil
}

func (k *KeySource) sample() ([]byte, error) {
	reply, err := xproto.QueryKeymap(k.conn.xc).Reply()
	if err != nil {
		return nil, errors.Wrap(err, "failed to query keymap")
	}
	return reply.Keys, nil
}

func (k *KeySource) poll(km *keyMap, prev []byte) {
	defer k.wg.Done()

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-k.stop:
			return
		case <-ticker.C:
		}

		cur, err := k.sample()
		if err != nil {
			ui.Debugf("keymap poll: %v", err)
			continue
		}

		for _, change := range diffKeymap(prev, cur) {
			keysym := km.keysymFor(change.code)
			if keysym == 0 {
				continue
			}
			select {
			case k.events <- interfaces.KeyEvent{Keysym: keysym, Pressed: change.pressed}:
			case <-k.stop:
				return
			}
		}
		prev = cur
	}
}

type keyChange struct {
	code    xproto.Keycode
	pressed bool
}

// diffKeymap lists the keycodes whose bit differs between two QueryKeymap
// vectors, in ascending keycode order. Bit i of byte j is keycode 8j+i.
// Changes inside one sample are not in chronological order: two keys
// released within the same poll interval come out by keycode.
func diffKeymap(prev, cur []byte) []keyChange {
	var changes []keyChange
	for j := 0; j < len(cur); j++ {
		var old byte
		if j < len(prev) {
			old = prev[j]
		}
		diff := old ^ cur[j]
		if diff == 0 {
			continue
		}
		for i := 0; i < 8; i++ {
			bit := byte(1) << i
			if diff&bit == 0 {
				continue
			}
			changes = append(changes, keyChange{
				code:    xproto.Keycode(j*8 + i),
				pressed: cur[j]&bit != 0,
			})
		}
	}
	return changes
}
