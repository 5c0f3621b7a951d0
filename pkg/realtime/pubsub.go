package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

// Handler receives one inbound frame. Handlers run on the connection's read
// goroutine, in registration order, after the adapter's mirrored state has been
// updated for the frame.
type Handler func(msg *types.Message)

type subscription struct {
	id uint64
	fn Handler
}

// bus is a multi-subscriber registry keyed by event name
type bus struct {
	mu     sync.RWMutex
	seq    uint64
	subs   map[string][]subscription
	logger zerolog.Logger
}

func newBus(logger zerolog.Logger) *bus {
	return &bus{subs: make(map[string][]subscription), logger: logger}
}

// on registers fn for event and returns a func that removes just this registration
func (b *bus) on(event string, fn Handler) func() {
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[event] = append(b.subs[event], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(event, id) })
	}
}

func (b *bus) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[event]
	for i, s := range subs {
		if s.id == id {
			b.subs[event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[event]) == 0 {
		delete(b.subs, event)
	}
}

// off removes every handler registered for event
func (b *bus) off(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, event)
}

func (b *bus) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string][]subscription)
}

func (b *bus) count(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[event])
}

func (b *bus) publish(msg *types.Message) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[msg.Type]...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.call(s.fn, msg)
	}
}

// call isolates the read loop from a panicking subscriber
func (b *bus) call(fn Handler, msg *types.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("event", msg.Type).Msg("subscriber panicked")
		}
	}()
	fn(msg)
}
