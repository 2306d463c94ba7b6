package application

import (
	"sync"

	"github.com/ericfisherdev/profitpilot/internal/domain/model"
)

// broadcaster fans session events out to subscribers. Sends never block:
// a subscriber whose buffer is full misses the event and catches up from the
// next snapshot.
type broadcaster struct {
	mu   sync.RWMutex
	subs map[chan model.SessionEvent]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan model.SessionEvent]struct{})}
}

// subscribe registers a new subscriber. The returned cancel function
// unregisters it and closes the channel; it is safe to call more than once.
func (b *broadcaster) subscribe(buffer int) (<-chan model.SessionEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan model.SessionEvent, buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (b *broadcaster) publish(ev model.SessionEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
