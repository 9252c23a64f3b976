package replica

import "sync"

// Broadcaster fans progress events out to subscribers.
// Late subscribers receive the most recent event first.
// A full subscriber buffer drops its oldest event, so the final
// event of a run always gets through without stalling the warm-up.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan ProgressEvent]struct{}
	last   *ProgressEvent
	buffer int
}

// NewBroadcaster creates a Broadcaster with a per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broadcaster{subs: make(map[chan ProgressEvent]struct{}), buffer: buffer}
}

// Publish delivers ev to every subscriber. It is a ProgressSink.
func (b *Broadcaster) Publish(ev ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = &ev
	for ch := range b.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Only Publish sends and it holds mu, so one receive frees a slot.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// Reset forgets a finished run so new subscribers are not handed its done
// event. The last event of a run still in progress is kept.
func (b *Broadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last != nil && b.last.Done {
		b.last = nil
	}
}

// Subscribe returns an event channel and a cancel func that closes it.
func (b *Broadcaster) Subscribe() (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, b.buffer)

	b.mu.Lock()
	if b.last != nil {
		ch <- *b.last
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Last returns the most recent event, if any.
func (b *Broadcaster) Last() (ProgressEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return ProgressEvent{}, false
	}
	return *b.last, true
}
