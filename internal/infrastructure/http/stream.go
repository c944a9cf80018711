package http

import (
	"sync"

	"github.com/0xcro3dile/searchchat-go/internal/domain/entities"
)

// transcriptEvent is one change pushed to stream subscribers.
type transcriptEvent struct {
	Type  string              `json:"type"` // "append" or "remove"
	Entry *entities.ChatEntry `json:"entry,omitempty"`
	ID    string              `json:"id"`
}

// broadcaster fans transcript changes out to SSE clients.
// It is registered as a TranscriptView, so it must never block:
// slow clients miss events instead of stalling the transcript.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan transcriptEvent]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan transcriptEvent]struct{})}
}

func (b *broadcaster) Append(e entities.ChatEntry) {
	b.publish(transcriptEvent{Type: "append", Entry: &e, ID: e.ID})
}

func (b *broadcaster) Remove(id string) {
	b.publish(transcriptEvent{Type: "remove", ID: id})
}

func (b *broadcaster) subscribe() (<-chan transcriptEvent, func()) {
	ch := make(chan transcriptEvent, 32)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
}

func (b *broadcaster) publish(ev transcriptEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
