package winfeed

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// WinEvent is one entry on the live win feed
type WinEvent struct {
	Player    string          `json:"player"`
	GameID    string          `json:"gameId"`
	TotalWin  decimal.Decimal `json:"totalWin"`
	IsJackpot bool            `json:"isJackpot"`
	At        time.Time       `json:"at"`
}

// Broadcaster fans win events out to every registered listener. Each
// listener gets its own buffered channel; a slow listener drops events
// instead of blocking publishers or its peers.
type Broadcaster struct {
	mu        sync.Mutex
	buffer    int
	nextID    int
	listeners map[int]chan WinEvent
}

// NewBroadcaster creates a broadcaster with the given per-listener buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	return &Broadcaster{
		buffer:    buffer,
		listeners: make(map[int]chan WinEvent),
	}
}

// Send publishes an event to every listener (non-blocking, drop on full).
func (b *Broadcaster) Send(event WinEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.listeners {
		select {
		case ch <- event:
		default:
			// drop for this listener; the others still get the event
		}
	}
}

// Listen registers a listener and returns its channel plus a cancel function
// that unregisters it. The channel is closed on cancel or when ctx is done.
func (b *Broadcaster) Listen(ctx context.Context) (<-chan WinEvent, context.CancelFunc) {
	listenerCtx, cancel := context.WithCancel(ctx)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan WinEvent, b.buffer)
	b.listeners[id] = ch
	b.mu.Unlock()

	go func() {
		<-listenerCtx.Done()
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
		close(ch)
	}()

	return ch, cancel
}

// Len returns the number of registered listeners.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
