// Package events fan-outs daemon events to subscribed clients.
package events

import (
	"context"
	"sync"
	"time"
)

// Event names emitted by the daemon.
const (
	EntryAdded       = "clipboard-entry-added"
	EntryUpdated     = "clipboard-entry-updated"
	EntryDeleted     = "clipboard-entry-deleted"
	HistoryCleared   = "clipboard-history-cleared"
	TagsChanged      = "tags-changed"
	SyncCompleted    = "sync-completed"
	PurgeCompleted   = "purge-completed"
	SessionChanged   = "session-changed"
	UpdateAvailable  = "update-available"
	DownloadProgress = "download-progress"
)

// Event is one notification pushed to clients.
type Event struct {
	Name      string    `json:"name"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus fan-outs events to all active subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (b *Bus) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (b *Bus) Publish(name string, payload any) {
	evt := Event{Name: name, Payload: payload, Timestamp: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
