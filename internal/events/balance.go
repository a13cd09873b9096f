// Package events fans out domain events to in-process subscribers.
package events

import (
	"sync"
	"time"
)

// BalanceEvent is the wire form of a balance snapshot. String amounts avoid
// float precision issues when consumed by web/UI layers.
type BalanceEvent struct {
	Timestamp   time.Time `json:"ts"`
	Participant string    `json:"participant"`
	Pair        string    `json:"pair"`
	Base        string    `json:"base"`
	Quote       string    `json:"quote"`
	Stale       bool      `json:"stale,omitempty"`
}

// BalanceBroadcaster fans out balance events to all subscribers via buffered
// channels. Slow readers drop events instead of blocking the publisher.
type BalanceBroadcaster struct {
	mu     sync.RWMutex
	subs   map[chan BalanceEvent]struct{}
	buffer int
}

// NewBalanceBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBalanceBroadcaster(buffer int) *BalanceBroadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &BalanceBroadcaster{
		subs:   make(map[chan BalanceEvent]struct{}),
		buffer: buffer,
	}
}

// Publish sends the event to all subscribers, dropping if a reader is slow.
func (b *BalanceBroadcaster) Publish(ev BalanceEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives events until Unsubscribe is called.
func (b *BalanceBroadcaster) Subscribe() chan BalanceEvent {
	ch := make(chan BalanceEvent, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *BalanceBroadcaster) Unsubscribe(ch chan BalanceEvent) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
