// Package internal contains shared plumbing for the FigChain client that is not part of
// its public API.
package internal

import (
	"sync"

	"github.com/figchain/go-client-sdk/fcmodel"
)

// Buffer size for subscriber channels, to make it less likely that a slow consumer
// blocks a broadcast. It remains the consumer's responsibility to keep reading.
const subscriberChannelBufferLength = 10

// UpdateBroadcaster fans out batches of changed fig families to any number of
// subscribers. Every batch that flows through the client's update path, whether it came
// from bootstrap or from polling, is broadcast as one value.
//
// A subscription is identified by the receive-only channel handed out by AddListener;
// the matching send end stays internal, keyed by that channel, so that RemoveListener
// can find and close it.
type UpdateBroadcaster struct {
	lock sync.Mutex
	subs map[<-chan []fcmodel.FigFamily]chan<- []fcmodel.FigFamily
}

// NewUpdateBroadcaster creates an UpdateBroadcaster with no subscribers.
func NewUpdateBroadcaster() *UpdateBroadcaster {
	return &UpdateBroadcaster{subs: make(map[<-chan []fcmodel.FigFamily]chan<- []fcmodel.FigFamily)}
}

// AddListener adds a subscriber and returns the channel it will receive batches on.
func (b *UpdateBroadcaster) AddListener() <-chan []fcmodel.FigFamily {
	ch := make(chan []fcmodel.FigFamily, subscriberChannelBufferLength)
	var receiveCh <-chan []fcmodel.FigFamily = ch
	b.lock.Lock()
	b.subs[receiveCh] = ch
	b.lock.Unlock()
	return receiveCh
}

// RemoveListener unsubscribes a channel returned by AddListener and closes its sending
// end. Removing a channel that is not subscribed is a no-op.
func (b *UpdateBroadcaster) RemoveListener(ch <-chan []fcmodel.FigFamily) {
	b.lock.Lock()
	sendCh, ok := b.subs[ch]
	if ok {
		delete(b.subs, ch)
	}
	b.lock.Unlock()
	if ok {
		close(sendCh)
	}
}

// HasListeners returns true if there are any current subscribers.
func (b *UpdateBroadcaster) HasListeners() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.subs) > 0
}

// Broadcast sends a batch to all current subscribers. The subscriber set is snapshotted
// under the lock, then the sends happen outside it, so a subscriber added mid-broadcast
// simply misses this batch.
func (b *UpdateBroadcaster) Broadcast(families []fcmodel.FigFamily) {
	b.lock.Lock()
	sends := make([]chan<- []fcmodel.FigFamily, 0, len(b.subs))
	for _, sendCh := range b.subs {
		sends = append(sends, sendCh)
	}
	b.lock.Unlock()
	for _, sendCh := range sends {
		sendCh <- families
	}
}

// Close closes all current subscriber channels and drops them.
func (b *UpdateBroadcaster) Close() {
	b.lock.Lock()
	defer b.lock.Unlock()
	for ch, sendCh := range b.subs {
		close(sendCh)
		delete(b.subs, ch)
	}
}
