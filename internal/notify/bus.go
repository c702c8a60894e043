package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Bus is an in-process Publisher that fans events out to subscriber
// channels. Sends are non-blocking: a subscriber whose buffer is full
// misses the event, which is acceptable under the at-most-once contract.
type Bus struct {
	mu   sync.RWMutex
	subs []chan any
}

var _ Publisher = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber and returns its channel. Events are
// delivered as OrderEvent or TipEvent values; the channel holds up to buffer
// undrained events before newer ones are dropped.
func (b *Bus) Subscribe(buffer int) <-chan any {
	ch := make(chan any, buffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

func (b *Bus) PublishOrderEvent(ctx context.Context, e OrderEvent) {
	b.publish(ctx, e)
}

func (b *Bus) PublishTipEvent(ctx context.Context, e TipEvent) {
	b.publish(ctx, e)
}

func (b *Bus) publish(ctx context.Context, e any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			slog.WarnContext(ctx, "notify: subscriber buffer full, event dropped")
		}
	}
}
