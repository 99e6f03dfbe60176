package progress

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultBufferSize = 16

// Subscription is one listener's handle on the broker.
type Subscription struct {
	ID     string
	Events <-chan Event

	ch chan Event
}

// Broker is a publish/subscribe registry. Publish never blocks on a slow
// subscriber: when a subscriber's buffer is full its oldest pending event is
// dropped, so the newest progress and the terminal event always get through.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription
	bufferSize  int
	logger      *zap.Logger
}

func NewBroker(logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		subscribers: make(map[string]*Subscription),
		bufferSize:  defaultBufferSize,
		logger:      logger,
	}
}

// Subscribe registers a new listener.
func (b *Broker) Subscribe() *Subscription {
	ch := make(chan Event, b.bufferSize)
	sub := &Subscription{ID: uuid.NewString(), Events: ch, ch: ch}

	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	b.mu.Unlock()

	b.logger.Debug("progress subscriber added", zap.String("subscriber_id", sub.ID))
	return sub
}

// Unsubscribe removes a listener and closes its channel. Unknown ids are ignored.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	delete(b.subscribers, id)
	b.mu.Unlock()

	if ok {
		close(sub.ch)
		b.logger.Debug("progress subscriber removed", zap.String("subscriber_id", id))
	}
}

// Len returns the number of current subscribers.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish delivers ev to every current subscriber.
func (b *Broker) Publish(ev Event) {
	// the read lock also keeps Unsubscribe from closing a channel mid-send
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		offer(sub.ch, ev)
	}
}

func offer(ch chan Event, ev Event) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
