// Package pubsub is the in-process broadcast bus that fans tally
// snapshots out to every open result stream of a poll.
package pubsub

import (
	"sync"

	"realtime-voting/internal/domain/vote"
)

// subscriberBuffer bounds each subscriber's delivery channel. When a
// consumer falls behind, the oldest snapshot is dropped in favor of
// the newest so the publisher never blocks.
const subscriberBuffer = 16

type Bus struct {
	mu     sync.Mutex
	topics map[string]map[*Subscription]struct{}
}

func NewBus() *Bus {
	return &Bus{topics: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber for pollID. Only snapshots
// published after this call are delivered; there is no replay.
func (b *Bus) Subscribe(pollID string) *Subscription {
	sub := &Subscription{
		bus:    b,
		pollID: pollID,
		ch:     make(chan vote.TallySnapshot, subscriberBuffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	topic, ok := b.topics[pollID]
	if !ok {
		topic = make(map[*Subscription]struct{})
		b.topics[pollID] = topic
	}
	topic[sub] = struct{}{}
	return sub
}

// Publish delivers snap to every current subscriber of pollID. Sends
// are non-blocking; a full subscriber drops its oldest snapshot.
// Publishing with zero subscribers is a no-op. Publishes serialize on
// the registry lock, so each subscriber observes snapshots for a poll
// in publish order.
func (b *Bus) Publish(pollID string, snap vote.TallySnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.topics[pollID] {
		select {
		case sub.ch <- snap:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snap:
			default:
			}
		}
	}
}

// Subscribers reports the current subscriber count for a poll topic.
func (b *Bus) Subscribers(pollID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[pollID])
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.removed {
		return
	}
	sub.removed = true

	topic := b.topics[sub.pollID]
	delete(topic, sub)
	if len(topic) == 0 {
		delete(b.topics, sub.pollID)
	}
	close(sub.ch)
}

// Subscription is one subscriber's handle on a poll topic.
type Subscription struct {
	bus     *Bus
	pollID  string
	ch      chan vote.TallySnapshot
	removed bool // guarded by bus.mu
}

// C is the delivery channel. It is closed when the subscription is
// released.
func (s *Subscription) C() <-chan vote.TallySnapshot {
	return s.ch
}

// PollID reports the topic this subscription is bound to.
func (s *Subscription) PollID() string {
	return s.pollID
}

// Unsubscribe stops delivery and frees the topic slot. It is
// idempotent and safe to call concurrently with an in-flight Publish.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s)
}
