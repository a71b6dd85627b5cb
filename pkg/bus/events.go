package bus

import (
	"context"
	"sync"
	"time"
)

type EventType string

const (
	EventAgentRegistered EventType = "agent_registered"
	EventMessageSent     EventType = "message_sent"
	EventThreadCreated   EventType = "thread_created"
	EventFanOutFailed    EventType = "fanout_failed"
	EventUpstreamFailed  EventType = "upstream_failed"
)

// Event describes one relay outcome. Only the fields relevant to Type are set.
type Event struct {
	Type         EventType `json:"type"`
	At           time.Time `json:"at"`
	Operation    string    `json:"operation,omitempty"`
	Agent        string    `json:"agent,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
	Recipient    string    `json:"recipient,omitempty"`
	ThreadID     string    `json:"thread_id,omitempty"`
	Participants []string  `json:"participants,omitempty"`
	Code         string    `json:"code,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// PublishEvent delivers event to every current subscriber without blocking.
// A subscriber whose buffer is full misses the event.
func (mb *MessageBus) PublishEvent(ctx context.Context, event Event) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	default:
	}

	// Held across the sends so unsubscribe cannot close a channel mid-send.
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	for _, ch := range mb.eventSubscribers {
		select {
		case ch <- event:
		default:
		}
	}

	return true
}

// SubscribeEvents registers a subscriber. The channel is closed when ctx
// ends, the bus closes, or the returned func is called.
func (mb *MessageBus) SubscribeEvents(ctx context.Context, buffer int) (<-chan Event, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	ch := make(chan Event, buffer)

	mb.mu.Lock()
	select {
	case <-mb.done:
		mb.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}

	id := mb.nextEventSubscriberID
	mb.nextEventSubscriberID++
	mb.eventSubscribers[id] = ch
	mb.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			mb.mu.Lock()
			if eventCh, ok := mb.eventSubscribers[id]; ok {
				delete(mb.eventSubscribers, id)
				close(eventCh)
			}
			mb.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-mb.done:
			unsubscribe()
		}
	}()

	return ch, unsubscribe
}

// SubscriberCount reports how many event subscribers are attached.
func (mb *MessageBus) SubscriberCount() int {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	return len(mb.eventSubscribers)
}
