package state

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType names the relay lifecycle notifications carried by the bus
type EventType int

const (
	EventUnknown EventType = iota
	RelayTxObserved
	RelayTxSigned
	RelayTxSubmitted
	RelayTxFinalized
	RelayTxFailed
)

var eventTypeNames = [...]string{"EventUnknown", "RelayTxObserved", "RelayTxSigned", "RelayTxSubmitted", "RelayTxFinalized", "RelayTxFailed"}

func (e EventType) String() string {
	if e < 0 || int(e) >= len(eventTypeNames) {
		return eventTypeNames[EventUnknown]
	}
	return eventTypeNames[e]
}

type subscriber struct {
	ch chan interface{}
	// coalesce subscribers treat a full channel as a pending signal and are never dropped
	coalesce bool
}

// EventBus fans lifecycle events out to in-process subscribers
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]subscriber
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]subscriber),
	}
}

// Subscribe registers ch for every event of eventType, a subscriber that falls behind is dropped
func (eb *EventBus) Subscribe(eventType EventType, ch chan interface{}) {
	eb.subscribe(eventType, subscriber{ch: ch})
}

// SubscribeCoalesced registers ch as a wake signal: when its buffer is full the
// event is discarded and the subscription stays.
func (eb *EventBus) SubscribeCoalesced(eventType EventType, ch chan interface{}) {
	eb.subscribe(eventType, subscriber{ch: ch, coalesce: true})
}

func (eb *EventBus) subscribe(eventType EventType, sub subscriber) {
	if sub.ch == nil {
		panic("eventbus: subscribe with nil channel")
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], sub)
}

// Publish never blocks. It returns how many subscribers received data,
// a coalesced subscriber with a pending signal counts as reached.
func (eb *EventBus) Publish(eventType EventType, data interface{}) int {
	eb.mu.RLock()
	subscribers := eb.subscribers[eventType]
	var stalled []chan interface{}
	for _, sub := range subscribers {
		select {
		case sub.ch <- data:
		default:
			if !sub.coalesce {
				stalled = append(stalled, sub.ch)
			}
		}
	}
	eb.mu.RUnlock()

	for _, ch := range stalled {
		log.Warnf("Eventbus dropped a stalled %s subscriber", eventType)
		eb.Unsubscribe(eventType, ch)
	}
	return len(subscribers) - len(stalled)
}

func (eb *EventBus) Unsubscribe(eventType EventType, ch chan interface{}) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subscribers := eb.subscribers[eventType]
	for i, sub := range subscribers {
		if sub.ch == ch {
			subscribers = append(subscribers[:i:i], subscribers[i+1:]...)
			break
		}
	}
	if len(subscribers) == 0 {
		delete(eb.subscribers, eventType)
		return
	}
	eb.subscribers[eventType] = subscribers
}
