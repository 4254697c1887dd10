// util/event_bus.go

package util

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
)

const (
	EventConnectionCreated  = "connection.created"
	EventConnectionUpdated  = "connection.updated"
	EventConnectionDeleted  = "connection.deleted"
	EventMappingsUpdated    = "mappings.updated"
	EventCacheInvalidated   = "cache.invalidated"
	EventAttributesResolved = "attributes.resolved"
)

// Event represents an event in the system
type Event struct {
	Type    string
	Payload interface{}
}

// EventHandler is a function that handles an event
type EventHandler func(context.Context, Event) error

// EventBus fans events out to subscribers on their own goroutines. Handler
// errors are collected on a buffered channel and logged by Start.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	errorChan   chan error
	inflight    sync.WaitGroup
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		errorChan:   make(chan error, 100),
	}
}

// Subscribe registers handler for eventType.
func (eb *EventBus) Subscribe(eventType string, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], handler)
}

// Publish delivers the event asynchronously. Handlers run detached from the
// caller's cancellation so a finished request does not abort them.
func (eb *EventBus) Publish(ctx context.Context, eventType string, payload interface{}) {
	eb.mu.RLock()
	handlers := append([]EventHandler(nil), eb.subscribers[eventType]...)
	eb.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{Type: eventType, Payload: payload}
	detached := context.WithoutCancel(ctx)
	for _, handler := range handlers {
		eb.inflight.Add(1)
		go func(h EventHandler) {
			defer eb.inflight.Done()
			if err := h(detached, event); err != nil {
				select {
				case eb.errorChan <- fmt.Errorf("%s handler: %w", eventType, err):
				default:
					logger.Error("Error channel full, dropping event handler error",
						zap.Error(err),
						zap.String("eventType", eventType))
				}
			}
		}(handler)
	}
}

// Start logs handler errors until ctx is done.
func (eb *EventBus) Start(ctx context.Context) {
	go eb.processErrors(ctx)
}

func (eb *EventBus) processErrors(ctx context.Context) {
	for {
		select {
		case err := <-eb.errorChan:
			logger.Error("Event handler error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

// Wait blocks until every handler started so far has returned.
func (eb *EventBus) Wait() {
	eb.inflight.Wait()
}
