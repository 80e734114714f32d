// internal/handler/event_bus.go
package handler

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"led-relay/internal/device"
)

// EventTypeDevice is the event type for device state transitions
const EventTypeDevice = "device_event"

// EventBus manages event distribution
type EventBus struct {
	subscribers map[string][]chan Event
	events      chan Event
	done        chan struct{}
	stopOnce    sync.Once
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// Event represents a system event
type Event struct {
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan Event),
		events:      make(chan Event, 1000),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Start distributes events until Stop is called, then closes every
// subscriber channel
func (eb *EventBus) Start() {
	defer eb.closeSubscribers()

	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.done:
			return
		}
	}
}

// Stop ends distribution. It is safe to call more than once.
func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() { close(eb.done) })
}

// Publish queues an event without blocking
func (eb *EventBus) Publish(event Event) {
	select {
	case <-eb.done:
		return
	default:
	}

	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", event.Type),
		)
	}
}

// Subscribe subscribes to events of a specific type
func (eb *EventBus) Subscribe(eventType string) <-chan Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan Event, 100)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
	return subscriber
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event Event) {
	eb.mutex.RLock()
	subscribers := eb.subscribers[event.Type]
	eb.mutex.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

func (eb *EventBus) closeSubscribers() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	for eventType, subscribers := range eb.subscribers {
		for _, subscriber := range subscribers {
			close(subscriber)
		}
		delete(eb.subscribers, eventType)
	}
}

// DeviceEventHandler turns device state transitions into bus events
type DeviceEventHandler struct {
	bus    *EventBus
	logger *zap.Logger
}

// NewDeviceEventHandler creates a new device event handler
func NewDeviceEventHandler(bus *EventBus, logger *zap.Logger) *DeviceEventHandler {
	return &DeviceEventHandler{
		bus:    bus,
		logger: logger,
	}
}

// OnStateChange satisfies device.StateChangeFunc
func (deh *DeviceEventHandler) OnStateChange(address string, from, to device.State, reason string) {
	switch to {
	case device.StateConnected:
		deh.OnDeviceConnected(address)
	default:
		deh.OnDeviceDisconnected(address, from, reason)
	}
}

// OnDeviceConnected handles device connected events
func (deh *DeviceEventHandler) OnDeviceConnected(address string) {
	deh.publish(address, device.StateDisconnected, device.StateConnected, map[string]interface{}{
		"message": "Device connected successfully",
	})

	deh.logger.Debug("Device connected event published", zap.String("address", address))
}

// OnDeviceDisconnected handles device disconnected events
func (deh *DeviceEventHandler) OnDeviceDisconnected(address string, from device.State, reason string) {
	deh.publish(address, from, device.StateDisconnected, map[string]interface{}{
		"reason": reason,
	})

	deh.logger.Debug("Device disconnected event published",
		zap.String("address", address),
		zap.String("reason", reason),
	)
}

func (deh *DeviceEventHandler) publish(address string, from, to device.State, data map[string]interface{}) {
	data["address"] = address
	data["from"] = from.String()
	data["to"] = to.String()

	deh.bus.Publish(Event{
		Type:      EventTypeDevice,
		Source:    "device",
		Data:      data,
		Timestamp: time.Now(),
	})
}
