// Package events provides the typed in-process event bus used for
// recording lifecycle fan-out.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for event broadcasting.
//
// Handlers iterate over the dispatcher's subscriber snapshot, so
// unsubscribing from within a handler invocation is safe, and the
// returned unsubscribe closures are O(1).
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers of its concrete type.
// Usage: bus.Publish(StateChangedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event's Publish is generic over the concrete event type,
	// so dispatch through a type switch.
	switch e := ev.(type) {
	case StateChangedEvent:
		event.Publish(b.dispatcher, e)
	case RecordingStartedEvent:
		event.Publish(b.dispatcher, e)
	case RecordingTimeUpdateEvent:
		event.Publish(b.dispatcher, e)
	case RecordingStoppedEvent:
		event.Publish(b.dispatcher, e)
	case RecordingErrorEvent:
		event.Publish(b.dispatcher, e)
	case SourceSwitchedEvent:
		event.Publish(b.dispatcher, e)
	case MuteChangedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes a handler function; the handler's parameter type
// determines which events it receives. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e RecordingTimeUpdateEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(StateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RecordingStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RecordingTimeUpdateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RecordingStoppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RecordingErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SourceSwitchedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MuteChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Unrecognized handler signatures subscribe to nothing.
		return func() {}
	}
}
