package events

import (
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan RecordingTimeUpdateEvent, 1)

	unsub := bus.Subscribe(func(e RecordingTimeUpdateEvent) {
		received <- e
	})
	defer unsub()

	ev := RecordingTimeUpdateEvent{
		SessionID:     "sess-1",
		Elapsed:       2,
		Formatted:     "00:02",
		BufferedBytes: 4096,
	}
	bus.Publish(ev)

	got := <-received
	if got.Formatted != ev.Formatted {
		t.Errorf("Expected formatted %s, got %s", ev.Formatted, got.Formatted)
	}
	if got.BufferedBytes != ev.BufferedBytes {
		t.Errorf("Expected buffered %d, got %d", ev.BufferedBytes, got.BufferedBytes)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan StateChangedEvent, 1)
	received2 := make(chan StateChangedEvent, 1)

	unsub1 := bus.Subscribe(func(e StateChangedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e StateChangedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(StateChangedEvent{Previous: "idle", Current: "starting"})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan RecordingErrorEvent, 1)

	unsub := bus.Subscribe(func(e RecordingErrorEvent) {
		received <- e
	})

	bus.Publish(RecordingErrorEvent{Code: "OTHER"})
	<-received

	unsub()

	bus.Publish(RecordingErrorEvent{Code: "OTHER"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_UnsubscribeFromHandler(t *testing.T) {
	bus := New()
	done := make(chan struct{}, 2)

	var unsub func()
	unsub = bus.Subscribe(func(e MuteChangedEvent) {
		// Unsubscribing from within the handler must not deadlock or panic.
		unsub()
		done <- struct{}{}
	})

	bus.Publish(MuteChangedEvent{Muted: true})
	<-done

	bus.Publish(MuteChangedEvent{Muted: false})
	select {
	case <-done:
		t.Fatal("Handler ran after unsubscribing itself")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_UnknownHandlerIsNoop(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(s string) {})
	unsub() // must not panic
	if unsub == nil {
		t.Fatal("Subscribe must always return an unsubscribe func")
	}
}
