package ssh

import (
	"testing"

	"github.com/Lvzhenqian/sshsftp/protocol"
)

func TestEventBus_SubscribeIdempotent(t *testing.T) {
	emitter := protocol.NewEmitter()
	bus := NewEventBus("me", emitter)

	bus.Subscribe(protocol.EventShell)
	bus.Subscribe(protocol.EventShell)
	if emitter.Listeners(protocol.EventShell) != 1 {
		t.Fatalf("expected a single emitter listener, got %d", emitter.Listeners(protocol.EventShell))
	}
	if !bus.Subscribed(protocol.EventShell) || bus.Len() != 1 {
		t.Errorf("expected shell subscription, len %d", bus.Len())
	}

	bus.Unsubscribe(protocol.EventShell)
	bus.Unsubscribe(protocol.EventShell)
	bus.Unsubscribe(protocol.EventUploadProgress)
	if emitter.Listeners(protocol.EventShell) != 0 || bus.Len() != 0 {
		t.Errorf("subscription left behind")
	}
}

func TestEventBus_Dispatch(t *testing.T) {
	emitter := protocol.NewEmitter()
	bus := NewEventBus("me", emitter)
	bus.Subscribe(protocol.EventShell)
	bus.Subscribe(protocol.EventUploadProgress)

	var got []string
	bus.On(protocol.EventShell, func(ev protocol.Event) {
		got = append(got, "first:"+ev.Data.(string))
	})
	bus.On(protocol.EventShell, func(ev protocol.Event) {
		got = append(got, ev.Data.(string))
	})

	emitter.Emit(protocol.Event{ClientID: "me", Name: protocol.EventShell, Data: "a"})
	emitter.Emit(protocol.Event{ClientID: "other", Name: protocol.EventShell, Data: "b"})
	// subscribed without a handler
	emitter.Emit(protocol.Event{ClientID: "me", Name: protocol.EventUploadProgress, Data: protocol.Progress{}})
	bus.Dispatch(protocol.Event{ClientID: "me", Name: "Unknown"})

	if len(got) != 1 || got[0] != "a" {
		t.Errorf("expected only the latest handler with own events, got %v", got)
	}

	bus.On(protocol.EventShell, nil)
	emitter.Emit(protocol.Event{ClientID: "me", Name: protocol.EventShell, Data: "c"})
	if len(got) != 1 {
		t.Errorf("cleared handler still called")
	}
}

func TestEventBus_UnsubscribeAll(t *testing.T) {
	emitter := protocol.NewEmitter()
	bus := NewEventBus("me", emitter)
	other := NewEventBus("other", emitter)
	for _, name := range progressEvents {
		bus.Subscribe(name)
		other.Subscribe(name)
	}
	bus.Subscribe(protocol.EventShell)

	bus.UnsubscribeAll()
	if bus.Len() != 0 {
		t.Errorf("expected no subscriptions, got %d", bus.Len())
	}
	if emitter.Listeners(protocol.EventUploadProgress) != 1 {
		t.Errorf("other client's subscription removed")
	}
}
