package protocol

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestEmitter_SubscribeEmit(t *testing.T) {
	e := NewEmitter()
	var got []Event
	sub := e.Subscribe(EventShell, func(ev Event) {
		got = append(got, ev)
	})
	e.Emit(Event{ClientID: "a", Name: EventShell, Data: "hi"})
	e.Emit(Event{ClientID: "a", Name: EventUploadProgress})

	if len(got) != 1 || got[0].Data != "hi" {
		t.Fatalf("expected one shell event, got %+v", got)
	}
	if e.Listeners(EventShell) != 1 {
		t.Errorf("expected 1 listener, got %d", e.Listeners(EventShell))
	}

	sub.Remove()
	sub.Remove()
	e.Emit(Event{ClientID: "a", Name: EventShell, Data: "again"})
	if len(got) != 1 {
		t.Errorf("removed listener still called")
	}
	if e.Listeners(EventShell) != 0 {
		t.Errorf("expected no listeners, got %d", e.Listeners(EventShell))
	}
}

func TestEmitter_RemoveOnlyOwnSubscription(t *testing.T) {
	e := NewEmitter()
	var a, b int32
	subA := e.Subscribe(EventShell, func(Event) { atomic.AddInt32(&a, 1) })
	e.Subscribe(EventShell, func(Event) { atomic.AddInt32(&b, 1) })

	subA.Remove()
	e.Emit(Event{Name: EventShell})
	if a != 0 || b != 1 {
		t.Errorf("expected only b to fire, a=%d b=%d", a, b)
	}
}

func TestEmitter_ListenerMaySubscribe(t *testing.T) {
	e := NewEmitter()
	var wg sync.WaitGroup
	wg.Add(1)
	e.Subscribe(EventShell, func(Event) {
		// emit runs listeners outside the lock
		e.Subscribe(EventDownloadProgress, func(Event) { wg.Done() })
	})
	e.Emit(Event{Name: EventShell})
	e.Emit(Event{Name: EventDownloadProgress})
	wg.Wait()
}
