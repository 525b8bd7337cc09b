package groupsync

import (
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
)

func TestPool_Go(t *testing.T) {
	p, err := NewPool(WithLimit(8))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Release()

	var total int64
	for i := 0; i < 100; i++ {
		i := i
		if err := p.Go(func() {
			time.Sleep(time.Millisecond * time.Duration(rand.Intn(5)))
			atomic.AddInt64(&total, int64(i))
		}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	p.Wait()

	if total != 4950 {
		t.Errorf("expected sum 4950, got %d", total)
	}
	if p.Cap() != 8 {
		t.Errorf("expected cap 8, got %d", p.Cap())
	}
}

func TestPool_Released(t *testing.T) {
	p, err := NewPool(WithLimit(1))
	if err != nil {
		t.Fatal(err)
	}
	p.Release()
	if !p.IsClosed() {
		t.Fatal("pool should report closed")
	}
	if err := p.Go(func() {}); !errors.Is(err, ants.ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
	// a refused task must not leave Wait hanging
	p.Wait()
}

func TestPool_PanicHandler(t *testing.T) {
	recovered := make(chan interface{}, 1)
	p, err := NewPool(WithLimit(2), WithPanicHandler(func(v interface{}) {
		recovered <- v
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Release()

	if err := p.Go(func() { panic("boom") }); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-recovered:
		if v != "boom" {
			t.Errorf("unexpected panic value %v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("panic handler not called")
	}
	p.Wait()
}
