package pool

import (
	"sync"
	"testing"
)

func TestPoolConservation(t *testing.T) {
	type obj struct{ n int }
	p := New(4, func() *obj { return &obj{} }, func(o *obj) { o.n = 0 })

	var borrowed []*obj
	for i := 0; i < 4; i++ {
		borrowed = append(borrowed, p.Get())
	}
	if got := p.Len(); got != 4 {
		t.Fatalf("Len = %d, want 4", got)
	}
	for _, o := range borrowed {
		p.Put(o)
	}
	if got := p.Len(); got != 0 {
		t.Fatalf("Len after returning all = %d, want 0", got)
	}
	if got := p.Idle(); got != 4 {
		t.Fatalf("Idle = %d, want 4", got)
	}
}

func TestPoolBlocksAtCapacity(t *testing.T) {
	type obj struct{}
	p := New(1, func() *obj { return &obj{} }, nil)

	first := p.Get()

	done := make(chan *obj, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		done <- p.Get()
	}()

	select {
	case <-done:
		t.Fatalf("Get returned before any object was released")
	default:
	}

	p.Put(first)
	wg.Wait()
	<-done
}
