// Package pool implements the bounded, borrow-and-return object pool shared
// by the connection pool and the two buffer pools in §4.8: "a connection
// pool of size queue+workers+1, and two buffer pools of size workers."
//
// Grounded on the teacher's pkg/transport/transport.go hostPool: a LIFO idle
// list guarded by a sync.Cond, borrowers block on Get when the pool is both
// empty and at capacity, and Put wakes exactly one waiter. The teacher keyed
// its pools by dialed host; a server has no such key, so this is a single
// pool of homogeneous objects rather than a sync.Map of per-host pools.
package pool

import "sync"

// Pool is a fixed-capacity collection of reusable *T objects.
type Pool[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	idle     []*T
	numOut   int
	capacity int
	new      func() *T
	reset    func(*T)
}

// New creates a pool that lazily constructs up to capacity objects with
// newFn, resetting each with resetFn before it is returned to a borrower a
// second time.
func New[T any](capacity int, newFn func() *T, resetFn func(*T)) *Pool[T] {
	p := &Pool[T]{capacity: capacity, new: newFn, reset: resetFn}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Get borrows an object, blocking if the pool is at capacity and no idle
// object is available. This is the same wait-for-slot discipline as
// transport.go's getFromPool.
func (p *Pool[T]) Get() *T {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if n := len(p.idle); n > 0 {
			obj := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.numOut++
			return obj
		}
		if p.numOut < p.capacity {
			p.numOut++
			return p.new()
		}
		p.cond.Wait()
	}
}

// Put returns an object to the pool, resetting it first. Every borrowed
// object must be returned exactly once (§3's pool-conservation invariant).
func (p *Pool[T]) Put(obj *T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.mu.Lock()
	p.numOut--
	p.idle = append(p.idle, obj)
	p.mu.Unlock()
	p.cond.Signal()
}

// Len reports the number of objects currently borrowed out, for the pool
// conservation property tests (§8 invariants 1-2): Len() must return to 0
// once every borrowed object has been returned.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.numOut
}

// Idle reports the number of objects currently sitting in the idle list.
func (p *Pool[T]) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}
