// Package flight coalesces concurrent identical work and caches the result
// for a bounded window.
package flight

import (
	"sync"
	"sync/atomic"
	"time"
)

type Cache[K comparable, V any] struct {
	finished map[K]*entry[V]
	fmu      *sync.RWMutex

	pending map[K]*job[V]
	pmu     *sync.Mutex

	work func(K) (V, error)

	// ttl in nanoseconds; <= 0 means results never expire.
	ttl *atomic.Int64
}

type entry[V any] struct {
	val      V
	deadline time.Time // zero => never expires
}

type job[V any] struct {
	val  V
	err  error
	done chan struct{}
}

func NewCache[K comparable, V any](work func(K) (V, error)) Cache[K, V] {
	var ttl atomic.Int64
	ttl.Store(int64(time.Hour))
	return Cache[K, V]{
		finished: make(map[K]*entry[V]),
		fmu:      new(sync.RWMutex),
		pending:  make(map[K]*job[V]),
		pmu:      new(sync.Mutex),
		work:     work,
		ttl:      &ttl,
	}
}

// Expiry sets the retention window for future results. d <= 0 keeps results
// forever.
func (p *Cache[K, V]) Expiry(d time.Duration) {
	if d <= 0 {
		p.ttl.Store(0)
		return
	}
	p.ttl.Store(int64(d))
}

// Get returns the cached result for k, joins an in-flight computation if one
// exists, or runs the work itself. Only one caller ever computes a given key
// at a time.
func (p *Cache[K, V]) Get(k K) (V, error) {
	p.pmu.Lock()

	if v, ok := p.loadFresh(k); ok {
		p.pmu.Unlock()
		return v, nil
	}

	if pending, ok := p.pending[k]; ok {
		p.pmu.Unlock()
		<-pending.done
		return pending.val, pending.err
	}

	j := &job[V]{done: make(chan struct{})}
	p.pending[k] = j
	p.pmu.Unlock()

	j.val, j.err = p.work(k)
	if j.err == nil {
		p.store(k, j.val)
	}

	p.pmu.Lock()
	close(j.done)
	delete(p.pending, k)
	p.pmu.Unlock()

	return j.val, j.err
}

// Force recomputes k, waiting out any in-flight computation first so two
// forced runs never overlap.
func (p *Cache[K, V]) Force(k K) (V, error) {
	var j *job[V]
	for {
		p.pmu.Lock()
		if existing, ok := p.pending[k]; ok {
			p.pmu.Unlock()
			<-existing.done
			continue
		}
		j = &job[V]{done: make(chan struct{})}
		p.pending[k] = j
		p.pmu.Unlock()
		break
	}

	j.val, j.err = p.work(k)
	if j.err == nil {
		p.store(k, j.val)
	}

	p.pmu.Lock()
	close(j.done)
	delete(p.pending, k)
	p.pmu.Unlock()

	return j.val, j.err
}

// Forget drops any cached result for k. In-flight work is unaffected.
func (p *Cache[K, V]) Forget(k K) {
	p.fmu.Lock()
	delete(p.finished, k)
	p.fmu.Unlock()
}

func (p *Cache[K, V]) loadFresh(k K) (V, bool) {
	p.fmu.RLock()
	e, ok := p.finished[k]
	p.fmu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	if !e.deadline.IsZero() && time.Now().After(e.deadline) {
		p.fmu.Lock()
		if cur, ok := p.finished[k]; ok && cur == e {
			delete(p.finished, k)
		}
		p.fmu.Unlock()
		var zero V
		return zero, false
	}
	return e.val, true
}

func (p *Cache[K, V]) store(k K, val V) {
	e := &entry[V]{val: val}
	if d := time.Duration(p.ttl.Load()); d > 0 {
		e.deadline = time.Now().Add(d)
	}
	p.fmu.Lock()
	p.finished[k] = e
	p.fmu.Unlock()
}
