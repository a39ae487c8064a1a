// Package cache provides a bounded, approximately-keyed LRU cache for
// memoizing expensive evaluations keyed by floating-point signatures.
//
// Unlike a hash-keyed cache, lookups match any stored key whose signature
// lies componentwise within atol + rtol*|key| of the probe, trading a
// linear scan over at most capacity entries for tolerance-aware reuse.
// Entries are evicted least-recently-used when the cache is full.
package cache

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// ErrInvalidCapacity is returned when a cache is created with a
// non-positive capacity.
var ErrInvalidCapacity = errors.New("cache capacity must be positive")

// Stats holds cumulative cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// Approx is a bounded LRU cache keyed by float64 signatures with
// tolerance-based matching. All methods are safe for concurrent use; the
// eviction policy mutates shared state, so access is serialized by a
// single mutex.
type Approx[V any] struct {
	mu       sync.Mutex
	capacity int
	rtol     float64
	atol     float64

	head, tail *entry[V]
	size       int

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type entry[V any] struct {
	sig        []float64
	value      V
	next, prev *entry[V]
}

// New creates an approximate LRU cache holding at most capacity entries.
// A probe signature matches a stored key when every component differs by
// at most atol + rtol*|key component|.
func New[V any](capacity int, rtol, atol float64) (*Approx[V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if rtol < 0 || atol < 0 {
		return nil, fmt.Errorf("cache tolerances must be non-negative: rtol=%g atol=%g", rtol, atol)
	}
	return &Approx[V]{capacity: capacity, rtol: rtol, atol: atol}, nil
}

// matches reports whether probe lies within tolerance of key.
func (c *Approx[V]) matches(key, probe []float64) bool {
	if len(key) != len(probe) {
		return false
	}
	for i := range key {
		if math.Abs(probe[i]-key[i]) > c.atol+c.rtol*math.Abs(key[i]) {
			return false
		}
	}
	return true
}

// Lookup returns the value stored under a signature within tolerance of
// sig. A hit moves the entry to the front of the recency list.
func (c *Approx[V]) Lookup(sig []float64) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for e := c.head; e != nil; e = e.next {
		if c.matches(e.sig, sig) {
			c.moveToFront(e)
			c.hits.Add(1)
			return e.value, true
		}
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// Insert stores value under sig, evicting the least-recently-used entry
// when the cache is full. The signature is retained by the cache and must
// not be modified afterwards.
func (c *Approx[V]) Insert(sig []float64, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.size >= c.capacity {
		c.evictOne()
	}
	e := &entry[V]{sig: sig, value: value}
	c.size++
	if c.head == nil {
		c.head, c.tail = e, e
		return
	}
	e.next = c.head
	c.head.prev = e
	c.head = e
}

// Len returns the current number of entries.
func (c *Approx[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns cumulative hit/miss/eviction counters.
func (c *Approx[V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// moveToFront detaches e and reattaches it at the head. Must hold mu.
func (c *Approx[V]) moveToFront(e *entry[V]) {
	if c.head == e {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if c.tail == e {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

// evictOne removes the tail entry. Must hold mu.
func (c *Approx[V]) evictOne() {
	if c.tail == nil {
		return
	}
	t := c.tail
	if t.prev != nil {
		t.prev.next = nil
	} else {
		c.head = nil
	}
	c.tail = t.prev
	c.size--
	c.evictions.Add(1)
}
