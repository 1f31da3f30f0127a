package collection

import (
	"sort"
	"sync"
)

// Collection is a shared set of live objects whose membership changes are
// observable.
type Collection[T comparable] struct {
	mu    sync.RWMutex
	items []T

	subscriberID int
	added        map[int]func(T)
	removed      map[int]func(T)
}

func New[T comparable]() *Collection[T] {
	return &Collection[T]{}
}

// Add appends item if it is not present yet and notifies added subscribers.
func (c *Collection[T]) Add(item T) bool {
	c.mu.Lock()
	for _, existing := range c.items {
		if existing == item {
			c.mu.Unlock()
			return false
		}
	}
	c.items = append(c.items, item)
	subscribers := snapshot(c.added)
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(item)
	}
	return true
}

// Remove deletes item if it is present and notifies removed subscribers.
func (c *Collection[T]) Remove(item T) bool {
	c.mu.Lock()
	index := -1
	for i, existing := range c.items {
		if existing == item {
			index = i
			break
		}
	}
	if index < 0 {
		c.mu.Unlock()
		return false
	}
	c.items = append(c.items[:index], c.items[index+1:]...)
	subscribers := snapshot(c.removed)
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(item)
	}
	return true
}

func (c *Collection[T]) Contains(item T) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, existing := range c.items {
		if existing == item {
			return true
		}
	}
	return false
}

// Items returns a copy of the members in insertion order.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items := make([]T, len(c.items))
	copy(items, c.items)
	return items
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes every member, notifying removed subscribers for each.
func (c *Collection[T]) Clear() {
	c.mu.Lock()
	items := c.items
	c.items = nil
	subscribers := snapshot(c.removed)
	c.mu.Unlock()

	for _, item := range items {
		for _, fn := range subscribers {
			fn(item)
		}
	}
}

// OnAdded subscribes fn to additions. The returned func unsubscribes.
func (c *Collection[T]) OnAdded(fn func(T)) func() {
	return c.subscribe(&c.added, fn)
}

// OnRemoved subscribes fn to removals. The returned func unsubscribes.
func (c *Collection[T]) OnRemoved(fn func(T)) func() {
	return c.subscribe(&c.removed, fn)
}

func (c *Collection[T]) subscribe(subscribers *map[int]func(T), fn func(T)) func() {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if *subscribers == nil {
		*subscribers = make(map[int]func(T))
	}
	c.subscriberID++
	id := c.subscriberID
	(*subscribers)[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(*subscribers, id)
	}
}

func snapshot[T any](subscribers map[int]func(T)) []func(T) {
	if len(subscribers) == 0 {
		return nil
	}
	ids := make([]int, 0, len(subscribers))
	for id := range subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, subscribers[id])
	}
	return fns
}
