package variable

import (
	"sync"
)

// Variable is a shared value that several owners read and write.
type Variable[T comparable] struct {
	Name string

	mu           sync.RWMutex
	value        T
	subscriberID int
	subscribers  map[int]func(old, new T)
}

// Int is a shared integer.
type Int = Variable[int]

// Float is a shared float.
type Float = Variable[float64]

// String is a shared string.
type String = Variable[string]

// Bool is a shared flag.
type Bool = Variable[bool]

func New[T comparable](name string, value T) *Variable[T] {
	return &Variable[T]{Name: name, value: value}
}

func (v *Variable[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set stores value and notifies subscribers when it differs from the current one.
func (v *Variable[T]) Set(value T) {
	v.Update(func(T) T { return value })
}

// Update replaces the value with fn(current) and notifies subscribers when
// it changed. It returns the stored value. fn runs without the lock held and
// is retried when another writer got in first, so it must not have side
// effects.
func (v *Variable[T]) Update(fn func(T) T) T {
	for {
		old := v.Get()
		value := fn(old)
		if old == value {
			return value
		}
		v.mu.Lock()
		if v.value != old {
			v.mu.Unlock()
			continue
		}
		v.value = value
		fns := make([]func(old, new T), 0, len(v.subscribers))
		for id := 1; id <= v.subscriberID; id++ {
			if fn, ok := v.subscribers[id]; ok {
				fns = append(fns, fn)
			}
		}
		v.mu.Unlock()

		for _, fn := range fns {
			fn(old, value)
		}
		return value
	}
}

// OnChange subscribes fn to value changes. The returned func unsubscribes.
func (v *Variable[T]) OnChange(fn func(old, new T)) func() {
	if fn == nil {
		return func() {}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.subscribers == nil {
		v.subscribers = make(map[int]func(old, new T))
	}
	v.subscriberID++
	id := v.subscriberID
	v.subscribers[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subscribers, id)
	}
}

// Add increments an integer variable by delta.
func Add(v *Int, delta int) int {
	return v.Update(func(current int) int { return current + delta })
}
