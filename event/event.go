package event

import (
	"context"
	"sync"

	"github.com/juju/errors"
)

var errEnableListener = "event: enable listener error"

// Listener is notified whenever the event it is registered with is raised.
type Listener interface {
	EventRaised(ctx context.Context)
}

// Disposable is implemented by listeners whose underlying object can be
// destroyed while still registered. Disposed listeners are pruned on Raise.
type Disposable interface {
	Disposed() bool
}

// Event broadcasts to its listeners without either side holding a hard
// reference to the other's owner.
type Event struct {
	Name string

	mu        sync.Mutex
	listeners []Listener
}

func New(name string) *Event {
	return &Event{Name: name}
}

// Raise notifies listeners from the most recently registered to the first.
// Listeners may register or deregister while the event is being raised.
func (e *Event) Raise(ctx context.Context) {
	e.mu.Lock()
	targets := make([]Listener, 0, len(e.listeners))
	for i := len(e.listeners) - 1; i >= 0; i-- {
		if !alive(e.listeners[i]) {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			continue
		}
		targets = append(targets, e.listeners[i])
	}
	e.mu.Unlock()

	for _, listener := range targets {
		if !alive(listener) {
			continue
		}
		listener.EventRaised(ctx)
	}
}

// RegisterListener adds listener once; registering it again is a no-op.
func (e *Event) RegisterListener(listener Listener) {
	if listener == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, l := range e.listeners {
		if l == listener {
			return
		}
	}
	e.listeners = append(e.listeners, listener)
}

func (e *Event) DeregisterListener(listener Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, l := range e.listeners {
		if l == listener {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

func (e *Event) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

func alive(listener Listener) bool {
	if listener == nil {
		return false
	}
	if d, ok := listener.(Disposable); ok && d.Disposed() {
		return false
	}
	return true
}

// ResponseListener binds an Event to a response invoked on every raise.
type ResponseListener struct {
	Event    *Event
	Response func(ctx context.Context)

	mu       sync.Mutex
	disposed bool
}

// Enable registers the listener with its event.
func (l *ResponseListener) Enable() error {
	if l.Event == nil {
		return errors.Annotate(errors.NotAssignedf("event"), errEnableListener)
	}
	l.Event.RegisterListener(l)
	return nil
}

// Disable deregisters the listener from its event.
func (l *ResponseListener) Disable() {
	if l.Event == nil {
		return
	}
	l.Event.DeregisterListener(l)
}

// Dispose marks the listener destroyed without deregistering it; the event
// drops it on the next raise.
func (l *ResponseListener) Dispose() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disposed = true
}

func (l *ResponseListener) Disposed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disposed
}

func (l *ResponseListener) EventRaised(ctx context.Context) {
	if l.Response != nil {
		l.Response(ctx)
	}
}
