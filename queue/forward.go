package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/juju/errors"

	"github.com/ltick/tick-soa/event"
)

var errForward = "queue: forward event '%s' error"

// Publisher is satisfied by *Producer.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// EventMessage is the payload forwarded for each raise.
type EventMessage struct {
	Event    string    `json:"event"`
	RaisedAt time.Time `json:"raised_at"`
}

// EventForwarder listens to an event and publishes every raise, keyed by
// the event name.
type EventForwarder struct {
	Event     *event.Event
	Publisher Publisher
	// OnError receives publish failures; they are dropped when nil.
	OnError func(err error)

	now func() time.Time
}

func NewEventForwarder(e *event.Event, publisher Publisher, onError func(err error)) *EventForwarder {
	return &EventForwarder{Event: e, Publisher: publisher, OnError: onError, now: time.Now}
}

func (f *EventForwarder) Enable() error {
	if f.Event == nil || f.Publisher == nil {
		return errors.Annotatef(errors.NotAssignedf("event or publisher"), errForward, "")
	}
	f.Event.RegisterListener(f)
	return nil
}

func (f *EventForwarder) Disable() {
	if f.Event != nil {
		f.Event.DeregisterListener(f)
	}
}

func (f *EventForwarder) EventRaised(ctx context.Context) {
	now := time.Now
	if f.now != nil {
		now = f.now
	}
	value, err := json.Marshal(EventMessage{Event: f.Event.Name, RaisedAt: now().UTC()})
	if err == nil {
		err = f.Publisher.Publish(ctx, f.Event.Name, value)
	}
	if err != nil && f.OnError != nil {
		f.OnError(errors.Annotatef(err, errForward, f.Event.Name))
	}
}
