// Package queue publishes records to a message broker. The kafka provider
// journals registry diagnostics and forwards raised events.
package queue

import (
	"context"
	"sync"

	"github.com/juju/errors"

	"github.com/ltick/tick-soa/config"
)

var (
	errRegister    = "queue: register '%s' error"
	errUse         = "queue: use '%s' error"
	errNew         = "queue: new '%s' queue error"
	errNewProducer = "queue: new '%s' producer error"
)

const ProviderKafka = "kafka"

// ErrorHandle receives messages the broker failed to accept.
type ErrorHandle func(ctx context.Context, topic string, message string, err error)

// Handler creates producers for one broker provider.
type Handler interface {
	Initiate(ctx context.Context, settings *config.Settings) error
	NewProducer(ctx context.Context, topic string, handle ErrorHandle) (*Producer, error)
}

type queueHandler func() Handler

var (
	queueHandlersMutex sync.RWMutex
	queueHandlers      = make(map[string]queueHandler)
)

func Register(name string, handler queueHandler) error {
	if handler == nil {
		return errors.Annotatef(errors.NotValidf("nil handler"), errRegister, name)
	}
	queueHandlersMutex.Lock()
	defer queueHandlersMutex.Unlock()
	if _, ok := queueHandlers[name]; !ok {
		queueHandlers[name] = handler
	}
	return nil
}

func Use(name string) (queueHandler, error) {
	queueHandlersMutex.RLock()
	defer queueHandlersMutex.RUnlock()
	handler, ok := queueHandlers[name]
	if !ok {
		return nil, errors.NotFoundf("queue provider %q", name)
	}
	return handler, nil
}

type Queue struct {
	Provider string
	handler  Handler
}

// New initiates the provider (kafka when empty) from settings.
func New(ctx context.Context, settings *config.Settings, provider ...string) (*Queue, error) {
	name := ProviderKafka
	if len(provider) > 0 && provider[0] != "" {
		name = provider[0]
	}
	if err := Register(ProviderKafka, NewKafkaHandler); err != nil {
		return nil, errors.Annotatef(err, errNew, name)
	}
	newHandler, err := Use(name)
	if err != nil {
		return nil, errors.Annotatef(err, errUse, name)
	}
	q := &Queue{Provider: name, handler: newHandler()}
	if err := q.handler.Initiate(ctx, settings); err != nil {
		return nil, errors.Annotatef(err, errNew, name)
	}
	return q, nil
}

func (q *Queue) NewProducer(ctx context.Context, topic string, handle ErrorHandle) (*Producer, error) {
	if topic == "" {
		return nil, errors.Annotatef(errors.NotValidf("empty topic"), errNewProducer, q.Provider)
	}
	producer, err := q.handler.NewProducer(ctx, topic, handle)
	if err != nil {
		return nil, errors.Annotatef(err, errNewProducer, q.Provider)
	}
	return producer, nil
}
