package metrics

import (
	"sync"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	errCounterHasRegistered = "metrics: counter '%s' has registered"
	errRegisterCounter      = "metrics: register counter '%s'"
	errGaugeHasRegistered   = "metrics: gauge '%s' has registered"
	errRegisterGauge        = "metrics: register gauge '%s'"
)

// New returns a Metrics registering its collectors into registerer, the
// prometheus default registerer when nil. Collectors already registered
// in registerer under the same descriptor are reused, so several Metrics
// sharing one registerer report into the same series.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Metrics{
		registerer: registerer,
		counters:   make(map[string]*prometheus.CounterVec, 0),
		gauges:     make(map[string]*prometheus.GaugeVec, 0),
	}
}

type Metrics struct {
	registerer prometheus.Registerer

	mu       sync.RWMutex
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
}

func (i *Metrics) RegisterCounter(name string, cs *prometheus.CounterVec) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.counters[name]; ok {
		return errors.Annotatef(errors.AlreadyExistsf(errCounterHasRegistered, name), errRegisterCounter, name)
	}
	if err := i.registerer.Register(cs); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return errors.Annotatef(err, errRegisterCounter, name)
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return errors.Annotatef(err, errRegisterCounter, name)
		}
		cs = existing
	}
	i.counters[name] = cs
	return nil
}

func (i *Metrics) GetCounter(name string) *prometheus.CounterVec {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.counters[name]
}

func (i *Metrics) RegisterGauge(name string, cs *prometheus.GaugeVec) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.gauges[name]; ok {
		return errors.Annotatef(errors.AlreadyExistsf(errGaugeHasRegistered, name), errRegisterGauge, name)
	}
	if err := i.registerer.Register(cs); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return errors.Annotatef(err, errRegisterGauge, name)
		}
		existing, ok := are.ExistingCollector.(*prometheus.GaugeVec)
		if !ok {
			return errors.Annotatef(err, errRegisterGauge, name)
		}
		cs = existing
	}
	i.gauges[name] = cs
	return nil
}

func (i *Metrics) GetGauge(name string) *prometheus.GaugeVec {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.gauges[name]
}
