package metrics

import (
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	RegistrationsTotal = "soa_registry_registrations_total"
	DuplicatesTotal    = "soa_registry_duplicates_total"
	LookupsTotal       = "soa_registry_lookups_total"
	DeletionsTotal     = "soa_registry_deletions_total"
	Instances          = "soa_registry_instances"
)

// Lookup results.
const (
	LookupHit        = "hit"
	LookupDiscovered = "discovered"
	LookupNotFound   = "not_found"
)

// Deletion results.
const (
	DeletionDeleted = "deleted"
	DeletionFailed  = "failed"
)

var errNewRegistryCollector = "metrics: new registry collector error"

// RegistryCollector holds the singleton registry series. A nil collector
// records nothing.
type RegistryCollector struct {
	registrations *prometheus.CounterVec
	duplicates    *prometheus.CounterVec
	lookups       *prometheus.CounterVec
	deletions     *prometheus.CounterVec
	instances     *prometheus.GaugeVec
}

func NewRegistryCollector(m *Metrics) (*RegistryCollector, error) {
	c := &RegistryCollector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: RegistrationsTotal,
			Help: "Instances accepted as the singleton of their type.",
		}, []string{"type"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: DuplicatesTotal,
			Help: "Duplicate instances rejected by the registry.",
		}, []string{"type", "mode"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: LookupsTotal,
			Help: "Instance lookups by result.",
		}, []string{"type", "result"}),
		deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: DeletionsTotal,
			Help: "Deferred duplicate asset deletions by result.",
		}, []string{"result"}),
		instances: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: Instances,
			Help: "Currently registered singleton instances.",
		}, []string{}),
	}
	counters := map[string]*prometheus.CounterVec{
		RegistrationsTotal: c.registrations,
		DuplicatesTotal:    c.duplicates,
		LookupsTotal:       c.lookups,
		DeletionsTotal:     c.deletions,
	}
	for name, counter := range counters {
		if err := m.RegisterCounter(name, counter); err != nil {
			return nil, errors.Annotate(err, errNewRegistryCollector)
		}
	}
	if err := m.RegisterGauge(Instances, c.instances); err != nil {
		return nil, errors.Annotate(err, errNewRegistryCollector)
	}
	// the registerer may have handed back collectors registered earlier
	c.registrations = m.GetCounter(RegistrationsTotal)
	c.duplicates = m.GetCounter(DuplicatesTotal)
	c.lookups = m.GetCounter(LookupsTotal)
	c.deletions = m.GetCounter(DeletionsTotal)
	c.instances = m.GetGauge(Instances)
	return c, nil
}

func (c *RegistryCollector) Registered(typeName string) {
	if c == nil {
		return
	}
	c.registrations.WithLabelValues(typeName).Inc()
}

func (c *RegistryCollector) Duplicate(typeName string, mode string) {
	if c == nil {
		return
	}
	c.duplicates.WithLabelValues(typeName, mode).Inc()
}

func (c *RegistryCollector) Lookup(typeName string, result string) {
	if c == nil {
		return
	}
	c.lookups.WithLabelValues(typeName, result).Inc()
}

func (c *RegistryCollector) Deletion(result string) {
	if c == nil {
		return
	}
	c.deletions.WithLabelValues(result).Inc()
}

func (c *RegistryCollector) SetInstances(n int) {
	if c == nil {
		return
	}
	c.instances.WithLabelValues().Set(float64(n))
}
