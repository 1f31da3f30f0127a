// Package soa keeps at most one live instance per type: the typed singleton
// registry, its duplicate reconciliation policy and the engine that wires
// the registry to its collaborators.
package soa

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/juju/errors"

	"github.com/ltick/tick-soa/dispatch"
	"github.com/ltick/tick-soa/metrics"
	"github.com/ltick/tick-soa/utility"
)

// Logger is the leveled logger the registry reports through.
// *logger.Logger satisfies it.
type Logger interface {
	Debug(format string, a ...interface{})
	Info(format string, a ...interface{})
	Warning(format string, a ...interface{})
	Error(format string, a ...interface{})
}

// Discoverer scans the loaded objects for instances of a type.
type Discoverer interface {
	FindAll(ctx context.Context, key reflect.Type) ([]interface{}, error)
}

// AssetDeleter removes stored assets. It is only consulted in authoring
// mode.
type AssetDeleter interface {
	// AssetPath returns "" when obj is not a stored asset.
	AssetPath(obj interface{}) string
	DeleteAsset(ctx context.Context, path string) error
	Refresh(ctx context.Context) error
}

// Highlighter selects an object for the user.
type Highlighter interface {
	Highlight(ctx context.Context, obj interface{})
}

// Dispatcher runs tasks on a later tick. *dispatch.Queue satisfies it.
type Dispatcher interface {
	Post(task dispatch.Task)
}

// NopDeleter is the AssetDeleter of builds without an asset store: nothing
// is a stored asset, so nothing is ever deleted.
type NopDeleter struct{}

func (NopDeleter) AssetPath(obj interface{}) string                   { return "" }
func (NopDeleter) DeleteAsset(ctx context.Context, path string) error { return nil }
func (NopDeleter) Refresh(ctx context.Context) error                  { return nil }

type nopLogger struct{}

func (nopLogger) Debug(format string, a ...interface{})   {}
func (nopLogger) Info(format string, a ...interface{})    {}
func (nopLogger) Warning(format string, a ...interface{}) {}
func (nopLogger) Error(format string, a ...interface{})   {}

// Options are the collaborators of a Registry. Every field is optional.
type Options struct {
	Logger      Logger
	Discoverer  Discoverer
	Deleter     AssetDeleter
	Highlighter Highlighter
	Dispatcher  Dispatcher
	// Mode is consulted on every duplicate; nil means ModeLive.
	Mode    func() Mode
	Metrics *metrics.RegistryCollector
	Sinks   []DiagnosticSink
}

// Registry maps a type key to its single registered instance. It is safe
// for concurrent use; every operation, discovery scan included, runs under
// one mutex.
type Registry struct {
	mu        sync.Mutex
	instances map[reflect.Type]interface{}

	logger      Logger
	discoverer  Discoverer
	deleter     AssetDeleter
	highlighter Highlighter
	dispatcher  Dispatcher
	mode        func() Mode
	metrics     *metrics.RegistryCollector
	sinks       []DiagnosticSink
}

func NewRegistry(options Options) *Registry {
	r := &Registry{
		instances:   make(map[reflect.Type]interface{}),
		logger:      options.Logger,
		discoverer:  options.Discoverer,
		deleter:     options.Deleter,
		highlighter: options.Highlighter,
		dispatcher:  options.Dispatcher,
		mode:        options.Mode,
		metrics:     options.Metrics,
		sinks:       options.Sinks,
	}
	if r.logger == nil {
		r.logger = nopLogger{}
	}
	if r.deleter == nil {
		r.deleter = NopDeleter{}
	}
	if r.mode == nil {
		r.mode = func() Mode { return ModeLive }
	}
	return r
}

// GetInstance returns the registered instance of key. When none is
// registered the discoverer is asked and its first candidate becomes the
// registered instance. When that finds nothing either, a not-found
// diagnostic is reported and the error satisfies errors.IsNotFound.
// Absence is not remembered: the next call scans again.
func (r *Registry) GetInstance(ctx context.Context, key reflect.Type) (interface{}, error) {
	name := utility.TypeName(key)
	if key == nil {
		r.report(ctx, Diagnostic{Kind: DiagnosticNotFound, Type: name})
		return nil, errors.NotFoundf("instance of %s", name)
	}

	r.mu.Lock()
	if instance, ok := r.instances[key]; ok {
		r.mu.Unlock()
		r.metrics.Lookup(name, metrics.LookupHit)
		return instance, nil
	}
	instance := r.discoverLocked(ctx, key)
	if instance != nil {
		r.instances[key] = instance
		r.metrics.SetInstances(len(r.instances))
	}
	r.mu.Unlock()

	if instance != nil {
		r.metrics.Lookup(name, metrics.LookupDiscovered)
		r.logger.Debug("soa: discovered instance of %s", name)
		return instance, nil
	}
	r.metrics.Lookup(name, metrics.LookupNotFound)
	r.report(ctx, Diagnostic{Kind: DiagnosticNotFound, Type: name})
	return nil, errors.NotFoundf("instance of %s", name)
}

func (r *Registry) discoverLocked(ctx context.Context, key reflect.Type) interface{} {
	if r.discoverer == nil {
		return nil
	}
	candidates, err := r.discoverer.FindAll(ctx, key)
	if err != nil {
		r.logger.Error("soa: discovery of %s failed: %s", utility.TypeName(key), err.Error())
		return nil
	}
	for _, candidate := range candidates {
		if !utility.IsNil(candidate) {
			return candidate
		}
	}
	return nil
}

// Register makes instance the registered instance of key when the slot is
// empty. Registering the held instance again is a no-op. Any other instance
// is a duplicate: it is not registered and the duplicate policy runs.
func (r *Registry) Register(ctx context.Context, key reflect.Type, instance interface{}) {
	name := utility.TypeName(key)
	if key == nil || utility.IsNil(instance) {
		r.logger.Warning("soa: ignore register of nil key or instance (type %s)", name)
		return
	}

	r.mu.Lock()
	existing, ok := r.instances[key]
	if !ok {
		r.instances[key] = instance
		r.metrics.SetInstances(len(r.instances))
		r.mu.Unlock()
		r.metrics.Registered(name)
		r.logger.Debug("soa: registered instance of %s", name)
		return
	}
	r.mu.Unlock()

	if utility.SameInstance(existing, instance) {
		return
	}
	r.handleDuplicate(ctx, key, existing, instance)
}

// Deregister empties the slot of key if instance is the registered one.
func (r *Registry) Deregister(ctx context.Context, key reflect.Type, instance interface{}) {
	if key == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.instances[key]
	if !ok || !utility.SameInstance(existing, instance) {
		return
	}
	delete(r.instances, key)
	r.metrics.SetInstances(len(r.instances))
	r.logger.Debug("soa: deregistered instance of %s", utility.TypeName(key))
}

// ResetAll empties every slot.
func (r *Registry) ResetAll(ctx context.Context) {
	r.mu.Lock()
	cleared := len(r.instances)
	r.instances = make(map[reflect.Type]interface{})
	r.metrics.SetInstances(0)
	r.mu.Unlock()
	r.logger.Debug("soa: reset registry, %d instances cleared", cleared)
}

// Registered reports whether key has a registered instance. It never
// triggers discovery.
func (r *Registry) Registered(key reflect.Type) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.instances[key]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// Keys returns the registered type keys ordered by type name.
func (r *Registry) Keys() []reflect.Type {
	r.mu.Lock()
	keys := make([]reflect.Type, 0, len(r.instances))
	for key := range r.instances {
		keys = append(keys, key)
	}
	r.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool {
		return utility.TypeName(keys[i]) < utility.TypeName(keys[j])
	})
	return keys
}
