package soa

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ltick/tick-soa/dispatch"
	"github.com/ltick/tick-soa/metrics"
)

type intAsset struct {
	Value int
}

type audioAsset struct {
	Volume int
}

type recordLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordLogger) log(level string, format string, a ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+"|"+fmt.Sprintf(format, a...))
}

func (l *recordLogger) Debug(format string, a ...interface{})   { l.log("debug", format, a...) }
func (l *recordLogger) Info(format string, a ...interface{})    { l.log("info", format, a...) }
func (l *recordLogger) Warning(format string, a ...interface{}) { l.log("warning", format, a...) }
func (l *recordLogger) Error(format string, a ...interface{})   { l.log("error", format, a...) }

func (l *recordLogger) contains(level string, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.HasPrefix(line, level+"|") && strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

type fakeDiscoverer struct {
	mu      sync.Mutex
	objects map[reflect.Type][]interface{}
	scans   int
	err     error
}

func (d *fakeDiscoverer) FindAll(ctx context.Context, key reflect.Type) ([]interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scans++
	if d.err != nil {
		return nil, d.err
	}
	return d.objects[key], nil
}

type fakeDeleter struct {
	paths     map[interface{}]string
	deleted   []string
	refreshed int
	err       error
	panic     bool
}

func (d *fakeDeleter) AssetPath(obj interface{}) string {
	return d.paths[obj]
}

func (d *fakeDeleter) DeleteAsset(ctx context.Context, path string) error {
	if d.panic {
		panic("asset database locked")
	}
	if d.err != nil {
		return d.err
	}
	d.deleted = append(d.deleted, path)
	return nil
}

func (d *fakeDeleter) Refresh(ctx context.Context) error {
	d.refreshed++
	return nil
}

type fakeHighlighter struct {
	highlighted []interface{}
}

func (h *fakeHighlighter) Highlight(ctx context.Context, obj interface{}) {
	h.highlighted = append(h.highlighted, obj)
}

type collectSink struct {
	mu          sync.Mutex
	diagnostics []Diagnostic
}

func (s *collectSink) Report(ctx context.Context, d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics = append(s.diagnostics, d)
}

func (s *collectSink) kinds() []DiagnosticKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]DiagnosticKind, 0, len(s.diagnostics))
	for _, d := range s.diagnostics {
		kinds = append(kinds, d.Kind)
	}
	return kinds
}

var intKey = reflect.TypeOf(&intAsset{})

func TestRegisterThenGetInstance(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(Options{})
	a := &intAsset{Value: 1}
	r.Register(ctx, intKey, a)

	got, err := r.GetInstance(ctx, intKey)
	require.Nil(t, err)
	assert.True(t, got == a)
	assert.True(t, r.Registered(intKey))
	assert.Equal(t, 1, r.Len())
}

func TestDuplicateDoesNotOverride(t *testing.T) {
	ctx := context.Background()
	log := &recordLogger{}
	sink := &collectSink{}
	r := NewRegistry(Options{Logger: log, Sinks: []DiagnosticSink{sink}})
	a, b := &intAsset{Value: 1}, &intAsset{Value: 1}
	r.Register(ctx, intKey, a)
	r.Register(ctx, intKey, b)

	got, err := r.GetInstance(ctx, intKey)
	require.Nil(t, err)
	assert.True(t, got == a)
	assert.Equal(t, []DiagnosticKind{DiagnosticDuplicateDetected}, sink.kinds())
	assert.True(t, log.contains("warning", "duplicate instance of *soa.intAsset"))
	assert.True(t, log.contains("warning", "skipping deletion of asset during live mode"))
}

func TestRegisterSameInstanceIsNoop(t *testing.T) {
	ctx := context.Background()
	sink := &collectSink{}
	r := NewRegistry(Options{Sinks: []DiagnosticSink{sink}})
	a := &intAsset{}
	r.Register(ctx, intKey, a)
	r.Register(ctx, intKey, a)
	assert.Empty(t, sink.kinds())
	assert.Equal(t, 1, r.Len())
}

func TestRegisterNilIgnored(t *testing.T) {
	ctx := context.Background()
	log := &recordLogger{}
	r := NewRegistry(Options{Logger: log})
	r.Register(ctx, nil, &intAsset{})
	r.Register(ctx, intKey, nil)
	r.Register(ctx, intKey, (*intAsset)(nil))
	assert.Equal(t, 0, r.Len())
	assert.True(t, log.contains("warning", "ignore register"))
}

func TestDeregister(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(Options{})
	a, b := &intAsset{}, &intAsset{}
	r.Register(ctx, intKey, a)

	r.Deregister(ctx, intKey, b)
	got, err := r.GetInstance(ctx, intKey)
	require.Nil(t, err)
	assert.True(t, got == a)

	r.Deregister(ctx, intKey, a)
	got, err = r.GetInstance(ctx, intKey)
	assert.Nil(t, got)
	assert.True(t, errors.IsNotFound(err))
	assert.False(t, r.Registered(intKey))

	r.Deregister(ctx, nil, a)
}

func TestResetAll(t *testing.T) {
	ctx := context.Background()
	discoverer := &fakeDiscoverer{}
	r := NewRegistry(Options{Discoverer: discoverer})
	audioKey := reflect.TypeOf(&audioAsset{})
	r.Register(ctx, intKey, &intAsset{})
	r.Register(ctx, audioKey, &audioAsset{})
	assert.Equal(t, []reflect.Type{audioKey, intKey}, r.Keys())

	r.ResetAll(ctx)
	assert.Equal(t, 0, r.Len())
	_, err := r.GetInstance(ctx, intKey)
	assert.True(t, errors.IsNotFound(err))
	_, err = r.GetInstance(ctx, audioKey)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, 2, discoverer.scans)
}

func TestDiscoveryFallback(t *testing.T) {
	ctx := context.Background()
	found := &intAsset{Value: 9}
	discoverer := &fakeDiscoverer{objects: map[reflect.Type][]interface{}{
		intKey: {nil, found, &intAsset{}},
	}}
	r := NewRegistry(Options{Discoverer: discoverer})

	got, err := r.GetInstance(ctx, intKey)
	require.Nil(t, err)
	assert.True(t, got == found)
	got, err = r.GetInstance(ctx, intKey)
	require.Nil(t, err)
	assert.True(t, got == found)
	assert.Equal(t, 1, discoverer.scans)
	assert.True(t, r.Registered(intKey))
}

func TestNotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	log := &recordLogger{}
	sink := &collectSink{}
	discoverer := &fakeDiscoverer{objects: map[reflect.Type][]interface{}{}}
	r := NewRegistry(Options{Logger: log, Discoverer: discoverer, Sinks: []DiagnosticSink{sink}})

	for i := 0; i < 3; i++ {
		got, err := r.GetInstance(ctx, intKey)
		assert.Nil(t, got)
		assert.True(t, errors.IsNotFound(err))
	}
	assert.Equal(t, 3, discoverer.scans)
	assert.False(t, r.Registered(intKey))
	assert.True(t, log.contains("error", "no instance of *soa.intAsset found"))
	assert.Equal(t, []DiagnosticKind{DiagnosticNotFound, DiagnosticNotFound, DiagnosticNotFound}, sink.kinds())

	late := &intAsset{}
	discoverer.objects[intKey] = []interface{}{late}
	got, err := r.GetInstance(ctx, intKey)
	require.Nil(t, err)
	assert.True(t, got == late)
}

func TestDiscoveryErrorIsNotFound(t *testing.T) {
	ctx := context.Background()
	log := &recordLogger{}
	r := NewRegistry(Options{Logger: log, Discoverer: &fakeDiscoverer{err: errors.New("index unavailable")}})
	_, err := r.GetInstance(ctx, intKey)
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, log.contains("error", "index unavailable"))

	_, err = r.GetInstance(ctx, nil)
	assert.True(t, errors.IsNotFound(err))
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	log := &recordLogger{}
	discoverer := &fakeDiscoverer{objects: map[reflect.Type][]interface{}{}}
	r := NewRegistry(Options{Logger: log, Discoverer: discoverer})
	obj1, obj2 := &intAsset{Value: 1}, &intAsset{Value: 2}

	r.Register(ctx, intKey, obj1)
	got, _ := r.GetInstance(ctx, intKey)
	assert.True(t, got == obj1)

	r.Register(ctx, intKey, obj2)
	got, _ = r.GetInstance(ctx, intKey)
	assert.True(t, got == obj1)
	assert.True(t, log.contains("warning", "duplicate instance"))

	r.Deregister(ctx, intKey, obj1)
	_, err := r.GetInstance(ctx, intKey)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, 1, discoverer.scans)

	discoverer.objects[intKey] = []interface{}{obj2}
	got, err = r.GetInstance(ctx, intKey)
	require.Nil(t, err)
	assert.True(t, got == obj2)
}

func TestNonComparableInstances(t *testing.T) {
	ctx := context.Background()
	key := reflect.TypeOf([]int{})
	sink := &collectSink{}
	r := NewRegistry(Options{Sinks: []DiagnosticSink{sink}})
	first := []int{1}
	r.Register(ctx, key, first)
	r.Register(ctx, key, first)
	assert.Equal(t, []DiagnosticKind{DiagnosticDuplicateDetected}, sink.kinds())

	r.Deregister(ctx, key, first)
	assert.True(t, r.Registered(key))
}

func TestInstancesHoldingSlices(t *testing.T) {
	ctx := context.Background()
	type holder struct{ P interface{} }
	key := reflect.TypeOf(holder{})
	sink := &collectSink{}
	r := NewRegistry(Options{Sinks: []DiagnosticSink{sink}})
	instance := holder{P: []int{1}}
	assert.NotPanics(t, func() {
		r.Register(ctx, key, instance)
		r.Register(ctx, key, instance)
		r.Deregister(ctx, key, instance)
	})
	assert.Equal(t, []DiagnosticKind{DiagnosticDuplicateDetected}, sink.kinds())
	assert.True(t, r.Registered(key))
}

func TestConcurrentRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(Options{Discoverer: &fakeDiscoverer{}})
	const workers = 32
	const rounds = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				own := &intAsset{Value: i}
				r.Register(ctx, intKey, own)
				if got, err := r.GetInstance(ctx, intKey); err == nil {
					_, ok := got.(*intAsset)
					assert.True(t, ok)
				}
				r.Deregister(ctx, intKey, own)
			}
		}()
	}
	wg.Wait()

	// every successful register was followed by its owner's deregister
	assert.False(t, r.Registered(intKey))
	assert.Equal(t, 0, r.Len())

	last := &intAsset{Value: -1}
	r.Register(ctx, intKey, last)
	got, err := r.GetInstance(ctx, intKey)
	require.Nil(t, err)
	assert.True(t, got == last)
}

func TestRegistryMetrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	collector, err := metrics.NewRegistryCollector(m)
	require.Nil(t, err)
	discoverer := &fakeDiscoverer{objects: map[reflect.Type][]interface{}{}}
	r := NewRegistry(Options{Discoverer: discoverer, Metrics: collector})
	a := &intAsset{}

	r.Register(ctx, intKey, a)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GetGauge(metrics.Instances).WithLabelValues()))
	r.Register(ctx, intKey, &intAsset{})
	r.GetInstance(ctx, intKey)
	r.Deregister(ctx, intKey, a)
	r.GetInstance(ctx, intKey)
	discoverer.objects[intKey] = []interface{}{a}
	r.GetInstance(ctx, intKey)

	name := "*soa.intAsset"
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GetCounter(metrics.RegistrationsTotal).WithLabelValues(name)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GetCounter(metrics.DuplicatesTotal).WithLabelValues(name, "live")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GetCounter(metrics.LookupsTotal).WithLabelValues(name, metrics.LookupHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GetCounter(metrics.LookupsTotal).WithLabelValues(name, metrics.LookupNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GetCounter(metrics.LookupsTotal).WithLabelValues(name, metrics.LookupDiscovered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GetGauge(metrics.Instances).WithLabelValues()))
}

func newAuthoringRegistry(deleter AssetDeleter, highlighter Highlighter) (*Registry, *recordLogger, *collectSink, *dispatch.Queue) {
	log := &recordLogger{}
	sink := &collectSink{}
	queue := dispatch.New(log)
	r := NewRegistry(Options{
		Logger:      log,
		Deleter:     deleter,
		Highlighter: highlighter,
		Dispatcher:  queue,
		Mode:        func() Mode { return ModeAuthoring },
		Sinks:       []DiagnosticSink{sink},
	})
	return r, log, sink, queue
}

func TestAuthoringDeletesDuplicateLater(t *testing.T) {
	ctx := context.Background()
	a, b := &intAsset{}, &intAsset{}
	deleter := &fakeDeleter{paths: map[interface{}]string{a: "singletons/a.asset", b: "singletons/b.asset"}}
	highlighter := &fakeHighlighter{}
	r, log, sink, queue := newAuthoringRegistry(deleter, highlighter)

	r.Register(ctx, intKey, a)
	r.Register(ctx, intKey, b)
	assert.Empty(t, deleter.deleted)
	assert.Equal(t, 1, queue.Len())

	assert.Equal(t, 1, queue.RunPending(ctx))
	assert.Equal(t, []string{"singletons/b.asset"}, deleter.deleted)
	assert.Equal(t, 1, deleter.refreshed)
	assert.Equal(t, []interface{}{a}, highlighter.highlighted)
	assert.True(t, log.contains("info", "duplicate asset singletons/b.asset deleted"))
	assert.Equal(t, []DiagnosticKind{DiagnosticDuplicateDetected, DiagnosticDuplicateDeleted}, sink.kinds())

	got, err := r.GetInstance(ctx, intKey)
	require.Nil(t, err)
	assert.True(t, got == a)
}

func TestAuthoringDuplicateWithoutPath(t *testing.T) {
	ctx := context.Background()
	r, _, _, queue := newAuthoringRegistry(&fakeDeleter{}, nil)
	r.Register(ctx, intKey, &intAsset{})
	r.Register(ctx, intKey, &intAsset{})
	assert.Equal(t, 0, queue.Len())
}

func TestLiveModeSkipsDeletion(t *testing.T) {
	ctx := context.Background()
	a, b := &intAsset{}, &intAsset{}
	deleter := &fakeDeleter{paths: map[interface{}]string{b: "b.asset"}}
	log := &recordLogger{}
	queue := dispatch.New(log)
	r := NewRegistry(Options{Logger: log, Deleter: deleter, Dispatcher: queue, Mode: func() Mode { return ModeLive }})
	r.Register(ctx, intKey, a)
	r.Register(ctx, intKey, b)
	assert.Equal(t, 0, queue.Len())
	assert.True(t, log.contains("warning", "skipping deletion of asset during live mode"))
}

func TestDeletionFailure(t *testing.T) {
	ctx := context.Background()
	a, b := &intAsset{}, &intAsset{}
	deleter := &fakeDeleter{paths: map[interface{}]string{b: "b.asset"}, err: errors.New("read-only asset")}
	highlighter := &fakeHighlighter{}
	r, log, sink, queue := newAuthoringRegistry(deleter, highlighter)
	r.Register(ctx, intKey, a)
	r.Register(ctx, intKey, b)
	queue.RunPending(ctx)

	assert.Empty(t, highlighter.highlighted)
	assert.True(t, log.contains("error", "read-only asset"))
	assert.Equal(t, []DiagnosticKind{DiagnosticDuplicateDetected, DiagnosticDuplicateDeletionFailed}, sink.kinds())
	got, _ := r.GetInstance(ctx, intKey)
	assert.True(t, got == a)
}

func TestDeletionPanicIsContained(t *testing.T) {
	ctx := context.Background()
	a, b := &intAsset{}, &intAsset{}
	deleter := &fakeDeleter{paths: map[interface{}]string{b: "b.asset"}, panic: true}
	r, log, sink, queue := newAuthoringRegistry(deleter, nil)
	r.Register(ctx, intKey, a)
	assert.NotPanics(t, func() {
		r.Register(ctx, intKey, b)
		queue.RunPending(ctx)
	})
	assert.True(t, log.contains("error", "asset database locked"))
	assert.Equal(t, []DiagnosticKind{DiagnosticDuplicateDetected, DiagnosticDuplicateDeletionFailed}, sink.kinds())
	assert.Equal(t, 1, r.Len())
}

func TestNopDeleter(t *testing.T) {
	var deleter AssetDeleter = NopDeleter{}
	assert.Equal(t, "", deleter.AssetPath(&intAsset{}))
	assert.Nil(t, deleter.DeleteAsset(context.Background(), "x.asset"))
	assert.Nil(t, deleter.Refresh(context.Background()))
}
