package soa

import (
	"context"
	"reflect"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ltick/tick-soa/config"
	"github.com/ltick/tick-soa/dispatch"
	"github.com/ltick/tick-soa/event"
	"github.com/ltick/tick-soa/logger"
	"github.com/ltick/tick-soa/metrics"
	"github.com/ltick/tick-soa/queue"
	"github.com/ltick/tick-soa/store"
)

var (
	errNew          = "soa: new engine error"
	errNewConfig    = "soa: new engine config error"
	errShutdown     = "soa: shutdown error"
	errLoadAsset    = "soa: load asset '%s' error"
	errDestroyAsset = "soa: destroy asset '%s' error"
	errForwardEvent = "soa: forward event '%s' error"
)

const (
	STATE_INITIATE = iota
	STATE_STARTUP
	STATE_SHUTDOWN
)

// Option customizes New. The zero value reads the SOA_* environment only.
type Option struct {
	DotenvFile string
	ConfigFile string
	// Values override every other configuration source.
	Values map[string]interface{}
	// Registerer receives the registry metrics, prometheus.DefaultRegisterer
	// when nil. Engines sharing a registerer share its series.
	Registerer prometheus.Registerer
	// Producer replaces the kafka producer built from SOA_KAFKA_BROKERS.
	Producer sarama.AsyncProducer
}

// Engine owns a registry and the collaborators built from configuration.
type Engine struct {
	Config     *config.Config
	Settings   *config.Settings
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
	Store      *store.Store
	Dispatcher *dispatch.Queue
	Registry   *Registry
	// Journal is nil unless kafka is configured.
	Journal *queue.Producer

	modeMu sync.RWMutex
	mode   Mode

	mu     sync.Mutex
	state  int
	cancel context.CancelFunc
	done   chan struct{}
}

func New(ctx context.Context, option *Option) (e *Engine, err error) {
	if option == nil {
		option = &Option{}
	}
	e = &Engine{state: STATE_INITIATE}
	e.Config, e.Settings, err = newConfig(ctx, option)
	if err != nil {
		return nil, errors.Annotate(err, errNew)
	}
	e.mode = Mode(e.Settings.Mode)

	logConfig := &logger.Config{
		Name:     defaultLoggerName,
		Type:     logger.TypeConsole.String(),
		Writer:   e.Settings.LogWriter,
		MaxLevel: e.Settings.LogLevel,
	}
	if e.Settings.LogFile != "" {
		logConfig.Type = logger.TypeFile.String()
		logConfig.FileName = e.Settings.LogFile
	}
	e.Logger, err = logger.New(logConfig)
	if err != nil {
		return nil, errors.Annotate(err, errNew)
	}
	defer func() {
		if err != nil {
			e.Logger.Close()
		}
	}()

	e.Metrics = metrics.New(option.Registerer)
	collector, err := metrics.NewRegistryCollector(e.Metrics)
	if err != nil {
		return nil, errors.Annotate(err, errNew)
	}

	handler, err := store.NewHandler(ctx, e.Settings)
	if err != nil {
		return nil, errors.Annotate(err, errNew)
	}
	e.Store = store.New(handler)
	e.Dispatcher = dispatch.New(e.Logger)

	var sinks []DiagnosticSink
	e.Journal, err = e.newJournal(ctx, option)
	if err != nil {
		e.Store.Close()
		return nil, errors.Annotate(err, errNew)
	}
	if e.Journal != nil {
		sinks = append(sinks, NewJournal(e.Journal, func(err error) {
			e.Logger.Error("soa: %s", err.Error())
		}))
	}

	e.Registry = NewRegistry(Options{
		Logger:      e.Logger,
		Discoverer:  e.Store,
		Deleter:     e.Store,
		Highlighter: e.Store,
		Dispatcher:  e.Dispatcher,
		Mode:        e.Mode,
		Metrics:     collector,
		Sinks:       sinks,
	})
	return e, nil
}

func newConfig(ctx context.Context, option *Option) (*config.Config, *config.Settings, error) {
	c := config.NewConfig()
	if err := c.Initiate(ctx); err != nil {
		return nil, nil, errors.Annotate(err, errNewConfig)
	}
	if err := c.SetOptions(config.DefaultOptions()); err != nil {
		return nil, nil, errors.Annotate(err, errNewConfig)
	}
	if err := c.LoadFromEnv(); err != nil {
		return nil, nil, errors.Annotate(err, errNewConfig)
	}
	if option.DotenvFile != "" {
		if err := c.LoadFromEnvFile(option.DotenvFile); err != nil {
			return nil, nil, errors.Annotate(err, errNewConfig)
		}
	}
	if option.ConfigFile != "" {
		if err := c.LoadFromConfigFile(option.ConfigFile); err != nil {
			return nil, nil, errors.Annotate(err, errNewConfig)
		}
	}
	for key, value := range option.Values {
		c.Set(key, value)
	}
	settings, err := c.LoadSettings()
	if err != nil {
		return nil, nil, errors.Annotate(err, errNewConfig)
	}
	return c, settings, nil
}

func (e *Engine) newJournal(ctx context.Context, option *Option) (*queue.Producer, error) {
	handle := func(ctx context.Context, topic string, message string, err error) {
		e.Logger.Error("soa: publish to '%s' failed: %s (message %s)", topic, err.Error(), message)
	}
	if option.Producer != nil {
		return queue.NewProducer(ctx, option.Producer, e.Settings.KafkaTopic, handle), nil
	}
	if e.Settings.KafkaBrokers == "" {
		return nil, nil
	}
	q, err := queue.New(ctx, e.Settings, queue.ProviderKafka)
	if err != nil {
		return nil, err
	}
	return q.NewProducer(ctx, e.Settings.KafkaTopic, handle)
}

// Mode returns the current duplicate reconciliation mode.
func (e *Engine) Mode() Mode {
	e.modeMu.RLock()
	defer e.modeMu.RUnlock()
	return e.mode
}

// SetMode switches between authoring and live execution.
func (e *Engine) SetMode(mode Mode) {
	e.modeMu.Lock()
	defer e.modeMu.Unlock()
	e.mode = mode
}

// Startup clears the registry and starts running deferred tasks.
func (e *Engine) Startup(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != STATE_INITIATE {
		return nil
	}
	e.Registry.ResetAll(ctx)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Dispatcher.Run(runCtx)
	}()
	e.cancel = cancel
	e.done = done
	e.Logger.Info("soa: startup (mode %s, store %s) %v", e.Mode(), e.Settings.StoreProvider, e.Settings.Map())
	e.state = STATE_STARTUP
	return nil
}

// Shutdown stops the dispatcher, runs the tasks still queued and closes the
// journal, the store and the logger.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != STATE_STARTUP {
		return nil
	}
	e.cancel()
	select {
	case <-e.done:
	case <-ctx.Done():
		return errors.Annotate(ctx.Err(), errShutdown)
	}
	e.Dispatcher.RunPending(ctx)
	var err error
	if e.Journal != nil {
		if closeErr := e.Journal.Close(); closeErr != nil {
			e.Logger.Warning("soa: close journal: %s", closeErr.Error())
		}
	}
	if closeErr := e.Store.Close(); closeErr != nil {
		err = errors.Annotate(closeErr, errShutdown)
	}
	e.Logger.Info("soa: shutdown")
	e.Logger.Close()
	e.state = STATE_SHUTDOWN
	return err
}

// LoadAsset stores obj at path and enables it as the singleton of its
// dynamic type.
func (e *Engine) LoadAsset(ctx context.Context, path string, obj interface{}) error {
	if err := e.Store.Load(ctx, path, obj); err != nil {
		return errors.Annotatef(err, errLoadAsset, path)
	}
	e.Registry.Register(ctx, reflect.TypeOf(obj), obj)
	return nil
}

// DestroyAsset disables obj and deletes its stored asset.
func (e *Engine) DestroyAsset(ctx context.Context, obj interface{}) error {
	path := e.Store.AssetPath(obj)
	if obj != nil {
		e.Registry.Deregister(ctx, reflect.TypeOf(obj), obj)
	}
	if path == "" {
		return nil
	}
	if err := e.Store.DeleteAsset(ctx, path); err != nil {
		return errors.Annotatef(err, errDestroyAsset, path)
	}
	return nil
}

// ForwardEvent journals every raise of ev to the kafka topic.
func (e *Engine) ForwardEvent(ev *event.Event) (*queue.EventForwarder, error) {
	if ev == nil {
		return nil, errors.NotValidf("nil event")
	}
	if e.Journal == nil {
		return nil, errors.Annotatef(errors.NotAssignedf("journal"), errForwardEvent, ev.Name)
	}
	forwarder := queue.NewEventForwarder(ev, e.Journal, func(err error) {
		e.Logger.Error("soa: %s", err.Error())
	})
	if err := forwarder.Enable(); err != nil {
		return nil, errors.Annotatef(err, errForwardEvent, ev.Name)
	}
	return forwarder, nil
}
