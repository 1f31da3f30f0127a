package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/juju/errors"

	"github.com/ltick/tick-soa/config"
)

var (
	errNew      = "store: new '%s' store error"
	errRegister = "store: register '%s' error"
	errUse      = "store: use '%s' error"
)

// Record is the persisted manifest of an asset.
type Record struct {
	Path     string `json:"path"`
	Type     string `json:"type"`
	GUID     string `json:"guid,omitempty"`
	Checksum uint32 `json:"checksum"`
	Data     []byte `json:"data,omitempty"`
}

// Handler persists asset records.
type Handler interface {
	Initiate(ctx context.Context, settings *config.Settings) error
	Save(ctx context.Context, record Record) error
	// Load returns a NotFound error for an unknown path.
	Load(ctx context.Context, path string) (Record, error)
	// Delete tolerates unknown paths.
	Delete(ctx context.Context, path string) error
	List(ctx context.Context) ([]Record, error)
	Close() error
}

type storeHandler func() Handler

var (
	storeHandlersMutex sync.RWMutex
	storeHandlers      = make(map[string]storeHandler)
)

// Register makes a handler constructor available under name. The first
// registration of a name wins.
func Register(name string, handler storeHandler) error {
	if handler == nil {
		return errors.Annotatef(errors.NotValidf("nil handler"), errRegister, name)
	}
	storeHandlersMutex.Lock()
	defer storeHandlersMutex.Unlock()
	if _, ok := storeHandlers[name]; !ok {
		storeHandlers[name] = handler
	}
	return nil
}

func Use(name string) (storeHandler, error) {
	storeHandlersMutex.RLock()
	defer storeHandlersMutex.RUnlock()
	handler, ok := storeHandlers[name]
	if !ok {
		return nil, errors.NotFoundf("store provider %q", name)
	}
	return handler, nil
}

func registerBuiltin() error {
	builtin := map[string]storeHandler{
		config.StoreMemory: NewMemoryHandler,
		config.StoreFile:   NewFileHandler,
		config.StoreRedis:  NewRedisHandler,
	}
	for name, handler := range builtin {
		if err := Register(name, handler); err != nil {
			return err
		}
	}
	return nil
}

// NewHandler builds and initiates the handler configured by
// settings.StoreProvider.
func NewHandler(ctx context.Context, settings *config.Settings) (Handler, error) {
	if settings == nil {
		return nil, errors.Annotatef(errors.NotValidf("nil settings"), errNew, "")
	}
	provider := settings.StoreProvider
	if err := registerBuiltin(); err != nil {
		return nil, errors.Annotatef(err, errNew, provider)
	}
	newHandler, err := Use(provider)
	if err != nil {
		return nil, errors.Annotatef(err, errUse, provider)
	}
	handler := newHandler()
	if err := handler.Initiate(ctx, settings); err != nil {
		return nil, errors.Annotatef(err, errNew, provider)
	}
	return handler, nil
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Path < records[j].Path
	})
}

// normalizePath rejects empty and escaping asset paths.
func normalizePath(path string) (string, error) {
	p := strings.Trim(strings.Replace(path, "\\", "/", -1), "/")
	if p == "" {
		return "", errors.NotValidf("empty asset path")
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." || part == "." || part == "" {
			return "", errors.NotValidf("asset path %q", path)
		}
	}
	return p, nil
}
