package store

import (
	"context"
	"sync"

	"github.com/juju/errors"

	"github.com/ltick/tick-soa/config"
)

type MemoryHandler struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryHandler() Handler {
	return &MemoryHandler{}
}

func (this *MemoryHandler) Initiate(ctx context.Context, settings *config.Settings) error {
	this.mu.Lock()
	defer this.mu.Unlock()
	this.records = make(map[string]Record)
	return nil
}

func (this *MemoryHandler) Save(ctx context.Context, record Record) error {
	this.mu.Lock()
	defer this.mu.Unlock()
	if this.records == nil {
		this.records = make(map[string]Record)
	}
	this.records[record.Path] = record
	return nil
}

func (this *MemoryHandler) Load(ctx context.Context, path string) (Record, error) {
	this.mu.RLock()
	defer this.mu.RUnlock()
	record, ok := this.records[path]
	if !ok {
		return Record{}, errors.NotFoundf("asset %q", path)
	}
	return record, nil
}

func (this *MemoryHandler) Delete(ctx context.Context, path string) error {
	this.mu.Lock()
	defer this.mu.Unlock()
	delete(this.records, path)
	return nil
}

func (this *MemoryHandler) List(ctx context.Context) ([]Record, error) {
	this.mu.RLock()
	records := make([]Record, 0, len(this.records))
	for _, record := range this.records {
		records = append(records, record)
	}
	this.mu.RUnlock()
	sortRecords(records)
	return records, nil
}

func (this *MemoryHandler) Close() error {
	return nil
}
