// Package store is the asset store: it indexes the asset objects loaded in
// the process by path and keeps their manifests in a pluggable handler
// (memory, file or redis).
package store

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/juju/errors"

	"github.com/ltick/tick-soa/identity"
	"github.com/ltick/tick-soa/utility"
)

var (
	errLoad    = "store: load asset '%s' error"
	errDelete  = "store: delete asset '%s' error"
	errRefresh = "store: refresh error"
	errFindAll = "store: find all '%s' error"
)

type validator interface {
	OnValidate() error
}

type Store struct {
	handler Handler

	mu          sync.RWMutex
	objects     map[string]interface{}
	paths       map[interface{}]string
	highlighted interface{}
}

func New(handler Handler) *Store {
	if handler == nil {
		handler = &MemoryHandler{}
	}
	return &Store{
		handler: handler,
		objects: make(map[string]interface{}),
		paths:   make(map[interface{}]string),
	}
}

func (s *Store) Handler() Handler {
	return s.handler
}

// Load makes obj a loaded asset stored at path and persists its manifest.
// obj must be a non-nil comparable value, typically a pointer.
func (s *Store) Load(ctx context.Context, path string, obj interface{}) error {
	p, err := normalizePath(path)
	if err != nil {
		return errors.Annotatef(err, errLoad, path)
	}
	if utility.IsNil(obj) || !utility.Comparable(obj) {
		return errors.Annotatef(errors.NotValidf("asset object %T", obj), errLoad, p)
	}
	if v, ok := obj.(validator); ok {
		if err := v.OnValidate(); err != nil {
			return errors.Annotatef(err, errLoad, p)
		}
	}
	record, err := newRecord(p, obj)
	if err != nil {
		return errors.Annotatef(err, errLoad, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.objects[p]; ok && !utility.SameInstance(existing, obj) {
		return errors.Annotatef(errors.AlreadyExistsf("asset at %q", p), errLoad, p)
	}
	if existingPath, ok := s.paths[obj]; ok && existingPath != p {
		return errors.Annotatef(errors.AlreadyExistsf("object loaded at %q", existingPath), errLoad, p)
	}
	if err := s.handler.Save(ctx, record); err != nil {
		return errors.Annotatef(err, errLoad, p)
	}
	s.objects[p] = obj
	s.paths[obj] = p
	return nil
}

func newRecord(path string, obj interface{}) (Record, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return Record{}, err
	}
	record := Record{
		Path:     path,
		Type:     utility.TypeName(reflect.TypeOf(obj)),
		Checksum: utility.Checksum(data),
		Data:     data,
	}
	if identified, ok := obj.(identity.Identified); ok {
		if guid := identified.GUID(); guid != uuid.Nil {
			record.GUID = guid.String()
		}
	}
	return record, nil
}

// FindAll returns the loaded objects whose dynamic type is t, or which
// implement t when t is an interface type, ordered by asset path.
func (s *Store) FindAll(ctx context.Context, t reflect.Type) ([]interface{}, error) {
	if t == nil {
		return nil, errors.Annotatef(errors.NotValidf("nil type"), errFindAll, utility.TypeName(t))
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Annotatef(err, errFindAll, utility.TypeName(t))
	}
	s.mu.RLock()
	paths := make([]string, 0)
	for path, obj := range s.objects {
		ot := reflect.TypeOf(obj)
		if ot == t || (t.Kind() == reflect.Interface && ot.Implements(t)) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	found := make([]interface{}, 0, len(paths))
	for _, path := range paths {
		found = append(found, s.objects[path])
	}
	s.mu.RUnlock()
	return found, nil
}

// AssetPath returns the path obj was loaded from, "" when it is not a
// stored asset.
func (s *Store) AssetPath(obj interface{}) string {
	if !utility.Comparable(obj) {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paths[obj]
}

// Record returns the persisted manifest at path.
func (s *Store) Record(ctx context.Context, path string) (Record, error) {
	p, err := normalizePath(path)
	if err != nil {
		return Record{}, err
	}
	return s.handler.Load(ctx, p)
}

func (s *Store) Records(ctx context.Context) ([]Record, error) {
	return s.handler.List(ctx)
}

// DeleteAsset removes the manifest at path and unloads its object. Deleting
// an unknown path is not an error.
func (s *Store) DeleteAsset(ctx context.Context, path string) error {
	p, err := normalizePath(path)
	if err != nil {
		return errors.Annotatef(err, errDelete, path)
	}
	if err := s.handler.Delete(ctx, p); err != nil {
		return errors.Annotatef(err, errDelete, p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unloadLocked(p)
	return nil
}

func (s *Store) unloadLocked(path string) {
	obj, ok := s.objects[path]
	if !ok {
		return
	}
	delete(s.objects, path)
	delete(s.paths, obj)
	if s.highlighted != nil && utility.SameInstance(s.highlighted, obj) {
		s.highlighted = nil
	}
}

// Refresh unloads every object whose manifest no longer exists in the
// handler.
func (s *Store) Refresh(ctx context.Context) error {
	records, err := s.handler.List(ctx)
	if err != nil {
		return errors.Annotate(err, errRefresh)
	}
	stored := make(map[string]struct{}, len(records))
	for _, record := range records {
		stored[record.Path] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for path := range s.objects {
		if _, ok := stored[path]; !ok {
			s.unloadLocked(path)
		}
	}
	return nil
}

// Highlight selects obj for the user.
func (s *Store) Highlight(ctx context.Context, obj interface{}) {
	if utility.IsNil(obj) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highlighted = obj
}

func (s *Store) Highlighted() interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highlighted
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *Store) Close() error {
	return s.handler.Close()
}
