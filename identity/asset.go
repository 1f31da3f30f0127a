package identity

import (
	"sync"

	"github.com/gofrs/uuid"
	"github.com/juju/errors"
)

var (
	errAssignGUID = "identity: assign guid error"
	errSetGUID    = "identity: set guid error"
)

// Asset carries a 128-bit identifier that is assigned lazily the first time
// the asset is validated with an empty one. Once assigned it never changes.
// Embed it in asset types that need a stable identity.
type Asset struct {
	mu   sync.RWMutex
	guid []byte
}

// OnValidate assigns a random GUID when none is set.
func (a *Asset) OnValidate() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.guid) != 0 {
		return nil
	}
	guid, err := uuid.NewV4()
	if err != nil {
		return errors.Annotate(err, errAssignGUID)
	}
	a.guid = guid.Bytes()
	return nil
}

// GUID returns the identifier, uuid.Nil while unassigned.
func (a *Asset) GUID() uuid.UUID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return uuid.FromBytesOrNil(a.guid)
}

// HasGUID reports whether an identifier has been assigned.
func (a *Asset) HasGUID() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.guid) != 0
}

// SetGUID restores a previously persisted identifier. It fails on an asset
// that already has one and on nil or malformed input.
func (a *Asset) SetGUID(guid string) error {
	parsed, err := uuid.FromString(guid)
	if err != nil {
		return errors.Annotate(errors.NewNotValid(err, guid), errSetGUID)
	}
	if parsed == uuid.Nil {
		return errors.Annotate(errors.NotValidf("nil guid"), errSetGUID)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.guid) != 0 {
		return errors.Annotate(errors.AlreadyExistsf("guid %s", uuid.FromBytesOrNil(a.guid)), errSetGUID)
	}
	a.guid = parsed.Bytes()
	return nil
}

// Identified is implemented by anything embedding Asset.
type Identified interface {
	GUID() uuid.UUID
}
