package event

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

type recordListener struct {
	name     string
	calls    *[]string
	disposed bool
}

func (l *recordListener) EventRaised(ctx context.Context) {
	*l.calls = append(*l.calls, l.name)
}

func (l *recordListener) Disposed() bool {
	return l.disposed
}

func TestRaiseReverseOrder(t *testing.T) {
	var calls []string
	e := New("level-loaded")
	e.RegisterListener(&recordListener{name: "a", calls: &calls})
	e.RegisterListener(&recordListener{name: "b", calls: &calls})
	e.RegisterListener(&recordListener{name: "c", calls: &calls})
	e.Raise(context.Background())
	assert.Equal(t, []string{"c", "b", "a"}, calls)
}

func TestRegisterListenerUnique(t *testing.T) {
	var calls []string
	e := New("unique")
	l := &recordListener{name: "a", calls: &calls}
	e.RegisterListener(l)
	e.RegisterListener(l)
	e.RegisterListener(nil)
	assert.Equal(t, 1, e.Len())
	e.Raise(context.Background())
	assert.Equal(t, []string{"a"}, calls)

	e.DeregisterListener(l)
	assert.Equal(t, 0, e.Len())
}

func TestRaisePrunesDisposed(t *testing.T) {
	var calls []string
	e := New("prune")
	alive := &recordListener{name: "alive", calls: &calls}
	dead := &recordListener{name: "dead", calls: &calls, disposed: true}
	e.RegisterListener(alive)
	e.RegisterListener(dead)
	e.Raise(context.Background())
	assert.Equal(t, []string{"alive"}, calls)
	assert.Equal(t, 1, e.Len())
}

func TestDeregisterDuringRaise(t *testing.T) {
	e := New("reentrant")
	count := 0
	var self *ResponseListener
	self = &ResponseListener{Event: e, Response: func(ctx context.Context) {
		count++
		self.Disable()
	}}
	assert.Nil(t, self.Enable())
	e.Raise(context.Background())
	e.Raise(context.Background())
	assert.Equal(t, 1, count)
}

func TestResponseListener(t *testing.T) {
	l := &ResponseListener{}
	err := l.Enable()
	assert.NotNil(t, err)
	assert.True(t, errors.IsNotAssigned(errors.Cause(err)))

	e := New("response")
	raised := 0
	l = &ResponseListener{Event: e, Response: func(ctx context.Context) { raised++ }}
	assert.Nil(t, l.Enable())
	e.Raise(context.Background())
	assert.Equal(t, 1, raised)

	l.Dispose()
	e.Raise(context.Background())
	assert.Equal(t, 1, raised)
	assert.Equal(t, 0, e.Len())
}
