package utility

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name string
}

type unhashable struct {
	Items []string
}

type payload struct {
	Value interface{}
}

func TestSameInstance(t *testing.T) {
	a := &sample{Name: "a"}
	b := &sample{Name: "a"}
	assert.True(t, SameInstance(a, a))
	assert.False(t, SameInstance(a, b))
	assert.True(t, SameInstance(nil, nil))
	assert.False(t, SameInstance(a, nil))
	assert.True(t, SameInstance(sample{Name: "x"}, sample{Name: "x"}))
	assert.False(t, SameInstance(unhashable{}, unhashable{}))
	assert.False(t, SameInstance(1, int64(1)))
}

func TestSameInstanceDynamicFields(t *testing.T) {
	a := payload{Value: []int{1}}
	assert.NotPanics(t, func() {
		assert.False(t, SameInstance(a, a))
		assert.False(t, SameInstance([1]payload{a}, [1]payload{a}))
	})
	assert.False(t, Comparable(a))
	assert.False(t, Comparable([1]payload{a}))
	assert.False(t, Comparable(unhashable{}))
	assert.False(t, Comparable(nil))

	assert.True(t, Comparable(payload{}))
	assert.True(t, Comparable(payload{Value: "x"}))
	assert.True(t, Comparable(&payload{Value: []int{1}}))
	assert.True(t, SameInstance(payload{Value: 1}, payload{Value: 1}))
	assert.False(t, SameInstance(payload{Value: 1}, payload{Value: 2}))
}

func TestIsNil(t *testing.T) {
	var p *sample
	assert.True(t, IsNil(nil))
	assert.True(t, IsNil(p))
	assert.False(t, IsNil(&sample{}))
	assert.False(t, IsNil(0))
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "<nil>", TypeName(nil))
	assert.Equal(t, "*utility.sample", TypeName(reflect.TypeOf(&sample{})))
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, uint32(0), Checksum(nil))
	assert.Equal(t, uint32(0x352441c2), Checksum([]byte("abc")))
	assert.Equal(t, Checksum([]byte("soa")), Checksum([]byte("soa")))
}

func TestSplitTrim(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitTrim(" a:9092, ,b:9092 ", ","))
	assert.Equal(t, []string{}, SplitTrim("", ","))
}
