package soa

import (
	"context"
	"reflect"

	"github.com/juju/errors"

	"github.com/ltick/tick-soa/utility"
)

// TypeKeyOf returns the registry key of T.
func TypeKeyOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Instance is the typed GetInstance. A registered value that is not a T is
// reported as not found.
func Instance[T any](ctx context.Context, r *Registry) (T, error) {
	var zero T
	key := TypeKeyOf[T]()
	instance, err := r.GetInstance(ctx, key)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		r.report(ctx, Diagnostic{Kind: DiagnosticNotFound, Type: utility.TypeName(key)})
		return zero, errors.NotFoundf("instance of %s (registered %T)", utility.TypeName(key), instance)
	}
	return typed, nil
}

// OnEnable registers instance as the singleton of T, running the duplicate
// policy when another instance already holds the slot.
func OnEnable[T any](ctx context.Context, r *Registry, instance T) {
	r.Register(ctx, TypeKeyOf[T](), instance)
}

// OnDestroy releases the slot of T if instance holds it.
func OnDestroy[T any](ctx context.Context, r *Registry, instance T) {
	r.Deregister(ctx, TypeKeyOf[T](), instance)
}
