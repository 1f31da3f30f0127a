package soa

import (
	"context"
	"reflect"

	"github.com/juju/errors"

	"github.com/ltick/tick-soa/config"
	"github.com/ltick/tick-soa/metrics"
	"github.com/ltick/tick-soa/utility"
)

// Mode decides how duplicates are reconciled.
type Mode string

const (
	// ModeAuthoring deletes duplicate stored assets on a later tick.
	ModeAuthoring Mode = config.ModeAuthoring
	// ModeLive only reports duplicates.
	ModeLive Mode = config.ModeLive
)

func (m Mode) String() string {
	return string(m)
}

// DeletionTask is the deferred removal of a duplicate stored asset.
type DeletionTask struct {
	Key       reflect.Type
	Path      string
	Canonical interface{}
}

func (r *Registry) handleDuplicate(ctx context.Context, key reflect.Type, canonical interface{}, duplicate interface{}) {
	name := utility.TypeName(key)
	mode := r.mode()
	r.metrics.Duplicate(name, mode.String())
	r.report(ctx, Diagnostic{Kind: DiagnosticDuplicateDetected, Type: name, Mode: mode})

	if mode != ModeAuthoring {
		r.logger.Warning("soa: skipping deletion of asset during live mode (type %s)", name)
		return
	}
	path := r.deleter.AssetPath(duplicate)
	if path == "" {
		r.logger.Debug("soa: duplicate of %s is not a stored asset", name)
		return
	}
	if r.dispatcher == nil {
		r.logger.Warning("soa: no dispatcher, duplicate asset %s kept", path)
		return
	}
	task := DeletionTask{Key: key, Path: path, Canonical: canonical}
	r.dispatcher.Post(func(ctx context.Context) {
		r.deleteDuplicate(ctx, task)
	})
}

// deleteDuplicate runs on a later tick. Failures are reported and never
// reach the registry state.
func (r *Registry) deleteDuplicate(ctx context.Context, task DeletionTask) {
	name := utility.TypeName(task.Key)
	deleted := false
	defer func() {
		if p := recover(); p != nil {
			err := errors.Errorf("panic: %v", p)
			if deleted {
				r.logger.Error("soa: highlight after deleting duplicate asset %s failed: %s", task.Path, err.Error())
				return
			}
			r.deletionFailed(ctx, name, task.Path, err)
		}
	}()

	if err := r.deleter.DeleteAsset(ctx, task.Path); err != nil {
		r.deletionFailed(ctx, name, task.Path, err)
		return
	}
	deleted = true
	if err := r.deleter.Refresh(ctx); err != nil {
		r.logger.Warning("soa: refresh after deleting duplicate asset %s failed: %s", task.Path, err.Error())
	}
	r.metrics.Deletion(metrics.DeletionDeleted)
	r.report(ctx, Diagnostic{Kind: DiagnosticDuplicateDeleted, Type: name, Path: task.Path, Mode: ModeAuthoring})
	if r.highlighter != nil && !utility.IsNil(task.Canonical) {
		r.highlighter.Highlight(ctx, task.Canonical)
	}
}

func (r *Registry) deletionFailed(ctx context.Context, name string, path string, err error) {
	r.metrics.Deletion(metrics.DeletionFailed)
	r.report(ctx, Diagnostic{Kind: DiagnosticDuplicateDeletionFailed, Type: name, Path: path, Mode: ModeAuthoring, Err: err})
}
