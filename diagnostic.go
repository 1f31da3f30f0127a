package soa

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/juju/errors"
)

var errJournal = "soa: journal diagnostic '%s' error"

type DiagnosticKind string

const (
	DiagnosticNotFound                DiagnosticKind = "not_found"
	DiagnosticDuplicateDetected       DiagnosticKind = "duplicate_detected"
	DiagnosticDuplicateDeleted        DiagnosticKind = "duplicate_deleted"
	DiagnosticDuplicateDeletionFailed DiagnosticKind = "duplicate_deletion_failed"
)

// Diagnostic is a registry event worth telling the user about.
type Diagnostic struct {
	Kind DiagnosticKind `json:"kind"`
	Type string         `json:"type"`
	Path string         `json:"path,omitempty"`
	Mode Mode           `json:"mode,omitempty"`
	Err  error          `json:"-"`
	Time time.Time      `json:"time"`
}

// Message is the log line of d.
func (d Diagnostic) Message() string {
	switch d.Kind {
	case DiagnosticNotFound:
		return fmt.Sprintf("no instance of %s found", d.Type)
	case DiagnosticDuplicateDetected:
		return fmt.Sprintf("duplicate instance of %s detected, keeping the registered instance", d.Type)
	case DiagnosticDuplicateDeleted:
		return fmt.Sprintf("duplicate asset %s deleted", d.Path)
	case DiagnosticDuplicateDeletionFailed:
		cause := "unknown error"
		if d.Err != nil {
			cause = d.Err.Error()
		}
		return fmt.Sprintf("deleting duplicate asset %s of %s failed: %s", d.Path, d.Type, cause)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Type)
}

func (d Diagnostic) MarshalJSON() ([]byte, error) {
	type diagnostic Diagnostic
	var cause string
	if d.Err != nil {
		cause = d.Err.Error()
	}
	return json.Marshal(struct {
		diagnostic
		Message string `json:"message"`
		Error   string `json:"error,omitempty"`
	}{diagnostic(d), d.Message(), cause})
}

// DiagnosticSink receives every reported diagnostic.
type DiagnosticSink interface {
	Report(ctx context.Context, d Diagnostic)
}

type DiagnosticSinkFunc func(ctx context.Context, d Diagnostic)

func (f DiagnosticSinkFunc) Report(ctx context.Context, d Diagnostic) {
	f(ctx, d)
}

func (r *Registry) report(ctx context.Context, d Diagnostic) {
	if d.Time.IsZero() {
		d.Time = time.Now()
	}
	switch d.Kind {
	case DiagnosticNotFound, DiagnosticDuplicateDeletionFailed:
		r.logger.Error("soa: %s", d.Message())
	case DiagnosticDuplicateDetected:
		r.logger.Warning("soa: %s", d.Message())
	default:
		r.logger.Info("soa: %s", d.Message())
	}
	for _, sink := range r.sinks {
		sink.Report(ctx, d)
	}
}

// Publisher sends keyed messages to a broker. *queue.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Journal publishes diagnostics as JSON keyed by type name.
type Journal struct {
	publisher Publisher
	onError   func(err error)
}

func NewJournal(publisher Publisher, onError func(err error)) *Journal {
	return &Journal{publisher: publisher, onError: onError}
}

func (j *Journal) Report(ctx context.Context, d Diagnostic) {
	value, err := json.Marshal(d)
	if err == nil {
		err = j.publisher.Publish(ctx, d.Type, value)
	}
	if err != nil && j.onError != nil {
		j.onError(errors.Annotatef(err, errJournal, d.Kind))
	}
}
