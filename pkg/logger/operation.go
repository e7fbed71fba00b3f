package logger

import (
	"context"
	"log/slog"
	"time"
)

// Operation tracks one logical unit of work from start to completion so
// its log entries share a name and a measured duration. The operation
// name travels on the context, so nested ErrorCtx and WithContext calls
// pick it up as well.
type Operation struct {
	logger  *Logger
	ctx     context.Context
	started time.Time
	attrs   []any
}

// StartOp logs the start of a named operation and returns a tracker for
// its outcome. Extra attributes repeat on every entry the tracker logs.
func (l *Logger) StartOp(ctx context.Context, name string, args ...any) *Operation {
	op := &Operation{
		logger:  l,
		ctx:     WithOperation(ctx, name),
		started: time.Now(),
		attrs:   args,
	}

	l.WithContext(op.ctx).Info("operation started", args...)
	return op
}

// Complete logs the operation as successful with its total duration.
// An empty msg falls back to "operation completed".
func (op *Operation) Complete(msg string, args ...any) {
	if msg == "" {
		msg = "operation completed"
	}
	op.logger.WithContext(op.ctx).Info(msg, op.outcome(nil, args)...)
}

// Fail logs the operation as failed. Structured errors contribute their
// code so failures can be filtered without parsing messages. An empty
// msg falls back to "operation failed".
func (op *Operation) Fail(err error, msg string, args ...any) {
	if msg == "" {
		msg = "operation failed"
	}
	op.logger.WithContext(op.ctx).Error(msg, op.outcome(err, args)...)
}

// Progress logs an intermediate step at debug level with the elapsed time
// so far.
func (op *Operation) Progress(msg string, args ...any) {
	attrs := append([]any{slog.Duration("elapsed_ms", time.Since(op.started))}, op.attrs...)
	attrs = append(attrs, args...)
	op.logger.WithContext(op.ctx).Debug(msg, attrs...)
}

func (op *Operation) outcome(err error, extra []any) []any {
	attrs := []any{slog.Duration("duration_ms", time.Since(op.started))}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		if derr, ok := err.(domainError); ok {
			attrs = append(attrs, slog.String("error_code", derr.Code()))
		}
	}
	attrs = append(attrs, op.attrs...)
	return append(attrs, extra...)
}
