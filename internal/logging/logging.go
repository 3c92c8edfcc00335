// Package logging wires the process-wide structured logger (spec.md
// component P), built the teacher's way: a *zap.SugaredLogger stashed on a
// context key, mirroring knative's logging.FromContext pattern used
// throughout the teacher's webhook.
package logging

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// New builds a logger for the named binary. dev selects the human-readable
// development encoder (matching the teacher's cmd/tester/main.go); release
// builds use a JSON production config so log lines stay machine-parseable.
func New(component string, dev bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar().With("component", component), nil
}

// WithLogger returns a new context carrying logger.
func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or a no-op fallback
// if none was set.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.SugaredLogger); ok && l != nil {
		return l
	}
	return zap.NewNop().Sugar()
}
