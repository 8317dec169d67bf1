package logger

import (
	"github.com/ThreeDotsLabs/watermill"
)

// watermillAdapter routes watermill's logging through zap.
type watermillAdapter struct {
	l *Logger
}

// Watermill adapts l to watermill.LoggerAdapter.
func Watermill(l *Logger) watermill.LoggerAdapter {
	return &watermillAdapter{l: l.WithComponent("watermill")}
}

func (a *watermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.l.Errorw(msg, append(flatten(fields), "error", err)...)
}

func (a *watermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.l.Infow(msg, flatten(fields)...)
}

func (a *watermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.l.Debugw(msg, flatten(fields)...)
}

// Trace maps to debug; zap has no trace level.
func (a *watermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.l.Debugw(msg, flatten(fields)...)
}

func (a *watermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillAdapter{l: a.l.With(flatten(fields)...)}
}

func flatten(fields watermill.LogFields) []any {
	kv := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}
