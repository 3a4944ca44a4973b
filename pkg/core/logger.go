package core

import (
	"context"
	"fmt"
	"log/slog"
)

// Logger interface for integrator debug tracing
type Logger interface {
	Printf(format string, args ...interface{})
}

// SlogLogger adapts log/slog to the Logger seam the integrators use
type SlogLogger struct {
	Level slog.Level
}

// NewSlogLogger creates a Logger backed by the default slog handler
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{Level: slog.LevelDebug}
}

func (l *SlogLogger) Printf(format string, args ...interface{}) {
	slog.Log(context.Background(), l.Level, fmt.Sprintf(format, args...))
}
