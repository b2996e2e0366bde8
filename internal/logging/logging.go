// Package logging wraps the standard library logger with a level
// filter, the way the teacher's LogConfig.Level/--debug flag gates
// verbosity, but attached to a context handle instead of a package
// global so concurrent Reconciler batches don't race over one mutable
// level (spec.md §10.1).
package logging

import (
	"context"
	"fmt"
	"log"
)

// Level is one of the four verbosity tiers the config document and the
// LOG_LEVEL environment variable select between.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config/env string onto a Level, defaulting to Info
// for anything unrecognized.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is a tag-prefixed, level-filtered wrapper around the stdlib
// logger. The zero value logs everything at debug and above under no tag.
type Logger struct {
	tag   string
	level Level
}

// New builds a Logger that prefixes every line with "[tag] " and drops
// lines below level.
func New(tag string, level Level) *Logger {
	return &Logger{tag: tag, level: level}
}

// With returns a copy of l scoped to a different subsystem tag, keeping
// the same level — used when one operation fans out across subsystems
// (e.g. reconcile calling into normalize).
func (l *Logger) With(tag string) *Logger {
	return &Logger{tag: tag, level: l.level}
}

func (l *Logger) logf(level Level, label, format string, args ...any) {
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.tag != "" {
		log.Printf("[%s] %s%s", l.tag, label, msg)
		return
	}
	log.Printf("%s%s", label, msg)
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, "", format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, "", format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, "warning: ", format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, "error: ", format, args...) }

type contextKey struct{}

// WithContext attaches l to ctx, retrievable via FromContext.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext retrieves the Logger attached by WithContext, or a
// default info-level, untagged Logger if none was attached — callers
// never need a nil check.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return l
	}
	return New("", LevelInfo)
}
