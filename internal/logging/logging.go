// Package logging provides the small leveled logger every other package
// in this module calls, offering the same dual log.Debugf/log.Infof/
// log.Debug(msg, "k", v, ...) call surface as go-ethereum's log15-backed
// wrapper. That dependency is private, same-org tooling not fetchable
// here, so this package reimplements the call surface directly on the
// standard library's log package rather than vendoring a fake.
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "crit":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "debug":
		return LevelDebug
	case "trace":
		return LevelTrace
	default:
		return LevelInfo
	}
}

var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
	std.SetFlags(log.LstdFlags | log.Lmicroseconds)
}

var std = log.New(os.Stderr, "", 0)

// SetLevel sets the process-wide minimum level logged.
func SetLevel(lvl Level) { current.Store(int32(lvl)) }

func enabled(lvl Level) bool { return lvl <= Level(current.Load()) }

func kvString(kv []interface{}) string {
	if len(kv) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		key := kv[i]
		var val interface{} = "MISSING"
		if i+1 < len(kv) {
			val = kv[i+1]
		}
		fmt.Fprintf(&b, "%v=%v", key, val)
	}
	return b.String()
}

func emit(tag string, lvl Level, msg string, kv []interface{}) {
	if !enabled(lvl) {
		return
	}
	if extra := kvString(kv); extra != "" {
		std.Printf("[%s] %s %s", tag, msg, extra)
		return
	}
	std.Printf("[%s] %s", tag, msg)
}

func Trace(msg string, kv ...interface{}) { emit("TRCE", LevelTrace, msg, kv) }
func Debug(msg string, kv ...interface{}) { emit("DBUG", LevelDebug, msg, kv) }
func Info(msg string, kv ...interface{})  { emit("INFO", LevelInfo, msg, kv) }
func Warn(msg string, kv ...interface{})  { emit("WARN", LevelWarn, msg, kv) }
func Error(msg string, kv ...interface{}) { emit("ERRO", LevelError, msg, kv) }

func Debugf(format string, args ...interface{}) {
	if !enabled(LevelDebug) {
		return
	}
	std.Printf("[DBUG] "+format, args...)
}

func Infof(format string, args ...interface{}) {
	if !enabled(LevelInfo) {
		return
	}
	std.Printf("[INFO] "+format, args...)
}

func Warnf(format string, args ...interface{}) {
	if !enabled(LevelWarn) {
		return
	}
	std.Printf("[WARN] "+format, args...)
}

func Errorf(format string, args ...interface{}) {
	if !enabled(LevelError) {
		return
	}
	std.Printf("[ERRO] "+format, args...)
}
