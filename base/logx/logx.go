// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logx provides leveled logging for Lumen on top of [log/slog].
// The active level is controlled by [UserLevel], which defaults based
// on build tags: debug builds default to [slog.LevelDebug], release
// builds to [slog.LevelWarn], and all other builds to [slog.LevelInfo].
package logx

import (
	"context"
	"log/slog"
)

// UserLevel is the verbosity level selected for this process.
// Records below this level are dropped before reaching the handler.
var UserLevel = defaultUserLevel

// Enabled reports whether records at the given level are emitted.
func Enabled(level slog.Level) bool {
	return level >= UserLevel
}

func logAt(level slog.Level, msg string, args ...any) {
	if !Enabled(level) {
		return
	}
	slog.Default().Log(context.Background(), level, msg, args...)
}

// Debug logs the given message at [slog.LevelDebug].
func Debug(msg string, args ...any) {
	logAt(slog.LevelDebug, msg, args...)
}

// Info logs the given message at [slog.LevelInfo].
func Info(msg string, args ...any) {
	logAt(slog.LevelInfo, msg, args...)
}

// Warn logs the given message at [slog.LevelWarn].
func Warn(msg string, args ...any) {
	logAt(slog.LevelWarn, msg, args...)
}

// Error logs the given message at [slog.LevelError].
func Error(msg string, args ...any) {
	logAt(slog.LevelError, msg, args...)
}
