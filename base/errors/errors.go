// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errors provides small helpers for the log-and-continue and
// must-succeed error handling patterns used throughout Lumen.
package errors

import (
	"fmt"
	"log/slog"
	"runtime"
)

// Log logs the given error if it is non-nil, with the caller's location,
// and returns it unchanged.
func Log(err error) error {
	if err != nil {
		slog.Error(err.Error(), "caller", callerInfo())
	}
	return err
}

// Log1 logs the given error if it is non-nil and returns the
// accompanying value. It supports the common (value, error) call pattern.
func Log1[T any](v T, err error) T {
	if err != nil {
		slog.Error(err.Error(), "caller", callerInfo())
	}
	return v
}

// Must panics if the given error is non-nil. It is reserved for
// errors that indicate a programming bug rather than a runtime condition.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 is a one-value version of [Must].
func Must1[T any](v T, err error) T {
	Must(err)
	return v
}

func callerInfo() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}
