// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loop

import (
	"os"
	"strconv"

	"github.com/fsnotify/fsnotify"
	"github.com/lumen-ui/lumen/base/logx"
	"github.com/pelletier/go-toml/v2"
)

// Settings are the tunable parameters of the render loop. They are
// resolved in order: defaults, then an optional TOML file, then the
// environment.
type Settings struct {

	// ExhaustDelay is the coalescing interval in milliseconds between
	// an update request and the ensuing polish and sync, applied while
	// animations are running. Overridden by LUMEN_EXHAUST_DELAY.
	ExhaustDelay int `toml:"exhaust-delay"`

	// WindowTiming enables per-frame timing logs on both threads.
	// Enabled by the presence of LUMEN_WINDOW_TIMING.
	WindowTiming bool `toml:"window-timing"`

	// RefreshRate overrides the screen's reported refresh rate (Hz)
	// for the off-screen animation timer when greater than zero.
	RefreshRate float32 `toml:"refresh-rate"`
}

// DefaultSettings returns the default settings with environment
// overrides applied.
func DefaultSettings() Settings {
	s := Settings{ExhaustDelay: 5}
	s.applyEnv()
	return s
}

// OpenSettings reads settings from the given TOML file, starting from
// the defaults and applying environment overrides last. A missing file
// is not an error; it just yields [DefaultSettings].
func OpenSettings(filename string) (Settings, error) {
	s := Settings{ExhaustDelay: 5}
	b, err := os.ReadFile(filename)
	if err == nil {
		err = toml.Unmarshal(b, &s)
	} else if os.IsNotExist(err) {
		err = nil
	}
	s.applyEnv()
	return s, err
}

func (s *Settings) applyEnv() {
	if v := os.Getenv("LUMEN_EXHAUST_DELAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.ExhaustDelay = n
		}
	}
	if os.Getenv("LUMEN_WINDOW_TIMING") != "" {
		s.WindowTiming = true
	}
}

// WatchSettings watches the given TOML settings file and applies it to
// the loop, on the GUI thread, whenever it changes. It returns a stop
// function releasing the watcher.
func WatchSettings(l *Loop, filename string) (func() error, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filename); err != nil {
		w.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				s, err := OpenSettings(filename)
				if err != nil {
					logx.Warn("loop: reloading settings failed", "file", filename, "err", err)
					continue
				}
				l.dispatcher.Post(func() { l.setSettings(s) })
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logx.Warn("loop: settings watcher error", "err", err)
			}
		}
	}()
	return w.Close, nil
}
