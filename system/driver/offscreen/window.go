// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package offscreen

import (
	"errors"
	"image"
	"sync"

	"github.com/lumen-ui/lumen/system"
)

var (
	errReleased   = errors.New("offscreen: context already released")
	errNotCurrent = errors.New("offscreen: context not bound to a window")
)

// Window is the offscreen implementation of [system.Window]. The host
// sets visibility, exposure, and size and is responsible for
// forwarding the changes to the render loop ([loop.Loop.ExposureChanged],
// [loop.Loop.Resize]).
type Window struct {
	mu       sync.Mutex
	scene    system.Scene
	size     image.Point
	visible  bool
	exposed  bool
	realized bool
}

// NewWindow returns a new offscreen window of the given size with the
// given scene hooks.
func NewWindow(scene system.Scene, size image.Point) *Window {
	return &Window{scene: scene, size: size}
}

func (w *Window) Realize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.realized = true
	return nil
}

func (w *Window) IsVisible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}

func (w *Window) IsExposed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exposed
}

func (w *Window) Size() image.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *Window) Scene() system.Scene {
	return w.scene
}

// SetVisible sets the window's visibility.
func (w *Window) SetVisible(visible bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visible = visible
}

// SetExposed sets whether the window's surface is exposed.
func (w *Window) SetExposed(exposed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exposed = exposed
}

// SetSize sets the window's size.
func (w *Window) SetSize(size image.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.size = size
}

// IsRealized reports whether Realize has been called.
func (w *Window) IsRealized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.realized
}
