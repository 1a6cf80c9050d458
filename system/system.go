// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package system defines the interfaces between the Lumen render loop
// and its collaborators: the windowing surface, the per-window scene
// graph, the graphics context, the scene-graph runtime, and the host
// application's GUI event dispatch. Drivers under system/driver
// implement the platform-facing parts of these interfaces.
package system

import "image"

// Window is an opaque reference to a windowing surface tracked by the
// render loop. The loop compares windows by interface identity; a
// given surface must always be presented as the same Window value.
//
// All methods are safe to call from the GUI thread. Size is also read
// from the render thread while the GUI thread is blocked in the sync
// rendezvous.
type Window interface {

	// Realize ensures the native surface behind this window exists,
	// creating it if necessary. The render loop calls this before a
	// graphics context is bound to the window for the first time.
	Realize() error

	// IsVisible reports whether the window is shown (not hidden or
	// closed). Obscured but shown windows are still visible.
	IsVisible() bool

	// IsExposed reports whether the window's surface is currently
	// exposed on screen and can be rendered to.
	IsExposed() bool

	// Size returns the current size of the window surface in pixels.
	Size() image.Point

	// Scene returns the scene-graph hooks for this window.
	Scene() Scene
}

// Scene is the per-window scene graph as seen by the render loop.
// PolishItems runs on the GUI thread; Sync, Render, and
// CleanupOnShutdown run on the render thread with the graphics
// context bound to the window.
type Scene interface {

	// PolishItems finalizes declarative items (layout etc.) on the GUI
	// thread, immediately before the sync rendezvous.
	PolishItems()

	// Sync reconciles the polished declarative state into renderable
	// nodes. It is called with the GUI thread blocked, so it may read
	// item state freely. The resulting snapshot must be self-contained:
	// after Sync returns, rendering proceeds concurrently with further
	// GUI mutations.
	Sync()

	// Render traverses the renderable nodes and issues draw calls for
	// a frame of the given size.
	Render(size image.Point)

	// CleanupOnShutdown releases the window's scene-graph resources.
	// It is called on the render thread during resource release, with
	// the context bound.
	CleanupOnShutdown()

	// FrameSwapped notifies the scene that a frame for this window has
	// been presented. Called on the render thread after the buffer swap.
	FrameSwapped()

	// PersistentSceneGraph reports whether this window requests that
	// the scene-graph runtime survive visibility cycles.
	PersistentSceneGraph() bool

	// PersistentContext reports whether this window requests that the
	// graphics context survive visibility cycles.
	PersistentContext() bool
}
