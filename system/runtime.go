// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package system

// SceneRuntime is the singular scene-graph runtime shared by all
// windows. Ownership is transferred to the render thread when it
// starts; the GUI thread only calls NewAnimationDriver (at loop
// construction) and must not touch the runtime afterward.
type SceneRuntime interface {

	// Init prepares the runtime against the given graphics context.
	// Called on the render thread after the context is created.
	Init(ctx Context) error

	// Ready reports whether the runtime is initialized.
	Ready() bool

	// Invalidate tears down the runtime's renderable state. The
	// runtime may be initialized again later.
	Invalidate()

	// FlushDeferred drains the runtime's deferred-deletion queue.
	// Called on the render thread once per loop iteration and during
	// invalidation.
	FlushDeferred()

	// NewAnimationDriver returns the animation driver for this
	// runtime. It is called once, on the GUI thread, at loop
	// construction.
	NewAnimationDriver() AnimationDriver
}
