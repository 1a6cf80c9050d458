// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package system

import "image"

// Context is a graphics context owned exclusively by the render
// thread. The GUI thread never binds it. All methods are called on the
// render thread only.
type Context interface {

	// MakeCurrent binds the context to the given window's surface for
	// subsequent rendering or resource operations.
	MakeCurrent(win Window) error

	// SwapBuffers presents the rendered frame for the given window.
	SwapBuffers(win Window) error

	// DoneCurrent unbinds the context from whatever surface it is
	// currently bound to.
	DoneCurrent()

	// Release destroys the context and frees its resources. The
	// context must not be used afterward.
	Release()

	// ReadFramebuffer returns the contents of the currently bound
	// framebuffer at the given size, used for window grabs.
	ReadFramebuffer(size image.Point) (*image.RGBA, error)
}

// ContextFactory creates graphics contexts matching a window's
// requested surface format. It is injected into the render loop at
// construction; the loop calls New on the render thread when the first
// window is exposed.
type ContextFactory interface {
	New(win Window) (Context, error)
}
