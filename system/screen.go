// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package system

import "image"

// Screen contains the information about a physical or logical screen
// that the render loop needs, principally the refresh rate used to
// derive the off-screen animation tick interval. It is injected into
// the loop at construction rather than queried from process-wide
// state.
type Screen struct {

	// Name is the name of the screen.
	Name string

	// Geometry is the bounds of the screen in window-manager
	// coordinates.
	Geometry image.Rectangle

	// RefreshRate is the screen's refresh rate in Hz. Platforms
	// sometimes report 0 or bogus values; consumers must fall back to
	// a sensible default when it is below 1.
	RefreshRate float32
}
