// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package offscreen provides a headless software driver for the Lumen
// render loop: windows without a native surface and a graphics context
// backed by in-memory framebuffers. It is used on platforms without a
// display, in CI, and throughout the loop's own tests.
package offscreen

import (
	"image"
	"image/color"

	"github.com/lumen-ui/lumen/system"
	"golang.org/x/image/draw"
)

// Background is the color framebuffers are cleared to when a context
// is bound to a window for the first time or after a resize.
var Background = color.RGBA{R: 0, G: 0, B: 0, A: 255}

// Context is a software graphics context: one framebuffer per window,
// reallocated on size changes. It implements [system.Context]. All
// methods are called on the render thread only.
type Context struct {
	fbs      map[system.Window]*image.RGBA
	cur      system.Window
	released bool
}

// NewContext returns a new software context.
func NewContext() *Context {
	return &Context{fbs: map[system.Window]*image.RGBA{}}
}

func (c *Context) MakeCurrent(win system.Window) error {
	if c.released {
		return errReleased
	}
	size := win.Size()
	if size.X < 1 {
		size.X = 1
	}
	if size.Y < 1 {
		size.Y = 1
	}
	fb := c.fbs[win]
	if fb == nil || fb.Bounds().Size() != size {
		fb = image.NewRGBA(image.Rectangle{Max: size})
		draw.Draw(fb, fb.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)
		c.fbs[win] = fb
	}
	c.cur = win
	return nil
}

func (c *Context) SwapBuffers(win system.Window) error {
	if c.released {
		return errReleased
	}
	return nil
}

func (c *Context) DoneCurrent() {
	c.cur = nil
}

func (c *Context) Release() {
	c.fbs = nil
	c.cur = nil
	c.released = true
}

// ReadFramebuffer copies out the currently bound framebuffer, cropped
// or extended to the given size.
func (c *Context) ReadFramebuffer(size image.Point) (*image.RGBA, error) {
	if c.released {
		return nil, errReleased
	}
	if c.cur == nil {
		return nil, errNotCurrent
	}
	fb := c.fbs[c.cur]
	out := image.NewRGBA(image.Rectangle{Max: size})
	draw.Draw(out, out.Bounds(), fb, image.Point{}, draw.Src)
	return out, nil
}

// Framebuffer returns the framebuffer for the given window, or nil if
// the context has never been bound to it. Scene renderers draw into
// it during Render.
func (c *Context) Framebuffer(win system.Window) *image.RGBA {
	return c.fbs[win]
}

// Released reports whether [Context.Release] has been called.
func (c *Context) Released() bool {
	return c.released
}

// Factory creates [Context]s. It implements [system.ContextFactory].
type Factory struct {

	// NewError, if non-nil, makes New fail with it; used to exercise
	// context-creation failure handling.
	NewError error

	// Contexts records every context the factory created.
	Contexts []*Context
}

func (f *Factory) New(win system.Window) (system.Context, error) {
	if f.NewError != nil {
		return nil, f.NewError
	}
	c := NewContext()
	f.Contexts = append(f.Contexts, c)
	return c, nil
}

// Screen returns the synthetic offscreen screen.
func Screen() *system.Screen {
	return &system.Screen{
		Name:        "offscreen",
		Geometry:    image.Rect(0, 0, 1920, 1080),
		RefreshRate: 60,
	}
}
