// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package desktop provides a glfw-backed driver for the Lumen render
// loop on desktop platforms. It supplies windows over [glfw.Window],
// a graphics context bound through glfw's context API, and the
// primary screen's refresh rate.
//
// glfw requires window creation and event polling to happen on the
// main OS thread; the host is responsible for locking it
// (runtime.LockOSThread) and pumping glfw.PollEvents from its GUI
// loop.
package desktop

import (
	"errors"
	"image"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/lumen-ui/lumen/system"
)

var (
	errNotRealized = errors.New("desktop: window has no native surface")
	errNoReadback  = errors.New("desktop: framebuffer readback not supported; use the offscreen driver for grabs")
)

// Window wraps a glfw window as a [system.Window]. Scn supplies the
// scene-graph hooks for the window.
type Window struct {
	Glfw *glfw.Window
	Scn  system.Scene
}

// NewWindow returns a Window over the given glfw window and scene.
func NewWindow(gw *glfw.Window, scene system.Scene) *Window {
	return &Window{Glfw: gw, Scn: scene}
}

func (w *Window) Realize() error {
	if w.Glfw == nil {
		return errNotRealized
	}
	return nil
}

func (w *Window) IsVisible() bool {
	return w.Glfw != nil && w.Glfw.GetAttrib(glfw.Visible) == glfw.True
}

func (w *Window) IsExposed() bool {
	return w.IsVisible() && w.Glfw.GetAttrib(glfw.Iconified) == glfw.False
}

func (w *Window) Size() image.Point {
	if w.Glfw == nil {
		return image.Point{}
	}
	wd, ht := w.Glfw.GetFramebufferSize()
	return image.Pt(wd, ht)
}

func (w *Window) Scene() system.Scene {
	return w.Scn
}

// Context binds rendering to glfw windows. glfw contexts belong to
// their windows, so Release only detaches; the context dies with the
// window.
type Context struct{}

func (c *Context) MakeCurrent(win system.Window) error {
	w, ok := win.(*Window)
	if !ok || w.Glfw == nil {
		return errNotRealized
	}
	w.Glfw.MakeContextCurrent()
	return nil
}

func (c *Context) SwapBuffers(win system.Window) error {
	w, ok := win.(*Window)
	if !ok || w.Glfw == nil {
		return errNotRealized
	}
	w.Glfw.SwapBuffers()
	return nil
}

func (c *Context) DoneCurrent() {
	glfw.DetachCurrentContext()
}

func (c *Context) Release() {
	glfw.DetachCurrentContext()
}

func (c *Context) ReadFramebuffer(size image.Point) (*image.RGBA, error) {
	return nil, errNoReadback
}

// Factory creates glfw contexts. It implements [system.ContextFactory].
type Factory struct{}

func (f *Factory) New(win system.Window) (system.Context, error) {
	if _, ok := win.(*Window); !ok {
		return nil, errNotRealized
	}
	return &Context{}, nil
}

// PrimaryScreen returns the primary monitor as a [system.Screen].
// Must be called on the main thread after glfw.Init.
func PrimaryScreen() *system.Screen {
	m := glfw.GetPrimaryMonitor()
	if m == nil {
		return &system.Screen{Name: "none"}
	}
	vm := m.GetVideoMode()
	if vm == nil {
		return &system.Screen{Name: m.GetName()}
	}
	return &system.Screen{
		Name:        m.GetName(),
		Geometry:    image.Rect(0, 0, vm.Width, vm.Height),
		RefreshRate: float32(vm.RefreshRate),
	}
}
