// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package events defines the messages exchanged between the GUI side
// of the Lumen render loop and its render thread, and the [Deque] they
// are delivered through. Events are the only asynchronous
// communication primitive between the two threads; the single
// synchronous rendezvous is a mutex and condition pair owned by the
// loop itself.
package events

import (
	"fmt"
	"image"

	"github.com/lumen-ui/lumen/system"
)

// Kind is the type tag of a render-loop event.
type Kind int32

const (
	// UnknownKind is the zero value, never sent.
	UnknownKind Kind = iota

	// Expose is sent from the GUI thread to the render thread when a
	// window is rendering on screen and should be added to the render
	// loop.
	Expose

	// Obscure is sent from the GUI thread to the render thread when a
	// window is no longer exposed and should be removed from the
	// render loop.
	Obscure

	// RequestSync is sent from the GUI thread to the render thread
	// once the GUI is locked and waiting for the sync rendezvous.
	RequestSync

	// RequestRepaint is sent by the render thread to itself to trigger
	// another render pass without a sync.
	RequestRepaint

	// Resize is sent from the GUI thread to the render thread when a
	// window has changed size.
	Resize

	// TryRelease is sent from the GUI thread to the render thread to
	// release the scene-graph and graphics resources if no windows are
	// rendering. The handler always completes the rendezvous.
	TryRelease

	// UpdateLater is sent from the GUI side to itself to replay an
	// update request that originated on the render thread.
	UpdateLater

	// Grab is sent from the GUI thread to the render thread to
	// synchronously render a window and read back the result.
	Grab

	// AdvanceAnimations is sent by the render thread to the GUI thread
	// to advance the animation driver.
	AdvanceAnimations

	// AnimationStart is sent from the GUI thread to the render thread
	// when the animation driver starts.
	AnimationStart

	// AnimationStop is sent from the GUI thread to the render thread
	// when the animation driver stops.
	AnimationStop
)

var kindNames = []string{"Unknown", "Expose", "Obscure", "RequestSync",
	"RequestRepaint", "Resize", "TryRelease", "UpdateLater", "Grab",
	"AdvanceAnimations", "AnimationStart", "AnimationStop"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int32(k))
	}
	return kindNames[k]
}

// Event is a render-loop message. Each implementation carries exactly
// the payload of its kind; handlers dispatch on [Event.Kind].
type Event interface {
	Kind() Kind
}

// WindowEvent is the base for events addressed to a specific window:
// Obscure and UpdateLater carry it directly.
type WindowEvent struct {
	EventKind Kind
	Window    system.Window
}

func (e *WindowEvent) Kind() Kind { return e.EventKind }

// ExposeEvent carries the window and its size at exposure time.
type ExposeEvent struct {
	Window system.Window
	Size   image.Point
}

func (e *ExposeEvent) Kind() Kind { return Expose }

// ResizeEvent carries a window's new size.
type ResizeEvent struct {
	Window system.Window
	Size   image.Point
}

func (e *ResizeEvent) Kind() Kind { return Resize }

// TryReleaseEvent requests resource teardown. InDestructor is true
// when the window is being destroyed rather than hidden, which
// excludes it from the persistence vote.
type TryReleaseEvent struct {
	Window       system.Window
	InDestructor bool
}

func (e *TryReleaseEvent) Kind() Kind { return TryRelease }

// GrabResult receives the outcome of a Grab rendezvous.
type GrabResult struct {
	Image *image.RGBA
	Err   error
}

// GrabEvent requests a synchronous render and framebuffer readback of
// the given window. The render thread fills Result before signalling
// the waiting GUI thread.
type GrabEvent struct {
	Window system.Window
	Result *GrabResult
}

func (e *GrabEvent) Kind() Kind { return Grab }

// SyncRequestEvent is the payloadless RequestSync message.
type SyncRequestEvent struct{}

func (e *SyncRequestEvent) Kind() Kind { return RequestSync }

// RepaintRequestEvent is the payloadless RequestRepaint message.
type RepaintRequestEvent struct{}

func (e *RepaintRequestEvent) Kind() Kind { return RequestRepaint }

// AdvanceAnimationsEvent is the payloadless AdvanceAnimations message.
type AdvanceAnimationsEvent struct{}

func (e *AdvanceAnimationsEvent) Kind() Kind { return AdvanceAnimations }

// AnimationStartEvent is the payloadless AnimationStart message.
type AnimationStartEvent struct{}

func (e *AnimationStartEvent) Kind() Kind { return AnimationStart }

// AnimationStopEvent is the payloadless AnimationStop message.
type AnimationStopEvent struct{}

func (e *AnimationStopEvent) Kind() Kind { return AnimationStop }
