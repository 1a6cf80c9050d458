// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package system

import "sync/atomic"

// AnimationDriver advances the host's animations. The render loop
// installs lifecycle callbacks on it at construction and calls Advance
// on the GUI thread, ticked either by the render thread's swap cadence
// or by the off-screen timer when no window is exposed; the two
// sources are never active simultaneously.
type AnimationDriver interface {

	// Install registers the callbacks invoked when animations start
	// and stop. It is called once by the render loop; drivers must
	// invoke the callbacks on the GUI thread.
	Install(started, stopped func())

	// Start marks animations as running and invokes the started
	// callback.
	Start()

	// Stop marks animations as stopped and invokes the stopped
	// callback.
	Stop()

	// Running reports whether animations are currently running.
	Running() bool

	// Advance advances all running animations by one tick.
	Advance()
}

// BaseAnimationDriver provides the lifecycle plumbing shared by
// [AnimationDriver] implementations, which should embed it and provide
// their own Advance.
type BaseAnimationDriver struct {
	running          atomic.Bool
	started, stopped func()
}

func (d *BaseAnimationDriver) Install(started, stopped func()) {
	d.started = started
	d.stopped = stopped
}

func (d *BaseAnimationDriver) Start() {
	if d.running.Swap(true) {
		return
	}
	if d.started != nil {
		d.started()
	}
}

func (d *BaseAnimationDriver) Stop() {
	if !d.running.Swap(false) {
		return
	}
	if d.stopped != nil {
		d.stopped()
	}
}

func (d *BaseAnimationDriver) Running() bool {
	return d.running.Load()
}
