// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package system

// Dispatcher is the host application's GUI event dispatch substrate.
// The render loop uses it to run work on the GUI thread: replayed
// update requests, animation advances, and timer expirations.
//
// Post must be asynchronous and non-blocking for the caller, and
// functions posted from a single goroutine must run in the order they
// were posted. [github.com/lumen-ui/lumen/loop.GUIRunner] is a stock
// implementation for hosts without an event loop of their own.
type Dispatcher interface {
	Post(f func())
}
