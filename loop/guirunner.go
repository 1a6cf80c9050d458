// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loop

import (
	"sync"
	"sync/atomic"
)

// GUIRunner is a stock [system.Dispatcher] for hosts without a GUI
// event loop of their own: an unbounded FIFO of functions pumped by a
// single goroutine, which becomes the GUI thread of the render loop.
type GUIRunner struct {
	mu      sync.Mutex
	cond    sync.Cond
	funcs   []func()
	stopped bool
	runID   atomic.Uint64
}

// NewGUIRunner returns a new runner. Call [GUIRunner.Run] on the
// goroutine that should serve as the GUI thread.
func NewGUIRunner() *GUIRunner {
	g := &GUIRunner{}
	g.cond.L = &g.mu
	return g
}

// Post adds f to the queue. It never blocks; functions run on the
// [GUIRunner.Run] goroutine in post order.
func (g *GUIRunner) Post(f func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	g.funcs = append(g.funcs, f)
	g.cond.Signal()
}

// Call runs f on the runner goroutine and waits for it to return.
// If called from the runner goroutine itself, f runs immediately.
func (g *GUIRunner) Call(f func()) {
	if goid() == g.runID.Load() {
		f()
		return
	}
	done := make(chan struct{})
	g.Post(func() {
		defer close(done)
		f()
	})
	<-done
}

// Run pumps the queue until [GUIRunner.Stop] is called and the queue
// has drained. It blocks; run it on a dedicated goroutine.
func (g *GUIRunner) Run() {
	g.runID.Store(goid())
	for {
		g.mu.Lock()
		for len(g.funcs) == 0 && !g.stopped {
			g.cond.Wait()
		}
		if len(g.funcs) == 0 && g.stopped {
			g.mu.Unlock()
			return
		}
		f := g.funcs[0]
		g.funcs[0] = nil
		g.funcs = g.funcs[1:]
		g.mu.Unlock()
		f()
	}
}

// Stop makes Run return once the queue has drained. Functions posted
// after Stop are dropped.
func (g *GUIRunner) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = true
	g.cond.Broadcast()
}
