// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loop

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lumen-ui/lumen/system"
	"github.com/lumen-ui/lumen/system/driver/offscreen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

// testDriver is an animation driver that counts advances.
type testDriver struct {
	system.BaseAnimationDriver
	advances atomic.Int32
}

func (d *testDriver) Advance() { d.advances.Add(1) }

// testRuntime is a recording [system.SceneRuntime].
type testRuntime struct {
	mu          sync.Mutex
	ctx         system.Context
	ready       bool
	invalidated int
	flushes     int
	driver      testDriver
}

func (r *testRuntime) Init(ctx system.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx = ctx
	r.ready = true
	return nil
}

func (r *testRuntime) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

func (r *testRuntime) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = false
	r.ctx = nil
	r.invalidated++
}

func (r *testRuntime) FlushDeferred() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
}

func (r *testRuntime) NewAnimationDriver() system.AnimationDriver {
	return &r.driver
}

func (r *testRuntime) context() system.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx
}

func (r *testRuntime) invalidations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invalidated
}

// testScene is a recording [system.Scene] that paints a uniform fill.
// The fill set on the GUI side is only picked up by rendering through
// Sync, mirroring the snapshot semantics of a real scene graph.
type testScene struct {
	rt   *testRuntime
	loop *Loop
	win  system.Window

	lock              sync.Mutex
	fill              color.RGBA
	syncedFill        color.RGBA
	polishes          int
	syncs             int
	renders           int
	cleanups          int
	lastRenderSize    image.Point
	persistentSG      bool
	persistentGL      bool
	updateOnSync      bool
	maybeUpdateOnSync bool

	frames atomic.Int32
}

func newTestScene(rt *testRuntime) *testScene {
	return &testScene{rt: rt, fill: color.RGBA{R: 255, A: 255}}
}

func (s *testScene) PolishItems() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.polishes++
}

func (s *testScene) Sync() {
	s.lock.Lock()
	s.syncs++
	s.syncedFill = s.fill
	update := s.updateOnSync
	maybeUpdate := s.maybeUpdateOnSync
	s.updateOnSync = false
	s.maybeUpdateOnSync = false
	l, win := s.loop, s.win
	s.lock.Unlock()

	if update {
		l.Update(win)
	}
	if maybeUpdate {
		l.MaybeUpdate(win)
	}
}

func (s *testScene) Render(size image.Point) {
	s.lock.Lock()
	s.renders++
	s.lastRenderSize = size
	fill := s.syncedFill
	win := s.win
	s.lock.Unlock()

	if c, ok := s.rt.context().(*offscreen.Context); ok {
		if fb := c.Framebuffer(win); fb != nil {
			draw.Draw(fb, image.Rect(0, 0, size.X, size.Y),
				image.NewUniform(fill), image.Point{}, draw.Src)
		}
	}
}

func (s *testScene) CleanupOnShutdown() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.cleanups++
}

func (s *testScene) FrameSwapped() { s.frames.Add(1) }

func (s *testScene) PersistentSceneGraph() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.persistentSG
}

func (s *testScene) PersistentContext() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.persistentGL
}

func (s *testScene) setFill(c color.RGBA) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.fill = c
}

func (s *testScene) counts() (polishes, syncs, renders, cleanups int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.polishes, s.syncs, s.renders, s.cleanups
}

func (s *testScene) renderSize() image.Point {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastRenderSize
}

type fixture struct {
	t       *testing.T
	l       *Loop
	runner  *GUIRunner
	rt      *testRuntime
	factory *offscreen.Factory
	scene   *testScene
	win     *offscreen.Window
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{t: t}
	f.runner = NewGUIRunner()
	go f.runner.Run()
	t.Cleanup(f.runner.Stop)

	f.rt = &testRuntime{}
	f.factory = &offscreen.Factory{}
	f.scene = newTestScene(f.rt)
	f.win = offscreen.NewWindow(f.scene, image.Pt(320, 240))
	f.scene.win = f.win
	f.on(func() {
		f.l = New(Config{
			Scene:      f.rt,
			Context:    f.factory,
			Screen:     offscreen.Screen(),
			Dispatcher: f.runner,
		})
	})
	f.scene.loop = f.l
	t.Cleanup(func() {
		f.on(func() { f.l.Stop() })
	})
	return f
}

// on runs fn on the GUI thread and waits for it.
func (f *fixture) on(fn func()) {
	f.runner.Call(fn)
}

func (f *fixture) showAndExpose() {
	f.win.SetVisible(true)
	f.on(func() { f.l.Show(f.win) })
	f.win.SetExposed(true)
	f.on(func() { f.l.ExposureChanged(f.win) })
}

func (f *fixture) obscure() {
	f.win.SetExposed(false)
	f.on(func() { f.l.ExposureChanged(f.win) })
}

func (f *fixture) waitFrames(n int32) {
	require.Eventually(f.t, func() bool {
		return f.scene.frames.Load() >= n
	}, waitFor, tick, "expected at least %d frames", n)
}

func TestColdStartSingleWindow(t *testing.T) {
	f := newFixture(t)
	f.showAndExpose()

	assert.True(t, f.l.render.running())
	f.waitFrames(1)

	polishes, syncs, renders, _ := f.scene.counts()
	assert.GreaterOrEqual(t, polishes, 1)
	assert.Equal(t, 1, syncs)
	assert.Equal(t, 1, renders)

	// The rendezvous is fully unwound.
	assert.False(t, f.l.render.guiIsLocked.Load())
	require.Eventually(t, func() bool {
		if !f.l.render.mutex.TryLock() {
			return false
		}
		f.l.render.mutex.Unlock()
		return true
	}, waitFor, tick)

	// Exactly one frame; the thread parks afterward.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), f.scene.frames.Load())
	assert.True(t, f.l.render.sleeping.Load())
}

func TestHideThenShow(t *testing.T) {
	f := newFixture(t)
	f.showAndExpose()
	f.waitFrames(1)

	f.obscure()
	require.Eventually(t, func() bool {
		return f.l.render.sleeping.Load()
	}, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), f.scene.frames.Load(), "no frames while obscured")

	f.win.SetExposed(true)
	f.on(func() { f.l.ExposureChanged(f.win) })
	f.waitFrames(2)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), f.scene.frames.Load(), "exactly one frame per re-exposure")
}

func TestResizePropagation(t *testing.T) {
	f := newFixture(t)
	f.showAndExpose()
	f.waitFrames(1)

	f.win.SetSize(image.Pt(800, 600))
	f.on(func() { f.l.Resize(f.win, image.Pt(800, 600)) })
	f.waitFrames(2)
	assert.Equal(t, image.Pt(800, 600), f.scene.renderSize())

	// A degenerate resize is ignored without error.
	frames := f.scene.frames.Load()
	f.on(func() { f.l.Resize(f.win, image.Pt(0, 600)) })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, frames, f.scene.frames.Load())
}

func TestDegenerateSizeSkipped(t *testing.T) {
	f := newFixture(t)
	f.win.SetSize(image.Point{})
	f.showAndExpose()

	// polishAndSync returned even though nothing could sync; the
	// window is tracked but never rendered.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), f.scene.frames.Load())
	_, syncs, renders, _ := f.scene.counts()
	assert.Equal(t, 0, syncs)
	assert.Equal(t, 0, renders)
	assert.True(t, f.l.render.running())
}

func TestUpdateCoalescing(t *testing.T) {
	f := newFixture(t)
	f.showAndExpose()
	f.waitFrames(1)
	_, syncs0, _, _ := f.scene.counts()

	f.on(func() {
		for range 10 {
			f.l.MaybeUpdate(f.win)
		}
	})
	require.Eventually(t, func() bool {
		_, syncs, _, _ := f.scene.counts()
		return syncs == syncs0+1
	}, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	_, syncs, _, _ := f.scene.counts()
	assert.Equal(t, syncs0+1, syncs, "a burst of updates coalesces into one sync")
}

func TestGrabIdempotence(t *testing.T) {
	f := newFixture(t)
	f.showAndExpose()
	f.waitFrames(1)

	var img1, img2 *image.RGBA
	var err1, err2 error
	f.on(func() { img1, err1 = f.l.Grab(f.win) })
	f.on(func() { img2, err2 = f.l.Grab(f.win) })
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.NotNil(t, img1)
	assert.Equal(t, image.Pt(320, 240), img1.Bounds().Size())
	assert.Equal(t, img1.Pix, img2.Pix, "grabs without mutation are pixel-identical")

	// A mutation shows up in the next grab only after its sync.
	f.scene.setFill(color.RGBA{G: 255, A: 255})
	var img3 *image.RGBA
	f.on(func() { img3, _ = f.l.Grab(f.win) })
	require.NotNil(t, img3)
	assert.NotEqual(t, img1.Pix, img3.Pix)
	assert.Equal(t, color.RGBA{G: 255, A: 255}, img3.RGBAAt(10, 10))
}

func TestGrabNotRunning(t *testing.T) {
	f := newFixture(t)
	var err error
	f.on(func() { _, err = f.l.Grab(f.win) })
	assert.Error(t, err)
}

func TestWindowDestroyedReleasesContext(t *testing.T) {
	f := newFixture(t)
	f.showAndExpose()
	f.waitFrames(1)

	f.on(func() { f.l.WindowDestroyed(f.win) })

	require.Eventually(t, func() bool {
		return !f.l.render.running()
	}, waitFor, tick)
	require.Len(t, f.factory.Contexts, 1)
	assert.True(t, f.factory.Contexts[0].Released())
	_, _, _, cleanups := f.scene.counts()
	assert.GreaterOrEqual(t, cleanups, 1)
	assert.GreaterOrEqual(t, f.rt.invalidations(), 1)

	// No callbacks into the window after return.
	frames := f.scene.frames.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, frames, f.scene.frames.Load())
}

func TestPersistentContextSurvivesRelease(t *testing.T) {
	f := newFixture(t)
	f.scene.lock.Lock()
	f.scene.persistentGL = true
	f.scene.lock.Unlock()

	f.showAndExpose()
	f.waitFrames(1)

	f.on(func() { f.l.Hide(f.win) })
	time.Sleep(50 * time.Millisecond)
	assert.True(t, f.l.render.running(), "thread stays up while the context persists")
	require.Len(t, f.factory.Contexts, 1)
	assert.False(t, f.factory.Contexts[0].Released())

	// Destruction excludes the window from the persistence vote.
	f.win.SetVisible(false)
	f.on(func() { f.l.WindowDestroyed(f.win) })
	require.Eventually(t, func() bool {
		return f.factory.Contexts[0].Released() && !f.l.render.running()
	}, waitFor, tick)
}

func TestPersistentSceneGraphSkipsInvalidate(t *testing.T) {
	f := newFixture(t)
	f.scene.lock.Lock()
	f.scene.persistentSG = true
	f.scene.persistentGL = true
	f.scene.lock.Unlock()

	f.showAndExpose()
	f.waitFrames(1)
	f.on(func() { f.l.Hide(f.win) })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.rt.invalidations())
	assert.True(t, f.rt.Ready())
}

func TestRenderWindowsSubsetOfTracked(t *testing.T) {
	f := newFixture(t)
	rt2 := f.rt
	scene2 := newTestScene(rt2)
	scene2.loop = f.l
	win2 := offscreen.NewWindow(scene2, image.Pt(64, 64))
	scene2.win = win2

	f.showAndExpose()
	win2.SetVisible(true)
	f.on(func() { f.l.Show(win2) })
	win2.SetExposed(true)
	f.on(func() { f.l.ExposureChanged(win2) })
	f.waitFrames(1)

	check := func() bool {
		f.l.render.mutex.Lock()
		rts := make([]system.Window, 0, len(f.l.render.windows))
		for _, w := range f.l.render.windows {
			rts = append(rts, w.window)
		}
		f.l.render.mutex.Unlock()

		ok := true
		f.on(func() {
			for _, rw := range rts {
				if f.l.windowFor(rw) == nil {
					ok = false
				}
			}
		})
		return ok
	}
	assert.True(t, check())

	f.obscure()
	assert.True(t, check())
	f.on(func() { f.l.Hide(win2) })
	assert.True(t, check())
}

func TestAnimationAdvanceWhileShowing(t *testing.T) {
	f := newFixture(t)
	f.showAndExpose()
	f.waitFrames(1)

	f.on(func() { f.l.AnimationDriver().Start() })
	require.Eventually(t, func() bool {
		return f.rt.driver.advances.Load() >= 2
	}, waitFor, tick, "vsync-driven ticks advance the driver")

	// Backpressure: never more than two animate requests in flight.
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		require.LessOrEqual(t, f.l.render.animationRequestsPending.Load(), int32(2))
	}
	f.on(func() { f.l.AnimationDriver().Stop() })
}

func TestAnimationTimerOffscreen(t *testing.T) {
	f := newFixture(t)
	f.win.SetVisible(true)
	f.on(func() { f.l.Show(f.win) })

	// Nothing exposed: the off-screen timer drives the animations.
	f.on(func() { f.l.AnimationDriver().Start() })
	var hasTimer bool
	f.on(func() { hasTimer = f.l.animTicker != nil })
	assert.True(t, hasTimer)
	require.Eventually(t, func() bool {
		return f.rt.driver.advances.Load() >= 2
	}, waitFor, tick)

	// Exposing the window hands ticking back to the render thread.
	f.win.SetExposed(true)
	f.on(func() { f.l.ExposureChanged(f.win) })
	f.on(func() { hasTimer = f.l.animTicker != nil })
	assert.False(t, hasTimer, "off-screen timer cancelled on exposure")
	f.waitFrames(1)
	f.on(func() { f.l.AnimationDriver().Stop() })
}

func TestAnimationTimerStartedOnObscure(t *testing.T) {
	f := newFixture(t)
	f.showAndExpose()
	f.waitFrames(1)
	f.on(func() { f.l.AnimationDriver().Start() })

	f.obscure()
	var hasTimer bool
	f.on(func() { hasTimer = f.l.animTicker != nil })
	assert.True(t, hasTimer)

	n := f.rt.driver.advances.Load()
	require.Eventually(t, func() bool {
		return f.rt.driver.advances.Load() > n
	}, waitFor, tick, "timer ticks at the refresh interval while obscured")
	f.on(func() { f.l.AnimationDriver().Stop() })
	f.on(func() { hasTimer = f.l.animTicker != nil })
	assert.False(t, hasTimer)
}

func TestUpdateOnRenderThreadRepaints(t *testing.T) {
	f := newFixture(t)
	f.showAndExpose()
	f.waitFrames(1)

	f.scene.lock.Lock()
	f.scene.updateOnSync = true
	f.scene.lock.Unlock()
	f.on(func() { f.l.MaybeUpdate(f.win) })

	// One frame from the sync, one more from the repaint request the
	// sync hook issued on the render thread.
	f.waitFrames(3)
}

func TestMaybeUpdateOnRenderThreadReplays(t *testing.T) {
	f := newFixture(t)
	f.showAndExpose()
	f.waitFrames(1)
	_, syncs0, _, _ := f.scene.counts()

	f.scene.lock.Lock()
	f.scene.maybeUpdateOnSync = true
	f.scene.lock.Unlock()
	f.on(func() { f.l.MaybeUpdate(f.win) })

	// The update issued during sync is replayed on the GUI thread and
	// produces a second sync.
	require.Eventually(t, func() bool {
		_, syncs, _, _ := f.scene.counts()
		return syncs >= syncs0+2
	}, waitFor, tick)
}

func TestMaybeUpdateForeignGoroutinePanics(t *testing.T) {
	f := newFixture(t)
	f.showAndExpose()
	f.waitFrames(1)

	// This test goroutine is neither the GUI thread nor the render
	// thread.
	assert.Panics(t, func() { f.l.MaybeUpdate(f.win) })
}

func TestContextCreationFailureIsTolerated(t *testing.T) {
	f := newFixture(t)
	f.factory.NewError = errors.New("no display")
	f.showAndExpose()

	// polishAndSync completed despite the failure; nothing rendered.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), f.scene.frames.Load())

	// The next exposure retries and succeeds.
	f.factory.NewError = nil
	f.obscure()
	f.win.SetExposed(true)
	f.on(func() { f.l.ExposureChanged(f.win) })
	f.waitFrames(1)
}

func TestEventsForUnknownWindowsAreIgnored(t *testing.T) {
	f := newFixture(t)
	f.showAndExpose()
	f.waitFrames(1)

	other := offscreen.NewWindow(newTestScene(f.rt), image.Pt(10, 10))
	f.on(func() {
		f.l.ExposureChanged(other) // untracked: no-op
		f.l.Resize(other, image.Pt(5, 5))
		f.l.MaybeUpdate(other)
		f.l.Hide(other)
	})
	f.waitFrames(1)
	assert.True(t, f.l.render.running())
}

func TestStopTearsDownCleanly(t *testing.T) {
	f := newFixture(t)
	f.showAndExpose()
	f.waitFrames(1)

	f.on(func() { f.l.Stop() })
	require.Eventually(t, func() bool {
		return !f.l.render.running()
	}, waitFor, tick)
	require.Len(t, f.factory.Contexts, 1)
	assert.True(t, f.factory.Contexts[0].Released())
	var n int
	f.on(func() { n = len(f.l.windows) })
	assert.Equal(t, 0, n)
}

func TestThreadRestartAfterRelease(t *testing.T) {
	f := newFixture(t)
	f.showAndExpose()
	f.waitFrames(1)

	f.on(func() { f.l.Hide(f.win) })
	require.Eventually(t, func() bool {
		return !f.l.render.running()
	}, waitFor, tick)

	// Showing again restarts the worker against the same deque.
	f.showAndExpose()
	f.waitFrames(2)
	require.Len(t, f.factory.Contexts, 2)
}
