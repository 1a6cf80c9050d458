// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loop

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumen-ui/lumen/base/logx"
	"github.com/lumen-ui/lumen/events"
	"github.com/lumen-ui/lumen/system"
)

// errNotGrabbable reports a grab of a window the render thread is not
// currently rendering.
var errNotGrabbable = errors.New("loop: grab: window not exposed or no graphics context")

// updateFlags is the render thread's pending-update mask.
type updateFlags uint8

const (
	syncRequest updateFlags = 1 << iota
	repaintRequest
)

// rtWindow is the render thread's record of an exposed window.
type rtWindow struct {
	window system.Window
	size   image.Point

	// synced is set once the window's scene graph has been synced, so
	// the render pass skips windows whose renderer does not exist yet.
	synced bool
}

// renderThread owns the graphics context and the scene-graph runtime.
// It consumes events posted to its deque and parks in a blocking
// NextEvent when idle. The struct outlives its goroutine: hide/show
// cycles stop and restart the goroutine against the same deque, so
// events posted while no goroutine runs are processed after the next
// start.
type renderThread struct {
	loop    *Loop
	scene   system.SceneRuntime
	factory system.ContextFactory
	ctx     system.Context

	deque events.Deque

	// mutex and cond implement the single GUI rendezvous. Handlers
	// that complete a rendezvous (sync, try-release, grab) hold mutex
	// for their whole critical section and signal cond exactly once.
	mutex sync.Mutex
	cond  sync.Cond

	// windows is mutated only by event handlers on the render thread,
	// under mutex, so the GUI can never observe it mid-change while
	// blocked in a rendezvous.
	windows []rtWindow

	// pendingUpdate is touched only on the render thread; sync clears
	// it under mutex.
	pendingUpdate updateFlags

	sleeping                 atomic.Bool
	animationRunning         atomic.Bool
	guiIsLocked              atomic.Bool
	shouldExit               atomic.Bool
	active                   atomic.Bool
	animationRequestsPending atomic.Int32
	goID                     atomic.Uint64

	// ctxFailed records a failed context creation; retried on the next
	// exposure rather than every loop iteration.
	ctxFailed bool

	// exitLoop unwinds the park loop back into the outer run loop.
	exitLoop bool

	done chan struct{}

	timing    bool
	lastFrame time.Time
}

func newRenderThread(l *Loop, scene system.SceneRuntime, factory system.ContextFactory) *renderThread {
	t := &renderThread{loop: l, scene: scene, factory: factory}
	t.cond.L = &t.mutex
	return t
}

func (t *renderThread) running() bool { return t.active.Load() }

func (t *renderThread) goroutineID() uint64 { return t.goID.Load() }

// start launches the worker goroutine. The caller must have joined
// any previous goroutine via waitDone first.
func (t *renderThread) start(animationRunning, timing bool) {
	t.shouldExit.Store(false)
	t.animationRunning.Store(animationRunning)
	t.timing = timing
	t.lastFrame = time.Time{}
	t.done = make(chan struct{})
	t.active.Store(true)
	go t.run()
}

// waitDone joins a previously started goroutine that has exited or is
// draining toward exit. No-op if the thread never ran.
func (t *renderThread) waitDone() {
	if t.done != nil {
		<-t.done
		t.done = nil
	}
}

// post delivers an event to the render thread. Callable from any
// thread; wakes the thread if it is parked.
func (t *renderThread) post(e events.Event) {
	t.deque.Send(e)
}

// requestRepaint schedules another render pass without a sync. Called
// on the render thread itself, from [Loop.Update].
func (t *renderThread) requestRepaint() {
	t.deque.Send(&events.RepaintRequestEvent{})
}

// exit unwinds the park loop. Only meaningful from a handler running
// inside exec.
func (t *renderThread) exit() {
	t.exitLoop = true
}

// run is the render thread's main loop.
func (t *renderThread) run() {
	defer close(t.done)
	t.goID.Store(goid())
	logx.Debug("render: run")

	for !t.shouldExit.Load() {
		if len(t.windows) > 0 {
			if t.ctx == nil && !t.ctxFailed {
				t.initContext()
			}
			if t.ctx != nil && !t.scene.Ready() {
				if err := t.scene.Init(t.ctx); err != nil {
					logx.Warn("render: scene runtime init failed", "err", err)
				}
			}
			t.syncAndRender()
		}

		t.processEvents()
		t.scene.FlushDeferred()

		if !t.shouldExit.Load() &&
			((!t.animationRunning.Load() && t.pendingUpdate == 0) || len(t.windows) == 0) {
			logx.Debug("render: enter event loop (going to sleep)")
			t.sleeping.Store(true)
			t.exec()
			t.sleeping.Store(false)
		}
	}

	if t.ctx != nil {
		panic("loop: render thread exiting with a live graphics context")
	}
	t.active.Store(false)
	logx.Debug("render: run completed")
}

// processEvents drains the deque without blocking.
func (t *renderThread) processEvents() {
	for {
		e, ok := t.deque.PollEvent()
		if !ok {
			return
		}
		t.event(e)
	}
}

// exec parks the thread in the deque until a handler calls exit.
func (t *renderThread) exec() {
	for {
		t.event(t.deque.NextEvent())
		if t.exitLoop {
			t.exitLoop = false
			return
		}
	}
}

// event dispatches one posted event.
func (t *renderThread) event(e events.Event) {
	switch e := e.(type) {

	case *events.ExposeEvent:
		logx.Debug("render: expose")
		t.ctxFailed = false
		if t.findWindow(e.Window) >= 0 {
			logx.Debug("render: window already added")
			return
		}
		t.mutex.Lock()
		t.windows = append(t.windows, rtWindow{window: e.Window, size: e.Size})
		t.mutex.Unlock()

	case *events.WindowEvent:
		if e.EventKind != events.Obscure {
			return
		}
		logx.Debug("render: obscure")
		t.mutex.Lock()
		if i := t.findWindow(e.Window); i >= 0 {
			t.windows = append(t.windows[:i], t.windows[i+1:]...)
		}
		t.mutex.Unlock()
		if t.sleeping.Load() && len(t.windows) > 0 {
			t.exit()
		}

	case *events.SyncRequestEvent:
		logx.Debug("render: sync requested")
		if t.sleeping.Load() {
			t.exit()
		}
		if len(t.windows) > 0 {
			t.pendingUpdate |= syncRequest
		}

	case *events.RepaintRequestEvent:
		logx.Debug("render: repaint requested")
		if t.sleeping.Load() {
			t.exit()
		}
		if len(t.windows) > 0 {
			t.pendingUpdate |= repaintRequest
		}

	case *events.ResizeEvent:
		logx.Debug("render: resize", "size", e.Size)
		t.mutex.Lock()
		if i := t.findWindow(e.Window); i >= 0 {
			t.windows[i].size = e.Size
		}
		t.mutex.Unlock()
		// No wakeup: a sync arrives right behind this event.

	case *events.TryReleaseEvent:
		logx.Debug("render: try release")
		t.mutex.Lock()
		if len(t.windows) == 0 {
			t.invalidateContext(e.Window, e.InDestructor)
			t.shouldExit.Store(t.ctx == nil)
			if t.sleeping.Load() {
				t.exit()
			}
		} else {
			logx.Debug("render: not releasing, windows still active")
		}
		t.cond.Signal()
		t.mutex.Unlock()

	case *events.GrabEvent:
		t.grab(e)

	case *events.AnimationStartEvent:
		logx.Debug("render: animation started")
		t.animationRunning.Store(true)
		if t.sleeping.Load() {
			t.exit()
		}

	case *events.AnimationStopEvent:
		logx.Debug("render: animation stopped")
		t.animationRunning.Store(false)
	}
}

// initContext creates the graphics context from the first window's
// surface format. Creation failure is logged and remembered so the
// loop does not retry until the next exposure; the window simply does
// not render in the meantime.
func (t *renderThread) initContext() {
	logx.Debug("render: initializing graphics context")
	win := t.windows[0].window
	ctx, err := t.factory.New(win)
	if err != nil {
		t.ctxFailed = true
		logx.Warn("render: graphics context creation failed", "err", err)
		return
	}
	t.ctx = ctx
	if err := t.ctx.MakeCurrent(win); err != nil {
		logx.Warn("render: MakeCurrent failed", "err", err)
	}
}

// syncAndRender performs one iteration of the frame pipeline: keep the
// GUI-side animation clock fed, sync if requested, then render and
// present every ready window.
func (t *renderThread) syncAndRender() {
	var sinceLast, syncTime, renderTime time.Duration
	var start time.Time
	if t.timing {
		start = time.Now()
		if !t.lastFrame.IsZero() {
			sinceLast = start.Sub(t.lastFrame)
		}
		t.lastFrame = start
	}

	// This animate request reaches the GUI after the sync completes.
	if t.animationRunning.Load() && t.animationRequestsPending.Load() < 2 {
		logx.Debug("render: posting animate to gui")
		t.animationRequestsPending.Add(1)
		t.loop.postToGUI(&events.AdvanceAnimationsEvent{})
	}

	if t.pendingUpdate&syncRequest != 0 {
		logx.Debug("render: sync request pending")
		t.sync()
	}
	if t.timing {
		syncTime = time.Since(start)
	}

	// The render pass below consumes any pending repaint request.
	t.pendingUpdate &^= repaintRequest

	for i := range t.windows {
		w := &t.windows[i]
		if !w.synced || w.size.X == 0 || w.size.Y == 0 || t.ctx == nil {
			logx.Debug("render: window not ready, skipping render")
			continue
		}
		if err := t.ctx.MakeCurrent(w.window); err != nil {
			logx.Warn("render: MakeCurrent failed", "err", err)
			continue
		}
		w.window.Scene().Render(w.size)
		if t.timing && i == 0 {
			renderTime = time.Since(start)
		}
		if err := t.ctx.SwapBuffers(w.window); err != nil {
			logx.Warn("render: SwapBuffers failed", "err", err)
		}
		w.window.Scene().FrameSwapped()
	}
	logx.Debug("render: rendering done")

	if t.timing {
		logx.Info("render: frame timing",
			"sinceLast", sinceLast,
			"sync", syncTime,
			"render", renderTime-syncTime,
			"swap", time.Since(start)-renderTime)
	}
}

// sync runs the sync rendezvous: the GUI thread is blocked in
// [Loop.polishAndSync], so the scene may be reconciled against the
// declarative state, then the GUI is woken.
func (t *renderThread) sync() {
	logx.Debug("render: sync")
	t.mutex.Lock()

	if !t.guiIsLocked.Load() {
		panic("loop: sync triggered without the GUI thread waiting")
	}
	t.pendingUpdate = 0

	for i := range t.windows {
		w := &t.windows[i]
		if w.size.X == 0 || w.size.Y == 0 {
			logx.Debug("render: window has degenerate size, skipping sync")
			continue
		}
		if t.ctx == nil {
			continue
		}
		if err := t.ctx.MakeCurrent(w.window); err != nil {
			logx.Warn("render: MakeCurrent failed", "err", err)
			continue
		}
		w.window.Scene().Sync()
		w.synced = true
	}

	logx.Debug("render: unlocking after sync")
	t.cond.Signal()
	t.mutex.Unlock()
}

// grab renders the window and reads the framebuffer back, completing
// the rendezvous whether or not the grab could be performed.
func (t *renderThread) grab(e *events.GrabEvent) {
	logx.Debug("render: grab")
	i := t.findWindow(e.Window)
	t.mutex.Lock()
	if i >= 0 && t.ctx != nil {
		w := &t.windows[i]
		if err := t.ctx.MakeCurrent(w.window); err != nil {
			e.Result.Err = err
		} else {
			logx.Debug("render: grab, syncing scene graph")
			w.window.Scene().Sync()
			w.synced = true
			logx.Debug("render: grab, rendering scene graph")
			w.window.Scene().Render(w.size)
			e.Result.Image, e.Result.Err = t.ctx.ReadFramebuffer(w.size)
		}
	} else {
		e.Result.Err = errNotGrabbable
	}
	logx.Debug("render: grab done, waking gui")
	t.cond.Signal()
	t.mutex.Unlock()
}

// invalidateContext tears down the scene-graph runtime and the
// graphics context, subject to the persistence flags of the remaining
// windows. The GUI is blocked in the release rendezvous, so reading
// the coordinator's window list here is safe.
func (t *renderThread) invalidateContext(win system.Window, inDestructor bool) {
	logx.Debug("render: invalidating context")
	if t.ctx == nil {
		return
	}
	if win == nil {
		logx.Warn("render: no window to make current")
		return
	}

	persistentSG := false
	persistentGL := false
	for _, gw := range t.loop.windows {
		if !inDestructor || gw.window != win {
			sc := gw.window.Scene()
			persistentSG = persistentSG || sc.PersistentSceneGraph()
			persistentGL = persistentGL || sc.PersistentContext()
		}
	}

	if err := t.ctx.MakeCurrent(win); err != nil {
		logx.Warn("render: MakeCurrent failed", "err", err)
	}

	// Scene nodes must be cleaned up even when the runtime persists,
	// if the window itself is going away.
	if !persistentSG || inDestructor {
		win.Scene().CleanupOnShutdown()
	}

	if persistentSG {
		logx.Debug("render: persistent scene graph, skipping cleanup")
		return
	}

	t.scene.Invalidate()
	t.scene.FlushDeferred()
	t.ctx.DoneCurrent()
	logx.Debug("render: invalidated scene graph")

	if !persistentGL {
		t.ctx.Release()
		t.ctx = nil
		logx.Debug("render: released graphics context")
	} else {
		logx.Debug("render: persistent context, keeping it")
	}
}

func (t *renderThread) findWindow(win system.Window) int {
	for i := range t.windows {
		if t.windows[i].window == win {
			return i
		}
	}
	return -1
}
