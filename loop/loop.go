// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package loop implements the Lumen threaded render loop: a GUI-side
// coordinator paired with a dedicated render thread that owns the
// graphics context and the scene-graph runtime.
//
// All communication between the two sides is event passing through
// [events.Deque], except for a single blocking rendezvous built on one
// mutex and condition pair. The GUI thread is the only side that ever
// blocks: it initiates a polish-and-sync (or a grab, or a resource
// release), posts the corresponding event, and waits until the render
// thread has picked it up and signalled completion. The render thread
// never waits on the GUI, so its animation clock keeps ticking while
// the GUI thread is busy elsewhere.
//
// The loop is active while any window is exposed. All visible windows
// are tracked, but only exposed windows are handed to the render
// thread and rendered. When every window is obscured, the scene graph
// and the graphics context may be torn down, subject to the per-window
// persistence flags.
package loop

import (
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/lumen-ui/lumen/base/logx"
	"github.com/lumen-ui/lumen/events"
	"github.com/lumen-ui/lumen/system"
)

// Config configures a [Loop]. Scene, Context, and Dispatcher are
// required; Screen and Settings are optional.
type Config struct {

	// Scene is the scene-graph runtime. Its ownership passes to the
	// render thread when the thread starts.
	Scene system.SceneRuntime

	// Context creates graphics contexts on the render thread.
	Context system.ContextFactory

	// Screen is the primary screen, used for the off-screen animation
	// tick interval. A nil Screen or an unreliable refresh rate falls
	// back to a 16ms interval.
	Screen *system.Screen

	// Dispatcher runs posted work on the host's GUI thread.
	Dispatcher system.Dispatcher

	// Settings are the loop settings; nil means [DefaultSettings].
	Settings *Settings
}

// guiWindow is the coordinator's record of a shown window.
type guiWindow struct {
	window        system.Window
	pendingUpdate bool
}

// Loop is the GUI-side coordinator of the threaded render loop. All
// methods must be called on the GUI thread unless noted otherwise.
type Loop struct {
	scene      system.SceneRuntime
	dispatcher system.Dispatcher
	screen     *system.Screen
	settings   Settings
	driver     system.AnimationDriver
	render     *renderThread

	// windows is every shown window; the render thread's list is
	// always a subset of it.
	windows []*guiWindow

	// guiID is the GUI thread's goroutine ID, recorded on the first
	// GUI-side entry.
	guiID atomic.Uint64

	updateTimer *time.Timer
	animTicker  *time.Ticker
	animStop    chan struct{}
}

// New returns a new render loop. It installs itself on the runtime's
// animation driver; the returned loop is idle until a window is shown
// and exposed.
func New(cfg Config) *Loop {
	l := &Loop{
		scene:      cfg.Scene,
		dispatcher: cfg.Dispatcher,
		screen:     cfg.Screen,
		settings:   DefaultSettings(),
	}
	if cfg.Settings != nil {
		l.settings = *cfg.Settings
	}
	l.render = newRenderThread(l, cfg.Scene, cfg.Context)
	l.driver = cfg.Scene.NewAnimationDriver()
	l.driver.Install(l.animationStarted, l.animationStopped)
	logx.Debug("loop: created", "exhaustDelay", l.settings.ExhaustDelay)
	return l
}

// AnimationDriver returns the loop's animation driver.
func (l *Loop) AnimationDriver() system.AnimationDriver {
	return l.driver
}

// SceneRuntime returns the scene-graph runtime. It is owned by the
// render thread; the GUI side may only use it for read-only queries
// that the runtime documents as safe.
func (l *Loop) SceneRuntime() system.SceneRuntime {
	return l.scene
}

// Show adds the window to the loop's list of tracked windows. Showing
// does not start rendering; that happens on exposure.
func (l *Loop) Show(win system.Window) {
	l.markGUI()
	if l.windowFor(win) != nil {
		return
	}
	logx.Debug("loop: show")
	l.windows = append(l.windows, &guiWindow{window: win})
}

// Hide removes the window from the loop. If the window is exposed it
// is obscured first, and the render thread is asked to release the
// scene-graph and context resources.
func (l *Loop) Hide(win system.Window) {
	l.markGUI()
	logx.Debug("loop: hide")
	if win.IsExposed() {
		l.handleObscurity(win)
	}
	l.releaseResources(win, false)
	for i, w := range l.windows {
		if w.window == win {
			l.windows = append(l.windows[:i], l.windows[i+1:]...)
			break
		}
	}
}

// WindowDestroyed performs the final teardown for a window: hide if
// still visible, then a release that excludes the window from the
// persistence vote. No callbacks into the window occur after it
// returns.
func (l *Loop) WindowDestroyed(win system.Window) {
	l.markGUI()
	logx.Debug("loop: window destroyed")
	if win.IsVisible() {
		l.Hide(win)
	}
	l.releaseResources(win, true)
}

// ExposureChanged tells the loop that the window's surface became
// exposed or obscured. Unknown windows are ignored.
func (l *Loop) ExposureChanged(win system.Window) {
	l.markGUI()
	if l.windowFor(win) == nil {
		return
	}
	if win.IsExposed() {
		l.handleExposure(win)
	} else {
		l.handleObscurity(win)
	}
}

// Resize notifies the render thread of the window's new size and then
// blocks in a polish-and-sync, so that the next rendered frame has the
// new size. Degenerate sizes are ignored.
func (l *Loop) Resize(win system.Window, size image.Point) {
	l.markGUI()
	if !l.render.running() || len(l.windows) == 0 || !win.IsExposed() || l.windowFor(win) == nil {
		return
	}
	if size.X == 0 || size.Y == 0 {
		return
	}
	logx.Debug("loop: resize", "size", size)
	l.render.post(&events.ResizeEvent{Window: win, Size: size})
	l.polishAndSync()
}

// Update requests an explicit repaint of the window. Unlike the other
// operations it may also be called on the render thread (from inside a
// sync or render hook), where it schedules a repaint without a sync,
// keeping render-driven animations alive while the GUI is blocked.
func (l *Loop) Update(win system.Window) {
	if rid := l.render.goroutineID(); rid != 0 && goid() == rid {
		logx.Debug("loop: update on render thread")
		l.render.requestRepaint()
		return
	}
	l.MaybeUpdate(win)
}

// MaybeUpdate schedules a polish-and-sync for the window, coalescing
// bursts of calls into a single sync through the update timer. It may
// be called on the GUI thread, or on the render thread while the GUI
// is blocked in the sync rendezvous (updates issued from sync hooks);
// anything else is a programmer error and panics.
func (l *Loop) MaybeUpdate(win system.Window) {
	cur := goid()
	rid := l.render.goroutineID()
	onRenderThread := rid != 0 && cur == rid
	if onRenderThread {
		if !l.render.guiIsLocked.Load() {
			panic("loop: MaybeUpdate called on the render thread without the GUI blocked in a rendezvous")
		}
	} else {
		if gid := l.guiID.Load(); gid != 0 && cur != gid {
			panic("loop: MaybeUpdate called from a goroutine that is neither the GUI thread nor the render thread")
		}
		l.markGUI()
	}

	// Reading the window list from the render thread is safe here:
	// the GUI thread is blocked in the rendezvous.
	w := l.windowFor(win)
	if w == nil || w.pendingUpdate || !l.render.running() {
		return
	}

	if onRenderThread {
		// Timers cannot be armed from the render thread; replay the
		// request on the GUI thread instead.
		logx.Debug("loop: update on render thread, posting UpdateLater")
		l.postToGUI(&events.WindowEvent{EventKind: events.UpdateLater, Window: win})
		return
	}
	w.pendingUpdate = true

	if l.updateTimer != nil {
		return
	}
	delay := time.Duration(0)
	if l.driver.Running() {
		delay = time.Duration(l.settings.ExhaustDelay) * time.Millisecond
	}
	logx.Debug("loop: scheduling update", "delay", delay)
	l.updateTimer = time.AfterFunc(delay, func() {
		l.dispatcher.Post(l.updateTimerFired)
	})
}

func (l *Loop) updateTimerFired() {
	l.updateTimer = nil
	l.polishAndSync()
}

// Grab synchronously renders the window and reads back the resulting
// frame. The scene is polished and synced first, since mutations after
// the last frame may have invalidated the rendered state; two grabs
// with no intervening mutation yield identical images.
func (l *Loop) Grab(win system.Window) (*image.RGBA, error) {
	l.markGUI()
	if !l.render.running() {
		return nil, fmt.Errorf("loop: grab: render thread not running")
	}
	if err := win.Realize(); err != nil {
		return nil, err
	}
	logx.Debug("loop: grab, polishing items")
	win.Scene().PolishItems()

	var res events.GrabResult
	t := l.render
	t.mutex.Lock()
	if !t.running() || t.shouldExit.Load() {
		t.mutex.Unlock()
		return nil, fmt.Errorf("loop: grab: render thread not running")
	}
	t.guiIsLocked.Store(true)
	t.post(&events.GrabEvent{Window: win, Result: &res})
	t.cond.Wait()
	t.guiIsLocked.Store(false)
	t.mutex.Unlock()
	return res.Image, res.Err
}

// Stop tears the loop down: hides every window (releasing the render
// resources) and stops the timers. The loop may be used again by
// showing windows afresh.
func (l *Loop) Stop() {
	l.markGUI()
	for len(l.windows) > 0 {
		l.Hide(l.windows[len(l.windows)-1].window)
	}
	l.stopAnimationTimer()
	if l.updateTimer != nil {
		l.updateTimer.Stop()
		l.updateTimer = nil
	}
}

// handleExposure posts the window to the render thread, starting the
// thread if needed, and synchronously runs the first polish-and-sync.
func (l *Loop) handleExposure(win system.Window) {
	logx.Debug("loop: handle exposure")
	if err := win.Realize(); err != nil {
		logx.Warn("loop: realizing window failed", "err", err)
		return
	}

	l.render.post(&events.ExposeEvent{Window: win, Size: win.Size()})

	t := l.render
	if !t.running() || t.shouldExit.Load() {
		t.waitDone()
		logx.Debug("loop: starting render thread")
		t.start(l.driver.Running(), l.settings.WindowTiming)
	}

	l.polishAndSync()

	// Back on vsync-driven animation ticks.
	l.stopAnimationTimer()
}

// handleObscurity removes the window from the render thread and, if no
// window remains showing while animations run, starts the off-screen
// animation timer.
func (l *Loop) handleObscurity(win system.Window) {
	logx.Debug("loop: handle obscurity")
	if l.render.running() {
		l.render.post(&events.WindowEvent{EventKind: events.Obscure, Window: win})
	}
	if !l.anyoneShowing() && l.driver.Running() && l.animTicker == nil {
		l.startAnimationTimer()
	}
}

// releaseResources asks the render thread to free the scene-graph and
// context resources if no windows remain on it. The rendezvous always
// completes, whether or not anything was torn down.
func (l *Loop) releaseResources(win system.Window, inDestructor bool) {
	logx.Debug("loop: release resources", "inDestructor", inDestructor)
	t := l.render
	t.mutex.Lock()
	if t.running() && !t.shouldExit.Load() {
		t.guiIsLocked.Store(true)
		t.post(&events.TryReleaseEvent{Window: win, InDestructor: inDestructor})
		t.cond.Wait()
		t.guiIsLocked.Store(false)
	}
	t.mutex.Unlock()
}

// polishAndSync runs the polish pass over every tracked window and
// then blocks in the sync rendezvous. Polishing must complete before
// the rendezvous so the scene observed by sync is final.
func (l *Loop) polishAndSync() {
	if !l.anyoneShowing() {
		return
	}
	timing := l.settings.WindowTiming
	var start time.Time
	var polishTime, waitTime time.Duration
	if timing {
		start = time.Now()
	}

	logx.Debug("loop: polish and sync")
	for _, w := range l.windows {
		w.window.Scene().PolishItems()
	}
	if timing {
		polishTime = time.Since(start)
	}

	for _, w := range l.windows {
		w.pendingUpdate = false
	}

	t := l.render
	t.mutex.Lock()
	if !t.running() || t.shouldExit.Load() {
		t.mutex.Unlock()
		return
	}
	t.guiIsLocked.Store(true)
	t.post(&events.SyncRequestEvent{})
	if timing {
		waitTime = time.Since(start)
	}
	t.cond.Wait()
	t.guiIsLocked.Store(false)
	t.mutex.Unlock()

	if timing {
		logx.Info("loop: polishAndSync timing",
			"polish", polishTime,
			"wait", waitTime-polishTime,
			"sync", time.Since(start)-waitTime)
	}
}

// event dispatches a GUI-directed event posted through the dispatcher.
func (l *Loop) event(e events.Event) {
	switch e := e.(type) {
	case *events.WindowEvent:
		if e.EventKind == events.UpdateLater {
			// The window might have gone away in the meantime.
			if l.windowFor(e.Window) != nil {
				l.MaybeUpdate(e.Window)
			}
		}
	case *events.AdvanceAnimationsEvent:
		l.render.animationRequestsPending.Add(-1)
		logx.Debug("loop: advance animations")
		if l.driver.Running() {
			l.driver.Advance()
		}
	}
}

// postToGUI posts an event to the GUI thread through the dispatcher.
// Callable from any thread.
func (l *Loop) postToGUI(e events.Event) {
	l.dispatcher.Post(func() { l.event(e) })
}

// animationStarted is installed on the animation driver. The render
// thread is notified so its clock starts, and if nothing is showing
// the off-screen timer takes over.
func (l *Loop) animationStarted() {
	logx.Debug("loop: animation started")
	if l.render.running() {
		l.render.post(&events.AnimationStartEvent{})
	}
	if !l.anyoneShowing() && l.animTicker == nil {
		l.startAnimationTimer()
	}
}

func (l *Loop) animationStopped() {
	logx.Debug("loop: animation stopped")
	if l.render.running() {
		l.render.post(&events.AnimationStopEvent{})
	}
	if !l.anyoneShowing() {
		l.stopAnimationTimer()
	}
}

// animationInterval is the off-screen animation tick interval, derived
// from the screen's refresh rate with a 16ms fallback for unreliable
// rates.
func (l *Loop) animationInterval() time.Duration {
	rate := l.settings.RefreshRate
	if rate <= 0 && l.screen != nil {
		rate = l.screen.RefreshRate
	}
	if rate < 1 {
		return 16 * time.Millisecond
	}
	return time.Duration(float64(time.Second) / float64(rate))
}

func (l *Loop) startAnimationTimer() {
	logx.Debug("loop: starting off-screen animation timer")
	l.animTicker = time.NewTicker(l.animationInterval())
	l.animStop = make(chan struct{})
	ticker, stop := l.animTicker, l.animStop
	go func() {
		for {
			select {
			case <-ticker.C:
				l.dispatcher.Post(l.animationTick)
			case <-stop:
				return
			}
		}
	}()
}

func (l *Loop) stopAnimationTimer() {
	if l.animTicker == nil {
		return
	}
	logx.Debug("loop: stopping off-screen animation timer")
	l.animTicker.Stop()
	close(l.animStop)
	l.animTicker = nil
	l.animStop = nil
}

// animationTick runs on the GUI thread for each off-screen timer tick.
func (l *Loop) animationTick() {
	if l.animTicker == nil { // cancelled after the tick was posted
		return
	}
	if l.driver.Running() {
		l.driver.Advance()
	}
}

// anyoneShowing reports whether any tracked window is both visible and
// exposed.
func (l *Loop) anyoneShowing() bool {
	for _, w := range l.windows {
		if w.window.IsVisible() && w.window.IsExposed() {
			return true
		}
	}
	return false
}

func (l *Loop) windowFor(win system.Window) *guiWindow {
	for _, w := range l.windows {
		if w.window == win {
			return w
		}
	}
	return nil
}

// markGUI records the GUI thread's goroutine ID on first entry.
func (l *Loop) markGUI() {
	l.guiID.CompareAndSwap(0, goid())
}

// setSettings applies new settings on the GUI thread. The render
// thread picks up timing changes on its next start.
func (l *Loop) setSettings(s Settings) {
	logx.Debug("loop: settings updated", "exhaustDelay", s.ExhaustDelay)
	l.settings = s
}
