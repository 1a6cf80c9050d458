// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// based on golang.org/x/exp/shiny:
// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package events

import "sync"

// Deque is an infinitely buffered double-ended FIFO queue of events.
// Events sent by a single goroutine are received in the order they
// were sent. The zero Deque is ready to use.
//
// The render thread parks by blocking in [Deque.NextEvent]; any Send
// wakes it, so posting paths never need a separate wakeup.
type Deque struct {
	mu    sync.Mutex
	cond  sync.Cond // cond.L is lazily initialized to &mu
	back  []Event   // FIFO: back[0] is the next event
	front []Event   // LIFO: front[len-1] is the next event, sent via SendFirst
}

func (q *Deque) lockAndInit() {
	q.mu.Lock()
	q.cond.L = &q.mu
}

// NextEvent returns the next event in the deque, blocking until one is
// available.
func (q *Deque) NextEvent() Event {
	q.lockAndInit()
	defer q.mu.Unlock()

	for {
		if n := len(q.front); n > 0 {
			e := q.front[n-1]
			q.front[n-1] = nil
			q.front = q.front[:n-1]
			return e
		}
		if n := len(q.back); n > 0 {
			e := q.back[0]
			q.back[0] = nil
			q.back = q.back[1:]
			return e
		}
		q.cond.Wait()
	}
}

// PollEvent returns the next event in the deque if one is available
// without blocking, and reports whether it did.
func (q *Deque) PollEvent() (Event, bool) {
	q.lockAndInit()
	defer q.mu.Unlock()

	if n := len(q.front); n > 0 {
		e := q.front[n-1]
		q.front[n-1] = nil
		q.front = q.front[:n-1]
		return e, true
	}
	if n := len(q.back); n > 0 {
		e := q.back[0]
		q.back[0] = nil
		q.back = q.back[1:]
		return e, true
	}
	return nil, false
}

// Send adds an event to the end of the deque, waking a blocked
// NextEvent.
func (q *Deque) Send(e Event) {
	q.lockAndInit()
	defer q.mu.Unlock()

	q.back = append(q.back, e)
	q.cond.Signal()
}

// SendFirst adds an event to the front of the deque, so that it is
// returned by the next NextEvent ahead of previously sent events.
func (q *Deque) SendFirst(e Event) {
	q.lockAndInit()
	defer q.mu.Unlock()

	q.front = append(q.front, e)
	q.cond.Signal()
}

// Len returns the number of events currently in the deque.
func (q *Deque) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.front) + len(q.back)
}
