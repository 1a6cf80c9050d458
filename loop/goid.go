// Copyright (c) 2026, Lumen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loop

import "runtime"

// goid returns the current goroutine's ID, parsed from the
// runtime.Stack header ("goroutine NNN ["). It is used only for
// caller-thread checks: routing update requests issued on the render
// thread, and detecting calls from goroutines that are neither the GUI
// thread nor the render thread.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
