package dht

import (
	"runtime"
	"runtime/debug"
)

// Guard suspends whatever could preempt the sampling window and restores it
// afterwards. Resume is always called once per Suspend.
type Guard interface {
	Suspend()
	Resume()
}

// runtimeGuard pins the goroutine to its OS thread and stops the garbage
// collector for the duration of the window.
type runtimeGuard struct {
	gcPercent int
}

func (g *runtimeGuard) Suspend() {
	runtime.LockOSThread()
	g.gcPercent = debug.SetGCPercent(-1)
}

func (g *runtimeGuard) Resume() {
	debug.SetGCPercent(g.gcPercent)
	runtime.UnlockOSThread()
}
