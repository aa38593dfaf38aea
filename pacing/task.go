// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package pacing

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mbucchia/Varjo-Foveated/xr"
)

// asyncWait is one background frame wait. The result slot is written once,
// before done is closed.
type asyncWait struct {
	id   uuid.UUID
	done chan struct{}

	mu    sync.Mutex
	state xr.FrameState
	err   error
}

func newAsyncWait() *asyncWait {
	return &asyncWait{
		id:   uuid.New(),
		done: make(chan struct{}),
	}
}

func (w *asyncWait) finish(state xr.FrameState, err error) {
	w.mu.Lock()
	w.state = state
	w.err = err
	w.mu.Unlock()
	close(w.done)
}

// Done reports whether the wait has completed.
func (w *asyncWait) Done() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the wait completes and returns its result.
func (w *asyncWait) Wait() (xr.FrameState, error) {
	<-w.done
	return w.result()
}

// WaitTimeout blocks until the wait completes or d elapses. It reports
// whether the wait completed.
func (w *asyncWait) WaitTimeout(d time.Duration) bool {
	if w.Done() {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-w.done:
		return true
	case <-timer.C:
		return false
	}
}

// result returns the frame state and error of a completed wait.
func (w *asyncWait) result() (xr.FrameState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.err
}
