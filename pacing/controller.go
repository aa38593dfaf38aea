// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pacing implements the frame pacing state machine.
//
// Without turbo mode a [Controller] forwards frame calls and only enforces
// that predicted display times strictly increase. With turbo mode the real
// frame wait is issued in the background right after each end-frame, so the
// application's next wait-frame returns immediately with an extrapolated
// prediction. The pipeline is one frame deep: a second wait-frame in the same
// cycle blocks until the background wait completes, and no second background
// wait is ever started while one is outstanding.
//
// Any outstanding background wait is joined before the session or its
// swapchains are destroyed. See [Controller.BeforeDestroySwapchain] and
// [Controller.BeforeDestroySession].
package pacing

import (
	"fmt"
	"sync"
	"time"

	"github.com/mbucchia/Varjo-Foveated/internal/trace"
	"github.com/mbucchia/Varjo-Foveated/xr"
)

// Default join bounds.
const (
	DefaultEndFrameTimeout       = time.Second
	DefaultDestroySessionTimeout = 5 * time.Second
)

// State is the state of the background wait pipeline.
type State int

const (
	// Idle means no background wait is outstanding.
	Idle State = iota

	// Pending means a background wait is running and has not been polled.
	Pending

	// Polled means a background wait is running and wait-frame already
	// returned an extrapolated prediction for it.
	Polled

	// Completed means the background wait finished and end-frame has not
	// consumed it yet.
	Completed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Pending:
		return "Pending"
	case Polled:
		return "Polled"
	case Completed:
		return "Completed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithTurboMode sets the initial turbo mode.
func WithTurboMode(on bool) Option {
	return func(c *Controller) { c.turbo = on }
}

// WithClock sets the wall clock used to extrapolate predictions.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithJoinTimeouts sets the bounds applied when end-frame and session
// destruction wait for an outstanding background wait.
func WithJoinTimeouts(endFrame, destroySession time.Duration) Option {
	return func(c *Controller) {
		c.endFrameTimeout = endFrame
		c.destroySessionTimeout = destroySession
	}
}

// Controller paces the frames of one session. It is safe for concurrent use,
// though frame calls are expected from one application thread.
type Controller struct {
	next xr.Runtime
	now  func() time.Time

	endFrameTimeout       time.Duration
	destroySessionTimeout time.Duration

	// mu guards the pipeline state. It is never held across a call into
	// next or a join.
	mu        sync.Mutex
	turbo     bool
	closed    bool
	task      *asyncWait
	polled    bool
	lastWait  time.Time
	watermark xr.Time

	// timingMu guards the last prediction, written by background waits.
	timingMu      sync.Mutex
	lastPredicted xr.Time
	lastPeriod    xr.Duration
}

// New returns a Controller issuing real frame calls to next.
func New(next xr.Runtime, opts ...Option) *Controller {
	c := &Controller{
		next:                  next,
		now:                   time.Now,
		endFrameTimeout:       DefaultEndFrameTimeout,
		destroySessionTimeout: DefaultDestroySessionTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	turboModeEnabled.Set(boolGauge(c.turbo))
	return c
}

// SetTurboMode enables or disables turbo mode. The change takes effect at
// the next end-frame; an outstanding background wait is still consumed.
func (c *Controller) SetTurboMode(on bool) {
	c.mu.Lock()
	changed := c.turbo != on
	c.turbo = on
	c.mu.Unlock()

	turboModeEnabled.Set(boolGauge(on))
	if changed {
		trace.Logger().Info("turbo mode changed", "enabled", on)
	}
}

// TurboMode reports whether turbo mode is enabled.
func (c *Controller) TurboMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turbo
}

// State returns the current pipeline state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.task == nil:
		return Idle
	case c.task.Done():
		return Completed
	case c.polled:
		return Polled
	default:
		return Pending
	}
}

// Watermark returns the last predicted display time returned by WaitFrame.
func (c *Controller) Watermark() xr.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watermark
}

// WaitFrame returns the frame timing for the application's next frame.
//
// With no background wait outstanding the real wait is performed. Otherwise
// the first call of a cycle returns an extrapolated prediction without
// blocking, and later calls block until the background wait completes. The
// returned prediction is always greater than any previously returned one.
func (c *Controller) WaitFrame(session xr.Session, info *xr.FrameWaitInfo, state *xr.FrameState) error {
	if state == nil {
		return xr.ErrorValidationFailure
	}

	now := c.now()
	c.mu.Lock()
	last := c.lastWait
	c.lastWait = now
	task := c.task
	wasPolled := c.polled
	var elapsed time.Duration
	if !last.IsZero() {
		elapsed = now.Sub(last)
	}
	if task != nil {
		c.polled = true
	}
	c.mu.Unlock()

	if task == nil {
		if err := c.next.WaitFrame(session, info, state); err != nil {
			return err
		}
		c.timingMu.Lock()
		c.lastPredicted = state.PredictedDisplayTime
		c.lastPeriod = state.PredictedDisplayPeriod
		c.timingMu.Unlock()
		frameWaitsTotal.WithLabelValues(pathSync).Inc()
	} else if err := c.poll(task, wasPolled, elapsed, state); err != nil {
		return err
	}

	c.mu.Lock()
	if state.PredictedDisplayTime <= c.watermark {
		state.PredictedDisplayTime = c.watermark + 1
		watermarkClampsTotal.Inc()
	}
	c.watermark = state.PredictedDisplayTime
	c.mu.Unlock()

	trace.Logger().Debug("xrWaitFrame",
		"session", session,
		"shouldRender", state.ShouldRender,
		"predictedDisplayTime", state.PredictedDisplayTime,
		"predictedDisplayPeriod", state.PredictedDisplayPeriod)
	return nil
}

// poll fills state from an outstanding background wait.
func (c *Controller) poll(task *asyncWait, wasPolled bool, elapsed time.Duration, state *xr.FrameState) error {
	path := pathExtrapolate
	if wasPolled {
		trace.Logger().Debug("joining background wait", "activity", task.id)
		path = pathJoined
		if _, err := task.Wait(); err != nil {
			return err
		}
	}

	if task.Done() {
		if path == pathExtrapolate {
			path = pathCompleted
		}
		result, err := task.result()
		if err != nil {
			return err
		}
		state.PredictedDisplayTime = result.PredictedDisplayTime
		state.PredictedDisplayPeriod = result.PredictedDisplayPeriod
	} else {
		c.timingMu.Lock()
		state.PredictedDisplayTime = c.lastPredicted
		state.PredictedDisplayPeriod = c.lastPeriod
		c.timingMu.Unlock()
		state.PredictedDisplayTime += xr.Time(elapsed)
	}
	state.ShouldRender = true
	frameWaitsTotal.WithLabelValues(path).Inc()
	return nil
}

// BeginFrame forwards the call unless a background wait is outstanding, in
// which case the real begin-frame is deferred to EndFrame.
func (c *Controller) BeginFrame(session xr.Session, info *xr.FrameBeginInfo) error {
	c.mu.Lock()
	task := c.task
	c.mu.Unlock()

	if task != nil {
		return nil
	}
	return c.next.BeginFrame(session, info)
}

// EndFrame validates info, consumes the outstanding background wait if it
// completes within the end-frame bound, forwards the call and, in turbo mode,
// starts the background wait for the next frame unless the session is being
// destroyed.
//
// When the bound elapses the deferred begin-frame is skipped and the
// background wait stays outstanding.
func (c *Controller) EndFrame(session xr.Session, info *xr.FrameEndInfo) error {
	if info == nil || info.Type != xr.TypeFrameEndInfo {
		return xr.ErrorValidationFailure
	}
	for _, layer := range info.Layers {
		if xr.IsNilLayer(layer) {
			return xr.ErrorLayerInvalid
		}
	}

	log := trace.Logger()
	log.Debug("xrEndFrame",
		"session", session,
		"displayTime", info.DisplayTime,
		"layers", len(info.Layers))

	c.mu.Lock()
	task := c.task
	c.mu.Unlock()

	if task != nil {
		if task.WaitTimeout(c.endFrameTimeout) {
			c.mu.Lock()
			if c.task == task {
				c.task = nil
			}
			c.mu.Unlock()

			if _, err := task.result(); err != nil {
				log.Warn("background wait failed, skipping deferred begin", "activity", task.id, "err", err)
			} else {
				xr.Check(c.next.BeginFrame(session, &xr.FrameBeginInfo{Type: xr.TypeFrameBeginInfo}), "xrBeginFrame")
			}
		} else {
			joinTimeoutsTotal.WithLabelValues("end_frame").Inc()
			log.Warn("background wait still outstanding at end of frame",
				"activity", task.id, "timeout", c.endFrameTimeout)
		}
	}

	err := c.next.EndFrame(session, info)

	c.mu.Lock()
	if c.turbo && c.task == nil && !c.closed {
		c.polled = false
		c.task = c.startWait(session)
	}
	c.mu.Unlock()

	return err
}

// startWait launches a background real wait-frame. c.mu must be held.
func (c *Controller) startWait(session xr.Session) *asyncWait {
	task := newAsyncWait()
	asyncWaitsStartedTotal.Inc()
	trace.Logger().Debug("background wait started", "session", session, "activity", task.id)

	go func() {
		start := c.now()
		state := xr.FrameState{Type: xr.TypeFrameState}
		err := c.next.WaitFrame(session, &xr.FrameWaitInfo{Type: xr.TypeFrameWaitInfo}, &state)
		asyncWaitDuration.Observe(c.now().Sub(start).Seconds())

		if err != nil {
			asyncWaitFailuresTotal.Inc()
			trace.Logger().Warn("background wait failed", "session", session, "activity", task.id, "err", err)
		} else {
			c.timingMu.Lock()
			c.lastPredicted = state.PredictedDisplayTime
			c.lastPeriod = state.PredictedDisplayPeriod
			c.timingMu.Unlock()
			trace.Logger().Debug("background wait completed",
				"activity", task.id,
				"predictedDisplayTime", state.PredictedDisplayTime,
				"predictedDisplayPeriod", state.PredictedDisplayPeriod)
		}
		task.finish(state, err)
	}()
	return task
}

// BeforeDestroySwapchain blocks until any outstanding background wait
// completes.
func (c *Controller) BeforeDestroySwapchain() {
	c.mu.Lock()
	task := c.task
	c.mu.Unlock()

	if task != nil {
		trace.Logger().Debug("joining background wait before swapchain destruction", "activity", task.id)
		_, _ = task.Wait()
	}
}

// BeforeDestroySession waits for any outstanding background wait, up to the
// session destruction bound, then forgets it. No background wait is started
// afterwards.
func (c *Controller) BeforeDestroySession() {
	c.mu.Lock()
	c.closed = true
	task := c.task
	c.mu.Unlock()

	if task == nil {
		return
	}
	if !task.WaitTimeout(c.destroySessionTimeout) {
		joinTimeoutsTotal.WithLabelValues("destroy_session").Inc()
		trace.Logger().Warn("background wait still outstanding at session destruction",
			"activity", task.id, "timeout", c.destroySessionTimeout)
	}

	c.mu.Lock()
	if c.task == task {
		c.task = nil
		c.polled = false
	}
	c.mu.Unlock()
}
