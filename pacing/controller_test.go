// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package pacing

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbucchia/Varjo-Foveated/internal/simruntime"
	"github.com/mbucchia/Varjo-Foveated/xr"
)

const settle = 50 * time.Millisecond

// fakeClock is a manually advanced wall clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// frozenPredictions reports the same predicted display time for every wait.
type frozenPredictions struct {
	*simruntime.Runtime
}

func (f frozenPredictions) WaitFrame(session xr.Session, info *xr.FrameWaitInfo, state *xr.FrameState) error {
	if err := f.Runtime.WaitFrame(session, info, state); err != nil {
		return err
	}
	state.PredictedDisplayTime = 1000
	return nil
}

func startSession(t *testing.T, rt xr.Runtime) xr.Session {
	t.Helper()
	_, _, session, err := simruntime.StartSession(rt)
	require.NoError(t, err)
	return session
}

func endInfo(layers ...xr.CompositionLayer) *xr.FrameEndInfo {
	return &xr.FrameEndInfo{Type: xr.TypeFrameEndInfo, DisplayTime: 1, Layers: layers}
}

func waitFrame(c *Controller, session xr.Session) (xr.FrameState, error) {
	state := xr.FrameState{Type: xr.TypeFrameState}
	err := c.WaitFrame(session, &xr.FrameWaitInfo{Type: xr.TypeFrameWaitInfo}, &state)
	return state, err
}

type waitResult struct {
	state xr.FrameState
	err   error
}

func waitAsync(c *Controller, session xr.Session) <-chan waitResult {
	done := make(chan waitResult, 1)
	go func() {
		state, err := waitFrame(c, session)
		done <- waitResult{state, err}
	}()
	return done
}

func receive(t *testing.T, done <-chan waitResult) waitResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("wait-frame did not return")
		return waitResult{}
	}
}

func pending(done <-chan waitResult) func() bool {
	return func() bool { return len(done) > 0 }
}

func frame(t *testing.T, c *Controller, session xr.Session) xr.Time {
	t.Helper()
	state, err := waitFrame(c, session)
	require.NoError(t, err)
	require.NoError(t, c.BeginFrame(session, &xr.FrameBeginInfo{Type: xr.TypeFrameBeginInfo}))
	require.NoError(t, c.EndFrame(session, endInfo()))
	return state.PredictedDisplayTime
}

// enterTurbo runs one synchronous frame and enables turbo mode before its
// end-frame, so that a background wait is outstanding on return.
func enterTurbo(t *testing.T, c *Controller, session xr.Session, gate func()) xr.FrameState {
	t.Helper()
	state, err := waitFrame(c, session)
	require.NoError(t, err)
	require.NoError(t, c.BeginFrame(session, &xr.FrameBeginInfo{Type: xr.TypeFrameBeginInfo}))
	c.SetTurboMode(true)
	if gate != nil {
		gate()
	}
	require.NoError(t, c.EndFrame(session, endInfo()))
	return state
}

// =============================================================================
// State
// =============================================================================

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Idle, "Idle"},
		{Pending, "Pending"},
		{Polled, "Polled"},
		{Completed, "Completed"},
		{State(9), "State(9)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestSetTurboMode(t *testing.T) {
	c := New(simruntime.New())
	assert.False(t, c.TurboMode())

	c.SetTurboMode(true)
	assert.True(t, c.TurboMode())
	assert.Equal(t, 1.0, testutil.ToFloat64(turboModeEnabled))

	c.SetTurboMode(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(turboModeEnabled))
}

// =============================================================================
// Monotonic predictions
// =============================================================================

func TestWaitFrameStrictlyIncreasing(t *testing.T) {
	rt := frozenPredictions{simruntime.New()}
	session := startSession(t, rt)
	c := New(rt)

	clamps := testutil.ToFloat64(watermarkClampsTotal)

	var last xr.Time
	for i := 0; i < 5; i++ {
		got := frame(t, c, session)
		if i > 0 {
			assert.Greater(t, got, last, "frame %d", i)
		}
		last = got
	}
	assert.Equal(t, xr.Time(1004), last)
	assert.Equal(t, last, c.Watermark())
	assert.Equal(t, 4.0, testutil.ToFloat64(watermarkClampsTotal)-clamps)
}

func TestTurboLoopStrictlyIncreasing(t *testing.T) {
	rt := simruntime.New()
	session := startSession(t, rt)
	c := New(rt, WithTurboMode(true))

	started := testutil.ToFloat64(asyncWaitsStartedTotal)

	var last xr.Time
	for i := 0; i < 10; i++ {
		got := frame(t, c, session)
		if i > 0 {
			assert.Greater(t, got, last, "frame %d", i)
		}
		last = got
	}
	assert.Equal(t, 10.0, testutil.ToFloat64(asyncWaitsStartedTotal)-started)

	c.BeforeDestroySession()
	assert.Equal(t, Idle, c.State())
	require.NoError(t, rt.DestroySession(session))
	assert.Empty(t, rt.Violations())
}

// =============================================================================
// Turbo pipeline
// =============================================================================

func TestTurboFirstPollDoesNotBlock(t *testing.T) {
	rt := simruntime.New()
	session := startSession(t, rt)
	clock := newFakeClock()
	c := New(rt, WithClock(clock.Now))

	base := enterTurbo(t, c, session, rt.GateWaits)
	assert.Equal(t, Pending, c.State())

	clock.Advance(3 * time.Millisecond)
	first := receive(t, waitAsync(c, session))
	require.NoError(t, first.err)
	assert.True(t, first.state.ShouldRender)
	assert.Equal(t, base.PredictedDisplayTime+xr.Time(3*time.Millisecond), first.state.PredictedDisplayTime)
	assert.Equal(t, base.PredictedDisplayPeriod, first.state.PredictedDisplayPeriod)
	assert.Equal(t, Polled, c.State())

	second := waitAsync(c, session)
	assert.Never(t, pending(second), settle, 5*time.Millisecond)

	rt.ReleaseWait()
	got := receive(t, second)
	require.NoError(t, got.err)
	assert.Greater(t, got.state.PredictedDisplayTime, first.state.PredictedDisplayTime)
	assert.Equal(t, Completed, c.State())
	assert.Equal(t, 2, rt.Calls("xrWaitFrame"))

	rt.OpenGate()
	c.BeforeDestroySession()
}

func TestThirdPollBlocksWithoutSecondTask(t *testing.T) {
	rt := simruntime.New()
	session := startSession(t, rt)
	c := New(rt)

	started := testutil.ToFloat64(asyncWaitsStartedTotal)
	joined := testutil.ToFloat64(frameWaitsTotal.WithLabelValues(pathJoined))

	enterTurbo(t, c, session, rt.GateWaits)

	_, err := waitFrame(c, session)
	require.NoError(t, err)

	second := waitAsync(c, session)
	third := waitAsync(c, session)
	assert.Never(t, func() bool { return len(second) > 0 || len(third) > 0 }, settle, 5*time.Millisecond)
	assert.Equal(t, 1, rt.InFlightWaits(session))

	rt.ReleaseWait()
	r2 := receive(t, second)
	r3 := receive(t, third)
	require.NoError(t, r2.err)
	require.NoError(t, r3.err)
	assert.NotEqual(t, r2.state.PredictedDisplayTime, r3.state.PredictedDisplayTime)

	assert.Equal(t, 2, rt.Calls("xrWaitFrame"))
	assert.Equal(t, 1.0, testutil.ToFloat64(asyncWaitsStartedTotal)-started)
	assert.Equal(t, 2.0, testutil.ToFloat64(frameWaitsTotal.WithLabelValues(pathJoined))-joined)

	rt.OpenGate()
	c.BeforeDestroySession()
}

func TestBeginFrameDeferredWhileOutstanding(t *testing.T) {
	rt := simruntime.New()
	session := startSession(t, rt)
	c := New(rt)

	enterTurbo(t, c, session, nil)
	begins := rt.Calls("xrBeginFrame")

	_, err := waitFrame(c, session)
	require.NoError(t, err)
	require.NoError(t, c.BeginFrame(session, &xr.FrameBeginInfo{Type: xr.TypeFrameBeginInfo}))
	assert.Equal(t, begins, rt.Calls("xrBeginFrame"))

	require.NoError(t, c.EndFrame(session, endInfo()))
	assert.Equal(t, begins+1, rt.Calls("xrBeginFrame"))

	c.SetTurboMode(false)
	_, err = waitFrame(c, session)
	require.NoError(t, err)
	require.NoError(t, c.BeginFrame(session, &xr.FrameBeginInfo{Type: xr.TypeFrameBeginInfo}))
	require.NoError(t, c.EndFrame(session, endInfo()))
	assert.Equal(t, Idle, c.State())

	frame(t, c, session)
	assert.Equal(t, Idle, c.State())
	assert.Empty(t, rt.Violations())
}

func TestEndFrameTimeoutKeepsTask(t *testing.T) {
	rt := simruntime.New()
	session := startSession(t, rt)
	c := New(rt, WithJoinTimeouts(settle, time.Second))

	timeouts := testutil.ToFloat64(joinTimeoutsTotal.WithLabelValues("end_frame"))

	enterTurbo(t, c, session, rt.GateWaits)
	_, err := waitFrame(c, session)
	require.NoError(t, err)
	require.NoError(t, c.BeginFrame(session, &xr.FrameBeginInfo{Type: xr.TypeFrameBeginInfo}))

	begins := rt.Calls("xrBeginFrame")
	start := time.Now()
	err = c.EndFrame(session, endInfo())
	assert.GreaterOrEqual(t, time.Since(start), settle)
	assert.ErrorIs(t, err, xr.ErrorCallOrderInvalid)

	assert.Equal(t, begins, rt.Calls("xrBeginFrame"))
	assert.Equal(t, Polled, c.State())
	assert.Equal(t, 2, rt.Calls("xrWaitFrame"))
	assert.Equal(t, 1.0, testutil.ToFloat64(joinTimeoutsTotal.WithLabelValues("end_frame"))-timeouts)

	rt.OpenGate()
	c.BeforeDestroySession()
}

func TestBackgroundWaitErrorSurfaced(t *testing.T) {
	rt := simruntime.New()
	session := startSession(t, rt)
	c := New(rt)

	failures := testutil.ToFloat64(asyncWaitFailuresTotal)

	enterTurbo(t, c, session, func() { rt.FailNext("xrWaitFrame", xr.ErrorSessionLost) })
	require.Eventually(t, func() bool { return c.State() == Completed }, time.Second, time.Millisecond)

	_, err := waitFrame(c, session)
	assert.ErrorIs(t, err, xr.ErrorSessionLost)
	assert.Equal(t, 1.0, testutil.ToFloat64(asyncWaitFailuresTotal)-failures)

	c.SetTurboMode(false)
	begins := rt.Calls("xrBeginFrame")
	assert.ErrorIs(t, c.EndFrame(session, endInfo()), xr.ErrorCallOrderInvalid)
	assert.Equal(t, begins, rt.Calls("xrBeginFrame"))
	assert.Equal(t, Idle, c.State())
}

// =============================================================================
// End frame validation
// =============================================================================

func TestEndFrameValidation(t *testing.T) {
	rt := simruntime.New()
	session := startSession(t, rt)
	c := New(rt)

	var nilProjection *xr.CompositionLayerProjection
	tests := []struct {
		name string
		info *xr.FrameEndInfo
		want error
	}{
		{"nil info", nil, xr.ErrorValidationFailure},
		{"wrong type", &xr.FrameEndInfo{Type: xr.TypeFrameBeginInfo}, xr.ErrorValidationFailure},
		{"nil layer", endInfo(&xr.CompositionLayerQuad{}, nil), xr.ErrorLayerInvalid},
		{"typed nil layer", endInfo(nilProjection), xr.ErrorLayerInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, c.EndFrame(session, tt.info), tt.want)
		})
	}
	assert.Zero(t, rt.Calls("xrEndFrame"))
}

// =============================================================================
// Teardown joins
// =============================================================================

func TestBeforeDestroySwapchainBlocks(t *testing.T) {
	rt := simruntime.New()
	session := startSession(t, rt)
	c := New(rt)

	enterTurbo(t, c, session, rt.GateWaits)

	done := make(chan struct{})
	go func() {
		c.BeforeDestroySwapchain()
		close(done)
	}()
	assert.Never(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, settle, 5*time.Millisecond)

	rt.ReleaseWait()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BeforeDestroySwapchain did not return")
	}
	assert.Zero(t, rt.InFlightWaits(session))
	assert.Equal(t, Completed, c.State())

	rt.OpenGate()
	c.BeforeDestroySession()
}

func TestBeforeDestroySessionBounded(t *testing.T) {
	rt := simruntime.New()
	session := startSession(t, rt)
	c := New(rt, WithJoinTimeouts(time.Second, 2*settle))

	timeouts := testutil.ToFloat64(joinTimeoutsTotal.WithLabelValues("destroy_session"))

	enterTurbo(t, c, session, rt.GateWaits)

	start := time.Now()
	c.BeforeDestroySession()
	assert.GreaterOrEqual(t, time.Since(start), 2*settle)
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(joinTimeoutsTotal.WithLabelValues("destroy_session"))-timeouts)

	rt.OpenGate()
	require.Eventually(t, func() bool { return rt.InFlightWaits(session) == 0 }, time.Second, time.Millisecond)
}

func TestBeforeDestroySessionJoinsCompletedWait(t *testing.T) {
	rt := simruntime.New()
	session := startSession(t, rt)
	c := New(rt)

	enterTurbo(t, c, session, rt.GateWaits)

	done := make(chan struct{})
	go func() {
		c.BeforeDestroySession()
		close(done)
	}()
	time.Sleep(settle)
	rt.ReleaseWait()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BeforeDestroySession did not return")
	}
	require.NoError(t, rt.DestroySession(session))
	assert.Empty(t, rt.Violations())
}

func TestNoBackgroundWaitAfterBeforeDestroySession(t *testing.T) {
	rt := simruntime.New()
	session := startSession(t, rt)
	c := New(rt)

	enterTurbo(t, c, session, nil)
	require.Eventually(t, func() bool { return c.State() == Completed }, time.Second, time.Millisecond)

	c.BeforeDestroySession()
	require.Equal(t, Idle, c.State())

	started := testutil.ToFloat64(asyncWaitsStartedTotal)
	frame(t, c, session)

	assert.Equal(t, Idle, c.State())
	assert.Equal(t, 0.0, testutil.ToFloat64(asyncWaitsStartedTotal)-started)
	assert.Zero(t, rt.InFlightWaits(session))
	assert.True(t, c.TurboMode())
}
