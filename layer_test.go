// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package foveated

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbucchia/Varjo-Foveated/config"
	"github.com/mbucchia/Varjo-Foveated/internal/simruntime"
	"github.com/mbucchia/Varjo-Foveated/pacing"
	"github.com/mbucchia/Varjo-Foveated/xr"
)

const settle = 50 * time.Millisecond

func newLayer(rt xr.Runtime, opts ...Option) *Layer {
	return New(rt, append([]Option{WithConfigPaths()}, opts...)...)
}

func turboConfig() config.Snapshot {
	cfg := config.Default()
	cfg.TurboMode = true
	return cfg
}

func waitFrame(l *Layer, session xr.Session) (xr.FrameState, error) {
	state := xr.FrameState{Type: xr.TypeFrameState}
	err := l.WaitFrame(session, &xr.FrameWaitInfo{Type: xr.TypeFrameWaitInfo}, &state)
	return state, err
}

// async runs fn in a goroutine and delivers its result.
func async(fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	return done
}

func receive(t *testing.T, done <-chan error, what string) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("%s did not return", what)
		return nil
	}
}

// =============================================================================
// Instance
// =============================================================================

func TestCreateInstanceValidation(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt)

	_, err := l.CreateInstance(&xr.InstanceCreateInfo{Type: xr.TypeSessionCreateInfo})
	assert.ErrorIs(t, err, xr.ErrorValidationFailure)
	_, err = l.CreateInstance(nil)
	assert.ErrorIs(t, err, xr.ErrorValidationFailure)
	assert.Zero(t, rt.Calls("xrCreateInstance"))
}

func TestCreateInstanceBypass(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt, WithConfig(turboConfig()))

	instance, err := l.CreateInstance(&xr.InstanceCreateInfo{Type: xr.TypeInstanceCreateInfo})
	require.NoError(t, err)
	assert.True(t, l.Bypassed())
	assert.Empty(t, rt.LastEnabledExtensions())
	assert.Zero(t, rt.Calls("xrGetSystemProperties"))

	system, err := l.GetSystem(instance, &xr.SystemGetInfo{Type: xr.TypeSystemGetInfo, FormFactor: xr.FormFactorHeadMountedDisplay})
	require.NoError(t, err)

	views := []xr.ViewConfigurationView{{Type: xr.TypeViewConfigurationView}, {Type: xr.TypeViewConfigurationView}}
	_, err = l.EnumerateViewConfigurationViews(instance, system, xr.ViewConfigurationTypePrimaryStereo, views)
	require.NoError(t, err)
	assert.Empty(t, rt.LastViewChain())

	session, err := l.CreateSession(instance, &xr.SessionCreateInfo{Type: xr.TypeSessionCreateInfo, SystemID: system})
	require.NoError(t, err)
	assert.Equal(t, pacing.Idle, l.PacingState(session))
}

func TestCreateInstanceRequestsFoveatedRendering(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt)

	requested := []string{xr.QuadViewsExtensionName}
	_, err := l.CreateInstance(&xr.InstanceCreateInfo{
		Type:                  xr.TypeInstanceCreateInfo,
		EnabledExtensionNames: requested,
	})
	require.NoError(t, err)

	assert.False(t, l.Bypassed())
	assert.Equal(t, []string{xr.QuadViewsExtensionName, xr.FoveatedRenderingExtensionName}, rt.LastEnabledExtensions())
	assert.Equal(t, []string{xr.QuadViewsExtensionName}, requested)
	assert.Equal(t, 1, rt.Calls("xrGetSystemProperties"))
}

func TestCreateInstanceFoveatedRenderingNotOffered(t *testing.T) {
	rt := simruntime.New(simruntime.WithExtensions(xr.QuadViewsExtensionName))
	l := newLayer(rt)

	_, err := l.CreateInstance(&xr.InstanceCreateInfo{
		Type:                  xr.TypeInstanceCreateInfo,
		EnabledExtensionNames: []string{xr.QuadViewsExtensionName},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{xr.QuadViewsExtensionName}, rt.LastEnabledExtensions())
}

func TestCreateInstanceSystemFailureIsFatal(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt)
	rt.FailNext("xrGetSystem", xr.ErrorFormFactorUnavailable)

	assert.Panics(t, func() {
		_, _ = l.CreateInstance(&xr.InstanceCreateInfo{
			Type:                  xr.TypeInstanceCreateInfo,
			EnabledExtensionNames: []string{xr.QuadViewsExtensionName},
		})
	})
}

func TestCreateInstanceLoadsConfiguration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	require.NoError(t, os.WriteFile(path, []byte("peripheral_multiplier=0.5\nturbo_mode=1\nbogus\n"), 0o600))

	rt := simruntime.New()
	l := New(rt, WithConfigPaths(filepath.Join(t.TempDir(), config.FileName), path))

	app, err := simruntime.NewApp(l, "config-test", nil)
	require.NoError(t, err)

	cfg, from := l.Config()
	assert.Equal(t, path, from)
	assert.True(t, cfg.TurboMode)
	assert.Equal(t, float32(0.5), cfg.PeripheralMultiplier)

	assert.EqualValues(t, 1000, app.Views[0].RecommendedImageRectWidth)
	assert.EqualValues(t, 2000, app.Views[2].RecommendedImageRectWidth)
	assert.EqualValues(t, 2000, rt.LastSwapchainInfo().Size.Width, "last swapchain is a focus view")
}

func TestDestroyInstanceResets(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt, WithConfig(turboConfig()))

	instance, _, session, err := simruntime.StartSession(l)
	require.NoError(t, err)
	cfg, _ := l.Config()
	require.True(t, cfg.TurboMode)

	require.NoError(t, l.DestroySession(session))
	require.NoError(t, l.DestroyInstance(instance))
	cfg, path := l.Config()
	assert.Equal(t, config.Default(), cfg)
	assert.Empty(t, path)
}

func TestDestroyInstanceClearsBypass(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt)

	instance, err := l.CreateInstance(&xr.InstanceCreateInfo{Type: xr.TypeInstanceCreateInfo})
	require.NoError(t, err)
	require.True(t, l.Bypassed())

	require.NoError(t, l.DestroyInstance(instance))
	assert.False(t, l.Bypassed())
}

func TestDestroyInstanceWaitsForBackgroundWait(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt, WithConfig(turboConfig()))
	instance, _, session, err := simruntime.StartSession(l)
	require.NoError(t, err)

	_, err = waitFrame(l, session)
	require.NoError(t, err)
	require.NoError(t, l.BeginFrame(session, &xr.FrameBeginInfo{Type: xr.TypeFrameBeginInfo}))
	rt.GateWaits()
	require.NoError(t, l.EndFrame(session, &xr.FrameEndInfo{Type: xr.TypeFrameEndInfo}))
	require.Equal(t, pacing.Pending, l.PacingState(session))

	destroyed := async(func() error { return l.DestroyInstance(instance) })
	assert.Never(t, func() bool { return len(destroyed) > 0 }, settle, 5*time.Millisecond)
	assert.Zero(t, rt.Calls("xrDestroyInstance"))

	rt.ReleaseWait()
	require.NoError(t, receive(t, destroyed, "DestroyInstance"))
	assert.Zero(t, rt.InFlightWaits(session))
	assert.Equal(t, 1, rt.Calls("xrDestroyInstance"))
	assert.Equal(t, pacing.Idle, l.PacingState(session))
	assert.Empty(t, rt.Violations())
}

// =============================================================================
// Session
// =============================================================================

// nilSessionInfo accepts a nil session create info.
type nilSessionInfo struct {
	*simruntime.Runtime
}

func (r nilSessionInfo) CreateSession(instance xr.Instance, info *xr.SessionCreateInfo) (xr.Session, error) {
	if info == nil {
		info = &xr.SessionCreateInfo{Type: xr.TypeSessionCreateInfo, SystemID: 1}
	}
	return r.Runtime.CreateSession(instance, info)
}

func TestCreateSessionWithoutCreateInfo(t *testing.T) {
	rt := nilSessionInfo{simruntime.New()}
	l := newLayer(rt, WithConfig(turboConfig()))
	instance, err := l.CreateInstance(&xr.InstanceCreateInfo{
		Type:                  xr.TypeInstanceCreateInfo,
		EnabledExtensionNames: []string{xr.QuadViewsExtensionName},
	})
	require.NoError(t, err)

	var session xr.Session
	require.NotPanics(t, func() {
		session, err = l.CreateSession(instance, nil)
	})
	require.NoError(t, err)
	assert.NoError(t, l.DestroySession(session))
}

func TestBeginSessionValidation(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt)
	_, _, session, err := simruntime.StartSession(l)
	require.NoError(t, err)

	assert.ErrorIs(t, l.BeginSession(session, &xr.SessionBeginInfo{Type: xr.TypeFrameBeginInfo}), xr.ErrorValidationFailure)
	assert.Equal(t, 1, rt.Calls("xrBeginSession"))
}

func TestBeginSessionRecreatesGazeSpaces(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt)
	app, err := simruntime.NewApp(l, "spaces-test", nil)
	require.NoError(t, err)

	_, err = app.Frame()
	require.NoError(t, err)
	assert.Equal(t, 1, rt.LiveSpaces(xr.ReferenceSpaceTypeCombinedEyeVarjo))

	require.NoError(t, l.EndSession(app.Session))
	require.NoError(t, l.BeginSession(app.Session, &xr.SessionBeginInfo{
		Type:                         xr.TypeSessionBeginInfo,
		PrimaryViewConfigurationType: xr.ViewConfigurationTypePrimaryQuadVarjo,
	}))
	assert.Zero(t, rt.LiveSpaces(xr.ReferenceSpaceTypeCombinedEyeVarjo))

	_, err = app.Frame()
	require.NoError(t, err)
	assert.Equal(t, 1, rt.LiveSpaces(xr.ReferenceSpaceTypeCombinedEyeVarjo))
	assert.Equal(t, 1, rt.LiveSpaces(xr.ReferenceSpaceTypeView))

	require.NoError(t, app.Close())
	assert.Empty(t, rt.Violations())
}

func TestNoEyeTrackingCreatesNoSpaces(t *testing.T) {
	cfg := config.Default()
	cfg.EyeTracking = false

	rt := simruntime.New()
	l := newLayer(rt, WithConfig(cfg))
	app, err := simruntime.NewApp(l, "no-eye-tracking", nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = app.Frame()
		require.NoError(t, err)
		_, active := rt.LastLocateChain()
		assert.False(t, active)
	}
	assert.Zero(t, rt.LiveSpaces(xr.ReferenceSpaceTypeCombinedEyeVarjo))
	assert.Zero(t, rt.LiveSpaces(xr.ReferenceSpaceTypeView))
	assert.Equal(t, []xr.StructureType{xr.TypeFoveatedViewConfigurationViewVarjo}, rt.LastViewChain())
}

// =============================================================================
// Swapchains
// =============================================================================

func TestCreateSwapchainValidation(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt)
	_, _, session, err := simruntime.StartSession(l)
	require.NoError(t, err)

	_, err = l.CreateSwapchain(session, &xr.SwapchainCreateInfo{Type: xr.TypeSessionCreateInfo})
	assert.ErrorIs(t, err, xr.ErrorValidationFailure)
	assert.Zero(t, rt.Calls("xrCreateSwapchain"))

	swapchain, err := l.CreateSwapchain(session, &xr.SwapchainCreateInfo{
		Type:   xr.TypeSwapchainCreateInfo,
		Usage:  gputypes.TextureUsageRenderAttachment,
		Format: gputypes.TextureFormatBGRA8UnormSrgb,
		Size:   gputypes.Extent3D{Width: 1024, Height: 1024, DepthOrArrayLayers: 1},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, l.WaitSwapchainImage(swapchain, nil), xr.ErrorValidationFailure)
	assert.ErrorIs(t, l.WaitSwapchainImage(swapchain, &xr.SwapchainImageWaitInfo{Type: xr.TypeFrameWaitInfo}), xr.ErrorValidationFailure)
	assert.Zero(t, rt.Calls("xrWaitSwapchainImage"))
}

func TestDestroySwapchainWaitsForBackgroundWait(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt, WithConfig(turboConfig()))
	app, err := simruntime.NewApp(l, "swapchain-test", simruntime.NewDevice())
	require.NoError(t, err)

	_, err = app.Frame()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return l.PacingState(app.Session) == pacing.Completed },
		time.Second, time.Millisecond)

	rt.GateWaits()
	_, err = app.Frame()
	require.NoError(t, err)
	require.Equal(t, pacing.Pending, l.PacingState(app.Session))

	destroyed := async(func() error { return l.DestroySwapchain(app.Swapchains[0]) })
	assert.Never(t, func() bool { return len(destroyed) > 0 }, settle, 5*time.Millisecond)
	assert.Zero(t, rt.Calls("xrDestroySwapchain"))

	rt.OpenGate()
	require.NoError(t, receive(t, destroyed, "DestroySwapchain"))
	assert.Equal(t, 1, rt.Calls("xrDestroySwapchain"))

	app.Swapchains = app.Swapchains[1:]
	require.NoError(t, app.Close())
	assert.Empty(t, rt.Violations())
}

// =============================================================================
// Frames
// =============================================================================

func TestTurboSessionEndToEnd(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt, WithConfig(turboConfig()))
	app, err := simruntime.NewApp(l, "turbo-test", simruntime.NewDevice())
	require.NoError(t, err)

	var last xr.Time
	for i := 0; i < 20; i++ {
		state, err := app.Frame()
		require.NoError(t, err, "frame %d", i)
		assert.Greater(t, state.PredictedDisplayTime, last, "frame %d", i)
		assert.True(t, state.ShouldRender)
		last = state.PredictedDisplayTime

		_, active := rt.LastLocateChain()
		assert.True(t, active, "frame %d", i)
	}

	require.NoError(t, app.Close())
	assert.Empty(t, rt.Violations())
	assert.Equal(t, pacing.Idle, l.PacingState(app.Session))
}

func TestTurboModeEnabledMidSession(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt)
	app, err := simruntime.NewApp(l, "mid-session", nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = app.Frame()
		require.NoError(t, err)
	}
	require.Equal(t, pacing.Idle, l.PacingState(app.Session))

	_, err = waitFrame(l, app.Session)
	require.NoError(t, err)
	require.NoError(t, l.BeginFrame(app.Session, &xr.FrameBeginInfo{Type: xr.TypeFrameBeginInfo}))
	l.SetTurboMode(true)
	rt.GateWaits()
	require.NoError(t, l.EndFrame(app.Session, &xr.FrameEndInfo{Type: xr.TypeFrameEndInfo}))
	require.Equal(t, pacing.Pending, l.PacingState(app.Session))

	var first, second xr.FrameState
	require.NoError(t, receive(t, async(func() (err error) {
		first, err = waitFrame(l, app.Session)
		return err
	}), "first WaitFrame"))
	assert.Equal(t, pacing.Polled, l.PacingState(app.Session))

	blocked := async(func() (err error) {
		second, err = waitFrame(l, app.Session)
		return err
	})
	assert.Never(t, func() bool { return len(blocked) > 0 }, settle, 5*time.Millisecond)

	rt.ReleaseWait()
	require.NoError(t, receive(t, blocked, "second WaitFrame"))
	assert.Greater(t, second.PredictedDisplayTime, first.PredictedDisplayTime)

	rt.OpenGate()
	require.NoError(t, l.EndFrame(app.Session, &xr.FrameEndInfo{Type: xr.TypeFrameEndInfo}))
	l.SetTurboMode(false)
	require.NoError(t, app.Close())
	assert.Empty(t, rt.Violations())
}

func TestDestroySessionWaitsForBackgroundWait(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt, WithConfig(turboConfig()))
	_, _, session, err := simruntime.StartSession(l)
	require.NoError(t, err)

	_, err = waitFrame(l, session)
	require.NoError(t, err)
	require.NoError(t, l.BeginFrame(session, &xr.FrameBeginInfo{Type: xr.TypeFrameBeginInfo}))
	rt.GateWaits()
	require.NoError(t, l.EndFrame(session, &xr.FrameEndInfo{Type: xr.TypeFrameEndInfo}))
	require.Equal(t, pacing.Pending, l.PacingState(session))

	destroyed := async(func() error { return l.DestroySession(session) })
	assert.Never(t, func() bool { return len(destroyed) > 0 }, settle, 5*time.Millisecond)
	assert.Zero(t, rt.Calls("xrDestroySession"))

	rt.ReleaseWait()
	require.NoError(t, receive(t, destroyed, "DestroySession"))
	assert.Empty(t, rt.Violations())
	assert.Equal(t, pacing.Idle, l.PacingState(session))
}

func TestDestroySessionBoundedWait(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt, WithConfig(turboConfig()), WithJoinTimeouts(time.Second, 2*settle))
	_, _, session, err := simruntime.StartSession(l)
	require.NoError(t, err)

	_, err = waitFrame(l, session)
	require.NoError(t, err)
	require.NoError(t, l.BeginFrame(session, &xr.FrameBeginInfo{Type: xr.TypeFrameBeginInfo}))
	rt.GateWaits()
	require.NoError(t, l.EndFrame(session, &xr.FrameEndInfo{Type: xr.TypeFrameEndInfo}))

	start := time.Now()
	require.NoError(t, l.DestroySession(session))
	assert.GreaterOrEqual(t, time.Since(start), 2*settle)
	rt.OpenGate()
}

func TestFramesWithoutLayerSessionPassThrough(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt)
	_, err := l.CreateInstance(&xr.InstanceCreateInfo{Type: xr.TypeInstanceCreateInfo})
	require.NoError(t, err)

	state := xr.FrameState{Type: xr.TypeFrameState}
	err = l.WaitFrame(xr.Session(999), nil, &state)
	assert.ErrorIs(t, err, xr.ErrorHandleInvalid)
	assert.Equal(t, 1, rt.Calls("xrWaitFrame"))
}

func TestCloseJoinsOutstandingWaits(t *testing.T) {
	rt := simruntime.New()
	l := newLayer(rt, WithConfig(turboConfig()))
	app, err := simruntime.NewApp(l, "close-test", nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = app.Frame()
		require.NoError(t, err)
	}
	require.NotEqual(t, pacing.Idle, l.PacingState(app.Session))

	l.Close()
	assert.Equal(t, pacing.Idle, l.PacingState(app.Session))
	assert.Zero(t, rt.InFlightWaits(app.Session))
	assert.Zero(t, rt.LiveSpaces(xr.ReferenceSpaceTypeCombinedEyeVarjo))
}

func TestUsageNames(t *testing.T) {
	tests := []struct {
		usage gputypes.TextureUsage
		want  []string
	}{
		{gputypes.TextureUsageNone, nil},
		{gputypes.TextureUsageRenderAttachment, []string{"RenderAttachment"}},
		{gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding, []string{"TextureBinding", "RenderAttachment"}},
		{gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageStorageBinding, []string{"CopySrc", "CopyDst", "StorageBinding"}},
		{gputypes.TextureUsageCopySrc | 0x100, []string{"CopySrc", "Unknown"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, usageNames(tt.usage), "usage %#x", uint64(tt.usage))
	}
}
