// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package simruntime

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/mbucchia/Varjo-Foveated/xr"
)

// App drives the call sequence of a quad view application: one swapchain
// per view sized from the recommended resolutions, and a projection layer
// submitted every frame.
type App struct {
	rt xr.Runtime

	Instance   xr.Instance
	System     xr.SystemID
	Session    xr.Session
	Space      xr.Space
	Views      []xr.ViewConfigurationView
	Swapchains []xr.Swapchain
}

// NewApp creates and begins a quad view session on rt. binding may be nil.
func NewApp(rt xr.Runtime, name string, binding gpucontext.DeviceProvider) (*App, error) {
	a := &App{rt: rt}

	var err error
	a.Instance, err = rt.CreateInstance(&xr.InstanceCreateInfo{
		Type:                  xr.TypeInstanceCreateInfo,
		ApplicationInfo:       xr.ApplicationInfo{ApplicationName: name, APIVersion: xr.MakeVersion(1, 0, 0)},
		EnabledExtensionNames: []string{xr.QuadViewsExtensionName},
	})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	a.System, err = rt.GetSystem(a.Instance, &xr.SystemGetInfo{
		Type:       xr.TypeSystemGetInfo,
		FormFactor: xr.FormFactorHeadMountedDisplay,
	})
	if err != nil {
		return nil, fmt.Errorf("get system: %w", err)
	}

	count, err := rt.EnumerateViewConfigurationViews(a.Instance, a.System, xr.ViewConfigurationTypePrimaryQuadVarjo, nil)
	if err != nil {
		return nil, fmt.Errorf("count views: %w", err)
	}
	a.Views = make([]xr.ViewConfigurationView, count)
	for i := range a.Views {
		a.Views[i].Type = xr.TypeViewConfigurationView
	}
	if _, err := rt.EnumerateViewConfigurationViews(a.Instance, a.System, xr.ViewConfigurationTypePrimaryQuadVarjo, a.Views); err != nil {
		return nil, fmt.Errorf("enumerate views: %w", err)
	}

	a.Session, err = rt.CreateSession(a.Instance, &xr.SessionCreateInfo{
		Type:            xr.TypeSessionCreateInfo,
		SystemID:        a.System,
		GraphicsBinding: binding,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := rt.BeginSession(a.Session, &xr.SessionBeginInfo{
		Type:                         xr.TypeSessionBeginInfo,
		PrimaryViewConfigurationType: xr.ViewConfigurationTypePrimaryQuadVarjo,
	}); err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}

	a.Space, err = rt.CreateReferenceSpace(a.Session, &xr.ReferenceSpaceCreateInfo{
		Type:                 xr.TypeReferenceSpaceCreateInfo,
		ReferenceSpaceType:   xr.ReferenceSpaceTypeLocal,
		PoseInReferenceSpace: xr.IdentityPose(),
	})
	if err != nil {
		return nil, fmt.Errorf("create space: %w", err)
	}

	format := gputypes.TextureFormatRGBA8UnormSrgb
	if binding != nil && binding.SurfaceFormat() != gputypes.TextureFormatUndefined {
		format = binding.SurfaceFormat()
	}
	for _, view := range a.Views {
		swapchain, err := rt.CreateSwapchain(a.Session, &xr.SwapchainCreateInfo{
			Type:        xr.TypeSwapchainCreateInfo,
			Usage:       gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
			Format:      format,
			SampleCount: view.RecommendedSwapchainSampleCount,
			Size: gputypes.Extent3D{
				Width:              view.RecommendedImageRectWidth,
				Height:             view.RecommendedImageRectHeight,
				DepthOrArrayLayers: 1,
			},
			FaceCount: 1,
			MipCount:  1,
		})
		if err != nil {
			return nil, fmt.Errorf("create swapchain: %w", err)
		}
		a.Swapchains = append(a.Swapchains, swapchain)
	}
	return a, nil
}

// Frame runs one wait/begin/locate/render/end cycle and returns the frame
// timing the application was given.
func (a *App) Frame() (xr.FrameState, error) {
	state := xr.FrameState{Type: xr.TypeFrameState}
	if err := a.rt.WaitFrame(a.Session, &xr.FrameWaitInfo{Type: xr.TypeFrameWaitInfo}, &state); err != nil {
		return state, fmt.Errorf("wait frame: %w", err)
	}
	if err := a.rt.BeginFrame(a.Session, &xr.FrameBeginInfo{Type: xr.TypeFrameBeginInfo}); err != nil {
		return state, fmt.Errorf("begin frame: %w", err)
	}

	views := make([]xr.View, len(a.Views))
	for i := range views {
		views[i].Type = xr.TypeView
	}
	viewState := xr.ViewState{Type: xr.TypeViewState}
	if _, err := a.rt.LocateViews(a.Session, &xr.ViewLocateInfo{
		Type:                  xr.TypeViewLocateInfo,
		ViewConfigurationType: xr.ViewConfigurationTypePrimaryQuadVarjo,
		DisplayTime:           state.PredictedDisplayTime,
		Space:                 a.Space,
	}, &viewState, views); err != nil {
		return state, fmt.Errorf("locate views: %w", err)
	}

	projection := &xr.CompositionLayerProjection{Space: a.Space}
	for i, swapchain := range a.Swapchains {
		if _, err := a.rt.AcquireSwapchainImage(swapchain, &xr.SwapchainImageAcquireInfo{Type: xr.TypeSwapchainImageAcquireInfo}); err != nil {
			return state, fmt.Errorf("acquire image: %w", err)
		}
		if err := a.rt.WaitSwapchainImage(swapchain, &xr.SwapchainImageWaitInfo{Type: xr.TypeSwapchainImageWaitInfo, Timeout: xr.Duration(-1)}); err != nil {
			return state, fmt.Errorf("wait image: %w", err)
		}
		if err := a.rt.ReleaseSwapchainImage(swapchain, &xr.SwapchainImageReleaseInfo{Type: xr.TypeSwapchainImageReleaseInfo}); err != nil {
			return state, fmt.Errorf("release image: %w", err)
		}
		projection.Views = append(projection.Views, xr.CompositionLayerProjectionView{
			Pose: views[i].Pose,
			Fov:  views[i].Fov,
			SubImage: xr.SwapchainSubImage{
				Swapchain: swapchain,
				ImageRect: xr.Rect2Di{Extent: xr.Extent2Di{
					Width:  int32(a.Views[i].RecommendedImageRectWidth),
					Height: int32(a.Views[i].RecommendedImageRectHeight),
				}},
			},
		})
	}

	if err := a.rt.EndFrame(a.Session, &xr.FrameEndInfo{
		Type:                 xr.TypeFrameEndInfo,
		DisplayTime:          state.PredictedDisplayTime,
		EnvironmentBlendMode: xr.EnvironmentBlendModeOpaque,
		Layers:               []xr.CompositionLayer{projection},
	}); err != nil {
		return state, fmt.Errorf("end frame: %w", err)
	}
	return state, nil
}

// Close tears the application down in reverse creation order. All teardown
// calls are issued; their errors are joined.
func (a *App) Close() error {
	var errs []error
	for _, swapchain := range a.Swapchains {
		errs = append(errs, a.rt.DestroySwapchain(swapchain))
	}
	a.Swapchains = nil
	if a.Space != 0 {
		errs = append(errs, a.rt.DestroySpace(a.Space))
	}
	errs = append(errs,
		a.rt.EndSession(a.Session),
		a.rt.DestroySession(a.Session),
		a.rt.DestroyInstance(a.Instance))
	return errors.Join(errs...)
}
