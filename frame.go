// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package foveated

import (
	"github.com/gogpu/gputypes"

	"github.com/mbucchia/Varjo-Foveated/xr"
)

// CreateSwapchain validates and reports the requested swapchain before
// creating it.
func (l *Layer) CreateSwapchain(session xr.Session, info *xr.SwapchainCreateInfo) (xr.Swapchain, error) {
	if l.active() == nil {
		return l.Passthrough.CreateSwapchain(session, info)
	}
	if info == nil || info.Type != xr.TypeSwapchainCreateInfo {
		return 0, xr.ErrorValidationFailure
	}

	Logger().Info("creating swapchain",
		"session", session,
		"width", info.Size.Width,
		"height", info.Size.Height,
		"arraySize", info.Size.DepthOrArrayLayers,
		"mipCount", info.MipCount,
		"sampleCount", info.SampleCount,
		"format", info.Format.String(),
		"usage", usageNames(info.Usage),
		"renderTarget", info.Usage.Contains(gputypes.TextureUsageRenderAttachment))

	swapchain, err := l.Passthrough.CreateSwapchain(session, info)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	l.swapchains[swapchain] = session
	l.mu.Unlock()
	return swapchain, nil
}

var usageFlags = []struct {
	flag gputypes.TextureUsage
	name string
}{
	{gputypes.TextureUsageCopySrc, "CopySrc"},
	{gputypes.TextureUsageCopyDst, "CopyDst"},
	{gputypes.TextureUsageTextureBinding, "TextureBinding"},
	{gputypes.TextureUsageStorageBinding, "StorageBinding"},
	{gputypes.TextureUsageRenderAttachment, "RenderAttachment"},
}

// usageNames lists the usage flags set in u, in bit order.
func usageNames(u gputypes.TextureUsage) []string {
	var names []string
	for _, f := range usageFlags {
		if u.Contains(f.flag) {
			names = append(names, f.name)
		}
	}
	if u.ContainsUnknownBits() {
		names = append(names, "Unknown")
	}
	return names
}

// DestroySwapchain waits for any outstanding background frame wait of the
// owning session before destroying the swapchain.
func (l *Layer) DestroySwapchain(swapchain xr.Swapchain) error {
	l.mu.Lock()
	session, ok := l.swapchains[swapchain]
	delete(l.swapchains, swapchain)
	c := l.sessions[session]
	l.mu.Unlock()

	if ok && c != nil {
		c.BeforeDestroySwapchain()
	}
	return l.Passthrough.DestroySwapchain(swapchain)
}

// WaitSwapchainImage validates info and forwards the call.
func (l *Layer) WaitSwapchainImage(swapchain xr.Swapchain, info *xr.SwapchainImageWaitInfo) error {
	if l.active() != nil && (info == nil || info.Type != xr.TypeSwapchainImageWaitInfo) {
		return xr.ErrorValidationFailure
	}
	return l.Passthrough.WaitSwapchainImage(swapchain, info)
}

// WaitFrame paces the application's frame. See [pacing.Controller.WaitFrame].
func (l *Layer) WaitFrame(session xr.Session, info *xr.FrameWaitInfo, state *xr.FrameState) error {
	if c := l.controller(session); c != nil {
		return c.WaitFrame(session, info, state)
	}
	return l.Passthrough.WaitFrame(session, info, state)
}

// BeginFrame begins the application's frame, deferring the real call while a
// background frame wait is outstanding.
func (l *Layer) BeginFrame(session xr.Session, info *xr.FrameBeginInfo) error {
	if c := l.controller(session); c != nil {
		return c.BeginFrame(session, info)
	}
	return l.Passthrough.BeginFrame(session, info)
}

// EndFrame submits the application's frame. In turbo mode it also starts the
// background wait for the next frame.
func (l *Layer) EndFrame(session xr.Session, info *xr.FrameEndInfo) error {
	if c := l.controller(session); c != nil {
		return c.EndFrame(session, info)
	}
	return l.Passthrough.EndFrame(session, info)
}

var _ xr.Runtime = (*Layer)(nil)
