// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package dispatch forwards XR calls to the next runtime in the chain.
//
// [Passthrough] implements every [xr.Runtime] call by handing its arguments
// unchanged to the next implementation and returning the results unchanged.
// Layers embed it and override only the calls they intercept:
//
//	type Layer struct {
//	    *dispatch.Passthrough
//	}
//
//	func (l *Layer) WaitFrame(s xr.Session, info *xr.FrameWaitInfo, st *xr.FrameState) error {
//	    // ...
//	    return l.Passthrough.WaitFrame(s, info, st)
//	}
package dispatch

import (
	"context"
	"log/slog"

	"github.com/mbucchia/Varjo-Foveated/internal/trace"
	"github.com/mbucchia/Varjo-Foveated/xr"
)

// Passthrough forwards every call to Next. It holds no other state and is
// safe for concurrent use as long as Next is.
type Passthrough struct {
	next xr.Runtime
}

// New returns a Passthrough forwarding to next.
func New(next xr.Runtime) *Passthrough {
	return &Passthrough{next: next}
}

// Next returns the runtime calls are forwarded to.
func (p *Passthrough) Next() xr.Runtime {
	return p.next
}

// record traces a forwarded call. Tracing is the only side effect of the
// dispatcher.
func (p *Passthrough) record(call string, attrs ...any) {
	l := trace.Logger()
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.Debug(call, attrs...)
}

func (p *Passthrough) EnumerateInstanceExtensionProperties() ([]xr.ExtensionProperties, error) {
	p.record("xrEnumerateInstanceExtensionProperties")
	return p.next.EnumerateInstanceExtensionProperties()
}

func (p *Passthrough) CreateInstance(info *xr.InstanceCreateInfo) (xr.Instance, error) {
	p.record("xrCreateInstance")
	return p.next.CreateInstance(info)
}

func (p *Passthrough) DestroyInstance(instance xr.Instance) error {
	p.record("xrDestroyInstance", "instance", instance)
	return p.next.DestroyInstance(instance)
}

func (p *Passthrough) GetInstanceProperties(instance xr.Instance, props *xr.InstanceProperties) error {
	p.record("xrGetInstanceProperties", "instance", instance)
	return p.next.GetInstanceProperties(instance, props)
}

func (p *Passthrough) GetSystem(instance xr.Instance, info *xr.SystemGetInfo) (xr.SystemID, error) {
	p.record("xrGetSystem", "instance", instance)
	return p.next.GetSystem(instance, info)
}

func (p *Passthrough) GetSystemProperties(instance xr.Instance, system xr.SystemID, props *xr.SystemProperties) error {
	p.record("xrGetSystemProperties", "instance", instance, "system", system)
	return p.next.GetSystemProperties(instance, system, props)
}

func (p *Passthrough) EnumerateViewConfigurationViews(instance xr.Instance, system xr.SystemID, kind xr.ViewConfigurationType, views []xr.ViewConfigurationView) (uint32, error) {
	p.record("xrEnumerateViewConfigurationViews", "instance", instance, "kind", kind, "capacity", len(views))
	return p.next.EnumerateViewConfigurationViews(instance, system, kind, views)
}

func (p *Passthrough) CreateSession(instance xr.Instance, info *xr.SessionCreateInfo) (xr.Session, error) {
	p.record("xrCreateSession", "instance", instance)
	return p.next.CreateSession(instance, info)
}

func (p *Passthrough) DestroySession(session xr.Session) error {
	p.record("xrDestroySession", "session", session)
	return p.next.DestroySession(session)
}

func (p *Passthrough) BeginSession(session xr.Session, info *xr.SessionBeginInfo) error {
	p.record("xrBeginSession", "session", session)
	return p.next.BeginSession(session, info)
}

func (p *Passthrough) EndSession(session xr.Session) error {
	p.record("xrEndSession", "session", session)
	return p.next.EndSession(session)
}

func (p *Passthrough) CreateReferenceSpace(session xr.Session, info *xr.ReferenceSpaceCreateInfo) (xr.Space, error) {
	p.record("xrCreateReferenceSpace", "session", session)
	return p.next.CreateReferenceSpace(session, info)
}

func (p *Passthrough) DestroySpace(space xr.Space) error {
	p.record("xrDestroySpace", "space", space)
	return p.next.DestroySpace(space)
}

func (p *Passthrough) LocateSpace(space, base xr.Space, time xr.Time, location *xr.SpaceLocation) error {
	p.record("xrLocateSpace", "space", space, "base", base, "time", time)
	return p.next.LocateSpace(space, base, time, location)
}

func (p *Passthrough) LocateViews(session xr.Session, info *xr.ViewLocateInfo, state *xr.ViewState, views []xr.View) (uint32, error) {
	p.record("xrLocateViews", "session", session, "capacity", len(views))
	return p.next.LocateViews(session, info, state, views)
}

func (p *Passthrough) CreateSwapchain(session xr.Session, info *xr.SwapchainCreateInfo) (xr.Swapchain, error) {
	p.record("xrCreateSwapchain", "session", session)
	return p.next.CreateSwapchain(session, info)
}

func (p *Passthrough) DestroySwapchain(swapchain xr.Swapchain) error {
	p.record("xrDestroySwapchain", "swapchain", swapchain)
	return p.next.DestroySwapchain(swapchain)
}

func (p *Passthrough) AcquireSwapchainImage(swapchain xr.Swapchain, info *xr.SwapchainImageAcquireInfo) (uint32, error) {
	p.record("xrAcquireSwapchainImage", "swapchain", swapchain)
	return p.next.AcquireSwapchainImage(swapchain, info)
}

func (p *Passthrough) WaitSwapchainImage(swapchain xr.Swapchain, info *xr.SwapchainImageWaitInfo) error {
	p.record("xrWaitSwapchainImage", "swapchain", swapchain)
	return p.next.WaitSwapchainImage(swapchain, info)
}

func (p *Passthrough) ReleaseSwapchainImage(swapchain xr.Swapchain, info *xr.SwapchainImageReleaseInfo) error {
	p.record("xrReleaseSwapchainImage", "swapchain", swapchain)
	return p.next.ReleaseSwapchainImage(swapchain, info)
}

func (p *Passthrough) WaitFrame(session xr.Session, info *xr.FrameWaitInfo, state *xr.FrameState) error {
	p.record("xrWaitFrame", "session", session)
	return p.next.WaitFrame(session, info, state)
}

func (p *Passthrough) BeginFrame(session xr.Session, info *xr.FrameBeginInfo) error {
	p.record("xrBeginFrame", "session", session)
	return p.next.BeginFrame(session, info)
}

func (p *Passthrough) EndFrame(session xr.Session, info *xr.FrameEndInfo) error {
	p.record("xrEndFrame", "session", session)
	return p.next.EndFrame(session, info)
}

var _ xr.Runtime = (*Passthrough)(nil)
