// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package xr

// Runtime is the XR call surface.
//
// It is implemented by the real runtime at the bottom of the chain and by
// every layer stacked on top of it. Calls return nil on success and a
// [Result] (or another error surfaced by the runtime) on failure.
//
// Enumeration calls follow the two-call idiom: passing a nil slice returns
// the required count; otherwise the slice is filled up to its length.
type Runtime interface {
	// EnumerateInstanceExtensionProperties lists the extensions offered by
	// the runtime.
	EnumerateInstanceExtensionProperties() ([]ExtensionProperties, error)

	// CreateInstance creates an instance.
	CreateInstance(info *InstanceCreateInfo) (Instance, error)

	// DestroyInstance destroys an instance and every child handle.
	DestroyInstance(instance Instance) error

	// GetInstanceProperties describes the runtime behind instance.
	GetInstanceProperties(instance Instance, props *InstanceProperties) error

	// GetSystem selects a system.
	GetSystem(instance Instance, info *SystemGetInfo) (SystemID, error)

	// GetSystemProperties fills props and its extension chain.
	GetSystemProperties(instance Instance, system SystemID, props *SystemProperties) error

	// EnumerateViewConfigurationViews fills views for the given view
	// configuration and returns the number of views it has.
	EnumerateViewConfigurationViews(instance Instance, system SystemID, kind ViewConfigurationType, views []ViewConfigurationView) (uint32, error)

	// CreateSession creates a session.
	CreateSession(instance Instance, info *SessionCreateInfo) (Session, error)

	// DestroySession destroys a session and every child handle.
	DestroySession(session Session) error

	// BeginSession starts the frame loop of a session.
	BeginSession(session Session, info *SessionBeginInfo) error

	// EndSession stops the frame loop of a session.
	EndSession(session Session) error

	// CreateReferenceSpace creates a reference space.
	CreateReferenceSpace(session Session, info *ReferenceSpaceCreateInfo) (Space, error)

	// DestroySpace destroys a space.
	DestroySpace(space Space) error

	// LocateSpace locates space relative to base at time.
	LocateSpace(space, base Space, time Time, location *SpaceLocation) error

	// LocateViews fills views for the requested configuration and returns
	// the number of views it has.
	LocateViews(session Session, info *ViewLocateInfo, state *ViewState, views []View) (uint32, error)

	// CreateSwapchain creates a swapchain.
	CreateSwapchain(session Session, info *SwapchainCreateInfo) (Swapchain, error)

	// DestroySwapchain destroys a swapchain.
	DestroySwapchain(swapchain Swapchain) error

	// AcquireSwapchainImage acquires the next image and returns its index.
	AcquireSwapchainImage(swapchain Swapchain, info *SwapchainImageAcquireInfo) (uint32, error)

	// WaitSwapchainImage waits for the acquired image.
	WaitSwapchainImage(swapchain Swapchain, info *SwapchainImageWaitInfo) error

	// ReleaseSwapchainImage releases the oldest acquired image.
	ReleaseSwapchainImage(swapchain Swapchain, info *SwapchainImageReleaseInfo) error

	// WaitFrame throttles the application to the display and fills state
	// with the predicted display time of the next frame.
	WaitFrame(session Session, info *FrameWaitInfo, state *FrameState) error

	// BeginFrame marks the start of rendering of a frame.
	BeginFrame(session Session, info *FrameBeginInfo) error

	// EndFrame submits the layers of a frame.
	EndFrame(session Session, info *FrameEndInfo) error
}
