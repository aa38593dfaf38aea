// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package simruntime

import (
	"fmt"
	"time"

	"github.com/mbucchia/Varjo-Foveated/xr"
)

var defaultFov = xr.Fov{AngleLeft: -0.9, AngleRight: 0.9, AngleUp: 0.9, AngleDown: -0.9}

// enter records a call and returns any failure queued for it.
// r.mu must be held.
func (r *Runtime) enter(call string) error {
	r.calls[call]++
	if queue := r.failures[call]; len(queue) > 0 {
		r.failures[call] = queue[1:]
		return queue[0]
	}
	return nil
}

// violate records a handle lifetime violation. r.mu must be held.
func (r *Runtime) violate(format string, args ...any) {
	r.violations = append(r.violations, fmt.Sprintf(format, args...))
}

func (r *Runtime) handle() uint64 {
	r.nextHandle++
	return r.nextHandle
}

func (r *Runtime) hasExtension(instance xr.Instance, name string) bool {
	info, ok := r.instances[instance]
	return ok && info.HasExtension(name)
}

func (r *Runtime) EnumerateInstanceExtensionProperties() ([]xr.ExtensionProperties, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrEnumerateInstanceExtensionProperties"); err != nil {
		return nil, err
	}
	return append([]xr.ExtensionProperties(nil), r.extensions...), nil
}

func (r *Runtime) CreateInstance(info *xr.InstanceCreateInfo) (xr.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrCreateInstance"); err != nil {
		return 0, err
	}
	if info == nil || info.Type != xr.TypeInstanceCreateInfo {
		return 0, xr.ErrorValidationFailure
	}
	for _, name := range info.EnabledExtensionNames {
		supported := false
		for _, ext := range r.extensions {
			if ext.ExtensionName == name {
				supported = true
				break
			}
		}
		if !supported {
			return 0, xr.ErrorExtensionNotPresent
		}
	}
	stored := *info
	stored.EnabledExtensionNames = append([]string(nil), info.EnabledExtensionNames...)
	r.lastEnabledExts = stored.EnabledExtensionNames
	instance := xr.Instance(r.handle())
	r.instances[instance] = &stored
	return instance, nil
}

func (r *Runtime) DestroyInstance(instance xr.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrDestroyInstance"); err != nil {
		return err
	}
	if _, ok := r.instances[instance]; !ok {
		return xr.ErrorHandleInvalid
	}
	delete(r.instances, instance)
	return nil
}

func (r *Runtime) GetInstanceProperties(instance xr.Instance, props *xr.InstanceProperties) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrGetInstanceProperties"); err != nil {
		return err
	}
	if props == nil || props.Type != xr.TypeInstanceProperties {
		return xr.ErrorValidationFailure
	}
	if _, ok := r.instances[instance]; !ok {
		return xr.ErrorHandleInvalid
	}
	props.RuntimeName = DefaultRuntimeName
	props.RuntimeVersion = xr.MakeVersion(3, 14, 0)
	return nil
}

func (r *Runtime) GetSystem(instance xr.Instance, info *xr.SystemGetInfo) (xr.SystemID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrGetSystem"); err != nil {
		return 0, err
	}
	if info == nil || info.Type != xr.TypeSystemGetInfo {
		return 0, xr.ErrorValidationFailure
	}
	if _, ok := r.instances[instance]; !ok {
		return 0, xr.ErrorHandleInvalid
	}
	if info.FormFactor != xr.FormFactorHeadMountedDisplay {
		return 0, xr.ErrorFormFactorUnsupported
	}
	return 1, nil
}

func (r *Runtime) GetSystemProperties(instance xr.Instance, system xr.SystemID, props *xr.SystemProperties) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrGetSystemProperties"); err != nil {
		return err
	}
	if props == nil || props.Type != xr.TypeSystemProperties {
		return xr.ErrorValidationFailure
	}
	if _, ok := r.instances[instance]; !ok || system != 1 {
		return xr.ErrorSystemInvalid
	}
	props.SystemID = system
	props.SystemName = DefaultSystemName
	props.GraphicsProperties = xr.SystemGraphicsProperties{
		MaxSwapchainImageWidth:  16384,
		MaxSwapchainImageHeight: 16384,
		MaxLayerCount:           16,
	}
	props.TrackingProperties = xr.SystemTrackingProperties{OrientationTracking: true, PositionTracking: true}
	if fov, ok := xr.Find[*xr.SystemFoveatedRenderingProperties](props.Next); ok {
		fov.SupportsFoveatedRendering = r.foveatedSupport && r.hasExtension(instance, xr.FoveatedRenderingExtensionName)
	}
	return nil
}

func (r *Runtime) EnumerateViewConfigurationViews(instance xr.Instance, system xr.SystemID, kind xr.ViewConfigurationType, views []xr.ViewConfigurationView) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrEnumerateViewConfigurationViews"); err != nil {
		return 0, err
	}
	if _, ok := r.instances[instance]; !ok || system != 1 {
		return 0, xr.ErrorSystemInvalid
	}

	var source []xr.ViewConfigurationView
	switch kind {
	case xr.ViewConfigurationTypePrimaryStereo:
		source = r.quad[:2]
	case xr.ViewConfigurationTypePrimaryQuadVarjo:
		if !r.hasExtension(instance, xr.QuadViewsExtensionName) {
			return 0, xr.ErrorViewConfigurationTypeUnsupported
		}
		source = r.quad[:]
	default:
		return 0, xr.ErrorViewConfigurationTypeUnsupported
	}

	count := uint32(len(source))
	if len(views) == 0 {
		return count, nil
	}
	if len(views) < len(source) {
		return count, xr.ErrorSizeInsufficient
	}
	r.lastViewChain = xr.ChainTypes(views[0].Next)
	for i := range source {
		if views[i].Type != xr.TypeViewConfigurationView {
			return count, xr.ErrorValidationFailure
		}
		next := views[i].Next
		views[i] = source[i]
		views[i].Next = next
	}
	return count, nil
}

func (r *Runtime) CreateSession(instance xr.Instance, info *xr.SessionCreateInfo) (xr.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrCreateSession"); err != nil {
		return 0, err
	}
	if info == nil || info.Type != xr.TypeSessionCreateInfo {
		return 0, xr.ErrorValidationFailure
	}
	if _, ok := r.instances[instance]; !ok {
		return 0, xr.ErrorHandleInvalid
	}
	session := xr.Session(r.handle())
	r.sessions[session] = &sessionState{}
	return session, nil
}

func (r *Runtime) DestroySession(session xr.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrDestroySession"); err != nil {
		return err
	}
	s, ok := r.sessions[session]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if s.inFlight > 0 {
		r.violate("session %d destroyed with %d xrWaitFrame in flight", session, s.inFlight)
	}
	delete(r.sessions, session)
	for space, st := range r.spaces {
		if st.session == session {
			delete(r.spaces, space)
		}
	}
	for swapchain, st := range r.swapchains {
		if st.session == session {
			delete(r.swapchains, swapchain)
		}
	}
	return nil
}

func (r *Runtime) BeginSession(session xr.Session, info *xr.SessionBeginInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrBeginSession"); err != nil {
		return err
	}
	if info == nil || info.Type != xr.TypeSessionBeginInfo {
		return xr.ErrorValidationFailure
	}
	s, ok := r.sessions[session]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if s.running {
		return xr.ErrorSessionRunning
	}
	s.running = true
	return nil
}

func (r *Runtime) EndSession(session xr.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrEndSession"); err != nil {
		return err
	}
	s, ok := r.sessions[session]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if !s.running {
		return xr.ErrorSessionNotRunning
	}
	s.running = false
	s.waitsPending = 0
	s.frameBegun = false
	return nil
}

func (r *Runtime) CreateReferenceSpace(session xr.Session, info *xr.ReferenceSpaceCreateInfo) (xr.Space, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrCreateReferenceSpace"); err != nil {
		return 0, err
	}
	if info == nil || info.Type != xr.TypeReferenceSpaceCreateInfo {
		return 0, xr.ErrorValidationFailure
	}
	if _, ok := r.sessions[session]; !ok {
		return 0, xr.ErrorHandleInvalid
	}
	switch info.ReferenceSpaceType {
	case xr.ReferenceSpaceTypeView, xr.ReferenceSpaceTypeLocal, xr.ReferenceSpaceTypeStage,
		xr.ReferenceSpaceTypeCombinedEyeVarjo:
	default:
		return 0, xr.ErrorReferenceSpaceUnsupported
	}
	space := xr.Space(r.handle())
	r.spaces[space] = spaceState{session: session, kind: info.ReferenceSpaceType}
	return space, nil
}

func (r *Runtime) DestroySpace(space xr.Space) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrDestroySpace"); err != nil {
		return err
	}
	if _, ok := r.spaces[space]; !ok {
		return xr.ErrorHandleInvalid
	}
	delete(r.spaces, space)
	return nil
}

func (r *Runtime) LocateSpace(space, base xr.Space, at xr.Time, location *xr.SpaceLocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrLocateSpace"); err != nil {
		return err
	}
	if location == nil || location.Type != xr.TypeSpaceLocation {
		return xr.ErrorValidationFailure
	}
	st, ok := r.spaces[space]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if _, ok := r.spaces[base]; !ok {
		return xr.ErrorHandleInvalid
	}
	if at <= 0 {
		return xr.ErrorTimeInvalid
	}
	location.Pose = xr.IdentityPose()
	if st.kind == xr.ReferenceSpaceTypeCombinedEyeVarjo {
		location.LocationFlags = r.gazeFlags
	} else {
		location.LocationFlags = xr.SpaceLocationOrientationValid | xr.SpaceLocationPositionValid |
			xr.SpaceLocationOrientationTracked | xr.SpaceLocationPositionTracked
	}
	return nil
}

func (r *Runtime) LocateViews(session xr.Session, info *xr.ViewLocateInfo, state *xr.ViewState, views []xr.View) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrLocateViews"); err != nil {
		return 0, err
	}
	if info == nil || info.Type != xr.TypeViewLocateInfo || state == nil || state.Type != xr.TypeViewState {
		return 0, xr.ErrorValidationFailure
	}
	if _, ok := r.sessions[session]; !ok {
		return 0, xr.ErrorHandleInvalid
	}

	var count uint32
	switch info.ViewConfigurationType {
	case xr.ViewConfigurationTypePrimaryStereo:
		count = 2
	case xr.ViewConfigurationTypePrimaryQuadVarjo:
		count = xr.QuadViewCount
	default:
		return 0, xr.ErrorViewConfigurationTypeUnsupported
	}

	r.lastLocateChain = xr.ChainTypes(info.Next)
	r.lastLocateActive = false
	if fov, ok := xr.Find[*xr.ViewLocateFoveatedRendering](info.Next); ok {
		r.lastLocateActive = fov.FoveatedRenderingActive
	}

	if len(views) == 0 {
		return count, nil
	}
	if uint32(len(views)) < count {
		return count, xr.ErrorSizeInsufficient
	}
	for i := uint32(0); i < count; i++ {
		views[i].Pose = xr.IdentityPose()
		views[i].Fov = defaultFov
	}
	state.ViewStateFlags = xr.ViewStateOrientationValid | xr.ViewStatePositionValid |
		xr.ViewStateOrientationTracked | xr.ViewStatePositionTracked
	return count, nil
}

func (r *Runtime) CreateSwapchain(session xr.Session, info *xr.SwapchainCreateInfo) (xr.Swapchain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrCreateSwapchain"); err != nil {
		return 0, err
	}
	if info == nil || info.Type != xr.TypeSwapchainCreateInfo {
		return 0, xr.ErrorValidationFailure
	}
	if _, ok := r.sessions[session]; !ok {
		return 0, xr.ErrorHandleInvalid
	}
	if info.Size.Width == 0 || info.Size.Height == 0 {
		return 0, xr.ErrorSwapchainRectInvalid
	}
	if info.Format == 0 {
		return 0, xr.ErrorSwapchainFormatUnsupported
	}
	r.lastSwapchainInfo = *info
	swapchain := xr.Swapchain(r.handle())
	r.swapchains[swapchain] = &swapchainState{session: session}
	return swapchain, nil
}

func (r *Runtime) DestroySwapchain(swapchain xr.Swapchain) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrDestroySwapchain"); err != nil {
		return err
	}
	st, ok := r.swapchains[swapchain]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if s, ok := r.sessions[st.session]; ok && s.inFlight > 0 {
		r.violate("swapchain %d destroyed with %d xrWaitFrame in flight", swapchain, s.inFlight)
	}
	delete(r.swapchains, swapchain)
	return nil
}

// swapchainImageCount is the number of images of every simulated swapchain.
const swapchainImageCount = 3

func (r *Runtime) AcquireSwapchainImage(swapchain xr.Swapchain, info *xr.SwapchainImageAcquireInfo) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrAcquireSwapchainImage"); err != nil {
		return 0, err
	}
	st, ok := r.swapchains[swapchain]
	if !ok {
		return 0, xr.ErrorHandleInvalid
	}
	if st.acquired >= swapchainImageCount {
		return 0, xr.ErrorCallOrderInvalid
	}
	index := st.next
	st.next = (st.next + 1) % swapchainImageCount
	st.acquired++
	return index, nil
}

func (r *Runtime) WaitSwapchainImage(swapchain xr.Swapchain, info *xr.SwapchainImageWaitInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrWaitSwapchainImage"); err != nil {
		return err
	}
	if info == nil || info.Type != xr.TypeSwapchainImageWaitInfo {
		return xr.ErrorValidationFailure
	}
	st, ok := r.swapchains[swapchain]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if st.acquired == 0 {
		return xr.ErrorCallOrderInvalid
	}
	return nil
}

func (r *Runtime) ReleaseSwapchainImage(swapchain xr.Swapchain, info *xr.SwapchainImageReleaseInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrReleaseSwapchainImage"); err != nil {
		return err
	}
	st, ok := r.swapchains[swapchain]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if st.acquired == 0 {
		return xr.ErrorCallOrderInvalid
	}
	st.acquired--
	return nil
}

// WaitFrame blocks on the wait gate (if any) and the throttle, then predicts
// the display time of the next refresh.
func (r *Runtime) WaitFrame(session xr.Session, info *xr.FrameWaitInfo, state *xr.FrameState) error {
	r.mu.Lock()
	if err := r.enter("xrWaitFrame"); err != nil {
		r.mu.Unlock()
		return err
	}
	if state == nil || state.Type != xr.TypeFrameState {
		r.mu.Unlock()
		return xr.ErrorValidationFailure
	}
	s, ok := r.sessions[session]
	if !ok {
		r.violate("xrWaitFrame on unknown session %d", session)
		r.mu.Unlock()
		return xr.ErrorHandleInvalid
	}
	if !s.running {
		r.mu.Unlock()
		return xr.ErrorSessionNotRunning
	}
	s.inFlight++
	gate := r.gate
	throttle := r.throttle
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if throttle > 0 {
		time.Sleep(throttle)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s.inFlight--
	if _, ok := r.sessions[session]; !ok {
		r.violate("session %d destroyed during xrWaitFrame", session)
		return xr.ErrorSessionLost
	}
	r.frameIndex++
	s.waitsPending++
	state.PredictedDisplayTime = xr.Time(int64(r.frameIndex+1) * int64(r.period))
	state.PredictedDisplayPeriod = xr.Duration(r.period)
	state.ShouldRender = true
	return nil
}

func (r *Runtime) BeginFrame(session xr.Session, info *xr.FrameBeginInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrBeginFrame"); err != nil {
		return err
	}
	s, ok := r.sessions[session]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if !s.running {
		return xr.ErrorSessionNotRunning
	}
	if s.waitsPending == 0 {
		return xr.ErrorCallOrderInvalid
	}
	s.waitsPending--
	s.frameBegun = true
	return nil
}

func (r *Runtime) EndFrame(session xr.Session, info *xr.FrameEndInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("xrEndFrame"); err != nil {
		return err
	}
	if info == nil || info.Type != xr.TypeFrameEndInfo {
		return xr.ErrorValidationFailure
	}
	s, ok := r.sessions[session]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if !s.frameBegun {
		return xr.ErrorCallOrderInvalid
	}
	s.frameBegun = false
	return nil
}

var _ xr.Runtime = (*Runtime)(nil)
