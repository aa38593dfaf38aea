// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package simruntime

import "github.com/mbucchia/Varjo-Foveated/xr"

// GateWaits makes every subsequent WaitFrame block until ReleaseWait or
// OpenGate lets it through.
func (r *Runtime) GateWaits() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gate == nil {
		r.gate = make(chan struct{}, 64)
	}
}

// ReleaseWait lets one gated WaitFrame return.
func (r *Runtime) ReleaseWait() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gate != nil {
		select {
		case r.gate <- struct{}{}:
		default:
		}
	}
}

// OpenGate releases every gated WaitFrame and stops gating.
func (r *Runtime) OpenGate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gate != nil {
		close(r.gate)
		r.gate = nil
	}
}

// FailNext queues err as the result of the next call named call (for
// example "xrLocateSpace").
func (r *Runtime) FailNext(call string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[call] = append(r.failures[call], err)
}

// Calls returns how many times call was issued.
func (r *Runtime) Calls(call string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[call]
}

// Violations lists handle lifetime violations observed so far.
func (r *Runtime) Violations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.violations...)
}

// InFlightWaits returns the number of WaitFrame calls currently blocked for
// session.
func (r *Runtime) InFlightWaits(session xr.Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[session]; ok {
		return s.inFlight
	}
	return 0
}

// LiveSpaces returns the number of live spaces of the given kind.
func (r *Runtime) LiveSpaces(kind xr.ReferenceSpaceType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, st := range r.spaces {
		if st.kind == kind {
			n++
		}
	}
	return n
}

// LastViewChain returns the extension chain seen on the first view of the
// last EnumerateViewConfigurationViews call.
func (r *Runtime) LastViewChain() []xr.StructureType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastViewChain
}

// LastLocateChain returns the extension chain of the last LocateViews call
// and whether it asked for foveated rendering.
func (r *Runtime) LastLocateChain() ([]xr.StructureType, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastLocateChain, r.lastLocateActive
}

// LastEnabledExtensions returns the extensions of the last created instance.
func (r *Runtime) LastEnabledExtensions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastEnabledExts
}

// LastSwapchainInfo returns the create info of the last created swapchain.
func (r *Runtime) LastSwapchainInfo() xr.SwapchainCreateInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSwapchainInfo
}

// StartSession creates an instance with the quad view extension, a session
// on its head-mounted system and begins it with the quad view configuration.
func StartSession(rt xr.Runtime) (xr.Instance, xr.SystemID, xr.Session, error) {
	instance, err := rt.CreateInstance(&xr.InstanceCreateInfo{
		Type:                  xr.TypeInstanceCreateInfo,
		EnabledExtensionNames: []string{xr.QuadViewsExtensionName},
	})
	if err != nil {
		return 0, 0, 0, err
	}
	system, err := rt.GetSystem(instance, &xr.SystemGetInfo{
		Type:       xr.TypeSystemGetInfo,
		FormFactor: xr.FormFactorHeadMountedDisplay,
	})
	if err != nil {
		return 0, 0, 0, err
	}
	session, err := rt.CreateSession(instance, &xr.SessionCreateInfo{
		Type:     xr.TypeSessionCreateInfo,
		SystemID: system,
	})
	if err != nil {
		return 0, 0, 0, err
	}
	err = rt.BeginSession(session, &xr.SessionBeginInfo{
		Type:                         xr.TypeSessionBeginInfo,
		PrimaryViewConfigurationType: xr.ViewConfigurationTypePrimaryQuadVarjo,
	})
	return instance, system, session, err
}
