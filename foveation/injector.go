// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package foveation injects foveated rendering parameters into quad-view
// calls.
//
// The [Injector] adds the foveated rendering extension structures to view
// enumeration and view location, scales the recommended view resolutions
// and, when eye tracking is enabled, detects whether the runtime currently
// tracks the user's gaze. Caller structures are never modified: every
// injection is made on a call-local copy.
package foveation

import (
	"sync"

	"github.com/mbucchia/Varjo-Foveated/config"
	"github.com/mbucchia/Varjo-Foveated/internal/trace"
	"github.com/mbucchia/Varjo-Foveated/xr"
)

// gazeSpaces holds the reference spaces used to locate the gaze of one
// session.
type gazeSpaces struct {
	view xr.Space
	gaze xr.Space
}

// Injector rewrites quad-view calls on their way to the next runtime.
// It is safe for concurrent use.
type Injector struct {
	next xr.Runtime
	cfg  config.Snapshot

	// mu guards spaces. It is held while the spaces of a session are
	// created so that concurrent LocateViews calls create them once.
	mu     sync.Mutex
	spaces map[xr.Session]*gazeSpaces
}

// New returns an Injector forwarding to next with the given configuration.
func New(next xr.Runtime, cfg config.Snapshot) *Injector {
	return &Injector{
		next:   next,
		cfg:    cfg,
		spaces: make(map[xr.Session]*gazeSpaces),
	}
}

// Config returns the configuration snapshot in use.
func (in *Injector) Config() config.Snapshot {
	return in.cfg
}

// EnumerateViewConfigurationViews forwards the enumeration and, for the quad
// view configuration, requests foveated resolutions and applies the
// configured resolution multipliers.
func (in *Injector) EnumerateViewConfigurationViews(instance xr.Instance, system xr.SystemID, kind xr.ViewConfigurationType, views []xr.ViewConfigurationView) (uint32, error) {
	if kind != xr.ViewConfigurationTypePrimaryQuadVarjo || len(views) == 0 {
		return in.next.EnumerateViewConfigurationViews(instance, system, kind, views)
	}

	local := make([]xr.ViewConfigurationView, len(views))
	copy(local, views)
	for i := range local {
		local[i].Next = &xr.FoveatedViewConfigurationView{
			Next:                    views[i].Next,
			FoveatedRenderingActive: in.cfg.EyeTracking,
		}
	}

	count, err := in.next.EnumerateViewConfigurationViews(instance, system, kind, local)
	if err != nil {
		return count, err
	}

	filled := min(int(count), len(local))
	for i := 0; i < filled; i++ {
		factor := in.cfg.PeripheralMultiplier
		if i >= 2 {
			factor = in.cfg.FocusMultiplier
		}
		v := &local[i]
		v.RecommendedImageRectWidth = scale(v.RecommendedImageRectWidth, factor)
		v.RecommendedImageRectHeight = scale(v.RecommendedImageRectHeight, factor)
		v.MaxImageRectWidth = max(v.MaxImageRectWidth, v.RecommendedImageRectWidth)
		v.MaxImageRectHeight = max(v.MaxImageRectHeight, v.RecommendedImageRectHeight)
	}

	for i := range views {
		next := views[i].Next
		views[i] = local[i]
		views[i].Next = next
	}

	if filled >= xr.QuadViewCount {
		log := trace.Logger()
		log.Info("peripheral resolution",
			"width", views[0].RecommendedImageRectWidth,
			"height", views[0].RecommendedImageRectHeight,
			"multiplier", in.cfg.PeripheralMultiplier)
		log.Info("focus resolution",
			"width", views[2].RecommendedImageRectWidth,
			"height", views[2].RecommendedImageRectHeight,
			"multiplier", in.cfg.FocusMultiplier)
	}
	return count, nil
}

// scale multiplies a pixel dimension, truncating toward zero.
func scale(v uint32, factor float32) uint32 {
	return uint32(float32(v) * factor)
}

// LocateViews validates its arguments and forwards the call. For the quad
// view configuration the runtime is told whether foveated rendering is
// active for this frame.
func (in *Injector) LocateViews(session xr.Session, info *xr.ViewLocateInfo, state *xr.ViewState, views []xr.View) (uint32, error) {
	if info == nil || info.Type != xr.TypeViewLocateInfo || state == nil || state.Type != xr.TypeViewState {
		return 0, xr.ErrorValidationFailure
	}
	if info.ViewConfigurationType != xr.ViewConfigurationTypePrimaryQuadVarjo {
		return in.next.LocateViews(session, info, state, views)
	}

	active := false
	if in.cfg.EyeTracking {
		active = in.gazeTracked(session, info.DisplayTime)
	}
	trace.Logger().Debug("xrLocateViews", "session", session, "foveationActive", active)

	local := *info
	local.Next = &xr.ViewLocateFoveatedRendering{
		Next:                    info.Next,
		FoveatedRenderingActive: active,
	}
	return in.next.LocateViews(session, &local, state, views)
}

// gazeTracked reports whether the gaze orientation is valid at the given
// time, creating the session's spaces on first use.
func (in *Injector) gazeTracked(session xr.Session, at xr.Time) bool {
	spaces := in.sessionSpaces(session)

	location := xr.SpaceLocation{Type: xr.TypeSpaceLocation}
	xr.Check(in.next.LocateSpace(spaces.gaze, spaces.view, at, &location), "xrLocateSpace")
	return location.LocationFlags&xr.SpaceLocationOrientationValid != 0
}

func (in *Injector) sessionSpaces(session xr.Session) *gazeSpaces {
	in.mu.Lock()
	defer in.mu.Unlock()

	if s, ok := in.spaces[session]; ok {
		return s
	}

	info := xr.ReferenceSpaceCreateInfo{
		Type:                 xr.TypeReferenceSpaceCreateInfo,
		ReferenceSpaceType:   xr.ReferenceSpaceTypeView,
		PoseInReferenceSpace: xr.IdentityPose(),
	}
	view, err := in.next.CreateReferenceSpace(session, &info)
	xr.Check(err, "xrCreateReferenceSpace")

	info.ReferenceSpaceType = xr.ReferenceSpaceTypeCombinedEyeVarjo
	gaze, err := in.next.CreateReferenceSpace(session, &info)
	xr.Check(err, "xrCreateReferenceSpace")

	s := &gazeSpaces{view: view, gaze: gaze}
	in.spaces[session] = s
	trace.Logger().Debug("created gaze spaces", "session", session, "view", view, "gaze", gaze)
	return s
}

// ResetSession destroys the spaces created for session, if any. The next
// quad-view LocateViews creates them again.
func (in *Injector) ResetSession(session xr.Session) {
	in.mu.Lock()
	s, ok := in.spaces[session]
	delete(in.spaces, session)
	in.mu.Unlock()

	if !ok {
		return
	}
	in.destroy(s)
}

// ReleaseSession forgets session, destroying its spaces.
func (in *Injector) ReleaseSession(session xr.Session) {
	in.ResetSession(session)
}

// Sessions returns the number of sessions holding gaze spaces.
func (in *Injector) Sessions() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.spaces)
}

// destroy releases the spaces of a session. Failures are logged: the
// runtime may already have released them with their session.
func (in *Injector) destroy(s *gazeSpaces) {
	for _, space := range []xr.Space{s.gaze, s.view} {
		if err := in.next.DestroySpace(space); err != nil {
			trace.Logger().Warn("failed to destroy gaze space", "space", space, "err", err)
		}
	}
}
