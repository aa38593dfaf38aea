// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package foveated

import (
	"slices"
	"sync"

	"github.com/mbucchia/Varjo-Foveated/config"
	"github.com/mbucchia/Varjo-Foveated/dispatch"
	"github.com/mbucchia/Varjo-Foveated/foveation"
	"github.com/mbucchia/Varjo-Foveated/pacing"
	"github.com/mbucchia/Varjo-Foveated/xr"
)

// Layer is the foveated rendering API layer. It implements [xr.Runtime] on
// top of the next runtime in the chain.
//
// A Layer is safe for concurrent use.
type Layer struct {
	*dispatch.Passthrough

	opts layerOptions

	mu         sync.Mutex
	bypass     bool
	instance   xr.Instance
	cfg        config.Snapshot
	configPath string
	injector   *foveation.Injector
	sessions   map[xr.Session]*pacing.Controller
	swapchains map[xr.Swapchain]xr.Session
	turbo      *bool
}

// New creates a Layer forwarding to next.
func New(next xr.Runtime, opts ...Option) *Layer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Layer{
		Passthrough: dispatch.New(next),
		opts:        o,
		cfg:         config.Default(),
		sessions:    make(map[xr.Session]*pacing.Controller),
		swapchains:  make(map[xr.Swapchain]xr.Session),
	}
}

// Bypassed reports whether the current instance did not request quad views,
// in which case every call is forwarded unchanged.
func (l *Layer) Bypassed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bypass
}

// Config returns the configuration loaded at instance creation and the file
// it was read from, if any.
func (l *Layer) Config() (config.Snapshot, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg, l.configPath
}

// SetTurboMode enables or disables turbo mode for current and future
// sessions, overriding the configuration.
func (l *Layer) SetTurboMode(on bool) {
	l.mu.Lock()
	l.turbo = &on
	controllers := make([]*pacing.Controller, 0, len(l.sessions))
	for _, c := range l.sessions {
		controllers = append(controllers, c)
	}
	l.mu.Unlock()

	for _, c := range controllers {
		c.SetTurboMode(on)
	}
}

// PacingState returns the frame pacing state of session. Unknown sessions
// report [pacing.Idle].
func (l *Layer) PacingState(session xr.Session) pacing.State {
	if c := l.controller(session); c != nil {
		return c.State()
	}
	return pacing.Idle
}

// active returns the injector when the layer is engaged for the current
// instance, or nil when calls must be forwarded unchanged.
func (l *Layer) active() *foveation.Injector {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.bypass {
		return nil
	}
	return l.injector
}

func (l *Layer) controller(session xr.Session) *pacing.Controller {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessions[session]
}

// CreateInstance creates the instance. When quad views are requested the
// layer engages: it also requests foveated rendering if the runtime offers
// it, reports the runtime and system in use and loads the configuration.
func (l *Layer) CreateInstance(info *xr.InstanceCreateInfo) (xr.Instance, error) {
	if info == nil || info.Type != xr.TypeInstanceCreateInfo {
		return 0, xr.ErrorValidationFailure
	}

	log := Logger()
	log.Info("layer loaded", "layer", LayerName, "version", Version,
		"application", info.ApplicationInfo.ApplicationName)

	if !info.HasExtension(xr.QuadViewsExtensionName) {
		log.Info("quad views not requested, layer bypassed", "layer", LayerName)
		instance, err := l.Passthrough.CreateInstance(info)
		l.mu.Lock()
		l.bypass = true
		l.instance = instance
		l.mu.Unlock()
		return instance, err
	}

	local := *info
	if !info.HasExtension(xr.FoveatedRenderingExtensionName) && l.runtimeOffers(xr.FoveatedRenderingExtensionName) {
		local.EnabledExtensionNames = append(slices.Clone(info.EnabledExtensionNames), xr.FoveatedRenderingExtensionName)
	}

	instance, err := l.Passthrough.CreateInstance(&local)
	if err != nil {
		return 0, err
	}

	next := l.Next()
	props := xr.InstanceProperties{Type: xr.TypeInstanceProperties}
	xr.Check(next.GetInstanceProperties(instance, &props), "xrGetInstanceProperties")
	log.Info("using runtime", "name", props.RuntimeName, "version", props.RuntimeVersion.String())

	system, err := next.GetSystem(instance, &xr.SystemGetInfo{
		Type:       xr.TypeSystemGetInfo,
		FormFactor: xr.FormFactorHeadMountedDisplay,
	})
	xr.Check(err, "xrGetSystem")

	fovProps := xr.SystemFoveatedRenderingProperties{}
	sysProps := xr.SystemProperties{Type: xr.TypeSystemProperties, Next: &fovProps}
	xr.Check(next.GetSystemProperties(instance, system, &sysProps), "xrGetSystemProperties")
	log.Info("using system", "name", sysProps.SystemName,
		"supportsFoveatedRendering", fovProps.SupportsFoveatedRendering)

	cfg, path := l.loadConfig()

	l.mu.Lock()
	l.bypass = false
	l.instance = instance
	l.cfg = cfg
	l.configPath = path
	l.injector = foveation.New(next, cfg)
	l.mu.Unlock()

	return instance, nil
}

func (l *Layer) loadConfig() (config.Snapshot, string) {
	if l.opts.config != nil {
		return *l.opts.config, ""
	}
	return config.Load(l.opts.configPaths()...)
}

// runtimeOffers reports whether the next runtime advertises extension name.
func (l *Layer) runtimeOffers(name string) bool {
	exts, err := l.Next().EnumerateInstanceExtensionProperties()
	if err != nil {
		Logger().Warn("cannot enumerate runtime extensions", "err", err)
		return false
	}
	for _, ext := range exts {
		if ext.ExtensionName == name {
			return true
		}
	}
	return false
}

// DestroyInstance joins the background frame waits of the instance's
// sessions and releases their gaze spaces, then destroys the instance and
// resets the layer for the next one.
func (l *Layer) DestroyInstance(instance xr.Instance) error {
	l.mu.Lock()
	current := instance == l.instance
	injector := l.injector
	var sessions map[xr.Session]*pacing.Controller
	if current {
		sessions = l.sessions
		l.sessions = make(map[xr.Session]*pacing.Controller)
		l.swapchains = make(map[xr.Swapchain]xr.Session)
	}
	l.mu.Unlock()

	l.releaseSessions(injector, sessions)
	err := l.Passthrough.DestroyInstance(instance)

	if current {
		l.mu.Lock()
		if instance == l.instance {
			l.reset()
		}
		l.mu.Unlock()
	}
	return err
}

// releaseSessions joins the pacing controller of each session and releases
// the session's gaze spaces.
func (l *Layer) releaseSessions(injector *foveation.Injector, sessions map[xr.Session]*pacing.Controller) {
	for session, c := range sessions {
		c.BeforeDestroySession()
		if injector != nil {
			injector.ReleaseSession(session)
		}
	}
}

// reset forgets all instance state. l.mu must be held.
func (l *Layer) reset() {
	l.bypass = false
	l.instance = 0
	l.cfg = config.Default()
	l.configPath = ""
	l.injector = nil
	l.sessions = make(map[xr.Session]*pacing.Controller)
	l.swapchains = make(map[xr.Swapchain]xr.Session)
}

// Close joins every outstanding background frame wait, releases the gaze
// spaces the layer created and resets the layer. The runtime handles created
// by the application are left alone.
func (l *Layer) Close() {
	l.mu.Lock()
	injector := l.injector
	sessions := l.sessions
	l.reset()
	l.mu.Unlock()

	l.releaseSessions(injector, sessions)
}

// EnumerateViewConfigurationViews applies the foveated view resolutions to
// the quad view configuration.
func (l *Layer) EnumerateViewConfigurationViews(instance xr.Instance, system xr.SystemID, kind xr.ViewConfigurationType, views []xr.ViewConfigurationView) (uint32, error) {
	in := l.active()
	if in == nil {
		return l.Passthrough.EnumerateViewConfigurationViews(instance, system, kind, views)
	}
	return in.EnumerateViewConfigurationViews(instance, system, kind, views)
}

// LocateViews tells the runtime whether foveated rendering is active for the
// quad view configuration.
func (l *Layer) LocateViews(session xr.Session, info *xr.ViewLocateInfo, state *xr.ViewState, views []xr.View) (uint32, error) {
	in := l.active()
	if in == nil {
		return l.Passthrough.LocateViews(session, info, state, views)
	}
	return in.LocateViews(session, info, state, views)
}

// CreateSession creates the session and its frame pacing state.
func (l *Layer) CreateSession(instance xr.Instance, info *xr.SessionCreateInfo) (xr.Session, error) {
	session, err := l.Passthrough.CreateSession(instance, info)
	if err != nil || l.active() == nil {
		return session, err
	}

	if info != nil && info.GraphicsBinding != nil {
		binding := info.GraphicsBinding
		adapter := binding.AdapterInfo()
		Logger().Info("session graphics adapter",
			"session", session,
			"adapter", adapter.Name,
			"type", adapter.Type.String(),
			"surfaceFormat", binding.SurfaceFormat().String())
	}

	l.mu.Lock()
	turbo := l.cfg.TurboMode
	if l.turbo != nil {
		turbo = *l.turbo
	}
	l.sessions[session] = pacing.New(l.Next(),
		pacing.WithTurboMode(turbo),
		pacing.WithClock(l.opts.now),
		pacing.WithJoinTimeouts(l.opts.endFrameTimeout, l.opts.destroySessionTimeout))
	l.mu.Unlock()

	Logger().Info("session created", "session", session, "turboMode", turbo)
	return session, nil
}

// BeginSession begins the session. Gaze spaces from a previous run of the
// session are released and created again on demand.
func (l *Layer) BeginSession(session xr.Session, info *xr.SessionBeginInfo) error {
	in := l.active()
	if in == nil {
		return l.Passthrough.BeginSession(session, info)
	}
	if info == nil || info.Type != xr.TypeSessionBeginInfo {
		return xr.ErrorValidationFailure
	}

	err := l.Passthrough.BeginSession(session, info)
	in.ResetSession(session)
	return err
}

// DestroySession waits for the session's background frame wait, releases
// its gaze spaces and destroys it.
func (l *Layer) DestroySession(session xr.Session) error {
	in := l.active()
	if in == nil {
		return l.Passthrough.DestroySession(session)
	}

	l.mu.Lock()
	c := l.sessions[session]
	delete(l.sessions, session)
	for swapchain, owner := range l.swapchains {
		if owner == session {
			delete(l.swapchains, swapchain)
		}
	}
	l.mu.Unlock()

	if c != nil {
		c.BeforeDestroySession()
	}
	in.ReleaseSession(session)
	return l.Passthrough.DestroySession(session)
}
