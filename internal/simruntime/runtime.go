// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package simruntime provides a deterministic in-process XR runtime.
//
// It implements the full [xr.Runtime] surface with a quad-view capable
// system, validates frame call ordering the way a conformant runtime does and
// records what it observed (extension chains, call counts, handle misuse) so
// that layers stacked on top of it can be tested without hardware.
package simruntime

import (
	"sync"
	"time"

	"github.com/mbucchia/Varjo-Foveated/xr"
)

// Default simulated system properties.
const (
	DefaultSystemName  = "Simulated Varjo XR-3"
	DefaultRuntimeName = "Simulated Runtime"
	DefaultFramePeriod = time.Second / 90

	DefaultPeripheralWidth  = 2000
	DefaultPeripheralHeight = 2000
	DefaultFocusWidth       = 2000
	DefaultFocusHeight      = 2000
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithFramePeriod sets the display refresh period.
func WithFramePeriod(d time.Duration) Option {
	return func(r *Runtime) { r.period = d }
}

// WithThrottle makes WaitFrame sleep for d, emulating display throttling.
func WithThrottle(d time.Duration) Option {
	return func(r *Runtime) { r.throttle = d }
}

// WithExtensions replaces the advertised instance extensions.
func WithExtensions(names ...string) Option {
	return func(r *Runtime) {
		r.extensions = r.extensions[:0]
		for _, name := range names {
			r.extensions = append(r.extensions, xr.ExtensionProperties{ExtensionName: name, ExtensionVersion: 1})
		}
	}
}

// WithQuadViewSize sets the recommended and maximum rectangles reported for
// the peripheral (slots 0, 1) and focus (slots 2, 3) views.
func WithQuadViewSize(peripheral, focus [2]uint32) Option {
	return func(r *Runtime) {
		r.quad = quadViews(peripheral, focus)
	}
}

// WithGazeFlags sets the location flags reported for the combined-eye space.
func WithGazeFlags(flags xr.SpaceLocationFlags) Option {
	return func(r *Runtime) { r.gazeFlags = flags }
}

// WithFoveatedRenderingSupport sets what the system reports for foveated
// rendering support.
func WithFoveatedRenderingSupport(supported bool) Option {
	return func(r *Runtime) { r.foveatedSupport = supported }
}

type sessionState struct {
	running      bool
	waitsPending int
	frameBegun   bool
	inFlight     int
}

type swapchainState struct {
	session  xr.Session
	next     uint32
	acquired int
}

type spaceState struct {
	session xr.Session
	kind    xr.ReferenceSpaceType
}

// Runtime is a simulated XR runtime. It is safe for concurrent use.
type Runtime struct {
	mu sync.Mutex

	period          time.Duration
	throttle        time.Duration
	extensions      []xr.ExtensionProperties
	quad            [xr.QuadViewCount]xr.ViewConfigurationView
	gazeFlags       xr.SpaceLocationFlags
	foveatedSupport bool

	nextHandle uint64
	instances  map[xr.Instance]*xr.InstanceCreateInfo
	sessions   map[xr.Session]*sessionState
	spaces     map[xr.Space]spaceState
	swapchains map[xr.Swapchain]*swapchainState

	frameIndex int64
	calls      map[string]int
	violations []string
	failures   map[string][]error

	gate chan struct{}

	lastViewChain     []xr.StructureType
	lastLocateChain   []xr.StructureType
	lastLocateActive  bool
	lastEnabledExts   []string
	lastSwapchainInfo xr.SwapchainCreateInfo
}

// New creates a simulated runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		period: DefaultFramePeriod,
		extensions: []xr.ExtensionProperties{
			{ExtensionName: xr.QuadViewsExtensionName, ExtensionVersion: 1},
			{ExtensionName: xr.FoveatedRenderingExtensionName, ExtensionVersion: 3},
		},
		quad: quadViews(
			[2]uint32{DefaultPeripheralWidth, DefaultPeripheralHeight},
			[2]uint32{DefaultFocusWidth, DefaultFocusHeight}),
		gazeFlags:       xr.SpaceLocationOrientationValid | xr.SpaceLocationOrientationTracked,
		foveatedSupport: true,
		instances:       make(map[xr.Instance]*xr.InstanceCreateInfo),
		sessions:        make(map[xr.Session]*sessionState),
		spaces:          make(map[xr.Space]spaceState),
		swapchains:      make(map[xr.Swapchain]*swapchainState),
		calls:           make(map[string]int),
		failures:        make(map[string][]error),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func quadViews(peripheral, focus [2]uint32) [xr.QuadViewCount]xr.ViewConfigurationView {
	var views [xr.QuadViewCount]xr.ViewConfigurationView
	for i := range views {
		size := peripheral
		if i >= 2 {
			size = focus
		}
		views[i] = xr.ViewConfigurationView{
			Type:                            xr.TypeViewConfigurationView,
			RecommendedImageRectWidth:       size[0],
			RecommendedImageRectHeight:      size[1],
			MaxImageRectWidth:               size[0],
			MaxImageRectHeight:              size[1],
			RecommendedSwapchainSampleCount: 1,
			MaxSwapchainSampleCount:         4,
		}
	}
	return views
}

// FramePeriod returns the simulated display period.
func (r *Runtime) FramePeriod() time.Duration {
	return r.period
}
