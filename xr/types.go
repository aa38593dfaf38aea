// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package xr

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Opaque handles. The zero value is the null handle.
type (
	Instance  uint64
	Session   uint64
	Space     uint64
	Swapchain uint64
	SystemID  uint64
)

// Time is a runtime timestamp in nanoseconds.
type Time int64

// Duration is a runtime time interval in nanoseconds.
type Duration int64

// Version packs a major.minor.patch API or runtime version.
type Version uint64

// MakeVersion builds a Version from its components.
func MakeVersion(major, minor, patch uint32) Version {
	return Version(uint64(major&0xffff)<<48 | uint64(minor&0xffff)<<32 | uint64(patch))
}

func (v Version) Major() uint32 { return uint32(v>>48) & 0xffff }
func (v Version) Minor() uint32 { return uint32(v>>32) & 0xffff }
func (v Version) Patch() uint32 { return uint32(v) }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

// Extension names relevant to foveated quad views.
const (
	QuadViewsExtensionName         = "XR_VARJO_quad_views"
	FoveatedRenderingExtensionName = "XR_VARJO_foveated_rendering"
)

// ExtensionProperties describes an instance extension offered by a runtime.
type ExtensionProperties struct {
	ExtensionName    string
	ExtensionVersion uint32
}

// ApplicationInfo identifies the application creating an instance.
type ApplicationInfo struct {
	ApplicationName    string
	ApplicationVersion uint32
	EngineName         string
	EngineVersion      uint32
	APIVersion         Version
}

// InstanceCreateInfo requests creation of an instance.
type InstanceCreateInfo struct {
	Type                  StructureType
	Next                  Extension
	CreateFlags           uint64
	ApplicationInfo       ApplicationInfo
	EnabledAPILayerNames  []string
	EnabledExtensionNames []string
}

// HasExtension reports whether name is among the enabled extensions.
func (i *InstanceCreateInfo) HasExtension(name string) bool {
	for _, ext := range i.EnabledExtensionNames {
		if ext == name {
			return true
		}
	}
	return false
}

// InstanceProperties describes the runtime behind an instance.
type InstanceProperties struct {
	Type           StructureType
	Next           Extension
	RuntimeVersion Version
	RuntimeName    string
}

// FormFactor selects the kind of system to query.
type FormFactor uint32

const (
	FormFactorHeadMountedDisplay FormFactor = 1
	FormFactorHandheldDisplay    FormFactor = 2
)

// SystemGetInfo selects a system by form factor.
type SystemGetInfo struct {
	Type       StructureType
	Next       Extension
	FormFactor FormFactor
}

// SystemGraphicsProperties describes swapchain limits of a system.
type SystemGraphicsProperties struct {
	MaxSwapchainImageWidth  uint32
	MaxSwapchainImageHeight uint32
	MaxLayerCount           uint32
}

// SystemTrackingProperties describes tracking capabilities of a system.
type SystemTrackingProperties struct {
	OrientationTracking bool
	PositionTracking    bool
}

// SystemProperties is filled by GetSystemProperties. Extension structures in
// Next are filled as well.
type SystemProperties struct {
	Type               StructureType
	Next               Extension
	SystemID           SystemID
	VendorID           uint32
	SystemName         string
	GraphicsProperties SystemGraphicsProperties
	TrackingProperties SystemTrackingProperties
}

// ViewConfigurationType identifies a view layout.
type ViewConfigurationType uint32

const (
	ViewConfigurationTypePrimaryMono      ViewConfigurationType = 1
	ViewConfigurationTypePrimaryStereo    ViewConfigurationType = 2
	ViewConfigurationTypePrimaryQuadVarjo ViewConfigurationType = 1000037000
)

func (t ViewConfigurationType) String() string {
	switch t {
	case ViewConfigurationTypePrimaryMono:
		return "PrimaryMono"
	case ViewConfigurationTypePrimaryStereo:
		return "PrimaryStereo"
	case ViewConfigurationTypePrimaryQuadVarjo:
		return "PrimaryQuadVarjo"
	default:
		return fmt.Sprintf("ViewConfigurationType(%d)", uint32(t))
	}
}

// QuadViewCount is the number of views of the quad view configuration:
// two peripheral views followed by two focus views.
const QuadViewCount = 4

// ViewConfigurationView describes the recommended and maximum image
// rectangles of one view.
type ViewConfigurationView struct {
	Type                            StructureType
	Next                            Extension
	RecommendedImageRectWidth       uint32
	MaxImageRectWidth               uint32
	RecommendedImageRectHeight      uint32
	MaxImageRectHeight              uint32
	RecommendedSwapchainSampleCount uint32
	MaxSwapchainSampleCount         uint32
}

// SessionCreateInfo requests creation of a session.
type SessionCreateInfo struct {
	Type        StructureType
	Next        Extension
	CreateFlags uint64
	SystemID    SystemID
	// GraphicsBinding is the device the application renders with. It may be
	// nil for headless sessions.
	GraphicsBinding gpucontext.DeviceProvider
}

// SessionBeginInfo starts a session.
type SessionBeginInfo struct {
	Type                         StructureType
	Next                         Extension
	PrimaryViewConfigurationType ViewConfigurationType
}

// Quaternion is an orientation.
type Quaternion struct {
	X, Y, Z, W float32
}

// Vector3 is a position in meters.
type Vector3 struct {
	X, Y, Z float32
}

// Pose is a rigid transform.
type Pose struct {
	Orientation Quaternion
	Position    Vector3
}

// IdentityPose returns the identity transform.
func IdentityPose() Pose {
	return Pose{Orientation: Quaternion{W: 1}}
}

// Fov is a set of view frustum half-angles in radians.
type Fov struct {
	AngleLeft, AngleRight, AngleUp, AngleDown float32
}

// ReferenceSpaceType identifies a tracked coordinate frame.
type ReferenceSpaceType uint32

const (
	ReferenceSpaceTypeView             ReferenceSpaceType = 1
	ReferenceSpaceTypeLocal            ReferenceSpaceType = 2
	ReferenceSpaceTypeStage            ReferenceSpaceType = 3
	ReferenceSpaceTypeCombinedEyeVarjo ReferenceSpaceType = 1000121000
)

// ReferenceSpaceCreateInfo requests creation of a reference space.
type ReferenceSpaceCreateInfo struct {
	Type                 StructureType
	Next                 Extension
	ReferenceSpaceType   ReferenceSpaceType
	PoseInReferenceSpace Pose
}

// SpaceLocationFlags qualify a located pose.
type SpaceLocationFlags uint64

const (
	SpaceLocationOrientationValid SpaceLocationFlags = 1 << iota
	SpaceLocationPositionValid
	SpaceLocationOrientationTracked
	SpaceLocationPositionTracked
)

// SpaceLocation is filled by LocateSpace.
type SpaceLocation struct {
	Type          StructureType
	Next          Extension
	LocationFlags SpaceLocationFlags
	Pose          Pose
}

// ViewLocateInfo requests the views of a configuration at a display time.
type ViewLocateInfo struct {
	Type                  StructureType
	Next                  Extension
	ViewConfigurationType ViewConfigurationType
	DisplayTime           Time
	Space                 Space
}

// ViewStateFlags qualify located views.
type ViewStateFlags uint64

const (
	ViewStateOrientationValid ViewStateFlags = 1 << iota
	ViewStatePositionValid
	ViewStateOrientationTracked
	ViewStatePositionTracked
)

// ViewState is filled by LocateViews.
type ViewState struct {
	Type           StructureType
	Next           Extension
	ViewStateFlags ViewStateFlags
}

// View is one located view.
type View struct {
	Type StructureType
	Next Extension
	Pose Pose
	Fov  Fov
}

// SwapchainCreateInfo requests creation of a swapchain. Size.DepthOrArrayLayers
// is the array size.
type SwapchainCreateInfo struct {
	Type        StructureType
	Next        Extension
	CreateFlags uint64
	Usage       gputypes.TextureUsage
	Format      gputypes.TextureFormat
	SampleCount uint32
	Size        gputypes.Extent3D
	FaceCount   uint32
	MipCount    uint32
}

// SwapchainImageAcquireInfo acquires the next swapchain image.
type SwapchainImageAcquireInfo struct {
	Type StructureType
	Next Extension
}

// SwapchainImageWaitInfo waits for an acquired image to become writable.
type SwapchainImageWaitInfo struct {
	Type    StructureType
	Next    Extension
	Timeout Duration
}

// SwapchainImageReleaseInfo releases the oldest acquired image.
type SwapchainImageReleaseInfo struct {
	Type StructureType
	Next Extension
}

// FrameWaitInfo parameterizes WaitFrame. It may be nil.
type FrameWaitInfo struct {
	Type StructureType
	Next Extension
}

// FrameState is filled by WaitFrame.
type FrameState struct {
	Type                   StructureType
	Next                   Extension
	PredictedDisplayTime   Time
	PredictedDisplayPeriod Duration
	ShouldRender           bool
}

// FrameBeginInfo parameterizes BeginFrame. It may be nil.
type FrameBeginInfo struct {
	Type StructureType
	Next Extension
}

// EnvironmentBlendMode selects how rendered frames blend with the world.
type EnvironmentBlendMode uint32

const (
	EnvironmentBlendModeOpaque     EnvironmentBlendMode = 1
	EnvironmentBlendModeAdditive   EnvironmentBlendMode = 2
	EnvironmentBlendModeAlphaBlend EnvironmentBlendMode = 3
)

// FrameEndInfo submits the layers of a frame.
type FrameEndInfo struct {
	Type                 StructureType
	Next                 Extension
	DisplayTime          Time
	EnvironmentBlendMode EnvironmentBlendMode
	Layers               []CompositionLayer
}
