// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package xr

import "fmt"

// StructureType tags every request and response structure.
type StructureType uint32

const (
	TypeUnknown                            StructureType = 0
	TypeExtensionProperties                StructureType = 2
	TypeInstanceCreateInfo                 StructureType = 3
	TypeSystemGetInfo                      StructureType = 4
	TypeSystemProperties                   StructureType = 5
	TypeViewLocateInfo                     StructureType = 6
	TypeView                               StructureType = 7
	TypeSessionCreateInfo                  StructureType = 8
	TypeSwapchainCreateInfo                StructureType = 9
	TypeSessionBeginInfo                   StructureType = 10
	TypeViewState                          StructureType = 11
	TypeFrameEndInfo                       StructureType = 12
	TypeInstanceProperties                 StructureType = 32
	TypeFrameWaitInfo                      StructureType = 33
	TypeCompositionLayerProjection         StructureType = 35
	TypeCompositionLayerQuad               StructureType = 36
	TypeReferenceSpaceCreateInfo           StructureType = 37
	TypeViewConfigurationView              StructureType = 41
	TypeSpaceLocation                      StructureType = 42
	TypeFrameState                         StructureType = 44
	TypeFrameBeginInfo                     StructureType = 46
	TypeSwapchainImageAcquireInfo          StructureType = 55
	TypeSwapchainImageWaitInfo             StructureType = 56
	TypeSwapchainImageReleaseInfo          StructureType = 57
	TypeViewLocateFoveatedRenderingVarjo   StructureType = 1000121000
	TypeFoveatedViewConfigurationViewVarjo StructureType = 1000121001
	TypeSystemFoveatedRenderingPropsVarjo  StructureType = 1000121002
)

func (t StructureType) String() string {
	switch t {
	case TypeViewLocateFoveatedRenderingVarjo:
		return "ViewLocateFoveatedRenderingVARJO"
	case TypeFoveatedViewConfigurationViewVarjo:
		return "FoveatedViewConfigurationViewVARJO"
	case TypeSystemFoveatedRenderingPropsVarjo:
		return "SystemFoveatedRenderingPropertiesVARJO"
	default:
		return fmt.Sprintf("StructureType(%d)", uint32(t))
	}
}

// Extension is a structure chained behind another one through a Next field.
type Extension interface {
	// StructureType returns the tag of the extension structure.
	StructureType() StructureType

	// NextExtension returns the following node of the chain, or nil.
	NextExtension() Extension
}

// Find walks chain and returns the first node of type T.
func Find[T Extension](chain Extension) (T, bool) {
	for node := chain; node != nil; node = node.NextExtension() {
		if v, ok := node.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// ChainTypes lists the structure types found along chain, in order.
func ChainTypes(chain Extension) []StructureType {
	var types []StructureType
	for node := chain; node != nil; node = node.NextExtension() {
		types = append(types, node.StructureType())
	}
	return types
}

// FoveatedViewConfigurationView asks the runtime for the foveated variant of
// the quad view recommendations.
type FoveatedViewConfigurationView struct {
	Next                    Extension
	FoveatedRenderingActive bool
}

func (*FoveatedViewConfigurationView) StructureType() StructureType {
	return TypeFoveatedViewConfigurationViewVarjo
}

func (v *FoveatedViewConfigurationView) NextExtension() Extension { return v.Next }

// ViewLocateFoveatedRendering tells the runtime whether the focus views
// should follow the gaze when locating quad views.
type ViewLocateFoveatedRendering struct {
	Next                    Extension
	FoveatedRenderingActive bool
}

func (*ViewLocateFoveatedRendering) StructureType() StructureType {
	return TypeViewLocateFoveatedRenderingVarjo
}

func (v *ViewLocateFoveatedRendering) NextExtension() Extension { return v.Next }

// SystemFoveatedRenderingProperties is filled by GetSystemProperties.
type SystemFoveatedRenderingProperties struct {
	Next                      Extension
	SupportsFoveatedRendering bool
}

func (*SystemFoveatedRenderingProperties) StructureType() StructureType {
	return TypeSystemFoveatedRenderingPropsVarjo
}

func (p *SystemFoveatedRenderingProperties) NextExtension() Extension { return p.Next }
