// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package xr

// CompositionLayer is one layer submitted with EndFrame.
type CompositionLayer interface {
	LayerType() StructureType
}

// Offset2Di is an integer offset in pixels.
type Offset2Di struct {
	X, Y int32
}

// Extent2Di is an integer extent in pixels.
type Extent2Di struct {
	Width, Height int32
}

// Extent2Df is an extent in meters.
type Extent2Df struct {
	Width, Height float32
}

// Rect2Di is an integer rectangle in pixels.
type Rect2Di struct {
	Offset Offset2Di
	Extent Extent2Di
}

// SwapchainSubImage references a region of a swapchain image.
type SwapchainSubImage struct {
	Swapchain       Swapchain
	ImageRect       Rect2Di
	ImageArrayIndex uint32
}

// CompositionLayerProjectionView is one view of a projection layer.
type CompositionLayerProjectionView struct {
	Pose     Pose
	Fov      Fov
	SubImage SwapchainSubImage
}

// CompositionLayerProjection is a stereo (or quad) projection layer.
type CompositionLayerProjection struct {
	LayerFlags uint64
	Space      Space
	Views      []CompositionLayerProjectionView
}

func (*CompositionLayerProjection) LayerType() StructureType { return TypeCompositionLayerProjection }

// CompositionLayerQuad is a textured quad placed in a space.
type CompositionLayerQuad struct {
	LayerFlags uint64
	Space      Space
	SubImage   SwapchainSubImage
	Pose       Pose
	Size       Extent2Df
}

func (*CompositionLayerQuad) LayerType() StructureType { return TypeCompositionLayerQuad }

// IsNilLayer reports whether l is absent, including typed nil pointers of
// the layer types declared in this package.
func IsNilLayer(l CompositionLayer) bool {
	switch v := l.(type) {
	case nil:
		return true
	case *CompositionLayerProjection:
		return v == nil
	case *CompositionLayerQuad:
		return v == nil
	default:
		return false
	}
}
