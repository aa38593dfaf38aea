// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package simruntime

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Device is a headless graphics binding for simulated sessions. It exposes
// adapter metadata and a surface format but no real device or queue.
type Device struct {
	Name   string
	Type   gpucontext.AdapterType
	Format gputypes.TextureFormat
}

// NewDevice returns a software adapter binding rendering to sRGB RGBA8.
func NewDevice() *Device {
	return &Device{
		Name:   "Simulated Compositor",
		Type:   gpucontext.AdapterTypeSoftware,
		Format: gputypes.TextureFormatRGBA8UnormSrgb,
	}
}

func (d *Device) Device() gpucontext.Device   { return nil }
func (d *Device) Queue() gpucontext.Queue     { return nil }
func (d *Device) Adapter() gpucontext.Adapter { return nil }

func (d *Device) SurfaceFormat() gputypes.TextureFormat { return d.Format }

func (d *Device) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: d.Name, Type: d.Type}
}

var _ gpucontext.DeviceProvider = (*Device)(nil)
