// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package foveated is an XR API layer that enables foveated rendering for the
// quad view configuration and optionally decouples application frame pacing
// from the runtime.
//
// # Overview
//
// A [Layer] sits between an application and the next [xr.Runtime] in the
// chain. Calls it does not care about are forwarded unchanged. The calls it
// intercepts fall in two groups:
//
//   - Foveation: view enumeration and view location on the quad view
//     configuration request foveated parameters from the runtime and scale the
//     recommended resolutions (see package foveation).
//   - Frame pacing: wait/begin/end-frame go through a per-session controller
//     which, in turbo mode, pipelines the runtime's frame wait one frame ahead
//     (see package pacing).
//
// The layer only activates for instances that enable the quad view
// extension. Other instances see a pure passthrough.
//
// # Quick Start
//
//	import foveated "github.com/mbucchia/Varjo-Foveated"
//
//	layer := foveated.New(nextRuntime, foveated.WithInstallDir(dir))
//	defer layer.Close()
//
//	instance, err := layer.CreateInstance(&xr.InstanceCreateInfo{
//	    Type:                  xr.TypeInstanceCreateInfo,
//	    EnabledExtensionNames: []string{xr.QuadViewsExtensionName},
//	})
//
// # Configuration
//
// The configuration is read once, when the instance is created. See package
// config for the file format and lookup order.
//
// # Errors
//
// Malformed input structures are rejected with [xr.ErrorValidationFailure]
// before anything is forwarded. Runtime errors are returned unchanged.
// Failures of calls the layer issues on its own behalf and that a conformant
// runtime never fails panic with an [*xr.InvariantError].
package foveated

// Layer identification.
const (
	// LayerName is the name the layer registers under.
	LayerName = "XR_APILAYER_MBUCCHIA_varjo_foveated"

	// Version is the current version of the layer.
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
