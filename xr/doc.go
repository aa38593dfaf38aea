// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package xr describes the XR call surface seen by the layer.
//
// It defines the opaque handles, the tagged request/response structures with
// their extension chains, the [Result] error codes returned by a runtime and
// the [Runtime] capability interface. Both the real runtime and the layer
// implement [Runtime]; the layer composes the runtime it wraps and overrides
// only the calls it needs.
//
// # Extension chains
//
// Every structure carries a Type tag and an optional Next extension. The
// layer never splices nodes into caller-owned structures: it builds a
// call-local copy whose Next points at the injected node, which in turn
// points at the caller's own chain.
//
//	call := *info
//	call.Next = &xr.ViewLocateFoveatedRendering{Next: info.Next, FoveatedRenderingActive: true}
//	err := next.LocateViews(session, &call, state, views)
//
// Runtimes read injected data with [Find].
//
// # Errors
//
// Runtime calls return nil on success. Failures are reported as [Result]
// values, which implement error, and are propagated unchanged by the layer.
// Calls that are expected to always succeed on a conformant runtime are
// guarded with [Check], which panics with an [*InvariantError].
package xr
