// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package foveated

import (
	"time"

	"github.com/mbucchia/Varjo-Foveated/config"
	"github.com/mbucchia/Varjo-Foveated/pacing"
)

// Option configures a Layer during creation.
//
// Example:
//
//	// Configuration from the default locations
//	layer := foveated.New(next, foveated.WithInstallDir(dir))
//
//	// Fixed configuration, no file lookup
//	layer := foveated.New(next, foveated.WithConfig(snapshot))
type Option func(*layerOptions)

// layerOptions holds optional configuration for Layer creation.
type layerOptions struct {
	config     *config.Snapshot
	paths      []string
	pathsSet   bool
	installDir string

	now                   func() time.Time
	endFrameTimeout       time.Duration
	destroySessionTimeout time.Duration
}

// defaultOptions returns the default layer options.
func defaultOptions() layerOptions {
	return layerOptions{
		now:                   time.Now,
		endFrameTimeout:       pacing.DefaultEndFrameTimeout,
		destroySessionTimeout: pacing.DefaultDestroySessionTimeout,
	}
}

// WithConfig uses snapshot instead of reading a configuration file.
func WithConfig(snapshot config.Snapshot) Option {
	return func(o *layerOptions) {
		o.config = &snapshot
	}
}

// WithConfigPaths replaces the configuration file candidates. With no paths
// no file is read and the default configuration applies.
func WithConfigPaths(paths ...string) Option {
	return func(o *layerOptions) {
		o.paths = paths
		o.pathsSet = true
	}
}

// WithInstallDir sets the directory the layer was installed to. It is the
// fallback configuration location.
func WithInstallDir(dir string) Option {
	return func(o *layerOptions) {
		o.installDir = dir
	}
}

// WithClock sets the wall clock used to extrapolate predicted display times.
func WithClock(now func() time.Time) Option {
	return func(o *layerOptions) {
		o.now = now
	}
}

// WithJoinTimeouts sets how long end-frame and session destruction wait for
// an outstanding background frame wait.
func WithJoinTimeouts(endFrame, destroySession time.Duration) Option {
	return func(o *layerOptions) {
		o.endFrameTimeout = endFrame
		o.destroySessionTimeout = destroySession
	}
}

// configPaths returns the configuration file candidates in lookup order.
func (o *layerOptions) configPaths() []string {
	if o.pathsSet {
		return o.paths
	}
	return config.SearchPaths(o.installDir)
}
