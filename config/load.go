// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mbucchia/Varjo-Foveated/internal/trace"
)

// File lookup names.
const (
	// DirName is the per-user configuration directory name.
	DirName = "Varjo-Foveated"

	// FileName is the configuration file name.
	FileName = "XR_APILAYER_MBUCCHIA_varjo_foveated.cfg"
)

// SearchPaths returns the configuration file candidates in lookup order: the
// per-user location first, then installDir when it is not empty.
//
// The per-user directory is LOCALAPPDATA when set, otherwise
// [os.UserConfigDir].
func SearchPaths(installDir string) []string {
	var paths []string
	base := os.Getenv("LOCALAPPDATA")
	if base == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			base = dir
		}
	}
	if base != "" {
		paths = append(paths, filepath.Join(base, DirName, FileName))
	}
	if installDir != "" {
		paths = append(paths, filepath.Join(installDir, FileName))
	}
	return paths
}

// Load reads the first existing file among paths and returns its snapshot
// together with the path it came from. When no file exists, Default is
// returned with an empty path.
//
// Load never fails: unreadable files are logged and skipped.
func Load(paths ...string) (Snapshot, string) {
	log := trace.Logger()
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warn("configuration file unreadable", "path", path, "err", err)
			}
			continue
		}

		snapshot, skipped, err := Parse(f)
		_ = f.Close()
		if err != nil {
			log.Warn("configuration file partially read", "path", path, "err", err)
		}
		log.Info("loaded configuration",
			"path", path,
			"peripheral_multiplier", snapshot.PeripheralMultiplier,
			"focus_multiplier", snapshot.FocusMultiplier,
			"eye_tracking", snapshot.EyeTracking,
			"turbo_mode", snapshot.TurboMode,
			"skipped", len(skipped))
		return snapshot, path
	}

	log.Info("no configuration file found, using defaults")
	return Default(), ""
}
