// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package foveated

import (
	"log/slog"

	"github.com/mbucchia/Varjo-Foveated/internal/trace"
)

// SetLogger configures the logger for the layer and all its sub-packages.
// By default the layer produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by the layer:
//   - [slog.LevelDebug]: per-call traces (frame timing, background waits)
//   - [slog.LevelInfo]: lifecycle events (runtime, system, configuration, resolutions)
//   - [slog.LevelWarn]: non-fatal issues (skipped configuration lines, join timeouts)
//   - [slog.LevelError]: unrecoverable runtime failures, logged before panicking
//
// Example:
//
//	// Enable info-level logging to stderr:
//	foveated.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	foveated.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	trace.SetLogger(l)
}

// Logger returns the current logger used by the layer.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return trace.Logger()
}
