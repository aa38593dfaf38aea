// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package pacing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Wait paths reported by the frame waits counter.
const (
	pathSync        = "sync"
	pathExtrapolate = "extrapolated"
	pathCompleted   = "completed"
	pathJoined      = "joined"
)

var (
	frameWaitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "varjo_foveated_frame_waits_total",
			Help: "Total number of application frame waits by path",
		},
		[]string{"path"},
	)

	asyncWaitsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "varjo_foveated_async_waits_started_total",
			Help: "Total number of background frame waits started",
		},
	)

	asyncWaitFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "varjo_foveated_async_wait_failures_total",
			Help: "Total number of background frame waits that returned an error",
		},
	)

	asyncWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "varjo_foveated_async_wait_duration_seconds",
			Help:    "Duration of background frame waits",
			Buckets: []float64{0.001, 0.002, 0.005, 0.008, 0.011, 0.014, 0.017, 0.025, 0.05, 0.1, 0.5, 1},
		},
	)

	joinTimeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "varjo_foveated_join_timeouts_total",
			Help: "Total number of bounded background wait joins that timed out",
		},
		[]string{"call"},
	)

	watermarkClampsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "varjo_foveated_watermark_clamps_total",
			Help: "Total number of predicted display times raised to keep them increasing",
		},
	)

	turboModeEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "varjo_foveated_turbo_mode",
			Help: "Whether turbo mode is enabled (1) or not (0)",
		},
	)
)

func boolGauge(on bool) float64 {
	if on {
		return 1
	}
	return 0
}
