// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command foveated-sim runs a quad view application against the foveated
// rendering layer stacked on a simulated runtime, and reports the frame
// timing the application observed.
package main

import (
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	foveated "github.com/mbucchia/Varjo-Foveated"
	"github.com/mbucchia/Varjo-Foveated/config"
	"github.com/mbucchia/Varjo-Foveated/internal/simruntime"
	"github.com/mbucchia/Varjo-Foveated/xr"
)

func main() {
	var (
		frames     = flag.Int("frames", 900, "number of frames to render")
		turbo      = flag.Bool("turbo", false, "enable turbo mode")
		throttle   = flag.Duration("throttle", simruntime.DefaultFramePeriod, "simulated compositor wait per frame")
		cfgFile    = flag.String("config", "", "configuration file (default: search the standard locations)")
		peripheral = flag.Float64("peripheral", 0, "peripheral multiplier override")
		focus      = flag.Float64("focus", 0, "focus multiplier override")
		noEyes     = flag.Bool("no-eye-tracking", false, "disable eye tracking")
		metrics    = flag.String("metrics", "", "serve Prometheus metrics on this address (e.g. :9090)")
		debug      = flag.Bool("debug", false, "log every frame call")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	foveated.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *metrics != "" {
		go serveMetrics(*metrics)
	}

	installDir := executableDir()
	opts := []foveated.Option{foveated.WithInstallDir(installDir)}
	if *cfgFile != "" {
		opts = append(opts, foveated.WithConfigPaths(*cfgFile))
	}
	if *peripheral > 0 || *focus > 0 || *noEyes {
		cfg, _ := config.Load(configPaths(*cfgFile, installDir)...)
		if *peripheral > 0 {
			cfg.PeripheralMultiplier = float32(*peripheral)
		}
		if *focus > 0 {
			cfg.FocusMultiplier = float32(*focus)
		}
		if *noEyes {
			cfg.EyeTracking = false
		}
		opts = append(opts, foveated.WithConfig(cfg))
	}

	rt := simruntime.New(simruntime.WithThrottle(*throttle))
	layer := foveated.New(rt, opts...)
	defer layer.Close()

	app, err := simruntime.NewApp(layer, "foveated-sim", simruntime.NewDevice())
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	if *turbo {
		layer.SetTurboMode(true)
	}

	for i, view := range app.Views {
		log.Printf("View %d: %dx%d\n", i, view.RecommendedImageRectWidth, view.RecommendedImageRectHeight)
	}

	start := time.Now()
	var last xr.Time
	for i := 0; i < *frames; i++ {
		state, err := app.Frame()
		if err != nil {
			log.Fatalf("Frame %d: %v", i, err)
		}
		if state.PredictedDisplayTime <= last {
			log.Fatalf("Frame %d: predicted display time went backwards", i)
		}
		last = state.PredictedDisplayTime
	}
	elapsed := time.Since(start)

	if err := app.Close(); err != nil {
		log.Fatalf("Failed to shut down: %v", err)
	}
	if v := rt.Violations(); len(v) > 0 {
		log.Fatalf("Runtime violations: %v", v)
	}

	log.Printf("Rendered %d frames in %v (%.1f fps, turbo=%v)\n",
		*frames, elapsed.Round(time.Millisecond), float64(*frames)/elapsed.Seconds(), *turbo)
}

func configPaths(file, installDir string) []string {
	if file != "" {
		return []string{file}
	}
	return config.SearchPaths(installDir)
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("Metrics server: %v\n", err)
	}
}
