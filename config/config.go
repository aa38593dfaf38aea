// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads the layer's configuration snapshot.
//
// The configuration is a plain text file of newline-separated key=value
// statements:
//
//	peripheral_multiplier=0.5
//	focus_multiplier=1.1
//	no_eye_tracking=0
//	turbo_mode=1
//
// Every statement is parsed on its own. A statement that cannot be parsed is
// logged with its line number and skipped; it never prevents the rest of the
// file from being applied.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/mbucchia/Varjo-Foveated/internal/trace"
)

// Recognized keys.
const (
	KeyPeripheralMultiplier = "peripheral_multiplier"
	KeyFocusMultiplier      = "focus_multiplier"
	KeyNoEyeTracking        = "no_eye_tracking"
	KeyTurboMode            = "turbo_mode"
)

// Statement errors.
var (
	// ErrMalformed is reported for a line without '='.
	ErrMalformed = errors.New("config: improperly formatted option")

	// ErrUnrecognized is reported for an unknown key.
	ErrUnrecognized = errors.New("config: unrecognized option")

	// ErrInvalidValue is reported for a value that does not parse or is out
	// of range.
	ErrInvalidValue = errors.New("config: invalid value")
)

// Snapshot is the immutable configuration consumed by the layer.
type Snapshot struct {
	// PeripheralMultiplier scales the resolution of the two peripheral views.
	PeripheralMultiplier float32

	// FocusMultiplier scales the resolution of the two focus views.
	FocusMultiplier float32

	// EyeTracking enables gaze-driven foveation detection.
	EyeTracking bool

	// TurboMode enables the asynchronous frame pacing path.
	TurboMode bool
}

// Default returns the configuration used when no file is found.
func Default() Snapshot {
	return Snapshot{
		PeripheralMultiplier: 1,
		FocusMultiplier:      1,
		EyeTracking:          true,
	}
}

// StatementError describes a skipped statement.
type StatementError struct {
	Line int
	Text string
	Err  error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("L%d: %v", e.Line, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// WithStatement returns a copy of s with one key=value statement applied.
// On error s is returned unchanged.
func (s Snapshot) WithStatement(statement string) (Snapshot, error) {
	name, value, ok := strings.Cut(statement, "=")
	if !ok {
		return s, ErrMalformed
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)

	switch name {
	case KeyPeripheralMultiplier:
		f, err := parseMultiplier(value)
		if err != nil {
			return s, err
		}
		s.PeripheralMultiplier = f
	case KeyFocusMultiplier:
		f, err := parseMultiplier(value)
		if err != nil {
			return s, err
		}
		s.FocusMultiplier = f
	case KeyNoEyeTracking:
		b, err := parseFlag(value)
		if err != nil {
			return s, err
		}
		s.EyeTracking = !b
	case KeyTurboMode:
		b, err := parseFlag(value)
		if err != nil {
			return s, err
		}
		s.TurboMode = b
	default:
		return s, ErrUnrecognized
	}
	return s, nil
}

func parseMultiplier(value string) (float32, error) {
	f, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, value)
	}
	if f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidValue, value)
	}
	return float32(f), nil
}

// parseFlag accepts any integer; non-zero means enabled.
func parseFlag(value string) (bool, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidValue, value)
	}
	return n != 0, nil
}

// Parse applies every statement read from r on top of Default.
//
// Skipped statements are logged and returned; they are not fatal. The
// returned error is only set when reading r fails, in which case the
// statements read so far are still applied. A UTF-8 or UTF-16 byte order
// mark is honored.
func Parse(r io.Reader) (Snapshot, []*StatementError, error) {
	snapshot := Default()
	var skipped []*StatementError

	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	scanner := bufio.NewScanner(decoded)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		next, err := snapshot.WithStatement(text)
		if err != nil {
			serr := &StatementError{Line: line, Text: text, Err: err}
			trace.Logger().Warn("configuration statement skipped", "line", line, "err", err)
			skipped = append(skipped, serr)
			continue
		}
		snapshot = next
	}
	if err := scanner.Err(); err != nil {
		return snapshot, skipped, fmt.Errorf("config: reading: %w", err)
	}
	return snapshot, skipped, nil
}
