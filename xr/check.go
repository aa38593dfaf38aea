// Copyright 2026 The Varjo-Foveated Authors
// SPDX-License-Identifier: BSD-3-Clause

package xr

import (
	"fmt"

	"github.com/mbucchia/Varjo-Foveated/internal/trace"
)

// InvariantError is the panic value raised by Check.
type InvariantError struct {
	Call string
	Err  error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("xr: %s failed: %v", e.Call, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }

// Check guards a runtime call that must succeed on a conformant runtime.
// A failure is logged and raised as a panic carrying an *InvariantError.
func Check(err error, call string) {
	if err == nil {
		return
	}
	trace.Logger().Error("unrecoverable runtime call failure", "call", call, "err", err)
	panic(&InvariantError{Call: call, Err: err})
}
