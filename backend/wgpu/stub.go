// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build nogpu

package wgpu

import (
	"errors"

	"github.com/gogpu/renderloop"
)

// BackendName is the registry name of this backend.
const BackendName = "wgpu"

// ErrNoDriver is returned when the backend is compiled out by the nogpu tag.
var ErrNoDriver = errors.New("wgpu: built with nogpu tag")

// init registers a never-available entry when the nogpu tag is set. The
// name stays known to the registry without linking a HAL driver, and
// selection by name reports unavailable instead of unknown.
func init() {
	renderloop.RegisterBackend(BackendName, 50, func() (renderloop.Backend, error) {
		return nil, ErrNoDriver
	}, func() bool { return false })
}
