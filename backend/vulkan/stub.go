// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !vulkan

package vulkan

import (
	"errors"

	"github.com/gogpu/renderloop"
)

// BackendName is the registry name of this backend.
const BackendName = "vulkan"

// ErrNotBuilt is returned by the registry factory when the package was
// compiled without the vulkan build tag.
var ErrNotBuilt = errors.New("vulkan: built without vulkan tag")

// init registers a never-available entry so the name resolves in
// listings and lookups fail gracefully instead of at link time.
func init() {
	renderloop.RegisterBackend(BackendName, 100, func() (renderloop.Backend, error) {
		return nil, ErrNotBuilt
	}, func() bool {
		return false
	})
}
