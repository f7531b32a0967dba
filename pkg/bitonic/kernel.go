// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bitonic

import (
	_ "embed"

	"github.com/gomlx/bitonic/backends"
)

// EntryPoint is the name of the compare-exchange kernel in KernelSource.
const EntryPoint = "bitonic_exchange"

//go:embed kernels/bitonic_exchange.cl
var kernelText string

// KernelSource returns the source of the compare-exchange kernel, with parameters (data, j, k).
//
// Backends translate it to their native form: see backends.Backend.Compile.
func KernelSource() backends.KernelSource {
	return backends.KernelSource{Name: "bitonic_exchange.cl", Text: kernelText}
}
