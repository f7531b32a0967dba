// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lanes

import (
	"slices"
	"sync"

	"github.com/gomlx/bitonic/pkg/network"
	"github.com/gomlx/exceptions"
)

// ParamKind is the kind of a kernel parameter, as declared in the kernel source.
type ParamKind int

const (
	// ParamScalar is an integer parameter passed by value.
	ParamScalar ParamKind = iota

	// ParamBuffer is a "__global T*" parameter: the kernel may read and write it.
	ParamBuffer

	// ParamReadOnlyBuffer is a "const __global T*" parameter.
	ParamReadOnlyBuffer
)

// String implements fmt.Stringer.
func (k ParamKind) String() string {
	switch k {
	case ParamScalar:
		return "scalar"
	case ParamBuffer:
		return "buffer"
	case ParamReadOnlyBuffer:
		return "read-only buffer"
	default:
		return "ParamKind(?)"
	}
}

// IsBuffer returns whether the parameter takes a buffer.
func (k ParamKind) IsBuffer() bool {
	return k == ParamBuffer || k == ParamReadOnlyBuffer
}

// KernelFunc is the native translation of a kernel: it executes the kernel body for every index in [start, end).
//
// Arguments are given in the order of the kernel parameters: buffer parameters as []int32 and scalars as int.
// Different ranges of the same wave are executed concurrently.
type KernelFunc func(args []any, start, end int)

// kernelDef is a registered kernel translation.
type kernelDef struct {
	name   string
	params []ParamKind
	fn     KernelFunc
}

var (
	kernelsMu sync.RWMutex
	kernels   = make(map[string]*kernelDef)
)

// RegisterKernel registers the native translation of the kernel with the given name, and its parameter kinds.
//
// Programs compiled afterward can dispatch kernels with that name, as long as their declared parameters match.
// Registering the same name again replaces the previous translation.
func RegisterKernel(name string, params []ParamKind, fn KernelFunc) {
	if name == "" || fn == nil {
		exceptions.Panicf("RegisterKernel(%q): kernel name and function must be given", name)
	}
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	kernels[name] = &kernelDef{name: name, params: slices.Clone(params), fn: fn}
}

// lookupKernel returns the registered kernel or nil if not registered.
func lookupKernel(name string) *kernelDef {
	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	return kernels[name]
}

// BitonicExchangeKernel is the name of the bitonic compare-exchange kernel, with parameters (data, j, k).
const BitonicExchangeKernel = "bitonic_exchange"

func init() {
	RegisterKernel(BitonicExchangeKernel, []ParamKind{ParamBuffer, ParamScalar, ParamScalar},
		func(args []any, start, end int) {
			data := args[0].([]int32)
			j, k := args[1].(int), args[2].(int)
			network.Exchange(data, k, j, start, end)
		})
}
