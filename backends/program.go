// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

// KernelSource is the text of a compute program, in OpenCL C syntax, given to Backend.Compile.
//
// Backends are free to translate it to their native dispatch form: a device kernel, a vectorized
// loop, or a task-parallel loop body.
type KernelSource struct {
	// Name identifies the source in error messages, usually the file name.
	Name string

	// Text of the program.
	Text string
}

// Program is the API for compiled programs ready to be dispatched.
type Program interface {
	// EntryPoints returns the names of the kernels in the program, in source order.
	EntryPoints() []string

	// Finalize immediately frees resources associated to the program.
	Finalize()
}
