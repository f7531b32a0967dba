// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import "github.com/pkg/errors"

var (
	// ErrBackendUnavailable indicates no usable compute backend was found. It is not transient.
	ErrBackendUnavailable = errors.New("compute backend unavailable")

	// ErrCompile indicates the kernel source failed to compile for the backend.
	ErrCompile = errors.New("kernel compilation failed")

	// ErrDispatch indicates invalid launch parameters or a failure while executing a dispatch.
	ErrDispatch = errors.New("kernel dispatch failed")
)
