// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

// Buffer represents a flat array stored on the backend, used as kernel argument.
//
// It is opaque from the caller's perspective: it is only passed back to the backend methods.
type Buffer any

// AccessMode tells how kernels may access a Buffer.
type AccessMode int

const (
	// ReadWrite buffers can be read and written by kernels.
	ReadWrite AccessMode = iota

	// ReadOnly buffers can only be read by kernels.
	ReadOnly

	// WriteOnly buffers can only be written by kernels.
	WriteOnly
)

// String implements fmt.Stringer.
func (m AccessMode) String() string {
	switch m {
	case ReadWrite:
		return "ReadWrite"
	case ReadOnly:
		return "ReadOnly"
	case WriteOnly:
		return "WriteOnly"
	default:
		return "AccessMode(?)"
	}
}

// CanRead returns whether kernels may read buffers with this mode.
func (m AccessMode) CanRead() bool { return m == ReadWrite || m == ReadOnly }

// CanWrite returns whether kernels may write buffers with this mode.
func (m AccessMode) CanWrite() bool { return m == ReadWrite || m == WriteOnly }

// DataInterface is the Backend's sub-interface that defines the API to allocate buffers and transfer data
// between the host and the backend.
//
// Buffers hold a flat array of a single element type. Transfers are synchronous: they wait for any
// in-flight dispatch using the buffer to complete.
type DataInterface interface {
	// BufferAllocate allocates an uninitialized buffer for length elements of the backend's element type.
	BufferAllocate(length int, mode AccessMode) (Buffer, error)

	// BufferFromFlatData allocates a buffer and copies the host flat slice (e.g.: []int32) into it.
	BufferFromFlatData(flat any, mode AccessMode) (Buffer, error)

	// BufferToFlatData copies the buffer contents back to the host flat slice,
	// which must have exactly the buffer length.
	BufferToFlatData(buffer Buffer, flat any) error

	// BufferLength returns the number of elements of the buffer.
	BufferLength(buffer Buffer) (int, error)

	// BufferFinalize allows the client to inform backend that buffer is no longer needed and associated resources can be
	// freed immediately -- as opposed to waiting for a GC.
	//
	// A finalized buffer should never be used again. Preferably, the caller should set its references to it to nil.
	BufferFinalize(buffer Buffer) error
}
