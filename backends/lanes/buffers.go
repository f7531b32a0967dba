// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lanes

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gomlx/bitonic/backends"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// ElementType is the only element type supported by the backend buffers.
var ElementType = dtypes.Int32

// Compile-time check:
var _ backends.DataInterface = (*Backend)(nil)

// Buffer for the lanes backend holds the access mode and the flat data.
type Buffer struct {
	mode  backends.AccessMode
	valid bool
	flat  []int32

	// lastWave is the last dispatched wave using the buffer. Guarded by Backend.mu.
	lastWave *wave
}

// getBufferPool for the given length.
//
// Pools hold the storage only: every allocation gets a new *Buffer handle, so a finalized handle never
// aliases a live buffer.
func (b *Backend) getBufferPool(length int) *sync.Pool {
	poolInterface, ok := b.bufferPools.Load(length)
	if !ok {
		poolInterface, _ = b.bufferPools.LoadOrStore(length, &sync.Pool{
			New: func() interface{} {
				flat := make([]int32, length)
				return &flat
			},
		})
	}
	return poolInterface.(*sync.Pool)
}

// getBuffer from backend pool of buffers.
func (b *Backend) getBuffer(length int, mode backends.AccessMode) *Buffer {
	flat := b.getBufferPool(length).Get().(*[]int32)
	return &Buffer{mode: mode, valid: true, flat: *flat}
}

// putBuffer returns the buffer storage into the backend pool of buffers, and invalidates the handle.
// After this any references to buffer should be dropped.
func (b *Backend) putBuffer(buffer *Buffer) {
	if buffer == nil || buffer.flat == nil {
		return
	}
	flat := buffer.flat
	buffer.valid = false
	buffer.flat = nil
	buffer.lastWave = nil
	b.getBufferPool(len(flat)).Put(&flat)
}

// checkBuffer returns the lanes Buffer, or an error if it's not one or if it has been finalized.
func checkBuffer(method string, backendBuffer backends.Buffer) (*Buffer, error) {
	buffer, ok := backendBuffer.(*Buffer)
	if !ok {
		return nil, errors.Errorf("%s: buffer is not a %q backend buffer, got %T", method, BackendName, backendBuffer)
	}
	if buffer == nil || buffer.flat == nil || !buffer.valid {
		var issues []string
		if buffer != nil {
			if buffer.flat == nil {
				issues = append(issues, "buffer.flat was nil")
			}
			if !buffer.valid {
				issues = append(issues, "buffer was marked as invalid")
			}
		} else {
			issues = append(issues, "buffer was nil")
		}
		return nil, errors.Errorf("%s(%p): %s -- buffer was already finalized!?", method, buffer, strings.Join(issues, ", "))
	}
	return buffer, nil
}

// waitBuffer blocks until the last wave using the buffer completed.
func (b *Backend) waitBuffer(buffer *Buffer) {
	b.mu.Lock()
	w := buffer.lastWave
	b.mu.Unlock()
	if w != nil {
		<-w.done
	}
}

// checkFlat converts flat to the backend element type slice.
func checkFlat(flat any) ([]int32, error) {
	flatType := reflect.TypeOf(flat)
	if flatType == nil || flatType.Kind() != reflect.Slice {
		return nil, errors.Errorf("flat data must be a slice of %s, got %T", ElementType, flat)
	}
	if dtype := dtypes.FromGoType(flatType.Elem()); dtype != ElementType {
		return nil, errors.Errorf("flat data type (%s) does not match the backend element type (%s)", flatType.Elem(), ElementType)
	}
	data, ok := flat.([]int32)
	if !ok {
		// Named types with the same underlying kind, e.g. "type myInt int32", map to the same dtype.
		return nil, errors.Errorf("flat data must be a []int32, got %T", flat)
	}
	return data, nil
}

// BufferAllocate allocates a buffer for length elements. Its contents are not initialized.
func (b *Backend) BufferAllocate(length int, mode backends.AccessMode) (backends.Buffer, error) {
	if b.isFinalized() {
		return nil, errors.Errorf("backend %q already finalized", BackendName)
	}
	if length <= 0 {
		return nil, errors.Errorf("cannot allocate buffer of length %d", length)
	}
	return b.getBuffer(length, mode), nil
}

// BufferFromFlatData allocates a buffer and copies the flat slice, which must be a []int32, into it.
func (b *Backend) BufferFromFlatData(flat any, mode backends.AccessMode) (backends.Buffer, error) {
	data, err := checkFlat(flat)
	if err != nil {
		return nil, err
	}
	bufAny, err := b.BufferAllocate(len(data), mode)
	if err != nil {
		return nil, err
	}
	buffer := bufAny.(*Buffer)
	copy(buffer.flat, data)
	b.stats.bytesUploaded.Add(int64(len(data) * ElementType.Size()))
	return buffer, nil
}

// BufferToFlatData waits for the dispatches using the buffer and copies its contents to flat, which must be
// a []int32 with the same length as the buffer.
func (b *Backend) BufferToFlatData(backendBuffer backends.Buffer, flat any) error {
	buffer, err := checkBuffer("BufferToFlatData", backendBuffer)
	if err != nil {
		return err
	}
	data, err := checkFlat(flat)
	if err != nil {
		return err
	}
	if len(data) != len(buffer.flat) {
		return errors.Errorf("BufferToFlatData: flat data has length %d, but buffer has length %d", len(data), len(buffer.flat))
	}
	b.waitBuffer(buffer)
	copy(data, buffer.flat)
	b.stats.bytesDownloaded.Add(int64(len(data) * ElementType.Size()))
	return nil
}

// BufferLength returns the number of elements of the buffer.
func (b *Backend) BufferLength(backendBuffer backends.Buffer) (int, error) {
	buffer, err := checkBuffer("BufferLength", backendBuffer)
	if err != nil {
		return 0, err
	}
	return len(buffer.flat), nil
}

// BufferFinalize waits for the dispatches using the buffer and returns its storage to the pool.
//
// A finalized buffer should never be used again. Preferably, the caller should set its references to it to nil.
func (b *Backend) BufferFinalize(backendBuffer backends.Buffer) error {
	buffer, err := checkBuffer("BufferFinalize", backendBuffer)
	if err != nil {
		return err
	}
	b.waitBuffer(buffer)
	b.putBuffer(buffer)
	return nil
}
