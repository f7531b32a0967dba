// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lanes

import (
	"sync"

	"github.com/gomlx/bitonic/backends"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// wave is one dispatch of a kernel over an index space. It implements backends.WaitHandle.
//
// Waves form an in-order queue: a wave only starts after the previous one (prev) is done.
type wave struct {
	id     int64
	kernel *kernelDef
	args   []any
	extent int
	prev   *wave

	done chan struct{}
	err  error // Set before done is closed.
}

// Compile-time check.
var _ backends.WaitHandle = (*wave)(nil)

// Wait blocks until the wave completed, and returns its execution error if any.
func (w *wave) Wait() error {
	<-w.done
	return w.err
}

// Done returns a channel closed when the wave completes.
func (w *wave) Done() <-chan struct{} {
	return w.done
}

// scalarArg converts a scalar argument to int.
func scalarArg(arg any) (int, bool) {
	switch v := arg.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

// Dispatch schedules the kernel entryPoint of program over [0, globalExtent) and returns immediately.
//
// Buffer arguments must be buffers of this backend, and scalar arguments int, int32 or int64. The extent must be
// between 1 and the length of the shortest buffer argument. Errors wrap backends.ErrDispatch.
func (b *Backend) Dispatch(program backends.Program, entryPoint string, args []any, globalExtent int) (backends.WaitHandle, error) {
	p, ok := program.(*Program)
	if !ok || p == nil {
		return nil, errors.Wrapf(backends.ErrDispatch, "program is not a %q backend program, got %T", BackendName, program)
	}
	if p.backend != b {
		return nil, errors.Wrapf(backends.ErrDispatch, "program %q was compiled by a different backend", p.name)
	}
	if p.finalized.Load() {
		return nil, errors.Wrapf(backends.ErrDispatch, "program %q already finalized", p.name)
	}
	def, found := p.kernels[entryPoint]
	if !found {
		return nil, errors.Wrapf(backends.ErrDispatch, "program %q has no kernel %q, entry points are %q",
			p.name, entryPoint, p.order)
	}
	if len(args) != len(def.params) {
		return nil, errors.Wrapf(backends.ErrDispatch, "kernel %q takes %d arguments, %d given", entryPoint, len(def.params), len(args))
	}

	kernelArgs := make([]any, len(args))
	buffers := make([]*Buffer, 0, len(args))
	minLength := -1
	for idx, arg := range args {
		kind := def.params[idx]
		if !kind.IsBuffer() {
			value, ok := scalarArg(arg)
			if !ok {
				return nil, errors.Wrapf(backends.ErrDispatch, "kernel %q argument #%d must be an integer scalar, got %T",
					entryPoint, idx, arg)
			}
			kernelArgs[idx] = value
			continue
		}
		buffer, err := checkBuffer("Dispatch", arg)
		if err != nil {
			return nil, errors.Wrapf(backends.ErrDispatch, "kernel %q argument #%d: %v", entryPoint, idx, err)
		}
		if kind == ParamBuffer && !buffer.mode.CanWrite() {
			return nil, errors.Wrapf(backends.ErrDispatch, "kernel %q argument #%d is written by the kernel, but the buffer is %s",
				entryPoint, idx, buffer.mode)
		}
		if kind == ParamReadOnlyBuffer && !buffer.mode.CanRead() {
			return nil, errors.Wrapf(backends.ErrDispatch, "kernel %q argument #%d is read by the kernel, but the buffer is %s",
				entryPoint, idx, buffer.mode)
		}
		kernelArgs[idx] = buffer.flat
		buffers = append(buffers, buffer)
		if minLength < 0 || len(buffer.flat) < minLength {
			minLength = len(buffer.flat)
		}
	}
	if globalExtent < 1 || (minLength >= 0 && globalExtent > minLength) {
		return nil, errors.Wrapf(backends.ErrDispatch, "kernel %q: invalid global extent %d (buffer length %d)",
			entryPoint, globalExtent, minLength)
	}

	w := &wave{
		kernel: def,
		args:   kernelArgs,
		extent: globalExtent,
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	if b.finalized {
		b.mu.Unlock()
		return nil, errors.Wrapf(backends.ErrDispatch, "backend %q already finalized", BackendName)
	}
	w.prev = b.lastWave
	b.lastWave = w
	for _, buffer := range buffers {
		buffer.lastWave = w
	}
	b.inflight.Add(1)
	b.mu.Unlock()

	w.id = b.stats.waves.Add(1)
	b.stats.items.Add(int64(globalExtent))
	if klog.V(2).Enabled() {
		klog.Infof("backend %s: wave #%d %s%v over %d indices", BackendName, w.id, entryPoint, kernelScalars(def, kernelArgs), globalExtent)
	}
	go b.run(w)
	return w, nil
}

// kernelScalars returns the scalar arguments, for logging.
func kernelScalars(def *kernelDef, args []any) []int {
	var scalars []int
	for idx, kind := range def.params {
		if !kind.IsBuffer() {
			scalars = append(scalars, args[idx].(int))
		}
	}
	return scalars
}

// run executes the wave once the previous one is done, split in chunks over the workers pool.
func (b *Backend) run(w *wave) {
	defer b.inflight.Done()
	defer close(w.done)
	if w.prev != nil {
		<-w.prev.done
		w.prev = nil
	}

	var (
		mu       sync.Mutex
		firstErr error
	)
	b.workers.ParallelFor(w.extent, b.grain, func(start, end int) {
		exception := exceptions.Try(func() { w.kernel.fn(w.args, start, end) })
		if exception == nil {
			return
		}
		err, ok := exception.(error)
		if !ok {
			err = errors.Errorf("%v", exception)
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = errors.Wrapf(backends.ErrDispatch, "kernel %q failed on indices [%d, %d): %v", w.kernel.name, start, end, err)
		}
		mu.Unlock()
	})
	if firstErr == nil {
		return
	}

	klog.Errorf("backend %s: wave #%d: %v", BackendName, w.id, firstErr)
	w.err = firstErr
	b.mu.Lock()
	if b.firstErr == nil {
		b.firstErr = firstErr
	}
	b.mu.Unlock()
}
