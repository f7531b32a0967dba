// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package bitonic sorts integer arrays with the bitonic sorting network executed on a parallel compute
// backend, and validates the results against a sequential sort.
//
// Example:
//
//	backend := backends.MustNew()
//	defer backend.Finalize()
//	sorter, err := bitonic.NewSorter(backend)
//	if err != nil { ... }
//	defer sorter.Finalize()
//	report, err := sorter.SortAndValidate(data)
//	if err != nil { ... }
//	fmt.Printf("valid=%v, parallel=%s, sequential=%s\n", report.Valid, report.ParallelDuration, report.SequentialDuration)
//
// The input is padded to a power of two with network.PadValue. Since that value is the minimum int32,
// the padding ends at the head of the sorted array, and it is removed from there.
package bitonic

import (
	"slices"
	"sync/atomic"

	"github.com/gomlx/bitonic/backends"
	"github.com/gomlx/bitonic/pkg/network"
	"github.com/gomlx/bitonic/pkg/oracle"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrConfiguration is returned (wrapped) for invalid inputs, like an empty array. It is not transient.
var ErrConfiguration = errors.New("bitonic: invalid configuration")

// Sorter runs the bitonic network on a backend.
//
// It is safe to call Sort concurrently: each call owns its buffer, and the backend queue serializes the waves.
type Sorter struct {
	backend   backends.Backend
	program   backends.Program
	baseline  oracle.Algorithm
	finalized atomic.Bool
}

// Option for NewSorter.
type Option func(s *Sorter)

// WithBaseline sets the sequential sort used by SortAndValidate as ground truth.
// The default is oracle.AlgorithmStandard.
func WithBaseline(algorithm oracle.Algorithm) Option {
	return func(s *Sorter) {
		s.baseline = algorithm
	}
}

// NewSorter compiles the compare-exchange kernel on the backend.
//
// The backend is not owned by the Sorter: it must outlive it, and it is not finalized by Sorter.Finalize.
// Compilation failures are returned wrapping backends.ErrCompile.
func NewSorter(backend backends.Backend, options ...Option) (*Sorter, error) {
	if backend == nil {
		return nil, errors.Wrapf(backends.ErrBackendUnavailable, "bitonic.NewSorter: nil backend")
	}
	s := &Sorter{backend: backend, baseline: oracle.AlgorithmStandard}
	for _, option := range options {
		option(s)
	}
	program, err := backend.Compile(KernelSource())
	if err != nil {
		if !errors.Is(err, backends.ErrCompile) {
			err = errors.Wrapf(backends.ErrCompile, "%v", err)
		}
		return nil, errors.WithMessagef(err, "failed to compile %q on backend %q", KernelSource().Name, backend.Name())
	}
	if !slices.Contains(program.EntryPoints(), EntryPoint) {
		program.Finalize()
		return nil, errors.Wrapf(backends.ErrCompile, "program %q compiled by backend %q has no entry point %q",
			KernelSource().Name, backend.Name(), EntryPoint)
	}
	s.program = program
	return s, nil
}

// Backend used by the Sorter.
func (s *Sorter) Backend() backends.Backend {
	return s.backend
}

// Baseline returns the sequential sort algorithm used by SortAndValidate.
func (s *Sorter) Baseline() oracle.Algorithm {
	return s.baseline
}

// Finalize releases the compiled program. The Sorter can't be used afterward.
func (s *Sorter) Finalize() {
	if s.finalized.Swap(true) {
		return
	}
	s.program.Finalize()
}

// Sort returns a sorted copy of data. The input is not modified.
//
// It returns an error wrapping ErrConfiguration if data is empty, or the backend error (wrapping
// backends.ErrDispatch) if any wave fails: no partial result is ever returned.
func (s *Sorter) Sort(data []int32) ([]int32, error) {
	sorted, _, err := s.sort(data)
	return sorted, err
}

// sort implements Sort, and returns also the number of waves executed.
func (s *Sorter) sort(data []int32) (sorted []int32, numWaves int, err error) {
	if s.finalized.Load() {
		return nil, 0, errors.Wrapf(ErrConfiguration, "bitonic.Sorter already finalized")
	}
	n := len(data)
	p, err := network.PaddedSize(n)
	if err != nil {
		return nil, 0, errors.Wrapf(ErrConfiguration, "%v", err)
	}
	padded, err := network.Pad(data, p)
	if err != nil {
		return nil, 0, errors.Wrapf(ErrConfiguration, "%v", err)
	}
	schedule, err := network.BuildSchedule(p)
	if err != nil {
		return nil, 0, errors.Wrapf(ErrConfiguration, "%v", err)
	}

	buffer, err := s.backend.BufferFromFlatData(padded, backends.ReadWrite)
	if err != nil {
		return nil, 0, errors.WithMessagef(err, "failed to upload %d elements to backend %q", p, s.backend.Name())
	}
	defer func() {
		if finalizeErr := s.backend.BufferFinalize(buffer); finalizeErr != nil {
			klog.Warningf("bitonic: failed to release buffer: %+v", finalizeErr)
		}
	}()

	for stepIdx, step := range schedule {
		wait, err := s.backend.Dispatch(s.program, EntryPoint, []any{buffer, step.Distance, step.Stage}, p)
		if err == nil {
			err = wait.Wait()
		}
		if err != nil {
			klog.Errorf("bitonic: sort of %d elements aborted at wave %d/%d %s: %v", n, stepIdx+1, len(schedule), step, err)
			return nil, stepIdx, errors.WithMessagef(err, "wave %d of %d %s", stepIdx+1, len(schedule), step)
		}
	}

	if err = s.backend.BufferToFlatData(buffer, padded); err != nil {
		return nil, len(schedule), errors.WithMessagef(err, "failed to read back %d elements from backend %q", p, s.backend.Name())
	}
	sorted, err = network.Unpad(padded, n)
	if err != nil {
		return nil, len(schedule), err
	}
	return sorted, len(schedule), nil
}
