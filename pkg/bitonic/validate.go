// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bitonic

import (
	"fmt"
	"time"

	"github.com/gomlx/bitonic/backends"
	"github.com/gomlx/bitonic/pkg/network"
	"github.com/gomlx/bitonic/pkg/oracle"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Report of one SortAndValidate run.
type Report struct {
	// ID identifies the run in the logs.
	ID uuid.UUID

	// Length of the input, and PaddedSize the power of two it was padded to.
	Length, PaddedSize int

	// Waves is the number of kernel dispatches.
	Waves int

	// Baseline is the sequential sort used as ground truth.
	Baseline oracle.Algorithm

	ParallelDuration, SequentialDuration time.Duration

	// Valid is true if the parallel and sequential results are equal.
	Valid bool

	// Mismatch is the first disagreement, nil if Valid.
	Mismatch *oracle.Mismatch

	// Sorted is the result of the parallel sort.
	Sorted []int32
}

// Speedup of the parallel path over the sequential one. It is 0 if either duration is unknown.
func (r *Report) Speedup() float64 {
	if r.ParallelDuration <= 0 || r.SequentialDuration <= 0 {
		return 0
	}
	return float64(r.SequentialDuration) / float64(r.ParallelDuration)
}

// String implements fmt.Stringer.
func (r *Report) String() string {
	valid := "valid"
	if !r.Valid {
		valid = fmt.Sprintf("INVALID (%v)", r.Mismatch)
	}
	return fmt.Sprintf("run %s: %d elements (padded to %d, %d waves): parallel %s, sequential (%s) %s: %s",
		r.ID, r.Length, r.PaddedSize, r.Waves, r.ParallelDuration, r.Baseline, r.SequentialDuration, valid)
}

// SortAndValidate sorts input with the parallel network and with the sequential baseline, and compares them.
//
// The sequential path runs first, over a padded copy of the input sorted with the baseline and unpadded from
// the head, the same way as the parallel result. The input is not modified.
//
// A disagreement is reported in Report.Valid and Report.Mismatch, it is not an error. Errors are returned for
// invalid inputs (ErrConfiguration) and backend failures (backends.ErrDispatch), in which case there is no Report.
func (s *Sorter) SortAndValidate(input []int32) (*Report, error) {
	n := len(input)
	p, err := network.PaddedSize(n)
	if err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "%v", err)
	}
	report := &Report{
		ID:         uuid.New(),
		Length:     n,
		PaddedSize: p,
		Baseline:   s.baseline,
	}

	start := time.Now()
	sequential, err := network.Pad(input, p)
	if err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "%v", err)
	}
	s.baseline.Sort(sequential)
	sequential, err = network.Unpad(sequential, n)
	if err != nil {
		return nil, err
	}
	report.SequentialDuration = time.Since(start)

	start = time.Now()
	report.Sorted, report.Waves, err = s.sort(input)
	if err != nil {
		return nil, errors.WithMessagef(err, "run %s", report.ID)
	}
	report.ParallelDuration = time.Since(start)

	result := oracle.Validate(report.Sorted, sequential, n)
	report.Valid, report.Mismatch = result.Valid, result.Mismatch
	if !report.Valid {
		klog.Errorf("bitonic: run %s on backend %q: %v", report.ID, s.backend.Name(), report.Mismatch)
	} else if klog.V(1).Enabled() {
		klog.Infof("bitonic: %s", report)
	}
	return report, nil
}

// SortAndValidate is a one-shot convenience: it creates a Sorter on backend, runs Sorter.SortAndValidate and
// releases the Sorter.
func SortAndValidate(backend backends.Backend, input []int32, options ...Option) (*Report, error) {
	sorter, err := NewSorter(backend, options...)
	if err != nil {
		return nil, err
	}
	defer sorter.Finalize()
	return sorter.SortAndValidate(input)
}
