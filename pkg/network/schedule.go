// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package network

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/pkg/errors"
)

// Step is one wave of the bitonic network.
type Step struct {
	// Stage is the merge size k: a power of two from 2 up to the padded size.
	Stage int

	// Distance is the compare distance j within the stage: a power of two from Stage/2 down to 1.
	Distance int
}

// String implements fmt.Stringer.
func (s Step) String() string {
	return fmt.Sprintf("(k=%d,j=%d)", s.Stage, s.Distance)
}

// Schedule is the ordered list of waves that sorts an array of a given padded size.
//
// The order is part of the correctness of the network: every step of stage k must be fully applied,
// in order, before the first step of stage 2k.
type Schedule []Step

// String implements fmt.Stringer.
func (s Schedule) String() string {
	parts := make([]string, len(s))
	for ii, step := range s {
		parts[ii] = step.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// NumSteps returns the number of waves needed for padded size p = 2^m, that is m*(m+1)/2.
// It returns 0 if p is not a power of two.
func NumSteps(p int) int {
	if !IsPowerOfTwo(p) {
		return 0
	}
	m := bits.Len(uint(p)) - 1
	return m * (m + 1) / 2
}

// BuildSchedule returns the network schedule for the padded size p, which must be a power of two.
//
// For p == 1 the schedule is empty: a single element is already sorted.
func BuildSchedule(p int) (Schedule, error) {
	if !IsPowerOfTwo(p) {
		return nil, errors.Errorf("network: padded size %d is not a positive power of two", p)
	}
	schedule := make(Schedule, 0, NumSteps(p))
	for k := 2; k <= p; k <<= 1 {
		for j := k >> 1; j > 0; j >>= 1 {
			schedule = append(schedule, Step{Stage: k, Distance: j})
		}
	}
	return schedule, nil
}
