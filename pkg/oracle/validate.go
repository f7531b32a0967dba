// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package oracle

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrValidationMismatch is wrapped by Mismatch when used as an error.
var ErrValidationMismatch = errors.New("parallel and sequential results differ")

// Mismatch describes the first index where the parallel and sequential results disagree.
//
// Parallel or Sequential are -1 (and the corresponding Has* field false) if the respective result is too short.
type Mismatch struct {
	Index                      int
	Parallel, Sequential       int32
	HasParallel, HasSequential bool
}

// Error implements error.
func (m *Mismatch) Error() string {
	return fmt.Sprintf("%s: first mismatch at index %d: parallel=%s, sequential=%s",
		ErrValidationMismatch, m.Index, valueString(m.Parallel, m.HasParallel), valueString(m.Sequential, m.HasSequential))
}

// Unwrap returns ErrValidationMismatch, so errors.Is works on a Mismatch.
func (m *Mismatch) Unwrap() error {
	return ErrValidationMismatch
}

func valueString(v int32, ok bool) string {
	if !ok {
		return "<missing>"
	}
	return fmt.Sprintf("%d", v)
}

// Result of Validate.
type Result struct {
	Valid bool

	// Mismatch is nil if Valid.
	Mismatch *Mismatch
}

// Validate compares parallel and sequential element-wise, exactly, over [0, n).
//
// A mismatch is reported in the Result, it is not an error.
func Validate(parallel, sequential []int32, n int) Result {
	for i := range n {
		pOk, sOk := i < len(parallel), i < len(sequential)
		if pOk && sOk && parallel[i] == sequential[i] {
			continue
		}
		m := &Mismatch{Index: i, Parallel: -1, Sequential: -1, HasParallel: pOk, HasSequential: sOk}
		if pOk {
			m.Parallel = parallel[i]
		}
		if sOk {
			m.Sequential = sequential[i]
		}
		return Result{Mismatch: m}
	}
	return Result{Valid: true}
}

// IsSorted returns whether data is in non-decreasing order.
func IsSorted(data []int32) bool {
	for i := 1; i < len(data); i++ {
		if data[i-1] > data[i] {
			return false
		}
	}
	return true
}

// SameMultiset returns whether a and b hold the same values with the same multiplicities.
func SameMultiset(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[int32]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		counts[v]--
		if counts[v] < 0 {
			return false
		}
	}
	return true
}
