// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package oracle implements the sequential ground truth the parallel sorter is checked against:
// plain single goroutine sorts, and the element-wise validation of results.
package oracle

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Algorithm selects the sequential sort used as ground truth.
type Algorithm int

const (
	// AlgorithmStandard uses the standard library sort (pattern-defeating quicksort).
	AlgorithmStandard Algorithm = iota

	// AlgorithmBubble uses a bubble sort with early exit. It is O(n^2): only practical for small inputs.
	AlgorithmBubble
)

var algorithmNames = map[Algorithm]string{
	AlgorithmStandard: "standard",
	AlgorithmBubble:   "bubble",
}

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	if name, found := algorithmNames[a]; found {
		return name
	}
	return "unknown"
}

// ParseAlgorithm converts a name ("standard" or "bubble", case-insensitive) to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for algo, algoName := range algorithmNames {
		if algoName == name {
			return algo, nil
		}
	}
	return AlgorithmStandard, errors.Errorf("unknown sequential sort algorithm %q, valid values are \"standard\" or \"bubble\"", name)
}

// Sort data in place, in non-decreasing order, with the selected algorithm.
func (a Algorithm) Sort(data []int32) {
	switch a {
	case AlgorithmBubble:
		Bubble(data)
	default:
		Standard(data)
	}
}

// Standard sorts data in place using slices.Sort.
func Standard(data []int32) {
	slices.Sort(data)
}

// Bubble sorts data in place with a bubble sort, stopping as soon as a pass does no swaps.
func Bubble(data []int32) {
	for pass := range len(data) {
		swapped := false
		for i := 0; i < len(data)-1-pass; i++ {
			if data[i] > data[i+1] {
				data[i], data[i+1] = data[i+1], data[i]
				swapped = true
			}
		}
		if !swapped {
			return
		}
	}
}
