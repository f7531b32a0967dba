// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package inputs generates deterministic integer arrays used to exercise and benchmark the sorter.
package inputs

import (
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// DefaultMaxValue is the default upper bound of generated values: they are drawn from [1, DefaultMaxValue].
const DefaultMaxValue = 100

// Pattern of the generated values.
type Pattern int

const (
	// Random values, uniform in [1, maxValue].
	Random Pattern = iota

	// Sorted is Random in non-decreasing order.
	Sorted

	// Reversed is Random in non-increasing order.
	Reversed

	// Equal values: all elements are the same.
	Equal

	// Organ pipe: non-decreasing first half followed by a non-increasing second half.
	Organ
)

var patternNames = []string{"random", "sorted", "reversed", "equal", "organ"}

// Patterns returns all the patterns.
func Patterns() []Pattern {
	return []Pattern{Random, Sorted, Reversed, Equal, Organ}
}

// String implements fmt.Stringer.
func (p Pattern) String() string {
	if p < 0 || int(p) >= len(patternNames) {
		return "unknown"
	}
	return patternNames[p]
}

// ParsePattern converts the pattern name (case-insensitive) to a Pattern.
func ParsePattern(name string) (Pattern, error) {
	idx := slices.Index(patternNames, strings.ToLower(strings.TrimSpace(name)))
	if idx < 0 {
		return Random, errors.Errorf("unknown input pattern %q, valid values are %q", name, patternNames)
	}
	return Pattern(idx), nil
}

// Generate returns n values of the given pattern in [1, maxValue]. The same seed always yields the same values.
//
// A maxValue <= 0 uses DefaultMaxValue.
func Generate(pattern Pattern, n int, seed uint64, maxValue int32) []int32 {
	if n <= 0 {
		return []int32{}
	}
	if maxValue <= 0 {
		maxValue = DefaultMaxValue
	}
	rng := rand.New(rand.NewPCG(seed, uint64(pattern)))
	data := make([]int32, n)
	if pattern == Equal {
		value := 1 + rng.Int32N(maxValue)
		for i := range data {
			data[i] = value
		}
		return data
	}
	for i := range data {
		data[i] = 1 + rng.Int32N(maxValue)
	}
	switch pattern {
	case Sorted:
		slices.Sort(data)
	case Reversed:
		slices.Sort(data)
		slices.Reverse(data)
	case Organ:
		half := n / 2
		slices.Sort(data[:half])
		slices.Sort(data[half:])
		slices.Reverse(data[half:])
	}
	return data
}
