// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package network

import (
	"math"
	"math/bits"

	"github.com/pkg/errors"
)

// ErrInvalidLength is returned when a length that must be positive isn't.
var ErrInvalidLength = errors.New("network: length must be positive")

// PadValue fills the padding region. It is the minimum int32, so after an ascending sort all padding
// elements end up in the head of the array, which is the part Unpad drops.
const PadValue = int32(math.MinInt32)

// MaxLength is the largest input length supported: its padded size must still fit the int32 indices
// used by kernels.
const MaxLength = 1 << 30

// PaddedSize returns the smallest power of two >= n.
func PaddedSize(n int) (int, error) {
	if n <= 0 {
		return 0, errors.Wrapf(ErrInvalidLength, "cannot pad length %d", n)
	}
	if n > MaxLength {
		return 0, errors.Errorf("network: length %d is larger than the maximum supported %d", n, MaxLength)
	}
	if IsPowerOfTwo(n) {
		return n, nil
	}
	return 1 << bits.Len(uint(n)), nil
}

// IsPowerOfTwo returns whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Pad returns a new slice of length p holding a copy of data followed by p-len(data) copies of PadValue.
//
// The returned slice never aliases data.
func Pad(data []int32, p int) ([]int32, error) {
	if len(data) == 0 {
		return nil, errors.Wrapf(ErrInvalidLength, "cannot pad empty data")
	}
	if p < len(data) {
		return nil, errors.Errorf("network: padded size %d is smaller than the data length %d", p, len(data))
	}
	padded := make([]int32, p)
	copy(padded, data)
	for i := len(data); i < p; i++ {
		padded[i] = PadValue
	}
	return padded, nil
}

// Unpad reverses Pad on a sorted array: it drops the first len(padded)-n elements -- the head, not the
// tail -- and returns a copy of the remaining n.
//
// The padding values sort to the head because PadValue is the smallest int32. If the original data
// also holds PadValue the dropped values are still all equal to PadValue, so the multiset of the
// result is exactly the multiset of the original data.
func Unpad(padded []int32, n int) ([]int32, error) {
	if n <= 0 {
		return nil, errors.Wrapf(ErrInvalidLength, "cannot unpad to length %d", n)
	}
	if n > len(padded) {
		return nil, errors.Errorf("network: cannot unpad %d elements to length %d", len(padded), n)
	}
	result := make([]int32, n)
	copy(result, padded[len(padded)-n:])
	return result, nil
}
