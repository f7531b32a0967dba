// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package network

// Partner returns the index compared with i at distance j.
func Partner(i, j int) int {
	return i ^ j
}

// IsActive returns whether index i owns the compare-exchange with its partner at distance j.
//
// Of the two indices of a pair exactly one is active, the lower one. That makes the write sets of all
// active indices of a wave disjoint.
func IsActive(i, j int) bool {
	return Partner(i, j) > i
}

// Ascending returns whether the pair owned by index i is ordered ascending in stage k.
func Ascending(i, k int) bool {
	return i&k == 0
}

// Exchange runs the compare-exchange kernel of stage k and distance j for the indices in [start, end).
//
// Only pairs owned by an index in the range are touched, so any partition of [0, len(data)) into ranges
// can be executed concurrently. The partner of an index may fall outside the range.
func Exchange(data []int32, k, j, start, end int) {
	for i := start; i < end; i++ {
		partner := i ^ j
		if partner <= i {
			continue
		}
		if i&k == 0 {
			if data[i] > data[partner] {
				data[i], data[partner] = data[partner], data[i]
			}
		} else {
			if data[i] < data[partner] {
				data[i], data[partner] = data[partner], data[i]
			}
		}
	}
}

// ExchangeAll runs a whole wave of the kernel on the calling goroutine.
func ExchangeAll(data []int32, k, j int) {
	Exchange(data, k, j, 0, len(data))
}
