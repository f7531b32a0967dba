// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package network holds the pure, backend independent pieces of the bitonic sorting network:
//
//   - Padding of arbitrary length inputs to the power-of-two length the network requires (PaddedSize, Pad, Unpad).
//   - The schedule of (stage, step) pairs, one per wave of compare-exchanges (BuildSchedule).
//   - The compare-exchange kernel body itself (Exchange), written so that disjoint ranges of the index
//     space can be executed concurrently, without any coordination within a wave.
//
// Backends translate the kernel into their own dispatch form; the reference translation is Exchange.
//
// Example, sorting a small array on the calling goroutine:
//
//	p, _ := network.PaddedSize(len(data))
//	padded, _ := network.Pad(data, p)
//	schedule, _ := network.BuildSchedule(p)
//	for _, step := range schedule {
//		network.ExchangeAll(padded, step.Stage, step.Distance)
//	}
//	sorted, _ := network.Unpad(padded, len(data))
package network
