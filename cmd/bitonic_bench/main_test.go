package main

import (
	"math"
	"testing"
	"time"

	"github.com/gomlx/bitonic/pkg/bitonic"
	"github.com/gomlx/bitonic/pkg/oracle"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSizes(t *testing.T) {
	sizes, err := parseSizes("", 10000)
	require.NoError(t, err)
	require.Equal(t, []int{10000}, sizes)

	sizes, err = parseSizes("1, 65573,64k,1M", 0)
	require.NoError(t, err)
	require.Equal(t, []int{1, 65573, 64000, 1000000}, sizes)

	_, err = parseSizes("12,abc", 0)
	require.Error(t, err)
	_, err = parseSizes(" , ", 0)
	require.Error(t, err)
}

func TestCheckLimits(t *testing.T) {
	maxValue, err := checkLimits(1, 100)
	require.NoError(t, err)
	require.Equal(t, int32(100), maxValue)
	maxValue, err = checkLimits(3, math.MaxInt32)
	require.NoError(t, err)
	require.Equal(t, int32(math.MaxInt32), maxValue)

	for _, tc := range []struct{ runs, maxValue int }{
		{0, 100}, {1, 0}, {1, -5}, {1, math.MaxInt32 + 1},
	} {
		_, err := checkLimits(tc.runs, tc.maxValue)
		require.Errorf(t, err, "runs=%d, max=%d should be rejected", tc.runs, tc.maxValue)
	}
}

func TestRunRows(t *testing.T) {
	table := newRunsTable()
	valid := runResult{size: 65573, run: 0, report: &bitonic.Report{
		PaddedSize: 131072, Waves: 153, Valid: true,
		ParallelDuration: time.Millisecond, SequentialDuration: 3 * time.Millisecond,
	}}
	invalid := runResult{size: 5, run: 1, report: &bitonic.Report{
		PaddedSize: 8, Waves: 6,
		Mismatch: &oracle.Mismatch{Index: 2, Parallel: 7, Sequential: 4, HasParallel: true, HasSequential: true},
	}}
	failed := runResult{size: 1000, run: 2, err: errors.New("wave 3 of 55 failed")}

	cells, ok := runCells(valid)
	require.True(t, ok)
	require.Len(t, cells, len(runColumns))
	assert.Equal(t, []string{"65,573", "#0", "131,072", "153", "1ms", "3ms", "3.00x", "valid"}, cells)

	cells, ok = runCells(invalid)
	require.False(t, ok)
	assert.Contains(t, cells[len(cells)-1], "Wrong result!")
	assert.Contains(t, cells[len(cells)-1], "index 2")

	cells, ok = runCells(failed)
	require.False(t, ok)
	require.Len(t, cells, len(runColumns))
	assert.Equal(t, "failed: wave 3 of 55 failed", cells[len(cells)-1])

	require.True(t, table.RunRow(valid))
	require.False(t, table.RunRow(invalid))
	require.False(t, table.RunRow(failed))
	assert.Equal(t, map[int]bool{1: true, 2: true}, table.Reds)
	assert.Equal(t, 3, table.Count)
}
