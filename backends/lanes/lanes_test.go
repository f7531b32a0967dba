// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lanes

import (
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"testing"

	"github.com/gomlx/bitonic/backends"
	"github.com/gomlx/bitonic/pkg/network"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

var backend backends.Backend

func init() {
	klog.InitFlags(nil)

	// Test kernels.
	RegisterKernel("test_panic", []ParamKind{ParamBuffer, ParamScalar}, func(args []any, start, end int) {
		data, at := args[0].([]int32), args[1].(int)
		for i := start; i < end; i++ {
			if i == at {
				panic(fmt.Sprintf("index %d is cursed", i))
			}
			data[i]++
		}
	})
	RegisterKernel("test_shift_in", []ParamKind{ParamBuffer, ParamScalar}, func(args []any, start, end int) {
		data, bit := args[0].([]int32), int32(args[1].(int))
		for i := start; i < end; i++ {
			data[i] = data[i]*2 + bit
		}
	})
	RegisterKernel("test_copy", []ParamKind{ParamReadOnlyBuffer, ParamBuffer}, func(args []any, start, end int) {
		src, dst := args[0].([]int32), args[1].([]int32)
		copy(dst[start:end], src[start:end])
	})
}

const bitonicSource = `
// Compare-exchange of one bitonic network step.
__kernel void bitonic_exchange(__global int* data, const int j, const int k) {
    unsigned int i = get_global_id(0);
    unsigned int ixj = i ^ j;
    /* Only the lower index of the pair works. */
    if (ixj > i) {
        int a = data[i], b = data[ixj];
        if (((i & k) == 0 && a > b) || ((i & k) != 0 && a < b)) {
            data[i] = b;
            data[ixj] = a;
        }
    }
}
`

const testSource = `
__kernel void test_panic(__global int *data, int at) { data[get_global_id(0)] += 1; }
__kernel void test_shift_in(__global int *data, int bit) { }
__kernel void test_copy(const __global int *src, __global int *dst) { }
`

func setup() {
	fmt.Printf("Available backends: %q\n", backends.List())
	if os.Getenv(backends.ConfigEnvVar) == "" {
		must.M(os.Setenv(backends.ConfigEnvVar, BackendName+":grain=16"))
	} else {
		fmt.Printf("\t$%s=%q\n", backends.ConfigEnvVar, os.Getenv(backends.ConfigEnvVar))
	}
	backend = backends.MustNew()
	fmt.Printf("Backend: %s, %s\n", backend.Name(), backend.Description())
}

func teardown() {
	backend.Finalize()
}

func TestMain(m *testing.M) {
	setup()
	code := m.Run() // Run all tests in the file
	teardown()
	os.Exit(code)
}

func TestNew(t *testing.T) {
	b, err := New("workers=3, grain=128")
	require.NoError(t, err)
	require.Equal(t, BackendName, b.Name())
	assert.Equal(t, "Go goroutine lanes (workers=3, grain=128)", b.Description())
	b.Finalize()

	b, err = New("workers=0")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Go goroutine lanes (workers=inline, grain=%d)", DefaultGrain), b.Description())
	b.Finalize()

	b, err = New("workers=-1")
	require.NoError(t, err)
	assert.Equal(t, -1, b.(*Backend).MaxParallelism())
	b.Finalize()

	for _, config := range []string{"workers=-2", "grain=0", "grain=x", "threads=2", "workers"} {
		_, err := New(config)
		require.Errorf(t, err, "configuration %q should have failed", config)
	}

	// Through the registry.
	b, err = backends.NewWithConfig("lanes:workers=2")
	require.NoError(t, err)
	assert.Equal(t, 2, b.(*Backend).MaxParallelism())
	b.Finalize()
}

func TestCompile(t *testing.T) {
	program, err := backend.Compile(backends.KernelSource{Name: "bitonic.cl", Text: bitonicSource})
	require.NoError(t, err)
	require.Equal(t, []string{BitonicExchangeKernel}, program.EntryPoints())
	program.Finalize()

	program, err = backend.Compile(backends.KernelSource{Name: "test.cl", Text: testSource})
	require.NoError(t, err)
	require.Equal(t, []string{"test_panic", "test_shift_in", "test_copy"}, program.EntryPoints())
	program.Finalize()

	for name, text := range map[string]string{
		"empty":      "",
		"no kernels": "int add(int a, int b) { return a + b; }",
		"commented":  "// __kernel void bitonic_exchange(__global int* data, const int j, const int k) {}",
		"unknown":    "__kernel void bitonic_merge(__global int* data, const int j) {}",
		"params":     "__kernel void bitonic_exchange(__global int* data, const int j) {}",
		"kinds":      "__kernel void bitonic_exchange(const __global int* data, const int j, const int k) {}",
		"braces":     "__kernel void bitonic_exchange(__global int* data, const int j, const int k) {",
		"repeated": "__kernel void bitonic_exchange(__global int* data, int j, int k) {}\n" +
			"__kernel void bitonic_exchange(__global int* data, int j, int k) {}",
	} {
		_, err := backend.Compile(backends.KernelSource{Name: name, Text: text})
		require.Errorf(t, err, "compiling %q should have failed", name)
		require.ErrorIsf(t, err, backends.ErrCompile, "compiling %q", name)
	}
}

func TestParamKind(t *testing.T) {
	assert.Equal(t, ParamBuffer, paramKind("__global int* data"))
	assert.Equal(t, ParamBuffer, paramKind("global int *data"))
	assert.Equal(t, ParamReadOnlyBuffer, paramKind("const __global int* data"))
	assert.Equal(t, ParamReadOnlyBuffer, paramKind("__global const int * data"))
	assert.Equal(t, ParamScalar, paramKind("const int j"))
	assert.Equal(t, ParamScalar, paramKind("unsigned int k"))
	assert.Nil(t, parseParams(" void "))
	assert.Equal(t, "read-only buffer", ParamReadOnlyBuffer.String())
}

func TestBuffers(t *testing.T) {
	buf, err := backend.BufferFromFlatData([]int32{3, 1, 2}, backends.ReadWrite)
	require.NoError(t, err)
	length, err := backend.BufferLength(buf)
	require.NoError(t, err)
	require.Equal(t, 3, length)
	got := make([]int32, 3)
	require.NoError(t, backend.BufferToFlatData(buf, got))
	require.Equal(t, []int32{3, 1, 2}, got)

	// Wrong host types and lengths.
	require.Error(t, backend.BufferToFlatData(buf, make([]int32, 4)))
	require.Error(t, backend.BufferToFlatData(buf, make([]float32, 3)))
	require.Error(t, backend.BufferToFlatData(buf, 7))
	_, err = backend.BufferFromFlatData([]int64{1, 2}, backends.ReadWrite)
	require.Error(t, err)
	_, err = backend.BufferFromFlatData([]int32{}, backends.ReadWrite)
	require.Error(t, err)
	_, err = backend.BufferAllocate(0, backends.ReadWrite)
	require.Error(t, err)
	_, err = backend.BufferLength("not a buffer")
	require.Error(t, err)

	require.NoError(t, backend.BufferFinalize(buf))
	require.Error(t, backend.BufferFinalize(buf), "double finalize should fail")
	_, err = backend.BufferLength(buf)
	require.Error(t, err)

	// Slices of named int32 types have the same dtype, but they are not []int32.
	type myInt32 int32
	_, err = backend.BufferFromFlatData([]myInt32{3, 1, 2}, backends.ReadWrite)
	require.Error(t, err)
	live := must.M1(backend.BufferFromFlatData([]int32{3, 1, 2}, backends.ReadWrite))
	require.Error(t, backend.BufferToFlatData(live, make([]myInt32, 3)))
	require.NoError(t, backend.BufferFinalize(live))
}

func TestBuffersReuse(t *testing.T) {
	// A finalized handle must not alias a new buffer reusing its storage.
	for range 10 {
		old := must.M1(backend.BufferAllocate(17, backends.ReadWrite))
		require.NoError(t, backend.BufferFinalize(old))
		live := must.M1(backend.BufferFromFlatData(make([]int32, 17), backends.ReadWrite))
		require.NotSame(t, old.(*Buffer), live.(*Buffer))
		require.Error(t, backend.BufferFinalize(old), "finalizing a stale handle should fail")
		length, err := backend.BufferLength(live)
		require.NoError(t, err, "the live buffer must survive the stale finalize")
		require.Equal(t, 17, length)
		require.NoError(t, backend.BufferFinalize(live))
	}
}

func TestDispatchErrors(t *testing.T) {
	program := must.M1(backend.Compile(backends.KernelSource{Name: "bitonic.cl", Text: bitonicSource}))
	defer program.Finalize()
	buf := must.M1(backend.BufferFromFlatData([]int32{4, 3, 2, 1}, backends.ReadWrite))
	defer func() { require.NoError(t, backend.BufferFinalize(buf)) }()
	readOnly := must.M1(backend.BufferFromFlatData([]int32{4, 3, 2, 1}, backends.ReadOnly))
	defer func() { require.NoError(t, backend.BufferFinalize(readOnly)) }()

	other := must.M1(New(""))
	defer other.Finalize()
	otherProgram := must.M1(other.Compile(backends.KernelSource{Name: "bitonic.cl", Text: bitonicSource}))
	finalizedProgram := must.M1(backend.Compile(backends.KernelSource{Name: "bitonic.cl", Text: bitonicSource}))
	finalizedProgram.Finalize()

	testCases := []struct {
		name       string
		program    backends.Program
		entryPoint string
		args       []any
		extent     int
	}{
		{"foreign program", otherProgram, BitonicExchangeKernel, []any{buf, 1, 2}, 4},
		{"finalized program", finalizedProgram, BitonicExchangeKernel, []any{buf, 1, 2}, 4},
		{"nil program", nil, BitonicExchangeKernel, []any{buf, 1, 2}, 4},
		{"entry point", program, "bitonic_merge", []any{buf, 1, 2}, 4},
		{"too few args", program, BitonicExchangeKernel, []any{buf, 1}, 4},
		{"scalar type", program, BitonicExchangeKernel, []any{buf, 1.0, 2}, 4},
		{"buffer type", program, BitonicExchangeKernel, []any{[]int32{1, 2}, 1, 2}, 4},
		{"read-only buffer", program, BitonicExchangeKernel, []any{readOnly, 1, 2}, 4},
		{"zero extent", program, BitonicExchangeKernel, []any{buf, 1, 2}, 0},
		{"extent too large", program, BitonicExchangeKernel, []any{buf, 1, 2}, 5},
	}
	for _, tc := range testCases {
		_, err := backend.Dispatch(tc.program, tc.entryPoint, tc.args, tc.extent)
		require.Errorf(t, err, "dispatch %q should have failed", tc.name)
		require.ErrorIsf(t, err, backends.ErrDispatch, "dispatch %q", tc.name)
	}

	// Scalars of any integer type are accepted.
	wait, err := backend.Dispatch(program, BitonicExchangeKernel, []any{buf, int64(1), int32(2)}, 4)
	require.NoError(t, err)
	require.NoError(t, wait.Wait())
	<-wait.Done()
}

// sortWithDispatches runs the whole bitonic network over data on the backend.
func sortWithDispatches(t *testing.T, b backends.Backend, data []int32) []int32 {
	program := must.M1(b.Compile(backends.KernelSource{Name: "bitonic.cl", Text: bitonicSource}))
	defer program.Finalize()
	padded := must.M1(network.Pad(data, must.M1(network.PaddedSize(len(data)))))
	buf := must.M1(b.BufferFromFlatData(padded, backends.ReadWrite))
	for _, step := range must.M1(network.BuildSchedule(len(padded))) {
		wait, err := b.Dispatch(program, BitonicExchangeKernel, []any{buf, step.Distance, step.Stage}, len(padded))
		require.NoError(t, err)
		require.NoError(t, wait.Wait())
	}
	require.NoError(t, b.BufferToFlatData(buf, padded))
	require.NoError(t, b.BufferFinalize(buf))
	return must.M1(network.Unpad(padded, len(data)))
}

func TestDispatchBitonic(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for _, config := range []string{"workers=4,grain=8", "workers=0", "workers=-1,grain=64"} {
		b := must.M1(New(config))
		for _, n := range []int{1, 2, 5, 100, 1000, 4099} {
			data := make([]int32, n)
			for i := range data {
				data[i] = int32(rng.IntN(100)) + 1
			}
			want := slices.Clone(data)
			slices.Sort(want)
			require.Equalf(t, want, sortWithDispatches(t, b, data), "config=%q, n=%d", config, n)
		}
		stats := b.(*Backend).Stats()
		assert.Greater(t, stats.Waves, int64(0))
		assert.Equal(t, stats.BytesUploaded, stats.BytesDownloaded)
		require.NoError(t, b.Finish())
		b.Finalize()
	}
}

func TestDispatchPanic(t *testing.T) {
	program := must.M1(backend.Compile(backends.KernelSource{Name: "test.cl", Text: testSource}))
	defer program.Finalize()
	buf := must.M1(backend.BufferAllocate(100, backends.ReadWrite))
	defer func() { require.NoError(t, backend.BufferFinalize(buf)) }()

	wait, err := backend.Dispatch(program, "test_panic", []any{buf, 37}, 100)
	require.NoError(t, err, "the panic happens on execution, not on dispatch")
	err = wait.Wait()
	require.Error(t, err)
	require.ErrorIs(t, err, backends.ErrDispatch)
	require.Contains(t, err.Error(), "cursed")

	// Finish reports the error once.
	err = backend.Finish()
	require.ErrorIs(t, err, backends.ErrDispatch)
	require.NoError(t, backend.Finish())

	// The backend is still usable.
	wait, err = backend.Dispatch(program, "test_panic", []any{buf, -1}, 100)
	require.NoError(t, err)
	require.NoError(t, wait.Wait())
}

func TestDispatchInOrder(t *testing.T) {
	program := must.M1(backend.Compile(backends.KernelSource{Name: "test.cl", Text: testSource}))
	defer program.Finalize()
	const n = 1000
	buf := must.M1(backend.BufferFromFlatData(make([]int32, n), backends.ReadWrite))
	defer func() { require.NoError(t, backend.BufferFinalize(buf)) }()

	// Shift in the bits of want, most significant first, without waiting between dispatches:
	// the result is only correct if the waves execute in submission order.
	const want = int32(0b1011001110001011)
	var handles []backends.WaitHandle
	for bit := 15; bit >= 0; bit-- {
		handle, err := backend.Dispatch(program, "test_shift_in", []any{buf, int((want >> bit) & 1)}, n)
		require.NoError(t, err)
		handles = append(handles, handle)
	}
	require.NoError(t, backend.Finish())
	for _, handle := range handles {
		select {
		case <-handle.Done():
		default:
			t.Fatal("Finish returned with waves still in flight")
		}
	}
	got := make([]int32, n)
	require.NoError(t, backend.BufferToFlatData(buf, got))
	for i, v := range got {
		require.Equalf(t, want, v, "index %d", i)
	}

	// Read-only source buffer.
	src := must.M1(backend.BufferFromFlatData(got, backends.ReadOnly))
	dst := must.M1(backend.BufferAllocate(n, backends.WriteOnly))
	wait := must.M1(backend.Dispatch(program, "test_copy", []any{src, dst}, n))
	require.NoError(t, wait.Wait())
	copied := make([]int32, n)
	require.NoError(t, backend.BufferToFlatData(dst, copied))
	require.Equal(t, got, copied)
	require.NoError(t, backend.BufferFinalize(src))
	require.NoError(t, backend.BufferFinalize(dst))
}

func TestFinalized(t *testing.T) {
	b := must.M1(New(""))
	program := must.M1(b.Compile(backends.KernelSource{Name: "bitonic.cl", Text: bitonicSource}))
	buf := must.M1(b.BufferFromFlatData([]int32{2, 1}, backends.ReadWrite))
	b.Finalize()
	b.Finalize() // Idempotent.

	_, err := b.Dispatch(program, BitonicExchangeKernel, []any{buf, 1, 2}, 2)
	require.ErrorIs(t, err, backends.ErrDispatch)
	_, err = b.Compile(backends.KernelSource{Name: "bitonic.cl", Text: bitonicSource})
	require.ErrorIs(t, err, backends.ErrCompile)
	_, err = b.BufferAllocate(2, backends.ReadWrite)
	require.Error(t, err)
}

func TestFinalizeWaitsInflight(t *testing.T) {
	b := must.M1(New("workers=2,grain=8"))
	program := must.M1(b.Compile(backends.KernelSource{Name: "test.cl", Text: testSource}))
	buf := must.M1(b.BufferAllocate(1000, backends.ReadWrite))
	var handles []backends.WaitHandle
	for range 20 {
		handles = append(handles, must.M1(b.Dispatch(program, "test_shift_in", []any{buf, 1}, 1000)))
	}
	b.Finalize()
	require.Zero(t, b.(*Backend).inflight.Count())
	for _, handle := range handles {
		select {
		case <-handle.Done():
		default:
			t.Fatal("Finalize returned with waves still in flight")
		}
	}
}
