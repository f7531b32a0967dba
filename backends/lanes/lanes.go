// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package lanes implements a portable many-lane compute backend on the CPU: each dispatch is a wave
// over an index space, split in chunks executed by a pool of goroutines.
//
// Kernel source is "compiled" by matching each declared kernel against a native Go translation
// registered with RegisterKernel. The bitonic exchange kernel is registered by this package.
//
// Configuration (the part after "lanes:" in the backend configuration string) is a comma-separated
// list of options:
//
//   - workers=N: maximum number of parallel lanes; 0 runs every wave inline, -1 is unlimited.
//     Defaults to runtime.NumCPU().
//   - grain=N: minimum number of indices per chunk. Defaults to DefaultGrain.
package lanes

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gomlx/bitonic/backends"
	"github.com/gomlx/bitonic/internal/workerspool"
	"github.com/gomlx/bitonic/pkg/support/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName to be used in BITONIC_BACKEND to specify this backend.
const BackendName = "lanes"

// DefaultGrain is the default minimum number of indices processed by one lane in a wave.
const DefaultGrain = 4096

// Registers New() as the constructor for the "lanes" backend.
func init() {
	backends.Register(BackendName, New)
}

// New constructs a new lanes Backend, see package documentation for the configuration format.
func New(config string) (backends.Backend, error) {
	b := newBackend()
	if err := b.parseConfig(config); err != nil {
		return nil, err
	}
	return b, nil
}

func newBackend() *Backend {
	return &Backend{
		workers:  workerspool.New(),
		grain:    DefaultGrain,
		inflight: xsync.NewDynamicWaitGroup(),
	}
}

// Backend implements the backends.Backend interface.
type Backend struct {
	workers *workerspool.Pool
	grain   int

	// bufferPools are a map to pools of buffers that can be reused.
	// The underlying type is map[int]*sync.Pool, keyed by length.
	bufferPools sync.Map

	// inflight counts dispatched waves not yet completed.
	inflight *xsync.DynamicWaitGroup

	mu        sync.Mutex
	lastWave  *wave // Tail of the in-order queue.
	firstErr  error // First execution error since the last Finish.
	finalized bool

	stats stats
}

// Compile-time check that lanes.Backend implements backends.Backend.
var _ backends.Backend = &Backend{}

type stats struct {
	waves, items, bytesUploaded, bytesDownloaded atomic.Int64
}

// Stats of the backend usage.
type Stats struct {
	Waves           int64
	Items           int64
	BytesUploaded   int64
	BytesDownloaded int64
}

// Stats returns a snapshot of the backend usage statistics.
func (b *Backend) Stats() Stats {
	return Stats{
		Waves:           b.stats.waves.Load(),
		Items:           b.stats.items.Load(),
		BytesUploaded:   b.stats.bytesUploaded.Load(),
		BytesDownloaded: b.stats.bytesDownloaded.Load(),
	}
}

func (b *Backend) parseConfig(config string) error {
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return errors.Errorf("backend %q: invalid option %q in configuration %q, expected key=value", BackendName, part, config)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return errors.Wrapf(err, "backend %q: option %q must be an integer", BackendName, key)
		}
		switch strings.TrimSpace(key) {
		case "workers":
			if n < -1 {
				return errors.Errorf("backend %q: workers=%d, it must be >= -1", BackendName, n)
			}
			b.workers.SetMaxParallelism(n)
		case "grain":
			if n < 1 {
				return errors.Errorf("backend %q: grain=%d, it must be >= 1", BackendName, n)
			}
			b.grain = n
		default:
			return errors.Errorf("backend %q: unknown option %q in configuration %q", BackendName, key, config)
		}
	}
	return nil
}

// Name returns the short name of the backend.
func (b *Backend) Name() string {
	return BackendName
}

// String implements fmt.Stringer.
func (b *Backend) String() string { return BackendName }

// Description is a longer description of the Backend that can be used to pretty-print.
func (b *Backend) Description() string {
	var workers string
	switch {
	case b.workers.IsUnlimited():
		workers = "unlimited"
	case !b.workers.IsEnabled():
		workers = "inline"
	default:
		workers = strconv.Itoa(b.workers.MaxParallelism())
	}
	return fmt.Sprintf("Go goroutine lanes (workers=%s, grain=%d)", workers, b.grain)
}

// MaxParallelism returns the configured maximum number of lanes: 0 means waves run inline, -1 unlimited.
func (b *Backend) MaxParallelism() int {
	return b.workers.MaxParallelism()
}

// Finish blocks until every dispatch issued so far completed, and returns the first execution error since the
// last call to Finish.
func (b *Backend) Finish() error {
	b.inflight.Wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.firstErr
	b.firstErr = nil
	return err
}

// Finalize waits for in-flight dispatches and releases all the associated resources immediately, and makes the backend invalid.
func (b *Backend) Finalize() {
	b.mu.Lock()
	if b.finalized {
		b.mu.Unlock()
		return
	}
	b.finalized = true
	b.mu.Unlock()
	if pending := b.inflight.Count(); pending > 0 {
		klog.V(1).Infof("backend %s: finalize waiting for %d in-flight waves", BackendName, pending)
	}
	b.inflight.Wait()
	b.bufferPools.Range(func(key, _ any) bool {
		b.bufferPools.Delete(key)
		return true
	})
	klog.V(1).Infof("backend %s finalized: %+v", BackendName, b.Stats())
}

func (b *Backend) isFinalized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finalized
}
