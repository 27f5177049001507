// Package cache holds wavelet transforms for a whole group outside the Go
// heap. Each Array is backed by a memory-mapped scratch file, so peak heap use
// does not grow with the number of subjects.
package cache

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"groupcoh/domain/core"
	"groupcoh/domain/spectral"
	"groupcoh/internal"
	"groupcoh/internal/errors"
)

// backing owns the memory behind an Array.
type backing interface {
	release() error
}

// Array is a dense subjects x scales x samples complex64 array.
// Release must not be called while other goroutines still read the array.
type Array struct {
	subjects, scales, samples int

	data     []complex64
	store    backing
	released atomic.Bool
	registry *Registry
}

// Shape returns (subjects, scales, samples).
func (a *Array) Shape() (int, int, int) {
	return a.subjects, a.scales, a.samples
}

// Bytes is the size of the backing storage.
func (a *Array) Bytes() int64 {
	return int64(len(a.data)) * 8
}

// Subject returns a view of subject i's transform. The view aliases the cache
// and is only valid until Release.
func (a *Array) Subject(i int) (spectral.Transform, error) {
	if a.released.Load() {
		return spectral.Transform{}, core.ErrCacheReleased
	}
	if i < 0 || i >= a.subjects {
		return spectral.Transform{}, fmt.Errorf("subject %d out of range [0,%d)", i, a.subjects)
	}
	stride := a.scales * a.samples
	return spectral.Transform{
		Scales:  a.scales,
		Samples: a.samples,
		Data:    a.data[i*stride : (i+1)*stride : (i+1)*stride],
	}, nil
}

// Set copies t into subject i's slot. Distinct subjects may be written
// concurrently.
func (a *Array) Set(i int, t spectral.Transform) error {
	if a.released.Load() {
		return core.ErrCacheReleased
	}
	if t.Scales != a.scales || t.Samples != a.samples {
		return fmt.Errorf("%w: transform is %dx%d, cache holds %dx%d", core.ErrShapeMismatch,
			t.Scales, t.Samples, a.scales, a.samples)
	}
	dst, err := a.Subject(i)
	if err != nil {
		return err
	}
	copy(dst.Data, t.Data)
	return nil
}

// Release frees the backing storage. Calling it again is a no-op.
func (a *Array) Release() error {
	if !a.released.CompareAndSwap(false, true) {
		return nil
	}
	a.data = nil
	if a.registry != nil {
		a.registry.forget(a)
	}
	if err := a.store.release(); err != nil {
		return errors.CacheError("failed to release transform cache", err)
	}
	return nil
}

// Registry tracks the arrays created for a run so they can be released
// together, including on error paths.
type Registry struct {
	dir    string
	logger *internal.Logger

	mu     sync.Mutex
	arrays map[*Array]struct{}
}

// NewRegistry creates a registry that places scratch files in dir.
func NewRegistry(dir string, logger *internal.Logger) *Registry {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Registry{
		dir:    dir,
		logger: logger.With("cache"),
		arrays: make(map[*Array]struct{}),
	}
}

// Allocate creates a zero-filled array.
func (r *Registry) Allocate(subjects, scales, samples int) (*Array, error) {
	if subjects < 1 || scales < 1 || samples < 1 {
		return nil, fmt.Errorf("%w: cannot allocate %dx%dx%d cache", core.ErrShape, subjects, scales, samples)
	}
	n := subjects * scales * samples

	data, store, err := allocate(r.dir, n)
	if err != nil {
		return nil, errors.CacheError(fmt.Sprintf("failed to allocate %s transform cache", humanize.IBytes(uint64(n)*8)), err)
	}

	a := &Array{
		subjects: subjects,
		scales:   scales,
		samples:  samples,
		data:     data,
		store:    store,
		registry: r,
	}

	r.mu.Lock()
	r.arrays[a] = struct{}{}
	live := len(r.arrays)
	r.mu.Unlock()

	r.logger.Debug("allocated %dx%dx%d cache (%s, %d live)", subjects, scales, samples, humanize.IBytes(uint64(a.Bytes())), live)
	return a, nil
}

// Live returns the number of arrays not yet released.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.arrays)
}

// Cleanup releases every array allocated since the last Cleanup.
func (r *Registry) Cleanup() error {
	r.mu.Lock()
	arrays := make([]*Array, 0, len(r.arrays))
	for a := range r.arrays {
		arrays = append(arrays, a)
	}
	r.mu.Unlock()

	var firstErr error
	var freed int64
	for _, a := range arrays {
		freed += a.Bytes()
		if err := a.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if len(arrays) > 0 {
		r.logger.Debug("cleanup released %d caches (%s)", len(arrays), humanize.IBytes(uint64(freed)))
	}
	return firstErr
}

func (r *Registry) forget(a *Array) {
	r.mu.Lock()
	delete(r.arrays, a)
	r.mu.Unlock()
}
