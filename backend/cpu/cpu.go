// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/detops/internal/backend/cpu"
	"github.com/born-ml/detops/internal/parallel"
	"github.com/born-ml/detops/tensor"
)

// Backend represents the CPU backend implementation.
//
// CPU backend provides pure Go implementations of corner pooling and
// rotated RoI align, parallelized over channel planes and regions.
type Backend = internalcpu.CPUBackend

// ParallelConfig controls how a Backend splits work across goroutines.
type ParallelConfig = parallel.Config

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend configured from the environment
// (DETOPS_NUM_THREADS, DETOPS_MIN_CHUNK, DETOPS_SEQUENTIAL).
//
// Example:
//
//	import (
//	    "github.com/born-ml/detops/backend/cpu"
//	    "github.com/born-ml/detops/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    pooled, err := backend.CornerPool(x, tensor.Left)
//	}
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU backend with an explicit parallelism setup.
func NewWithConfig(cfg ParallelConfig) *Backend {
	return internalcpu.NewWithConfig(cfg)
}

// Sequential returns a ParallelConfig that runs every kernel on the calling
// goroutine.
func Sequential() ParallelConfig {
	return parallel.Sequential()
}
