// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for the detection operators.
//
// # Overview
//
// This package implements:
//   - Corner pooling in four directions, forward and backward
//   - Rotated RoI align, forward and backward
//   - Float32 and Float64 support
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/detops/backend/cpu"
//	    "github.com/born-ml/detops/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    top, _ := backend.CornerPool(features, tensor.Top)
//	    left, _ := backend.CornerPool(features, tensor.Left)
//
//	    pooled, _ := backend.RRoIAlign(features, rois, tensor.RRoIAlignConfig{
//	        PooledHeight: 7,
//	        PooledWidth:  7,
//	        SpatialScale: 1.0 / 16,
//	    })
//	}
//
// # Performance
//
// Corner pooling uses a doubling scan, so each plane costs O(log n) passes
// over the buffer. Backward passes write disjoint channel planes from
// separate goroutines, which keeps gradients bit-for-bit deterministic
// regardless of the worker count.
package cpu
