// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/detops/internal/tensor"

// Backend defines the interface that all compute backends must implement.
//
// Implementations:
//   - backend/cpu: Pure Go, parallel over channel planes and regions
//
// Example:
//
//	import (
//	    "github.com/born-ml/detops/tensor"
//	    "github.com/born-ml/detops/backend/cpu"
//	)
//
//	backend := cpu.New()
//	pooled, err := backend.RRoIAlign(features, rois, tensor.RRoIAlignConfig{
//	    PooledHeight: 7,
//	    PooledWidth:  7,
//	    SpatialScale: 0.25,
//	    SampleNum:    2,
//	})
type Backend = tensor.Backend
