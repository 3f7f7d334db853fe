// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public types shared by the detection
// operators.
//
// # Overview
//
// Tensors are dense, contiguous, row-major buffers described by a Shape and
// a DataType. Feature maps use the NCHW layout. Float32 and Float64 are the
// supported element types.
//
// Operators never modify their inputs. Every call allocates a fresh
// RawTensor for its result and hands ownership to the caller.
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
//	    x, _ := tensor.FromFloat32([]float32{1, 3, 2, 0}, tensor.Shape{1, 1, 4, 1})
//	    y, _ := backend.CornerPool(x, tensor.Top)
//	    fmt.Println(y.AsFloat32()) // [3 3 2 0]
//	}
//
// # Errors
//
// Contract violations are reported as wrapped sentinel errors
// (ErrInvalidShape, ErrUnsupportedDType, ErrInvalidConfig) and can be
// matched with errors.Is.
package tensor
