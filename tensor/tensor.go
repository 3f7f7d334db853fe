// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/detops/internal/tensor"
)

// Type aliases for public API

// Float is the constraint for supported element types (float32, float64).
type Float = tensor.Float

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// Device constants.
const (
	CPU Device = tensor.CPU
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4, 4} is an NCHW batch of two 3-channel 4x4 maps.
type Shape = tensor.Shape

// Direction selects the axis and orientation of corner pooling.
type Direction = tensor.Direction

// Pooling directions.
const (
	Top    Direction = tensor.Top    // Max over rows at or below, along height
	Bottom Direction = tensor.Bottom // Max over rows at or above, along height
	Left   Direction = tensor.Left   // Max over columns at or right of, along width
	Right  Direction = tensor.Right  // Max over columns at or left of, along width
)

// ParseDirection converts "top", "bottom", "left" or "right" to a Direction.
func ParseDirection(s string) (Direction, error) {
	return tensor.ParseDirection(s)
}

// RRoIAlignConfig holds the parameters of a rotated RoI align call.
type RRoIAlignConfig = tensor.RRoIAlignConfig

// Sentinel errors returned by operators.
var (
	ErrInvalidShape     = tensor.ErrInvalidShape
	ErrUnsupportedDType = tensor.ErrUnsupportedDType
	ErrInvalidConfig    = tensor.ErrInvalidConfig
)
