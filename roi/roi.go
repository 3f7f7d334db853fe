// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package roi describes rotated regions of interest.
//
// A region tensor has shape [R, 6]; each row is
// (batch_index, center_x, center_y, width, height, angle) in image
// coordinates with the angle in radians. A positive angle turns the
// region's local +x axis toward -y.
package roi

import (
	"github.com/born-ml/detops/internal/roi"
	"github.com/born-ml/detops/tensor"
)

// Columns is the width of a region tensor row.
const Columns = roi.Columns

// Region is a rotated rectangle over one image of a batch.
type Region = roi.Region

// ErrInvalidRegion reports a region descriptor that cannot be sampled.
var ErrInvalidRegion = roi.ErrInvalidRegion

// FromTensor decodes an [R,6] region tensor.
func FromTensor(t *tensor.RawTensor) ([]Region, error) {
	return roi.FromTensor(t)
}

// ToTensor encodes regions as an [R,6] tensor of the given dtype.
func ToTensor(regions []Region, dtype tensor.DataType) (*tensor.RawTensor, error) {
	return roi.ToTensor(regions, dtype)
}
