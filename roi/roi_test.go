// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package roi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/detops/roi"
	"github.com/born-ml/detops/tensor"
)

func TestRoundTrip(t *testing.T) {
	regions := []roi.Region{
		{BatchIndex: 0, CenterX: 10, CenterY: 12, Width: 8, Height: 4, Angle: 0.25},
		{BatchIndex: 3, CenterX: -1, CenterY: 0.5, Width: 2, Height: 2},
	}
	raw, err := roi.ToTensor(regions, tensor.Float32)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, roi.Columns}, raw.Shape())

	got, err := roi.FromTensor(raw)
	require.NoError(t, err)
	assert.Equal(t, regions, got)
}

func TestFromTensor_RejectsFractionalBatch(t *testing.T) {
	raw, err := tensor.FromFloat64([]float64{0.5, 1, 1, 1, 1, 0}, tensor.Shape{1, roi.Columns})
	require.NoError(t, err)
	_, err = roi.FromTensor(raw)
	require.ErrorIs(t, err, roi.ErrInvalidRegion)
}
