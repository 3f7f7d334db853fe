package roi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/detops/internal/tensor"
)

func TestFromTensor_PreservesRowOrder(t *testing.T) {
	raw, err := tensor.FromFloat32([]float32{
		1, 10, 20, 4, 6, 0.5,
		0, 3, 4, 2, 2, -1,
	}, tensor.Shape{2, 6})
	require.NoError(t, err)

	regions, err := FromTensor(raw)
	require.NoError(t, err)
	require.Len(t, regions, 2)

	assert.Equal(t, 1, regions[0].BatchIndex)
	assert.InDelta(t, 10, regions[0].CenterX, 1e-6)
	assert.InDelta(t, 0.5, regions[0].Angle, 1e-6)
	assert.Equal(t, 0, regions[1].BatchIndex)
	assert.InDelta(t, -1, regions[1].Angle, 1e-6)
}

func TestFromTensor_WrongWidth(t *testing.T) {
	raw, err := tensor.FromFloat32(make([]float32, 10), tensor.Shape{2, 5})
	require.NoError(t, err)

	_, err = FromTensor(raw)
	assert.ErrorIs(t, err, tensor.ErrInvalidShape)
}

func TestFromTensor_BadBatchIndex(t *testing.T) {
	for _, b := range []float64{-1, 0.5, math.NaN(), math.Inf(1)} {
		raw, err := tensor.FromFloat64([]float64{b, 0, 0, 1, 1, 0}, tensor.Shape{1, 6})
		require.NoError(t, err)

		_, err = FromTensor(raw)
		assert.ErrorIs(t, err, ErrInvalidRegion, "batch index %v", b)
	}
}

func TestFromTensor_Empty(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{0, 6}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)

	regions, err := FromTensor(raw)
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestToTensor_RoundTrip(t *testing.T) {
	in := []Region{{BatchIndex: 2, CenterX: 1.5, CenterY: -3, Width: 8, Height: 2, Angle: math.Pi / 6}}

	raw, err := ToTensor(in, tensor.Float64)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 6}, raw.Shape())

	out, err := FromTensor(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestValidate(t *testing.T) {
	ok := Region{BatchIndex: 1, Width: 1, Height: 1}
	assert.NoError(t, ok.Validate(2))

	err := Validate([]Region{ok, {BatchIndex: 2, Width: 1, Height: 1}}, 2)
	assert.ErrorIs(t, err, ErrInvalidRegion)
	assert.Contains(t, err.Error(), "row 1")

	nan := Region{CenterX: math.NaN()}
	assert.ErrorIs(t, nan.Validate(1), ErrInvalidRegion)
}

func TestScaleAndRescale(t *testing.T) {
	r := Region{BatchIndex: 3, CenterX: 8, CenterY: 16, Width: 32, Height: 4, Angle: 1}

	s := r.Scale(0.25)
	assert.Equal(t, Region{BatchIndex: 3, CenterX: 2, CenterY: 4, Width: 8, Height: 1, Angle: 1}, s)

	e := r.Rescale(1.5, 2)
	assert.InDelta(t, 48, e.Width, 1e-12)
	assert.InDelta(t, 8, e.Height, 1e-12)
	assert.InDelta(t, 8, e.CenterX, 1e-12)
	assert.InDelta(t, 128, r.Area(), 1e-12)
}

func TestCorners_QuarterTurn(t *testing.T) {
	// A quarter turn swaps the extents: the local x axis points up the rows.
	r := Region{CenterX: 10, CenterY: 10, Width: 4, Height: 2, Angle: math.Pi / 2}
	c := r.Corners()

	// Local (-2,-1) -> x = -1 + 10, y = 2 + 10.
	assert.InDelta(t, 9, c[0][0], 1e-9)
	assert.InDelta(t, 12, c[0][1], 1e-9)
	// Local (2,-1) -> x = -1 + 10, y = -2 + 10.
	assert.InDelta(t, 9, c[1][0], 1e-9)
	assert.InDelta(t, 8, c[1][1], 1e-9)
}

func TestCorners_AxisAligned(t *testing.T) {
	r := Region{CenterX: 5, CenterY: 3, Width: 4, Height: 2}
	want := [4][2]float64{{3, 2}, {7, 2}, {7, 4}, {3, 4}}
	assert.Equal(t, want, r.Corners())
}
