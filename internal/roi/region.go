// Package roi defines rotated region descriptors and their [R,6] tensor encoding.
//
// A region is a rectangle of Width x Height centered at (CenterX, CenterY)
// and rotated by Angle radians about its center. A point (xx, yy) in the
// region's own unrotated frame (offset from the center) maps to feature-map
// coordinates as
//
//	x = xx*cos(Angle) + yy*sin(Angle) + CenterX
//	y = yy*cos(Angle) - xx*sin(Angle) + CenterY
//
// With the y axis pointing down the rows of the feature map, a positive
// angle turns the region's local x axis from +x toward -y, which is
// counter-clockwise as seen on screen. Angle 0 is the axis-aligned box.
package roi

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/detops/internal/tensor"
)

// Columns is the width of one row of an encoded region batch.
const Columns = 6

// ErrInvalidRegion reports a region descriptor that cannot be sampled.
var ErrInvalidRegion = errors.New("invalid region")

// Region is a rotated rectangle over one image of a batch.
type Region struct {
	BatchIndex int     // Index into the batch dimension of the feature tensor
	CenterX    float64 // Center, image coordinates
	CenterY    float64
	Width      float64 // Extent along the region's local x axis
	Height     float64 // Extent along the region's local y axis
	Angle      float64 // Rotation in radians
}

// Area returns Width*Height.
func (r Region) Area() float64 {
	return r.Width * r.Height
}

// Scale maps the region's position and extent by s, leaving the angle and
// batch index untouched.
func (r Region) Scale(s float64) Region {
	r.CenterX *= s
	r.CenterY *= s
	r.Width *= s
	r.Height *= s
	return r
}

// Rescale multiplies width and height independently, keeping the center.
func (r Region) Rescale(wFactor, hFactor float64) Region {
	r.Width *= wFactor
	r.Height *= hFactor
	return r
}

// ToMap maps an offset (xx, yy) in the region's local frame to feature-map
// coordinates.
func (r Region) ToMap(xx, yy float64) (x, y float64) {
	sin, cos := math.Sincos(r.Angle)
	return xx*cos + yy*sin + r.CenterX, yy*cos - xx*sin + r.CenterY
}

// Corners returns the four rotated corners in local order
// (-w/2,-h/2), (w/2,-h/2), (w/2,h/2), (-w/2,h/2).
func (r Region) Corners() [4][2]float64 {
	hw, hh := r.Width/2, r.Height/2
	var out [4][2]float64
	for i, p := range [4][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}} {
		out[i][0], out[i][1] = r.ToMap(p[0], p[1])
	}
	return out
}

// Validate checks that the geometry is finite and the batch index is
// within [0, batch).
func (r Region) Validate(batch int) error {
	for _, v := range []float64{r.CenterX, r.CenterY, r.Width, r.Height, r.Angle} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite geometry %+v: %w", r, ErrInvalidRegion)
		}
	}
	if r.BatchIndex < 0 || r.BatchIndex >= batch {
		return fmt.Errorf("batch index %d out of range [0, %d): %w", r.BatchIndex, batch, ErrInvalidRegion)
	}
	return nil
}

// FromTensor decodes an [R,6] region batch. Rows keep their order.
func FromTensor(t *tensor.RawTensor) ([]Region, error) {
	shape := t.Shape()
	if len(shape) != 2 || shape[1] != Columns {
		return nil, fmt.Errorf("rois: expected shape [R,%d], got %v: %w", Columns, shape, tensor.ErrInvalidShape)
	}
	if t.DType() != tensor.Float32 && t.DType() != tensor.Float64 {
		return nil, fmt.Errorf("rois: %s: %w", t.DType(), tensor.ErrUnsupportedDType)
	}

	values := t.Float64s()
	regions := make([]Region, shape[0])
	for i := range regions {
		row := values[i*Columns : (i+1)*Columns]
		b := row[0]
		if b != math.Trunc(b) || b < 0 || math.IsInf(b, 0) {
			return nil, fmt.Errorf("rois: row %d: batch index %v is not a non-negative integer: %w", i, b, ErrInvalidRegion)
		}
		regions[i] = Region{
			BatchIndex: int(b),
			CenterX:    row[1],
			CenterY:    row[2],
			Width:      row[3],
			Height:     row[4],
			Angle:      row[5],
		}
	}
	return regions, nil
}

// ToTensor encodes regions as an [R,6] tensor of the given dtype.
func ToTensor(regions []Region, dtype tensor.DataType) (*tensor.RawTensor, error) {
	values := make([]float64, 0, len(regions)*Columns)
	for _, r := range regions {
		values = append(values, float64(r.BatchIndex), r.CenterX, r.CenterY, r.Width, r.Height, r.Angle)
	}

	shape := tensor.Shape{len(regions), Columns}
	switch dtype {
	case tensor.Float64:
		return tensor.FromFloat64(values, shape)
	case tensor.Float32:
		narrow := make([]float32, len(values))
		for i, v := range values {
			narrow[i] = float32(v)
		}
		return tensor.FromFloat32(narrow, shape)
	default:
		return nil, fmt.Errorf("rois: %s: %w", dtype, tensor.ErrUnsupportedDType)
	}
}

// Validate checks every region against a batch of the given size and
// reports the first offending row.
func Validate(regions []Region, batch int) error {
	for i, r := range regions {
		if err := r.Validate(batch); err != nil {
			return fmt.Errorf("rois: row %d: %w", i, err)
		}
	}
	return nil
}
