package cpu

import (
	"fmt"

	"github.com/born-ml/detops/internal/parallel"
	"github.com/born-ml/detops/internal/roi"
	"github.com/born-ml/detops/internal/tensor"
)

// RRoIAlign performs rotated region-of-interest align.
//
// Input shapes:  features [N, C, H, W], rois [R, 6]
// Output shape:  [R, C, PooledHeight, PooledWidth]
//
// Each roi row is (batch_index, center_x, center_y, width, height, angle)
// in image coordinates; SpatialScale maps it onto the feature map.
//
// Algorithm, per region and output bin:
//  1. Scale the region, clamp width and height to at least 1.
//  2. Split it into PooledHeight x PooledWidth bins.
//  3. Place gridH x gridW samples at bin sub-cell centers (SampleNum each
//     way, or ceil(bin size) when SampleNum <= 0).
//  4. Rotate each sample about the region center (see roi package docs for
//     the angle convention).
//  5. Bilinearly interpolate the feature plane; samples outside
//     [-1, H] x [-1, W] read 0.
//  6. Average the samples.
//
// Output row r always comes from rois row r.
func (cpu *CPUBackend) RRoIAlign(features, rois *tensor.RawTensor, cfg tensor.RRoIAlignConfig) (*tensor.RawTensor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rroialign: %w", err)
	}
	N, C, H, W, err := features.Shape().NCHW()
	if err != nil {
		return nil, fmt.Errorf("rroialign: features: %w", err)
	}
	regions, err := roi.FromTensor(rois)
	if err != nil {
		return nil, fmt.Errorf("rroialign: %w", err)
	}
	if err := roi.Validate(regions, N); err != nil {
		return nil, fmt.Errorf("rroialign: %w", err)
	}

	outShape := tensor.Shape{len(regions), C, cfg.PooledHeight, cfg.PooledWidth}
	output, err := tensor.NewRaw(outShape, features.DType(), cpu.device)
	if err != nil {
		return nil, fmt.Errorf("rroialign: %w", err)
	}

	switch features.DType() {
	case tensor.Float32:
		rroiAlignForward(tensor.As[float32](output), tensor.As[float32](features), regions, C, H, W, cfg, cpu.par)
	case tensor.Float64:
		rroiAlignForward(tensor.As[float64](output), tensor.As[float64](features), regions, C, H, W, cfg, cpu.par)
	default:
		return nil, fmt.Errorf("rroialign: %s: %w", features.DType(), tensor.ErrUnsupportedDType)
	}

	return output, nil
}

// rroiAlignForward fills output; every (region, channel) pair is an
// independent work item.
func rroiAlignForward[T tensor.Float](output, features []T, regions []roi.Region, C, H, W int, cfg tensor.RRoIAlignConfig, par parallel.Config) {
	if H == 0 || W == 0 {
		return // Every sample lies outside an empty plane.
	}

	grids := make([]samplingGrid[T], len(regions))
	for i, r := range regions {
		grids[i] = newSamplingGrid[T](r, cfg)
	}

	PH, PW := cfg.PooledHeight, cfg.PooledWidth
	planeSize := H * W
	binCount := PH * PW

	parallel.ForBatch(len(regions), C, func(r, c int) {
		g := &grids[r]
		planeOff := (g.batch*C + c) * planeSize
		plane := features[planeOff : planeOff+planeSize]
		outOff := (r*C + c) * binCount
		out := output[outOff : outOff+binCount]

		for ph := 0; ph < PH; ph++ {
			for pw := 0; pw < PW; pw++ {
				var sum T
				for iy := 0; iy < g.gridH; iy++ {
					for ix := 0; ix < g.gridW; ix++ {
						y, x := g.point(ph, pw, iy, ix)
						s := bilinear(H, W, y, x)
						if !s.ok {
							continue
						}
						sum += s.w[0]*plane[s.idx[0]] + s.w[1]*plane[s.idx[1]] +
							s.w[2]*plane[s.idx[2]] + s.w[3]*plane[s.idx[3]]
					}
				}
				out[ph*PW+pw] = sum / g.count
			}
		}
	}, par)
}
