package cpu

import (
	"fmt"

	"github.com/born-ml/detops/internal/parallel"
	"github.com/born-ml/detops/internal/roi"
	"github.com/born-ml/detops/internal/tensor"
)

// RRoIAlignBackward computes the gradient w.r.t. features for RRoIAlign.
//
// It is the exact adjoint of the forward pass: for every region, bin and
// sample the rotated coordinate and bilinear weights are recomputed from
// the region descriptor, and gradOutput/count is added into the four
// neighbours of featureGrad[batch_index, c] with the same weights.
//
// Overlapping regions and neighbouring samples hit the same cells, so the
// result is accumulated. Work is partitioned by channel: one worker owns
// channel c for every region, which keeps concurrent writers on disjoint
// planes and makes the summation order deterministic.
func (cpu *CPUBackend) RRoIAlignBackward(gradOutput, rois *tensor.RawTensor, featureShape tensor.Shape, cfg tensor.RRoIAlignConfig) (*tensor.RawTensor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rroialign backward: %w", err)
	}
	N, C, H, W, err := featureShape.NCHW()
	if err != nil {
		return nil, fmt.Errorf("rroialign backward: features: %w", err)
	}
	regions, err := roi.FromTensor(rois)
	if err != nil {
		return nil, fmt.Errorf("rroialign backward: %w", err)
	}
	if err := roi.Validate(regions, N); err != nil {
		return nil, fmt.Errorf("rroialign backward: %w", err)
	}
	wantGrad := tensor.Shape{len(regions), C, cfg.PooledHeight, cfg.PooledWidth}
	if !gradOutput.Shape().Equal(wantGrad) {
		return nil, fmt.Errorf("rroialign backward: grad shape %v, expected %v: %w",
			gradOutput.Shape(), wantGrad, tensor.ErrInvalidShape)
	}

	featureGrad, err := tensor.NewRaw(featureShape, gradOutput.DType(), cpu.device)
	if err != nil {
		return nil, fmt.Errorf("rroialign backward: %w", err)
	}

	switch gradOutput.DType() {
	case tensor.Float32:
		rroiAlignScatter(tensor.As[float32](featureGrad), tensor.As[float32](gradOutput), regions, C, H, W, cfg, cpu.par)
	case tensor.Float64:
		rroiAlignScatter(tensor.As[float64](featureGrad), tensor.As[float64](gradOutput), regions, C, H, W, cfg, cpu.par)
	default:
		return nil, fmt.Errorf("rroialign backward: %s: %w", gradOutput.DType(), tensor.ErrUnsupportedDType)
	}

	return featureGrad, nil
}

func rroiAlignScatter[T tensor.Float](featureGrad, gradOutput []T, regions []roi.Region, C, H, W int, cfg tensor.RRoIAlignConfig, par parallel.Config) {
	if H == 0 || W == 0 {
		return
	}

	grids := make([]samplingGrid[T], len(regions))
	for i, r := range regions {
		grids[i] = newSamplingGrid[T](r, cfg)
	}

	PH, PW := cfg.PooledHeight, cfg.PooledWidth
	planeSize := H * W
	binCount := PH * PW

	parallel.For(C, func(c int) {
		for r := range grids {
			g := &grids[r]
			planeOff := (g.batch*C + c) * planeSize
			plane := featureGrad[planeOff : planeOff+planeSize]
			topOff := (r*C + c) * binCount
			top := gradOutput[topOff : topOff+binCount]

			for ph := 0; ph < PH; ph++ {
				for pw := 0; pw < PW; pw++ {
					grad := top[ph*PW+pw] / g.count
					if grad == 0 {
						continue
					}
					for iy := 0; iy < g.gridH; iy++ {
						for ix := 0; ix < g.gridW; ix++ {
							y, x := g.point(ph, pw, iy, ix)
							s := bilinear(H, W, y, x)
							if !s.ok {
								continue
							}
							for k, idx := range s.idx {
								plane[idx] += grad * s.w[k]
							}
						}
					}
				}
			}
		}
	}, par)
}
