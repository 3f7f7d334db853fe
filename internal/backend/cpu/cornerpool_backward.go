package cpu

import (
	"fmt"

	"github.com/born-ml/detops/internal/parallel"
	"github.com/born-ml/detops/internal/tensor"
)

// CornerPoolBackward computes the gradient w.r.t. input for CornerPool.
//
// Algorithm: route each output gradient to the input position that holds
// its running maximum.
//   - Every lane (a column for Top/Bottom, a row for Left/Right) keeps
//     (maxVal, maxInd), seeded from the far edge of the scan window.
//   - The far-edge gradient is copied straight through: that output depends
//     only on itself.
//   - Walking toward the near edge, a strictly greater input restarts the
//     running maximum at the current position; the current position's
//     gradient is then added at maxInd.
//
// Ties keep the maximum found first during the walk, i.e. the one nearest
// the far edge. Several outputs can route to one input, so the gradient is
// accumulated with +=.
//
// Example (Top, one column):
//
//	Input: [1, 4, 2, 3]  GradOutput: [1, 1, 1, 1]  GradInput: [0, 2, 0, 2]
func (cpu *CPUBackend) CornerPoolBackward(input, gradOutput *tensor.RawTensor, dir tensor.Direction) (*tensor.RawTensor, error) {
	N, C, H, W, err := input.Shape().NCHW()
	if err != nil {
		return nil, fmt.Errorf("cornerpool backward: %w", err)
	}
	if !gradOutput.Shape().Equal(input.Shape()) {
		return nil, fmt.Errorf("cornerpool backward: grad shape %v != input shape %v: %w",
			gradOutput.Shape(), input.Shape(), tensor.ErrInvalidShape)
	}
	if gradOutput.DType() != input.DType() {
		return nil, fmt.Errorf("cornerpool backward: grad dtype %s != input dtype %s: %w",
			gradOutput.DType(), input.DType(), tensor.ErrUnsupportedDType)
	}
	if err := checkDirection(dir); err != nil {
		return nil, fmt.Errorf("cornerpool backward: %w", err)
	}

	gradInput, err := tensor.NewRaw(input.Shape(), input.DType(), cpu.device)
	if err != nil {
		return nil, fmt.Errorf("cornerpool backward: %w", err)
	}
	if gradInput.NumElements() == 0 {
		return gradInput, nil
	}

	walk := newLaneWalk(H, W, dir)
	switch input.DType() {
	case tensor.Float32:
		cornerPoolRoute(tensor.As[float32](gradInput), tensor.As[float32](input), tensor.As[float32](gradOutput), N*C, walk, cpu.par)
	case tensor.Float64:
		cornerPoolRoute(tensor.As[float64](gradInput), tensor.As[float64](input), tensor.As[float64](gradOutput), N*C, walk, cpu.par)
	default:
		return nil, fmt.Errorf("cornerpool backward: %s: %w", input.DType(), tensor.ErrUnsupportedDType)
	}

	return gradInput, nil
}

// laneWalk describes how a direction's scan axis is laid out in a plane:
// element (lane, pos) lives at lane*laneStride + pos*posStride, and the
// backward walk visits pos = first, first+step, ...
type laneWalk struct {
	planeSize  int
	lanes      int
	length     int
	laneStride int
	posStride  int
	first      int
	step       int
}

func newLaneWalk(H, W int, dir tensor.Direction) laneWalk {
	lw := laneWalk{planeSize: H * W, lanes: W, length: H, laneStride: 1, posStride: W}
	if !dir.Vertical() {
		lw.lanes, lw.length, lw.laneStride, lw.posStride = H, W, W, 1
	}
	lw.first, lw.step = 0, 1
	if dir.Reversed() {
		lw.first, lw.step = lw.length-1, -1
	}
	return lw
}

// laneState is the running maximum of one lane during the backward walk.
type laneState[T tensor.Float] struct {
	maxVal T
	maxInd int
}

func cornerPoolRoute[T tensor.Float](gradInput, input, gradOutput []T, planes int, lw laneWalk, cfg parallel.Config) {
	parallel.For(planes, func(p int) {
		off := p * lw.planeSize
		in := input[off : off+lw.planeSize]
		gIn := gradInput[off : off+lw.planeSize]
		gOut := gradOutput[off : off+lw.planeSize]

		states := make([]laneState[T], lw.lanes)
		for l := range states {
			idx := l*lw.laneStride + lw.first*lw.posStride
			states[l] = laneState[T]{maxVal: in[idx], maxInd: lw.first}
			gIn[idx] = gOut[idx]
		}

		for i := 1; i < lw.length; i++ {
			pos := lw.first + i*lw.step
			for l := range states {
				st := &states[l]
				base := l * lw.laneStride
				if v := in[base+pos*lw.posStride]; v > st.maxVal {
					st.maxVal = v
					st.maxInd = pos
				}
				gIn[base+st.maxInd*lw.posStride] += gOut[base+pos*lw.posStride]
			}
		}
	}, cfg)
}
