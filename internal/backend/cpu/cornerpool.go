package cpu

import (
	"fmt"

	"github.com/born-ml/detops/internal/parallel"
	"github.com/born-ml/detops/internal/tensor"
)

// CornerPool performs directional cumulative-max pooling.
//
// For the Top direction every output position holds the maximum of its
// column from that row to the last one:
//
//	output[n,c,h,w] = max(input[n,c,h..H-1,w])
//
// Bottom, Left and Right mirror this toward row 0, column W-1 and column 0.
//
// Algorithm: doubling-step (Hillis-Steele) scan. The output starts as a copy
// of the input; pass k (k = 1, 2, 4, ... < L) replaces out[i] with
// max(out[i], out[i+k]) for every i < L-k. After the pass with step k each
// position covers a window of 2k positions, so ceil(log2 L) passes suffice
// and each pass is a row-wide element-wise max.
//
// Example (Top, one column):
//
//	Input: [1, 4, 2, 3]   Output: [4, 4, 3, 3]
func (cpu *CPUBackend) CornerPool(input *tensor.RawTensor, dir tensor.Direction) (*tensor.RawTensor, error) {
	N, C, H, W, err := input.Shape().NCHW()
	if err != nil {
		return nil, fmt.Errorf("cornerpool: %w", err)
	}
	if err := checkDirection(dir); err != nil {
		return nil, fmt.Errorf("cornerpool: %w", err)
	}

	output := input.Clone()

	switch input.DType() {
	case tensor.Float32:
		cornerPoolScan(tensor.As[float32](output), N, C, H, W, dir, cpu.par)
	case tensor.Float64:
		cornerPoolScan(tensor.As[float64](output), N, C, H, W, dir, cpu.par)
	default:
		return nil, fmt.Errorf("cornerpool: %s: %w", input.DType(), tensor.ErrUnsupportedDType)
	}

	return output, nil
}

func checkDirection(dir tensor.Direction) error {
	switch dir {
	case tensor.Top, tensor.Bottom, tensor.Left, tensor.Right:
		return nil
	default:
		return fmt.Errorf("unknown direction %d: %w", int(dir), tensor.ErrInvalidConfig)
	}
}

// cornerPoolScan runs the doubling scan in place over every (n, c) plane.
// Planes are independent; the passes within one plane are sequential.
func cornerPoolScan[T tensor.Float](data []T, N, C, H, W int, dir tensor.Direction, cfg parallel.Config) {
	planeSize := H * W
	if planeSize == 0 {
		return
	}

	parallel.For(N*C, func(p int) {
		plane := data[p*planeSize : (p+1)*planeSize]
		if dir.Vertical() {
			scanRows(plane, H, W, dir.Reversed())
			return
		}
		for h := 0; h < H; h++ {
			scanRow(plane[h*W:(h+1)*W], dir.Reversed())
		}
	}, cfg)
}

// scanRows scans along the height axis. Each step compares whole rows, so
// the inner loop runs over W contiguous lanes at once.
func scanRows[T tensor.Float](plane []T, H, W int, reversed bool) {
	for k := 1; k < H; k <<= 1 {
		if reversed {
			// Row h absorbs row h+k before row h+k is itself updated.
			for h := 0; h < H-k; h++ {
				maxInto(plane[h*W:(h+1)*W], plane[(h+k)*W:(h+k+1)*W])
			}
			continue
		}
		for h := H - 1; h >= k; h-- {
			maxInto(plane[h*W:(h+1)*W], plane[(h-k)*W:(h-k+1)*W])
		}
	}
}

// scanRow scans one row along the width axis. dst and src overlap, so the
// iteration order is chosen to read every src element before it is written.
func scanRow[T tensor.Float](row []T, reversed bool) {
	W := len(row)
	for k := 1; k < W; k <<= 1 {
		if reversed {
			dst, src := row[:W-k], row[k:]
			for i := range dst {
				if src[i] > dst[i] {
					dst[i] = src[i]
				}
			}
			continue
		}
		dst, src := row[k:], row[:W-k]
		for i := len(dst) - 1; i >= 0; i-- {
			if src[i] > dst[i] {
				dst[i] = src[i]
			}
		}
	}
}

// maxInto sets dst[i] = max(dst[i], src[i]) for non-overlapping slices.
func maxInto[T tensor.Float](dst, src []T) {
	src = src[:len(dst)]
	for i, v := range src {
		if v > dst[i] {
			dst[i] = v
		}
	}
}
