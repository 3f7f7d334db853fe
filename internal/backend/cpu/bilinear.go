package cpu

import (
	"math"

	"github.com/born-ml/detops/internal/roi"
	"github.com/born-ml/detops/internal/tensor"
)

// samplingGrid is the rotated sample lattice of one region in feature-map
// coordinates. Forward and backward both rebuild it from the region
// descriptor, so the backward pass never depends on forward state.
type samplingGrid[T tensor.Float] struct {
	batch          int
	cx, cy         T
	cos, sin       T
	startX, startY T // Top-left corner of the unrotated window, relative to the center
	binW, binH     T
	gridW, gridH   int
	count          T
}

// newSamplingGrid scales the region into feature-map units, clamps its
// extent to at least one cell and lays out gridH x gridW samples per bin.
func newSamplingGrid[T tensor.Float](r roi.Region, cfg tensor.RRoIAlignConfig) samplingGrid[T] {
	scale := T(cfg.SpatialScale)
	w := max(T(r.Width)*scale, 1)
	h := max(T(r.Height)*scale, 1)

	g := samplingGrid[T]{
		batch:  r.BatchIndex,
		cx:     T(r.CenterX) * scale,
		cy:     T(r.CenterY) * scale,
		startX: -w / 2,
		startY: -h / 2,
		binW:   w / T(cfg.PooledWidth),
		binH:   h / T(cfg.PooledHeight),
		gridW:  cfg.SampleNum,
		gridH:  cfg.SampleNum,
	}
	if cfg.SampleNum <= 0 {
		g.gridW = max(int(math.Ceil(float64(g.binW))), 1)
		g.gridH = max(int(math.Ceil(float64(g.binH))), 1)
	}
	g.count = T(g.gridW * g.gridH)

	sin, cos := math.Sincos(float64(T(r.Angle)))
	g.sin, g.cos = T(sin), T(cos)
	return g
}

// point returns the feature-map coordinate (y, x) of sample (iy, ix) in bin
// (ph, pw). The local offset (xx, yy) is rotated about the region center:
//
//	x = xx*cos + yy*sin + cx
//	y = yy*cos - xx*sin + cy
func (g *samplingGrid[T]) point(ph, pw, iy, ix int) (y, x T) {
	yy := g.startY + T(ph)*g.binH + (T(iy)+0.5)*g.binH/T(g.gridH)
	xx := g.startX + T(pw)*g.binW + (T(ix)+0.5)*g.binW/T(g.gridW)
	return yy*g.cos - xx*g.sin + g.cy, xx*g.cos + yy*g.sin + g.cx
}

// bilinearSample holds the four neighbours of a sample point and their
// interpolation weights, in the order (low,low) (low,high) (high,low)
// (high,high) for (y,x).
type bilinearSample[T tensor.Float] struct {
	idx [4]int
	w   [4]T
	ok  bool
}

// bilinear computes interpolation weights at (y, x) on an H x W plane.
// Points outside [-1, H] x [-1, W] contribute nothing (ok is false);
// points inside are clamped onto the grid before weighting.
func bilinear[T tensor.Float](H, W int, y, x T) bilinearSample[T] {
	var s bilinearSample[T]
	// Written as a negated range check so NaN coordinates are rejected too.
	if !(y >= -1 && y <= T(H) && x >= -1 && x <= T(W)) {
		return s
	}

	y = max(y, 0)
	x = max(x, 0)

	yLow, xLow := int(y), int(x)
	var yHigh, xHigh int
	if yLow >= H-1 {
		yLow, yHigh = H-1, H-1
		y = T(yLow)
	} else {
		yHigh = yLow + 1
	}
	if xLow >= W-1 {
		xLow, xHigh = W-1, W-1
		x = T(xLow)
	} else {
		xHigh = xLow + 1
	}

	ly, lx := y-T(yLow), x-T(xLow)
	hy, hx := 1-ly, 1-lx

	s.idx = [4]int{yLow*W + xLow, yLow*W + xHigh, yHigh*W + xLow, yHigh*W + xHigh}
	s.w = [4]T{hy * hx, hy * lx, ly * hx, ly * lx}
	s.ok = true
	return s
}
