// Package extract pools rotated region features from a feature pyramid.
//
// Each region is assigned to one pyramid level by its size: regions around
// FinestScale pixels across go to the finest level, and every doubling of
// sqrt(width*height) moves one level coarser. The assigned level's feature
// map is then sampled with rotated RoI align at spatial scale 1/stride.
package extract

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/born-ml/detops/internal/roi"
	"github.com/born-ml/detops/internal/tensor"
)

// DefaultFinestScale is the region size mapped to the finest level.
const DefaultFinestScale = 56

// Config describes the pyramid and the pooled output.
type Config struct {
	PooledHeight   int
	PooledWidth    int
	SampleNum      int     // Samples per bin along each axis; <= 0 derives it from the bin size
	OutChannels    int     // Channel count shared by every level
	FeatmapStrides []int   // Stride of each level relative to the image, finest first
	FinestScale    float64 // Zero selects DefaultFinestScale
}

// DefaultConfig returns a four-level FPN setup with 7x7 outputs.
func DefaultConfig() Config {
	return Config{
		PooledHeight:   7,
		PooledWidth:    7,
		SampleNum:      2,
		OutChannels:    256,
		FeatmapStrides: []int{4, 8, 16, 32},
		FinestScale:    DefaultFinestScale,
	}
}

// Extractor maps regions onto pyramid levels and pools them with a backend.
// It holds no per-call state.
type Extractor struct {
	cfg     Config
	backend tensor.Backend
}

// New validates cfg and returns an Extractor that runs on backend.
func New(backend tensor.Backend, cfg Config) (*Extractor, error) {
	if cfg.FinestScale == 0 {
		cfg.FinestScale = DefaultFinestScale
	}
	if len(cfg.FeatmapStrides) == 0 {
		return nil, fmt.Errorf("extract: no feature map strides: %w", tensor.ErrInvalidConfig)
	}
	for i, s := range cfg.FeatmapStrides {
		if s <= 0 {
			return nil, fmt.Errorf("extract: stride %d of level %d must be positive: %w", s, i, tensor.ErrInvalidConfig)
		}
	}
	if cfg.OutChannels <= 0 {
		return nil, fmt.Errorf("extract: out channels %d must be positive: %w", cfg.OutChannels, tensor.ErrInvalidConfig)
	}
	if !(cfg.FinestScale > 0) {
		return nil, fmt.Errorf("extract: finest scale %v must be positive: %w", cfg.FinestScale, tensor.ErrInvalidConfig)
	}
	e := &Extractor{cfg: cfg, backend: backend}
	for i := range cfg.FeatmapStrides {
		if err := e.levelConfig(i).Validate(); err != nil {
			return nil, fmt.Errorf("extract: level %d: %w", i, err)
		}
	}
	cfg.FeatmapStrides = append([]int(nil), cfg.FeatmapStrides...)
	e.cfg = cfg
	return e, nil
}

// NumLevels returns the number of pyramid levels.
func (e *Extractor) NumLevels() int {
	return len(e.cfg.FeatmapStrides)
}

// OutShape returns the pooled output shape for numRegions regions.
func (e *Extractor) OutShape(numRegions int) tensor.Shape {
	return tensor.Shape{numRegions, e.cfg.OutChannels, e.cfg.PooledHeight, e.cfg.PooledWidth}
}

func (e *Extractor) levelConfig(level int) tensor.RRoIAlignConfig {
	return tensor.RRoIAlignConfig{
		PooledHeight: e.cfg.PooledHeight,
		PooledWidth:  e.cfg.PooledWidth,
		SpatialScale: 1 / float64(e.cfg.FeatmapStrides[level]),
		SampleNum:    e.cfg.SampleNum,
	}
}

// MapLevels assigns every region a level in [0, numLevels):
//
//	level = floor(log2(sqrt(w*h)/finestScale + 1e-6))
//
// clamped to the valid range.
func MapLevels(regions []roi.Region, numLevels int, finestScale float64) []int {
	levels := make([]int, len(regions))
	for i, r := range regions {
		lvl := math.Floor(math.Log2(math.Sqrt(r.Area())/finestScale + 1e-6))
		switch {
		case !(lvl >= 0): // Also catches NaN from negative areas.
			levels[i] = 0
		case lvl > float64(numLevels-1):
			levels[i] = numLevels - 1
		default:
			levels[i] = int(lvl)
		}
	}
	return levels
}

// Rescale enlarges (or shrinks) every region about its center.
func Rescale(regions []roi.Region, wFactor, hFactor float64) []roi.Region {
	out := make([]roi.Region, len(regions))
	for i, r := range regions {
		out[i] = r.Rescale(wFactor, hFactor)
	}
	return out
}

// Option adjusts a single Forward or Backward call.
type Option func(*options)

type options struct {
	wFactor, hFactor float64
	enlarge          bool
}

// WithEnlarge scales region width and height before sampling. Levels are
// still assigned from the original sizes.
func WithEnlarge(wFactor, hFactor float64) Option {
	return func(o *options) {
		o.wFactor, o.hFactor, o.enlarge = wFactor, hFactor, true
	}
}

// plan is the per-call assignment of region rows to levels.
type plan struct {
	regions []roi.Region // Regions to sample, after any rescale
	rows    [][]int      // rows[level] lists region rows in their original order
}

func (e *Extractor) plan(rois *tensor.RawTensor, opts []Option) (plan, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	regions, err := roi.FromTensor(rois)
	if err != nil {
		return plan{}, err
	}
	levels := MapLevels(regions, e.NumLevels(), e.cfg.FinestScale)
	if o.enlarge {
		regions = Rescale(regions, o.wFactor, o.hFactor)
	}

	p := plan{regions: regions, rows: make([][]int, e.NumLevels())}
	for row, lvl := range levels {
		p.rows[lvl] = append(p.rows[lvl], row)
	}
	return p, nil
}

func (p plan) levelRois(level int) (*tensor.RawTensor, error) {
	sub := make([]roi.Region, len(p.rows[level]))
	for i, row := range p.rows[level] {
		sub[i] = p.regions[row]
	}
	return roi.ToTensor(sub, tensor.Float64)
}

// Forward pools every region from its assigned level.
//
// feats[i] is the [N, OutChannels, H_i, W_i] map of level i. The output is
// [R, OutChannels, PooledHeight, PooledWidth] with row r taken from rois
// row r. Levels are processed concurrently.
func (e *Extractor) Forward(feats []*tensor.RawTensor, rois *tensor.RawTensor, opts ...Option) (*tensor.RawTensor, error) {
	if len(feats) != e.NumLevels() {
		return nil, fmt.Errorf("extract: got %d feature maps for %d levels: %w", len(feats), e.NumLevels(), tensor.ErrInvalidShape)
	}
	shapes := make([]tensor.Shape, len(feats))
	for i, f := range feats {
		if f.DType() != feats[0].DType() {
			return nil, fmt.Errorf("extract: level %d dtype %s != level 0 dtype %s: %w", i, f.DType(), feats[0].DType(), tensor.ErrUnsupportedDType)
		}
		shapes[i] = f.Shape()
	}
	if err := e.checkShapes(shapes); err != nil {
		return nil, err
	}

	p, err := e.plan(rois, opts)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	output, err := tensor.NewRaw(e.OutShape(len(p.regions)), feats[0].DType(), e.backend.Device())
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	rowBytes := e.rowBytes(output.DType())

	var g errgroup.Group
	for level := range p.rows {
		if len(p.rows[level]) == 0 {
			continue
		}
		g.Go(func() error {
			levelRois, err := p.levelRois(level)
			if err != nil {
				return err
			}
			pooled, err := e.backend.RRoIAlign(feats[level], levelRois, e.levelConfig(level))
			if err != nil {
				return fmt.Errorf("level %d: %w", level, err)
			}
			// Rows of different levels never overlap, so the copies can run
			// concurrently.
			src, dst := pooled.Data(), output.Data()
			for i, row := range p.rows[level] {
				copy(dst[row*rowBytes:(row+1)*rowBytes], src[i*rowBytes:(i+1)*rowBytes])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return output, nil
}

// Backward routes each gradient row to the level its region was pooled
// from and returns one feature gradient per level, shaped like featShapes.
// Levels without regions get a zero gradient.
func (e *Extractor) Backward(grad, rois *tensor.RawTensor, featShapes []tensor.Shape, opts ...Option) ([]*tensor.RawTensor, error) {
	if len(featShapes) != e.NumLevels() {
		return nil, fmt.Errorf("extract: got %d feature shapes for %d levels: %w", len(featShapes), e.NumLevels(), tensor.ErrInvalidShape)
	}
	if err := e.checkShapes(featShapes); err != nil {
		return nil, err
	}

	p, err := e.plan(rois, opts)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	if want := e.OutShape(len(p.regions)); !grad.Shape().Equal(want) {
		return nil, fmt.Errorf("extract: grad shape %v, expected %v: %w", grad.Shape(), want, tensor.ErrInvalidShape)
	}
	rowBytes := e.rowBytes(grad.DType())

	grads := make([]*tensor.RawTensor, e.NumLevels())
	var g errgroup.Group
	for level := range p.rows {
		g.Go(func() error {
			rows := p.rows[level]
			if len(rows) == 0 {
				zero, err := tensor.NewRaw(featShapes[level], grad.DType(), e.backend.Device())
				grads[level] = zero
				return err
			}

			levelGrad, err := tensor.NewRaw(e.OutShape(len(rows)), grad.DType(), e.backend.Device())
			if err != nil {
				return err
			}
			src, dst := grad.Data(), levelGrad.Data()
			for i, row := range rows {
				copy(dst[i*rowBytes:(i+1)*rowBytes], src[row*rowBytes:(row+1)*rowBytes])
			}

			levelRois, err := p.levelRois(level)
			if err != nil {
				return err
			}
			grads[level], err = e.backend.RRoIAlignBackward(levelGrad, levelRois, featShapes[level], e.levelConfig(level))
			if err != nil {
				return fmt.Errorf("level %d: %w", level, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return grads, nil
}

// checkShapes requires rank-4 maps with OutChannels channels and a shared
// batch size.
func (e *Extractor) checkShapes(shapes []tensor.Shape) error {
	batch := -1
	for i, s := range shapes {
		n, c, _, _, err := s.NCHW()
		if err != nil {
			return fmt.Errorf("extract: level %d: %w", i, err)
		}
		if c != e.cfg.OutChannels {
			return fmt.Errorf("extract: level %d has %d channels, expected %d: %w", i, c, e.cfg.OutChannels, tensor.ErrInvalidShape)
		}
		if batch >= 0 && n != batch {
			return fmt.Errorf("extract: level %d batch %d != level 0 batch %d: %w", i, n, batch, tensor.ErrInvalidShape)
		}
		batch = n
	}
	return nil
}

func (e *Extractor) rowBytes(dtype tensor.DataType) int {
	return e.cfg.OutChannels * e.cfg.PooledHeight * e.cfg.PooledWidth * dtype.Size()
}
