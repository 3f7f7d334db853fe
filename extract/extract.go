// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package extract pools rotated regions from a multi-level feature pyramid.
//
// Example:
//
//	import (
//	    "github.com/born-ml/detops/backend/cpu"
//	    "github.com/born-ml/detops/extract"
//	)
//
//	ex, err := extract.New(cpu.New(), extract.DefaultConfig())
//	pooled, err := ex.Forward(feats, rois, extract.WithEnlarge(1.2, 1.4))
package extract

import (
	"github.com/born-ml/detops/internal/extract"
	"github.com/born-ml/detops/roi"
	"github.com/born-ml/detops/tensor"
)

// DefaultFinestScale is the region size mapped to the finest level.
const DefaultFinestScale = extract.DefaultFinestScale

// Config describes the pyramid and the pooled output.
type Config = extract.Config

// Extractor maps regions onto pyramid levels and pools them with a backend.
type Extractor = extract.Extractor

// Option adjusts a single Forward or Backward call.
type Option = extract.Option

// DefaultConfig returns a four-level FPN setup (strides 4, 8, 16, 32) with
// 7x7 outputs and 256 channels.
func DefaultConfig() Config {
	return extract.DefaultConfig()
}

// New validates cfg and returns an Extractor that runs on backend.
func New(backend tensor.Backend, cfg Config) (*Extractor, error) {
	return extract.New(backend, cfg)
}

// WithEnlarge scales region width and height before sampling. Levels are
// still assigned from the original sizes.
func WithEnlarge(wFactor, hFactor float64) Option {
	return extract.WithEnlarge(wFactor, hFactor)
}

// MapLevels assigns every region a pyramid level in [0, numLevels).
func MapLevels(regions []roi.Region, numLevels int, finestScale float64) []int {
	return extract.MapLevels(regions, numLevels, finestScale)
}
