package tensor

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig reports operator parameters that cannot produce an output.
var ErrInvalidConfig = errors.New("invalid config")

// RRoIAlignConfig holds the parameters of a rotated RoI align call.
type RRoIAlignConfig struct {
	PooledHeight int     // Output bins along the region's height
	PooledWidth  int     // Output bins along the region's width
	SpatialScale float64 // Multiplier from image coordinates to feature-map coordinates
	SampleNum    int     // Samples per bin along each axis; <= 0 derives it from the bin size
}

// Validate checks that the configuration can produce an output.
func (c RRoIAlignConfig) Validate() error {
	if c.PooledHeight <= 0 || c.PooledWidth <= 0 {
		return fmt.Errorf("pooled size %dx%d must be positive: %w", c.PooledHeight, c.PooledWidth, ErrInvalidConfig)
	}
	if c.SpatialScale <= 0 || math.IsInf(c.SpatialScale, 0) || math.IsNaN(c.SpatialScale) {
		return fmt.Errorf("spatial scale %v must be positive and finite: %w", c.SpatialScale, ErrInvalidConfig)
	}
	return nil
}
