package tensor

// Backend defines the interface that compute backends implement for the
// detection operators.
//
// Implementations:
//   - CPU: pure Go, data-parallel over planes and regions
type Backend interface {
	// CornerPool computes the directional cumulative maximum of a
	// [N,C,H,W] tensor along the axis selected by dir.
	CornerPool(input *RawTensor, dir Direction) (*RawTensor, error)

	// CornerPoolBackward routes gradOutput onto the input positions that
	// produced each running maximum in CornerPool.
	CornerPoolBackward(input, gradOutput *RawTensor, dir Direction) (*RawTensor, error)

	// RRoIAlign pools rotated regions ([R,6] rois) from a [N,C,H,W] feature
	// map into a [R,C,PooledHeight,PooledWidth] tensor.
	RRoIAlign(features, rois *RawTensor, cfg RRoIAlignConfig) (*RawTensor, error)

	// RRoIAlignBackward scatters a [R,C,PooledHeight,PooledWidth] gradient
	// back onto a feature-map gradient of shape featureShape.
	RRoIAlignBackward(gradOutput, rois *RawTensor, featureShape Shape, cfg RRoIAlignConfig) (*RawTensor, error)

	// Metadata
	Name() string
	Device() Device
}
