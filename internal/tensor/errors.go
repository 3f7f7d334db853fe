package tensor

import "errors"

var (
	// ErrInvalidShape reports a tensor whose rank or dimensions do not match
	// what an operator requires.
	ErrInvalidShape = errors.New("invalid shape")

	// ErrUnsupportedDType reports an element type an operator cannot run on.
	ErrUnsupportedDType = errors.New("unsupported dtype")
)
