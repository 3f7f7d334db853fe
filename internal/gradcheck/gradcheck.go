// Package gradcheck compares analytic operator gradients against central
// finite differences.
//
// The loss used throughout is L(x) = sum(f(x) * weights), so the analytic
// gradient is backward(weights) and the numeric one is estimated one input
// element at a time:
//
//	dL/dx[i] ≈ (L(x + eps*e_i) - L(x - eps*e_i)) / (2*eps)
//
// Inputs must be Float64; float32 rounding swamps the differences.
package gradcheck

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/detops/internal/tensor"
)

// ErrMismatch reports analytic and numeric gradients that disagree.
var ErrMismatch = errors.New("gradient mismatch")

// Func evaluates an operator on an input tensor.
type Func func(input *tensor.RawTensor) (*tensor.RawTensor, error)

// BackwardFunc maps an output gradient to the input gradient.
type BackwardFunc func(gradOutput *tensor.RawTensor) (*tensor.RawTensor, error)

// Options control the finite-difference step and the tolerances.
type Options struct {
	Eps  float64 // Perturbation step
	Atol float64 // Absolute tolerance
	Rtol float64 // Tolerance relative to the numeric estimate
}

// DefaultOptions returns settings that suit piecewise-linear operators on
// inputs of order one.
func DefaultOptions() Options {
	return Options{Eps: 1e-6, Atol: 1e-5, Rtol: 1e-3}
}

// Report summarizes how far the analytic gradient is from the estimate.
type Report struct {
	Elements   int
	MaxAbsDiff float64
	MaxRelDiff float64
	WorstIndex int
	Passed     bool
}

// String implements fmt.Stringer.
func (r Report) String() string {
	return fmt.Sprintf("elements=%d max_abs=%.3g max_rel=%.3g worst=%d passed=%t",
		r.Elements, r.MaxAbsDiff, r.MaxRelDiff, r.WorstIndex, r.Passed)
}

// Numeric estimates d(sum(f(x)*weights))/dx by central differences.
// The input tensor is left unchanged.
func Numeric(f Func, input *tensor.RawTensor, weights []float64, eps float64) ([]float64, error) {
	if input.DType() != tensor.Float64 {
		return nil, fmt.Errorf("gradcheck: input must be float64, got %s: %w", input.DType(), tensor.ErrUnsupportedDType)
	}
	if eps <= 0 {
		return nil, fmt.Errorf("gradcheck: eps %v must be positive", eps)
	}

	probe := input.Clone()
	x := probe.AsFloat64()

	loss := func() (float64, error) {
		out, err := f(probe)
		if err != nil {
			return 0, err
		}
		values := out.Float64s()
		if len(values) != len(weights) {
			return 0, fmt.Errorf("gradcheck: output has %d elements, weights %d: %w",
				len(values), len(weights), tensor.ErrInvalidShape)
		}
		return floats.Dot(values, weights), nil
	}

	grad := make([]float64, len(x))
	for i := range x {
		orig := x[i]

		x[i] = orig + eps
		plus, err := loss()
		if err != nil {
			return nil, err
		}
		x[i] = orig - eps
		minus, err := loss()
		if err != nil {
			return nil, err
		}
		x[i] = orig

		grad[i] = (plus - minus) / (2 * eps)
	}
	return grad, nil
}

// Compare checks |analytic - numeric| <= atol + rtol*|numeric| element-wise.
func Compare(analytic, numeric []float64, atol, rtol float64) Report {
	r := Report{Elements: len(numeric), Passed: len(analytic) == len(numeric)}
	if !r.Passed || len(numeric) == 0 {
		return r
	}

	diff := make([]float64, len(numeric))
	floats.SubTo(diff, analytic, numeric)
	for i, d := range diff {
		d = math.Abs(d)
		diff[i] = d
		scale := math.Max(math.Abs(analytic[i]), math.Abs(numeric[i]))
		if scale > 0 {
			r.MaxRelDiff = math.Max(r.MaxRelDiff, d/scale)
		}
		if d > atol+rtol*math.Abs(numeric[i]) {
			r.Passed = false
		}
	}
	r.WorstIndex = floats.MaxIdx(diff)
	r.MaxAbsDiff = diff[r.WorstIndex]
	return r
}

// Check runs the forward function, draws the analytic gradient for the
// given output weights and compares it with the finite-difference estimate.
// A failed comparison returns the report together with ErrMismatch.
func Check(f Func, backward BackwardFunc, input, weights *tensor.RawTensor, opts Options) (Report, error) {
	if weights.DType() != tensor.Float64 {
		return Report{}, fmt.Errorf("gradcheck: weights must be float64, got %s: %w", weights.DType(), tensor.ErrUnsupportedDType)
	}

	gradInput, err := backward(weights)
	if err != nil {
		return Report{}, fmt.Errorf("gradcheck: backward: %w", err)
	}
	if !gradInput.Shape().Equal(input.Shape()) {
		return Report{}, fmt.Errorf("gradcheck: gradient shape %v != input shape %v: %w",
			gradInput.Shape(), input.Shape(), tensor.ErrInvalidShape)
	}

	numeric, err := Numeric(f, input, weights.AsFloat64(), opts.Eps)
	if err != nil {
		return Report{}, err
	}

	report := Compare(gradInput.Float64s(), numeric, opts.Atol, opts.Rtol)
	if !report.Passed {
		return report, fmt.Errorf("gradcheck: %s: %w", report, ErrMismatch)
	}
	return report, nil
}
