package cpu

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/detops/internal/parallel"
	"github.com/born-ml/detops/internal/tensor"
)

var allDirections = []tensor.Direction{tensor.Top, tensor.Bottom, tensor.Left, tensor.Right}

// window returns the scan-axis positions whose maximum output (lane, pos)
// takes, ordered from the far edge toward pos.
func window(dir tensor.Direction, length, pos int) []int {
	var out []int
	if dir.Reversed() {
		for i := length - 1; i >= pos; i-- {
			out = append(out, i)
		}
		return out
	}
	for i := 0; i <= pos; i++ {
		out = append(out, i)
	}
	return out
}

// bruteForceCornerPool computes the forward result and the gradient routing
// by scanning each window directly.
func bruteForceCornerPool(in, gradOut []float64, shape tensor.Shape, dir tensor.Direction) (out, gradIn []float64) {
	N, C, H, W := shape[0], shape[1], shape[2], shape[3]
	out = make([]float64, len(in))
	gradIn = make([]float64, len(in))

	at := func(n, c, lane, pos int) int {
		if dir.Vertical() {
			return ((n*C+c)*H+pos)*W + lane
		}
		return ((n*C+c)*H+lane)*W + pos
	}
	lanes, length := W, H
	if !dir.Vertical() {
		lanes, length = H, W
	}

	for n := 0; n < N; n++ {
		for c := 0; c < C; c++ {
			for lane := 0; lane < lanes; lane++ {
				for pos := 0; pos < length; pos++ {
					best := -1
					for _, i := range window(dir, length, pos) {
						// Strict > keeps the first maximum met from the far edge.
						if best < 0 || in[at(n, c, lane, i)] > in[at(n, c, lane, best)] {
							best = i
						}
					}
					out[at(n, c, lane, pos)] = in[at(n, c, lane, best)]
					gradIn[at(n, c, lane, best)] += gradOut[at(n, c, lane, pos)]
				}
			}
		}
	}
	return out, gradIn
}

// TestCornerPool_TopBasic tests the running maximum on a single column.
func TestCornerPool_TopBasic(t *testing.T) {
	backend := newTestBackend()

	input, err := tensor.FromFloat32([]float32{1, 4, 2, 3}, tensor.Shape{1, 1, 4, 1})
	require.NoError(t, err)

	output, err := backend.CornerPool(input, tensor.Top)
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{1, 1, 4, 1}, output.Shape())
	assert.Equal(t, []float32{4, 4, 3, 3}, output.AsFloat32())
	assert.Equal(t, []float32{1, 4, 2, 3}, input.AsFloat32(), "input must not be modified")
}

// TestCornerPool_Directions tests every direction on one 3x3 plane.
func TestCornerPool_Directions(t *testing.T) {
	backend := newTestBackend()

	// [[1, 9, 2],
	//  [7, 3, 8],
	//  [4, 6, 5]]
	input, err := tensor.FromFloat32([]float32{1, 9, 2, 7, 3, 8, 4, 6, 5}, tensor.Shape{1, 1, 3, 3})
	require.NoError(t, err)

	expected := map[tensor.Direction][]float32{
		tensor.Top:    {7, 9, 8, 7, 6, 8, 4, 6, 5},
		tensor.Bottom: {1, 9, 2, 7, 9, 8, 7, 9, 8},
		tensor.Left:   {9, 9, 2, 8, 8, 8, 6, 6, 5},
		tensor.Right:  {1, 9, 9, 7, 7, 8, 4, 6, 6},
	}

	for dir, want := range expected {
		t.Run(dir.String(), func(t *testing.T) {
			output, err := backend.CornerPool(input, dir)
			require.NoError(t, err)
			assert.Equal(t, want, output.AsFloat32())
		})
	}
}

// TestCornerPool_MatchesBruteForce checks output[h] == max(input[h:]) (and
// its mirrors) on shapes whose scan length is not a power of two.
func TestCornerPool_MatchesBruteForce(t *testing.T) {
	backend := newTestBackend()
	rng := rand.New(rand.NewPCG(1, 2))

	for _, shape := range []tensor.Shape{{2, 3, 7, 5}, {1, 2, 1, 9}, {1, 1, 16, 1}, {3, 1, 5, 13}} {
		input := randomRaw(t, rng, shape, tensor.Float64)
		for _, dir := range allDirections {
			t.Run(fmt.Sprintf("%v/%s", shape, dir), func(t *testing.T) {
				output, err := backend.CornerPool(input, dir)
				require.NoError(t, err)

				want, _ := bruteForceCornerPool(input.AsFloat64(), make([]float64, shape.NumElements()), shape, dir)
				if diff := cmp.Diff(want, output.AsFloat64()); diff != "" {
					t.Errorf("CornerPool mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestCornerPool_Float32MatchesFloat64(t *testing.T) {
	backend := newTestBackend()
	rng := rand.New(rand.NewPCG(3, 4))

	in64 := randomRaw(t, rng, tensor.Shape{2, 2, 6, 6}, tensor.Float64)
	narrow := make([]float32, in64.NumElements())
	for i, v := range in64.AsFloat64() {
		narrow[i] = float32(v)
	}
	in32, err := tensor.FromFloat32(narrow, in64.Shape())
	require.NoError(t, err)

	out64, err := backend.CornerPool(in64, tensor.Left)
	require.NoError(t, err)
	out32, err := backend.CornerPool(in32, tensor.Left)
	require.NoError(t, err)

	assert.InDeltaSlice(t, out64.AsFloat64(), out32.Float64s(), 1e-6)
}

// TestCornerPool_SequentialMatchesParallel checks that fan-out does not
// change results.
func TestCornerPool_SequentialMatchesParallel(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	input := randomRaw(t, rng, tensor.Shape{4, 8, 9, 7}, tensor.Float32)
	gradOut := randomRaw(t, rng, input.Shape(), tensor.Float32)

	seq := NewWithConfig(parallel.Sequential())
	par := newTestBackend()

	for _, dir := range allDirections {
		a, err := seq.CornerPool(input, dir)
		require.NoError(t, err)
		b, err := par.CornerPool(input, dir)
		require.NoError(t, err)
		assert.Equal(t, a.AsFloat32(), b.AsFloat32(), dir.String())

		ga, err := seq.CornerPoolBackward(input, gradOut, dir)
		require.NoError(t, err)
		gb, err := par.CornerPoolBackward(input, gradOut, dir)
		require.NoError(t, err)
		assert.Equal(t, ga.AsFloat32(), gb.AsFloat32(), dir.String())
	}
}

func TestCornerPool_Errors(t *testing.T) {
	backend := newTestBackend()

	rank3, err := tensor.NewRaw(tensor.Shape{1, 4, 4}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	_, err = backend.CornerPool(rank3, tensor.Top)
	assert.ErrorIs(t, err, tensor.ErrInvalidShape)

	input, err := tensor.NewRaw(tensor.Shape{1, 1, 4, 4}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	_, err = backend.CornerPool(input, tensor.Direction(42))
	assert.ErrorIs(t, err, tensor.ErrInvalidConfig)
}

func TestCornerPool_EmptyAxis(t *testing.T) {
	backend := newTestBackend()

	input, err := tensor.NewRaw(tensor.Shape{1, 2, 0, 3}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)

	for _, dir := range allDirections {
		output, err := backend.CornerPool(input, dir)
		require.NoError(t, err)
		assert.Equal(t, 0, output.NumElements())

		grad, err := backend.CornerPoolBackward(input, output, dir)
		require.NoError(t, err)
		assert.Equal(t, input.Shape(), grad.Shape())
	}
}

// TestCornerPoolBackward_Example routes a column gradient onto its maxima.
func TestCornerPoolBackward_Example(t *testing.T) {
	backend := newTestBackend()

	input, err := tensor.FromFloat32([]float32{1, 4, 2, 3}, tensor.Shape{1, 1, 4, 1})
	require.NoError(t, err)
	gradOut, err := tensor.FromFloat32([]float32{1, 1, 1, 1}, tensor.Shape{1, 1, 4, 1})
	require.NoError(t, err)

	gradIn, err := backend.CornerPoolBackward(input, gradOut, tensor.Top)
	require.NoError(t, err)

	assert.Equal(t, []float32{0, 2, 0, 2}, gradIn.AsFloat32())
}

// TestCornerPoolBackward_TieKeepsFirstFound checks that an equal value met
// later in the walk does not take over the running maximum.
func TestCornerPoolBackward_TieKeepsFirstFound(t *testing.T) {
	backend := newTestBackend()

	ones, err := tensor.FromFloat32([]float32{1, 1, 1}, tensor.Shape{1, 1, 3, 1})
	require.NoError(t, err)

	cases := []struct {
		name  string
		dir   tensor.Direction
		input []float32
		want  []float32
	}{
		// The Bottom walk starts at row 0: [5, 5, 3] in walk order, all three
		// units land on index 0.
		{"bottom 5,5,3", tensor.Bottom, []float32{5, 5, 3}, []float32{3, 0, 0}},
		// The same values in Top walk order (the walk starts at the last row).
		{"top 3,5,5", tensor.Top, []float32{3, 5, 5}, []float32{0, 0, 3}},
		// Row 2 only sees itself; rows 1 and 0 share the maximum at row 1.
		{"top 5,5,3", tensor.Top, []float32{5, 5, 3}, []float32{0, 2, 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input, err := tensor.FromFloat32(tc.input, tensor.Shape{1, 1, 3, 1})
			require.NoError(t, err)

			gradIn, err := backend.CornerPoolBackward(input, ones, tc.dir)
			require.NoError(t, err)
			assert.Equal(t, tc.want, gradIn.AsFloat32())
		})
	}
}

// TestCornerPoolBackward_MatchesBruteForce uses small integer inputs so ties
// are frequent.
func TestCornerPoolBackward_MatchesBruteForce(t *testing.T) {
	backend := newTestBackend()
	rng := rand.New(rand.NewPCG(7, 8))

	shape := tensor.Shape{2, 2, 6, 5}
	values := make([]float64, shape.NumElements())
	for i := range values {
		values[i] = float64(rng.IntN(4))
	}
	input, err := tensor.FromFloat64(values, shape)
	require.NoError(t, err)
	gradOut := randomRaw(t, rng, shape, tensor.Float64)

	for _, dir := range allDirections {
		t.Run(dir.String(), func(t *testing.T) {
			gradIn, err := backend.CornerPoolBackward(input, gradOut, dir)
			require.NoError(t, err)

			_, want := bruteForceCornerPool(values, gradOut.AsFloat64(), shape, dir)
			assert.InDeltaSlice(t, want, gradIn.AsFloat64(), 1e-12)
		})
	}
}

// TestCornerPoolBackward_GradientSumLaw checks that every unit of gradient
// is routed somewhere and none is created.
func TestCornerPoolBackward_GradientSumLaw(t *testing.T) {
	backend := newTestBackend()
	rng := rand.New(rand.NewPCG(9, 10))

	input := randomRaw(t, rng, tensor.Shape{2, 3, 8, 11}, tensor.Float64)
	gradOut := randomRaw(t, rng, input.Shape(), tensor.Float64)

	for _, dir := range allDirections {
		gradIn, err := backend.CornerPoolBackward(input, gradOut, dir)
		require.NoError(t, err)
		assert.InDelta(t, floats.Sum(gradOut.AsFloat64()), floats.Sum(gradIn.AsFloat64()), 1e-9, dir.String())
	}
}

func TestCornerPoolBackward_Errors(t *testing.T) {
	backend := newTestBackend()

	input, err := tensor.NewRaw(tensor.Shape{1, 1, 4, 4}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	wrongShape, err := tensor.NewRaw(tensor.Shape{1, 1, 4, 3}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	wrongType, err := tensor.NewRaw(tensor.Shape{1, 1, 4, 4}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)

	_, err = backend.CornerPoolBackward(input, wrongShape, tensor.Top)
	assert.ErrorIs(t, err, tensor.ErrInvalidShape)

	_, err = backend.CornerPoolBackward(input, wrongType, tensor.Top)
	assert.ErrorIs(t, err, tensor.ErrUnsupportedDType)
}

func BenchmarkCornerPool(b *testing.B) {
	backend := New()
	input, _ := tensor.NewRaw(tensor.Shape{4, 64, 128, 128}, tensor.Float32, tensor.CPU)
	data := input.AsFloat32()
	for i := range data {
		data[i] = float32(i % 97)
	}

	for _, dir := range []tensor.Direction{tensor.Top, tensor.Left} {
		b.Run(dir.String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, _ = backend.CornerPool(input, dir)
			}
		})
	}
}
