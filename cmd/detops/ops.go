package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/detops/internal/backend/cpu"
	"github.com/born-ml/detops/internal/gradcheck"
	"github.com/born-ml/detops/internal/roi"
	"github.com/born-ml/detops/internal/tensor"
)

// randomTensor fills a tensor with values drawn uniformly from [-1, 1).
func randomTensor(rng *rand.Rand, shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	values := make([]float64, shape.NumElements())
	for i := range values {
		values[i] = rng.Float64()*2 - 1
	}
	return castFloat64(values, shape, dtype)
}

func filled(shape tensor.Shape, dtype tensor.DataType, v float64) (*tensor.RawTensor, error) {
	values := make([]float64, shape.NumElements())
	for i := range values {
		values[i] = v
	}
	return castFloat64(values, shape, dtype)
}

func castFloat64(values []float64, shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	switch dtype {
	case tensor.Float64:
		return tensor.FromFloat64(values, shape)
	case tensor.Float32:
		narrow := make([]float32, len(values))
		for i, v := range values {
			narrow[i] = float32(v)
		}
		return tensor.FromFloat32(narrow, shape)
	default:
		return nil, fmt.Errorf("dtype %s: %w", dtype, tensor.ErrUnsupportedDType)
	}
}

// CornerPoolHandler runs one direction forward and backward and prints a
// timing table.
func CornerPoolHandler(cmd *cobra.Command, _ []string) error {
	shapeFlag, _ := cmd.Flags().GetString("shape")
	dirFlag, _ := cmd.Flags().GetString("direction")
	dtypeFlag, _ := cmd.Flags().GetString("dtype")
	seed, _ := cmd.Flags().GetUint64("seed")

	dims, err := parseInts(shapeFlag, 4)
	if err != nil {
		return fmt.Errorf("--shape: %w", err)
	}
	dir, err := tensor.ParseDirection(dirFlag)
	if err != nil {
		return fmt.Errorf("--direction: %w", err)
	}
	dtype, err := parseDType(dtypeFlag)
	if err != nil {
		return fmt.Errorf("--dtype: %w", err)
	}

	shape := tensor.Shape(dims)
	rng := rand.New(rand.NewPCG(seed, seed))
	input, err := randomTensor(rng, shape, dtype)
	if err != nil {
		return err
	}
	gradOutput, err := filled(shape, dtype, 1)
	if err != nil {
		return err
	}

	backend := cpu.New()
	slog.Debug("cornerpool", "shape", shape, "direction", dir, "dtype", dtype, "parallel", backend.Parallel())

	start := time.Now()
	output, err := backend.CornerPool(input, dir)
	if err != nil {
		return err
	}
	forward := time.Since(start)

	start = time.Now()
	gradInput, err := backend.CornerPoolBackward(input, gradOutput, dir)
	if err != nil {
		return err
	}
	backward := time.Since(start)

	table := newTable(cmd.OutOrStdout(), []string{"STAGE", "DIRECTION", "SHAPE", "TIME", "SUM"})
	table.AppendBulk([][]string{
		{"forward", dir.String(), fmt.Sprint(output.Shape()), forward.String(), fmt.Sprintf("%.6g", floats.Sum(output.Float64s()))},
		{"backward", dir.String(), fmt.Sprint(gradInput.Shape()), backward.String(), fmt.Sprintf("%.6g", floats.Sum(gradInput.Float64s()))},
	})
	table.Render()
	return nil
}

// defaultRegion covers the middle half of the image behind a feature map
// of the given height and width.
func defaultRegion(h, w int, scale float64) roi.Region {
	iw, ih := float64(w)/scale, float64(h)/scale
	return roi.Region{CenterX: iw / 2, CenterY: ih / 2, Width: iw / 2, Height: ih / 2, Angle: 0.3}
}

// RRoIAlignHandler pools the requested regions forward and backward and
// prints a timing table.
func RRoIAlignHandler(cmd *cobra.Command, _ []string) error {
	shapeFlag, _ := cmd.Flags().GetString("shape")
	roiFlags, _ := cmd.Flags().GetStringArray("roi")
	pooledFlag, _ := cmd.Flags().GetString("pooled")
	scale, _ := cmd.Flags().GetFloat64("scale")
	samples, _ := cmd.Flags().GetInt("samples")
	dtypeFlag, _ := cmd.Flags().GetString("dtype")
	seed, _ := cmd.Flags().GetUint64("seed")

	dims, err := parseInts(shapeFlag, 4)
	if err != nil {
		return fmt.Errorf("--shape: %w", err)
	}
	pooled, err := parseInts(pooledFlag, 2)
	if err != nil {
		return fmt.Errorf("--pooled: %w", err)
	}
	dtype, err := parseDType(dtypeFlag)
	if err != nil {
		return fmt.Errorf("--dtype: %w", err)
	}

	var rois *tensor.RawTensor
	if len(roiFlags) == 0 {
		rois, err = roi.ToTensor([]roi.Region{defaultRegion(dims[2], dims[3], scale)}, dtype)
	} else {
		rows := make([]float64, 0, len(roiFlags)*roi.Columns)
		for _, s := range roiFlags {
			v, err := parseFloats(s, roi.Columns)
			if err != nil {
				return fmt.Errorf("--roi: %w", err)
			}
			rows = append(rows, v...)
		}
		rois, err = castFloat64(rows, tensor.Shape{len(roiFlags), roi.Columns}, dtype)
	}
	if err != nil {
		return err
	}
	numRegions := rois.Shape()[0]

	cfg := tensor.RRoIAlignConfig{
		PooledHeight: pooled[0],
		PooledWidth:  pooled[1],
		SpatialScale: scale,
		SampleNum:    samples,
	}
	shape := tensor.Shape(dims)
	rng := rand.New(rand.NewPCG(seed, seed))
	features, err := randomTensor(rng, shape, dtype)
	if err != nil {
		return err
	}

	backend := cpu.New()
	slog.Debug("rroialign", "shape", shape, "regions", numRegions, "config", cfg, "parallel", backend.Parallel())

	start := time.Now()
	output, err := backend.RRoIAlign(features, rois, cfg)
	if err != nil {
		return err
	}
	forward := time.Since(start)

	gradOutput, err := filled(output.Shape(), dtype, 1)
	if err != nil {
		return err
	}
	start = time.Now()
	gradFeatures, err := backend.RRoIAlignBackward(gradOutput, rois, shape, cfg)
	if err != nil {
		return err
	}
	backward := time.Since(start)

	table := newTable(cmd.OutOrStdout(), []string{"STAGE", "REGIONS", "SHAPE", "TIME", "SUM"})
	table.AppendBulk([][]string{
		{"forward", fmt.Sprint(numRegions), fmt.Sprint(output.Shape()), forward.String(), fmt.Sprintf("%.6g", floats.Sum(output.Float64s()))},
		{"backward", fmt.Sprint(numRegions), fmt.Sprint(gradFeatures.Shape()), backward.String(), fmt.Sprintf("%.6g", floats.Sum(gradFeatures.Float64s()))},
	})
	table.Render()
	return nil
}

type gradCase struct {
	name     string
	input    *tensor.RawTensor
	outShape tensor.Shape
	forward  gradcheck.Func
	backward func(input, gradOutput *tensor.RawTensor) (*tensor.RawTensor, error)
}

func gradCases(backend *cpu.CPUBackend, rng *rand.Rand) ([]gradCase, error) {
	var cases []gradCase

	poolShape := tensor.Shape{2, 2, 5, 4}
	for _, dir := range []tensor.Direction{tensor.Top, tensor.Bottom, tensor.Left, tensor.Right} {
		input, err := randomTensor(rng, poolShape, tensor.Float64)
		if err != nil {
			return nil, err
		}
		cases = append(cases, gradCase{
			name:     "cornerpool/" + dir.String(),
			input:    input,
			outShape: poolShape,
			forward: func(x *tensor.RawTensor) (*tensor.RawTensor, error) {
				return backend.CornerPool(x, dir)
			},
			backward: func(x, g *tensor.RawTensor) (*tensor.RawTensor, error) {
				return backend.CornerPoolBackward(x, g, dir)
			},
		})
	}

	featShape := tensor.Shape{2, 3, 8, 8}
	cfg := tensor.RRoIAlignConfig{PooledHeight: 2, PooledWidth: 3, SpatialScale: 0.5, SampleNum: 2}
	rois, err := roi.ToTensor([]roi.Region{
		{BatchIndex: 0, CenterX: 7, CenterY: 8, Width: 9, Height: 6, Angle: 0.4},
		{BatchIndex: 1, CenterX: 9, CenterY: 6, Width: 5, Height: 11, Angle: -1.1},
		{BatchIndex: 1, CenterX: 1, CenterY: 14, Width: 8, Height: 8, Angle: 2.5},
	}, tensor.Float64)
	if err != nil {
		return nil, err
	}
	features, err := randomTensor(rng, featShape, tensor.Float64)
	if err != nil {
		return nil, err
	}
	cases = append(cases, gradCase{
		name:     "rroialign",
		input:    features,
		outShape: tensor.Shape{3, 3, cfg.PooledHeight, cfg.PooledWidth},
		forward: func(x *tensor.RawTensor) (*tensor.RawTensor, error) {
			return backend.RRoIAlign(x, rois, cfg)
		},
		backward: func(_, g *tensor.RawTensor) (*tensor.RawTensor, error) {
			return backend.RRoIAlignBackward(g, rois, featShape, cfg)
		},
	})
	return cases, nil
}

// GradCheckHandler runs finite-difference checks of every operator and
// fails when any of them disagrees with its analytic gradient.
func GradCheckHandler(cmd *cobra.Command, _ []string) error {
	opts := gradcheck.DefaultOptions()
	opts.Eps, _ = cmd.Flags().GetFloat64("eps")
	opts.Atol, _ = cmd.Flags().GetFloat64("atol")
	opts.Rtol, _ = cmd.Flags().GetFloat64("rtol")
	seed, _ := cmd.Flags().GetUint64("seed")

	rng := rand.New(rand.NewPCG(seed, seed))
	backend := cpu.New()
	cases, err := gradCases(backend, rng)
	if err != nil {
		return err
	}

	table := newTable(cmd.OutOrStdout(), []string{"OPERATOR", "ELEMENTS", "MAX ABS", "MAX REL", "RESULT"})
	failed := 0
	for _, c := range cases {
		weights, err := randomTensor(rng, c.outShape, tensor.Float64)
		if err != nil {
			return err
		}
		backward := func(g *tensor.RawTensor) (*tensor.RawTensor, error) {
			return c.backward(c.input, g)
		}

		report, err := gradcheck.Check(c.forward, backward, c.input, weights, opts)
		result := "PASS"
		switch {
		case errors.Is(err, gradcheck.ErrMismatch):
			result = "FAIL"
			failed++
		case err != nil:
			return fmt.Errorf("%s: %w", c.name, err)
		}
		slog.Debug("gradcheck", "operator", c.name, "report", report)

		table.Append([]string{
			c.name,
			fmt.Sprint(report.Elements),
			fmt.Sprintf("%.3g", report.MaxAbsDiff),
			fmt.Sprintf("%.3g", report.MaxRelDiff),
			result,
		})
	}
	table.Render()

	if failed > 0 {
		return fmt.Errorf("%d of %d gradient checks failed: %w", failed, len(cases), gradcheck.ErrMismatch)
	}
	return nil
}
