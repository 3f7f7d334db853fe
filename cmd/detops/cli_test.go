package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/detops/internal/roi"
	"github.com/born-ml/detops/internal/tensor"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DETOPS_NUM_THREADS", "2")
	var out bytes.Buffer
	cmd := NewCLI()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "detops version "+version+"\n", out)

	out, err = runCLI(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestCornerPoolCommand(t *testing.T) {
	out, err := runCLI(t, "cornerpool", "--shape", "1,2,6,5", "--direction", "left", "--dtype", "float64")
	require.NoError(t, err)
	assert.Contains(t, out, "forward")
	assert.Contains(t, out, "backward")
	assert.Contains(t, out, "left")
	// A ones gradient routes exactly one unit per output element.
	assert.Contains(t, out, "60")
}

func TestCornerPoolCommand_BadFlags(t *testing.T) {
	_, err := runCLI(t, "cornerpool", "--shape", "1,2,3")
	require.Error(t, err)

	_, err = runCLI(t, "cornerpool", "--direction", "up")
	require.Error(t, err)

	_, err = runCLI(t, "cornerpool", "--dtype", "int8")
	require.ErrorIs(t, err, tensor.ErrUnsupportedDType)
}

func TestRRoIAlignCommand(t *testing.T) {
	out, err := runCLI(t, "rroialign",
		"--shape", "2,3,16,16",
		"--roi", "0,20,24,16,12,0.5",
		"--roi", "1,32,32,40,20,-0.2",
		"--pooled", "3,4",
		"--scale", "0.5",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "[2 3 3 4]")
	assert.Contains(t, out, "[2 3 16 16]")
}

func TestRRoIAlignCommand_DefaultRegion(t *testing.T) {
	out, err := runCLI(t, "rroialign", "--shape", "1,1,8,8", "--pooled", "2,2", "--samples", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "[1 1 2 2]")
}

func TestRRoIAlignCommand_InvalidRegion(t *testing.T) {
	_, err := runCLI(t, "rroialign", "--shape", "1,1,8,8", "--roi", "3,4,4,2,2,0")
	require.ErrorIs(t, err, roi.ErrInvalidRegion)

	_, err = runCLI(t, "rroialign", "--roi", "0,1,2")
	require.Error(t, err)
}

func TestGradCheckCommand(t *testing.T) {
	out, err := runCLI(t, "gradcheck")
	require.NoError(t, err)
	for _, name := range []string{"cornerpool/top", "cornerpool/bottom", "cornerpool/left", "cornerpool/right", "rroialign"} {
		assert.Contains(t, out, name)
	}
	assert.NotContains(t, out, "FAIL")
}

func TestParseInts(t *testing.T) {
	got, err := parseInts(" 1, 2,3 ,4", 4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, got)

	_, err = parseInts("1,-2", 2)
	require.Error(t, err)
	_, err = parseInts("1,x", 2)
	require.Error(t, err)
}

func TestDefaultRegion(t *testing.T) {
	r := defaultRegion(16, 32, 0.25)
	assert.Equal(t, roi.Region{CenterX: 64, CenterY: 32, Width: 64, Height: 32, Angle: 0.3}, r)
}
