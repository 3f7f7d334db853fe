package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/detops/internal/envconfig"
	"github.com/born-ml/detops/internal/tensor"
)

const version = "v0.1.0-dev"

func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI builds the root command with every subcommand attached.
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "detops",
		Short:         "Corner pooling and rotated RoI align operators",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("version"); v {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run:   versionHandler,
	}

	cornerPoolCmd := &cobra.Command{
		Use:   "cornerpool",
		Short: "Run corner pooling forward and backward on random data",
		Args:  cobra.NoArgs,
		RunE:  CornerPoolHandler,
	}
	cornerPoolCmd.Flags().String("shape", "2,16,64,64", "Input shape as N,C,H,W")
	cornerPoolCmd.Flags().String("direction", "top", "Pooling direction: top, bottom, left or right")
	cornerPoolCmd.Flags().String("dtype", "float32", "Element type: float32 or float64")
	cornerPoolCmd.Flags().Uint64("seed", 1, "Random seed")

	rroiAlignCmd := &cobra.Command{
		Use:   "rroialign",
		Short: "Run rotated RoI align forward and backward on random data",
		Args:  cobra.NoArgs,
		RunE:  RRoIAlignHandler,
	}
	rroiAlignCmd.Flags().String("shape", "2,16,64,64", "Feature map shape as N,C,H,W")
	rroiAlignCmd.Flags().StringArray("roi", nil, "Region as b,cx,cy,w,h,angle in image coordinates (repeatable; defaults to one centered region)")
	rroiAlignCmd.Flags().String("pooled", "7,7", "Output bins as H,W")
	rroiAlignCmd.Flags().Float64("scale", 0.25, "Spatial scale from image to feature map")
	rroiAlignCmd.Flags().Int("samples", 2, "Samples per bin along each axis (0 derives it from the bin size)")
	rroiAlignCmd.Flags().String("dtype", "float32", "Element type: float32 or float64")
	rroiAlignCmd.Flags().Uint64("seed", 1, "Random seed")

	gradCheckCmd := &cobra.Command{
		Use:   "gradcheck",
		Short: "Compare analytic gradients against finite differences",
		Args:  cobra.NoArgs,
		RunE:  GradCheckHandler,
	}
	gradCheckCmd.Flags().Float64("eps", 1e-6, "Finite-difference step")
	gradCheckCmd.Flags().Float64("atol", 1e-5, "Absolute tolerance")
	gradCheckCmd.Flags().Float64("rtol", 1e-3, "Relative tolerance")
	gradCheckCmd.Flags().Uint64("seed", 1, "Random seed")

	envVars := envconfig.AsMap()
	kernelEnvs := []envconfig.EnvVar{
		envVars["DETOPS_DEBUG"],
		envVars["DETOPS_NUM_THREADS"],
		envVars["DETOPS_MIN_CHUNK"],
		envVars["DETOPS_SEQUENTIAL"],
	}
	for _, cmd := range []*cobra.Command{cornerPoolCmd, rroiAlignCmd, gradCheckCmd} {
		appendEnvDocs(cmd, kernelEnvs)
	}

	rootCmd.AddCommand(
		versionCmd,
		cornerPoolCmd,
		rroiAlignCmd,
		gradCheckCmd,
	)

	return rootCmd
}

func versionHandler(cmd *cobra.Command, _ []string) {
	fmt.Fprintf(cmd.OutOrStdout(), "detops version %s\n", version)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// parseInts parses a comma-separated list of exactly n non-negative integers.
func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated values, got %q", n, s)
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", s, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("negative value %d in %q", v, s)
		}
		out[i] = v
	}
	return out, nil
}

// parseFloats parses a comma-separated list of exactly n floats.
func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated values, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseDType(s string) (tensor.DataType, error) {
	switch strings.ToLower(s) {
	case "float32", "f32":
		return tensor.Float32, nil
	case "float64", "f64":
		return tensor.Float64, nil
	default:
		return 0, fmt.Errorf("dtype %q: %w", s, tensor.ErrUnsupportedDType)
	}
}
