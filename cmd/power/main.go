package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"gopower/app"
	"gopower/domain/power"
	"gopower/internal"
	"gopower/internal/config"
	"gopower/internal/metrics"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "power",
		Short: "Monte Carlo power estimation and sample size search",
		Long: `Estimate statistical power by simulation, or search for the smallest
sample size that reaches a target power.

Defaults come from POWER_N_TRIALS, POWER_ALPHA, POWER_WORKERS,
POWER_THRESHOLD, POWER_SIZE_MIN and POWER_SIZE_MAX (a .env file is read first).
LOG_LEVEL (ERROR, WARN, INFO, DEBUG) controls search logging on stderr.

` + scenarioHelp(),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newEstimateCmd(appConfig),
		newSearchCmd(appConfig),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	scenario string
	params   scenarioParams
	opts     app.EstimateOptions
	json     bool
}

func (f *commonFlags) register(cmd *cobra.Command, appConfig *config.Config) {
	cmd.Flags().StringVar(&f.scenario, "scenario", "ttest", "Scenario to simulate")
	cmd.Flags().Float64Var(&f.params.Effect, "effect", 0.5, "Standardized effect size")
	cmd.Flags().Float64Var(&f.params.SigmaRatio, "sigma-ratio", 2.0, "Treatment/control standard deviation ratio (welch)")
	cmd.Flags().Float64Var(&f.params.Correlation, "correlation", 0.5, "Within-pair correlation (paired)")
	cmd.Flags().Float64Var(&f.params.Scale, "scale", 1.0, "Laplace scale of pair differences (wilcoxon)")
	cmd.Flags().IntVar(&f.opts.NTrials, "trials", appConfig.Simulation.NTrials, "Monte Carlo trials per sample size")
	cmd.Flags().Float64Var(&f.opts.Alpha, "alpha", appConfig.Simulation.Alpha, "Significance level")
	cmd.Flags().IntVar(&f.opts.Workers, "workers", appConfig.Simulation.Workers, "Concurrent trials")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print the result as JSON")
}

type estimateOutput struct {
	Scenario   string  `json:"scenario"`
	SampleSize int     `json:"sample_size"`
	Power      float64 `json:"power"`
	NTrials    int     `json:"n_trials"`
	Alpha      float64 `json:"alpha"`
}

func newEstimateCmd(appConfig *config.Config) *cobra.Command {
	var flags commonFlags
	var sampleSize int

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate power at one sample size",
		Long: `Estimate power at a single sample size by simulation.

Example: power estimate --scenario ttest --effect 0.8 --n 20 --trials 5000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := buildScenario(flags.scenario, flags.params)
			if err != nil {
				return err
			}

			p, err := scenario.estimate(cmd.Context(), sampleSize, flags.opts)
			if err != nil {
				return err
			}

			out := estimateOutput{
				Scenario:   scenario.Name,
				SampleSize: sampleSize,
				Power:      p.Float64(),
				NTrials:    flags.opts.NTrials,
				Alpha:      flags.opts.Alpha,
			}
			if flags.json {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scenario=%s sample_size=%d power=%.4f (trials=%d alpha=%g)\n",
				out.Scenario, out.SampleSize, out.Power, out.NTrials, out.Alpha)
			return nil
		},
	}

	flags.register(cmd, appConfig)
	cmd.Flags().IntVar(&sampleSize, "n", 20, "Sample size per group")

	return cmd
}

type searchOutput struct {
	Scenario       string             `json:"scenario"`
	SampleSize     int                `json:"sample_size"`
	Power          float64            `json:"power"`
	PowerThreshold float64            `json:"power_threshold"`
	Warnings       []power.Warning    `json:"warnings,omitempty"`
	Trace          []power.Evaluation `json:"trace"`
}

func newSearchCmd(appConfig *config.Config) *cobra.Command {
	var flags commonFlags
	var sizeMin, sizeMax int
	var threshold float64
	var showMetrics bool

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find the minimum sample size reaching a power threshold",
		Long: `Bisect [min, max] for the smallest sample size whose estimated power
meets the threshold. An unreachable threshold is reported as a warning
together with the power at max.

Example: power search --scenario paired --effect 0.4 --min 5 --max 200 --threshold 0.9`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := buildScenario(flags.scenario, flags.params)
			if err != nil {
				return err
			}

			searchCfg := app.SearchConfig{
				SizeMin:        sizeMin,
				SizeMax:        sizeMax,
				PowerThreshold: threshold,
				Estimate:       flags.opts,
				Logger:         internal.NewEnvLogger(cmd.ErrOrStderr()),
			}
			registry := prometheus.NewRegistry()
			if showMetrics {
				searchCfg.Observer = metrics.NewSearchMetrics(registry)
			}

			result, err := scenario.search(cmd.Context(), searchCfg)
			if err != nil {
				return err
			}

			out := searchOutput{
				Scenario:       scenario.Name,
				SampleSize:     result.SampleSize,
				Power:          result.Power.Float64(),
				PowerThreshold: threshold,
				Warnings:       result.Warnings,
				Trace:          result.Trace,
			}
			if flags.json {
				err = writeJSON(cmd.OutOrStdout(), out)
			} else {
				printSearch(cmd.OutOrStdout(), out)
			}
			if err != nil || !showMetrics {
				return err
			}
			return writeMetrics(cmd.OutOrStdout(), registry)
		},
	}

	flags.register(cmd, appConfig)
	cmd.Flags().IntVar(&sizeMin, "min", appConfig.Search.SizeMin, "Smallest sample size to consider")
	cmd.Flags().IntVar(&sizeMax, "max", appConfig.Search.SizeMax, "Largest sample size to consider")
	cmd.Flags().Float64Var(&threshold, "threshold", appConfig.Search.PowerThreshold, "Target power")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print search metrics in Prometheus text format")

	return cmd
}

func printSearch(w io.Writer, out searchOutput) {
	fmt.Fprintf(w, "scenario=%s sample_size=%d power=%.4f threshold=%.2f\n",
		out.Scenario, out.SampleSize, out.Power, out.PowerThreshold)
	for _, warning := range out.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	for i, ev := range out.Trace {
		fmt.Fprintf(w, "  %2d. n=%-6d power=%.4f\n", i+1, ev.SampleSize, ev.Power.Float64())
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeMetrics(w io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return err
		}
	}
	return nil
}
