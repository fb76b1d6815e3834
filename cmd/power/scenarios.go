package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gopower/adapters/stats/scenarios"
	"gopower/app"
	"gopower/domain/power"
)

// scenarioParams are the flag values a scenario may read.
type scenarioParams struct {
	Effect      float64
	SigmaRatio  float64
	Correlation float64
	Scale       float64
}

// boundScenario fixes a generator and p-value function behind
// non-generic entry points the commands can call.
type boundScenario struct {
	Name     string
	estimate func(ctx context.Context, sampleSize int, opts app.EstimateOptions) (power.Estimate, error)
	search   func(ctx context.Context, cfg app.SearchConfig) (*power.SearchResult, error)
}

func bind[D any](name string, generate power.Generator[D], pValue power.PValueFunc[D]) *boundScenario {
	return &boundScenario{
		Name: name,
		estimate: func(ctx context.Context, sampleSize int, opts app.EstimateOptions) (power.Estimate, error) {
			return app.EstimatePower(ctx, sampleSize, generate, pValue, opts)
		},
		search: func(ctx context.Context, cfg app.SearchConfig) (*power.SearchResult, error) {
			return app.FindMinSampleSize(ctx, generate, pValue, cfg)
		},
	}
}

type scenarioFactory struct {
	describe string
	build    func(params scenarioParams) (*boundScenario, error)
}

var scenarioFactories = map[string]scenarioFactory{
	"ttest": {
		describe: "two-sample Student t-test, normal groups shifted by --effect",
		build: func(params scenarioParams) (*boundScenario, error) {
			return bind("ttest", scenarios.NormalShift(params.Effect), scenarios.StudentTTest), nil
		},
	},
	"welch": {
		describe: "Welch t-test, treatment sd scaled by --sigma-ratio",
		build: func(params scenarioParams) (*boundScenario, error) {
			gen, err := scenarios.UnequalVarianceShift(params.Effect, params.SigmaRatio)
			if err != nil {
				return nil, err
			}
			return bind("welch", gen, scenarios.WelchTTest), nil
		},
	},
	"paired": {
		describe: "paired t-test on pairs with --correlation",
		build: func(params scenarioParams) (*boundScenario, error) {
			gen, err := scenarios.CorrelatedPairs(params.Effect, params.Correlation)
			if err != nil {
				return nil, err
			}
			return bind("paired", gen, scenarios.PairedTTest), nil
		},
	},
	"wilcoxon": {
		describe: "Wilcoxon signed-rank test on Laplace differences with --scale",
		build: func(params scenarioParams) (*boundScenario, error) {
			gen, err := scenarios.LaplacePairs(params.Effect, params.Scale)
			if err != nil {
				return nil, err
			}
			return bind("wilcoxon", gen, scenarios.WilcoxonSignedRank), nil
		},
	},
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarioFactories))
	for name := range scenarioFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func scenarioHelp() string {
	var b strings.Builder
	b.WriteString("Scenarios:\n")
	for _, name := range scenarioNames() {
		fmt.Fprintf(&b, "  %-9s %s\n", name, scenarioFactories[name].describe)
	}
	return b.String()
}

func buildScenario(name string, params scenarioParams) (*boundScenario, error) {
	factory, ok := scenarioFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q (choose from %s)", name, strings.Join(scenarioNames(), ", "))
	}
	scenario, err := factory.build(params)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}
	return scenario, nil
}
