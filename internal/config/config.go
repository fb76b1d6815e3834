package config

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"gopower/internal/errors"
)

// Config represents the complete power analysis configuration
type Config struct {
	Simulation SimulationConfig
	Search     SearchConfig
}

// SimulationConfig holds Monte Carlo estimation settings
type SimulationConfig struct {
	NTrials int
	Alpha   float64
	Workers int
}

// SearchConfig holds sample size search settings
type SearchConfig struct {
	SizeMin        int
	SizeMax        int
	PowerThreshold float64
}

// Environment variables read by Load.
const (
	EnvNTrials        = "POWER_N_TRIALS"
	EnvAlpha          = "POWER_ALPHA"
	EnvWorkers        = "POWER_WORKERS"
	EnvPowerThreshold = "POWER_THRESHOLD"
	EnvSizeMin        = "POWER_SIZE_MIN"
	EnvSizeMax        = "POWER_SIZE_MAX"
)

// Load reads configuration from environment variables and validates it.
// Unset variables take their defaults; malformed ones are rejected.
func Load() (*Config, error) {
	config := &Config{}

	simulation, err := loadSimulationConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load simulation configuration")
	}
	config.Simulation = *simulation

	search, err := loadSearchConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load search configuration")
	}
	config.Search = *search

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadSimulationConfig() (*SimulationConfig, error) {
	nTrials, err := getEnvIntOrDefault(EnvNTrials, 1000)
	if err != nil {
		return nil, err
	}
	alpha, err := getEnvFloatOrDefault(EnvAlpha, 0.05)
	if err != nil {
		return nil, err
	}
	workers, err := getEnvIntOrDefault(EnvWorkers, 1)
	if err != nil {
		return nil, err
	}

	return &SimulationConfig{
		NTrials: nTrials,
		Alpha:   alpha,
		Workers: workers,
	}, nil
}

func loadSearchConfig() (*SearchConfig, error) {
	sizeMin, err := getEnvIntOrDefault(EnvSizeMin, 2)
	if err != nil {
		return nil, err
	}
	sizeMax, err := getEnvIntOrDefault(EnvSizeMax, 1000)
	if err != nil {
		return nil, err
	}
	threshold, err := getEnvFloatOrDefault(EnvPowerThreshold, 0.80)
	if err != nil {
		return nil, err
	}

	return &SearchConfig{
		SizeMin:        sizeMin,
		SizeMax:        sizeMax,
		PowerThreshold: threshold,
	}, nil
}

func validateConfig(config *Config) error {
	sim, search := config.Simulation, config.Search

	if sim.NTrials <= 0 {
		return errors.ConfigInvalid(fmt.Sprintf("%s must be positive, got %d", EnvNTrials, sim.NTrials))
	}
	if !inOpenUnitInterval(sim.Alpha) {
		return errors.ConfigInvalid(fmt.Sprintf("%s must lie in (0,1), got %v", EnvAlpha, sim.Alpha))
	}
	if sim.Workers < 0 {
		return errors.ConfigInvalid(fmt.Sprintf("%s must not be negative, got %d", EnvWorkers, sim.Workers))
	}
	if search.SizeMin <= 0 {
		return errors.ConfigInvalid(fmt.Sprintf("%s must be positive, got %d", EnvSizeMin, search.SizeMin))
	}
	if search.SizeMax < search.SizeMin {
		return errors.ConfigInvalid(fmt.Sprintf("%s (%d) must be >= %s (%d)", EnvSizeMax, search.SizeMax, EnvSizeMin, search.SizeMin))
	}
	if !inOpenUnitInterval(search.PowerThreshold) {
		return errors.ConfigInvalid(fmt.Sprintf("%s must lie in (0,1), got %v", EnvPowerThreshold, search.PowerThreshold))
	}
	return nil
}

func inOpenUnitInterval(v float64) bool {
	return !math.IsNaN(v) && v > 0 && v < 1
}

// Helper functions for environment variable parsing
func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s is not an integer: %q", key, value))
	}
	return intValue, nil
}

func getEnvFloatOrDefault(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s is not a number: %q", key, value))
	}
	return floatValue, nil
}
