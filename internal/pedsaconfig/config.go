// Package pedsaconfig loads CLI-facing engine defaults from a YAML file
// and the process environment/.env, the way the teacher's cmd/bud/main.go
// loads its own .env via godotenv and internal/reflex/engine.go loads its
// rule tables via yaml.v3. The engine library itself takes explicit
// constructor arguments and never reads this package (spec §9: no global
// mutable state) — this is purely the cmd/pedsa CLI's config surface.
package pedsaconfig

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vthunder/pedsa/internal/pedsalog"
)

// Config holds the defaults a host CLI uses to drive the engine façade.
type Config struct {
	ModelPath        string  `yaml:"model_path"`
	DefaultChaosLevel float64 `yaml:"default_chaos_level"`
	DecayRate        float64 `yaml:"decay_rate"`
	PruneThresholdRatio float64 `yaml:"prune_threshold_ratio"`
}

// Default returns the built-in defaults used when no config file is
// present.
func Default() Config {
	return Config{
		ModelPath:           "",
		DefaultChaosLevel:   0.0,
		DecayRate:           0.99,
		PruneThresholdRatio: 0.05,
	}
}

// Load reads .env into the process environment (if present, ignoring a
// missing file exactly as the teacher's main.go does with godotenv.Load),
// then loads path as YAML over the built-in defaults. A missing or empty
// path is not an error — callers get Default().
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		pedsalog.Debug("pedsaconfig", "no .env file found, continuing with process environment")
	}

	cfg := Default()
	if path == "" {
		return applyEnvOverrides(cfg), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnvOverrides(cfg), nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return applyEnvOverrides(cfg), nil
}

// applyEnvOverrides lets PEDSA_MODEL_PATH / PEDSA_CHAOS_LEVEL override the
// file-sourced config, mirroring the teacher's pattern of letting process
// env win over config-file values for deployment-time overrides.
func applyEnvOverrides(cfg Config) Config {
	if v := os.Getenv("PEDSA_MODEL_PATH"); v != "" {
		cfg.ModelPath = v
	}
	if v := os.Getenv("PEDSA_CHAOS_LEVEL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.DefaultChaosLevel = f
		}
	}
	return cfg
}
