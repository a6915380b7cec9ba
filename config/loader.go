package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix = "FAKECHAT_"
)

// LoadConfig reads a YAML configuration file and unmarshals it into the specified type.
// T must be a struct type that can be unmarshaled from YAML.
func LoadConfig[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg T
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// LoadScenario reads a scenario file, fills in defaults and validates it.
func LoadScenario(path string) (*Scenario, error) {
	logger := log.With().Str("com", "config-loader").Logger()

	sc, err := LoadConfig[Scenario](path)
	if err != nil {
		return nil, err
	}

	sc.ApplyDefaults()
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario validation failed: %w", err)
	}

	logger.Info().
		Str("name", sc.Name).
		Str("kind", sc.Kind).
		Int("steps", len(sc.Steps)).
		Msg("loaded scenario")

	return sc, nil
}
