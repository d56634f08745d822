package encoder

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads and validates an EncoderConfig from a YAML file.
func LoadConfig(path string) (EncoderConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return EncoderConfig{}, fmt.Errorf("encoder: read config: %w", err)
	}
	var cfg EncoderConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return EncoderConfig{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return EncoderConfig{}, err
	}
	return cfg, nil
}

// SaveConfig writes the config as a YAML document.
func SaveConfig(path string, cfg EncoderConfig) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoder: marshal config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("encoder: write config: %w", err)
	}
	return nil
}
