package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

//go:embed defaults.yaml
var defaultSettingsYAML []byte

// DefaultSettings returns the settings used until a Manager saves their own.
func DefaultSettings() (models.Settings, error) {
	return ParseSettings(defaultSettingsYAML)
}

// ParseSettings decodes and validates a settings YAML document.
func ParseSettings(data []byte) (models.Settings, error) {
	var s models.Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return models.Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return models.Settings{}, err
	}
	return s, nil
}
