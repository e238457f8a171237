package config

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"study-companion/models"
)

//go:embed gamification.toml
var defaultGamification []byte

// DefaultGamificationSettings decodes the bundled gamification config. It is used
// when the store holds no settings document and by the seed route.
func DefaultGamificationSettings() (models.GamificationSettings, error) {
	var s models.GamificationSettings
	if err := toml.NewDecoder(bytes.NewReader(defaultGamification)).Decode(&s); err != nil {
		return models.GamificationSettings{}, fmt.Errorf("decode gamification defaults: %w", err)
	}
	s.Normalize()
	return s, nil
}
