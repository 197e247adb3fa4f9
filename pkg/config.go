package pkg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RebuildConfig holds the rebuild options that can be supplied from a YAML
// file instead of flags. Flag values win over file values when both are set.
type RebuildConfig struct {
	// Alignment is the file placement boundary in bytes
	Alignment uint64 `yaml:"alignment"`
	// RebuildSystemData regenerates Game.toc and ISO.hdr from the tree
	RebuildSystemData *bool `yaml:"rebuild_systemdata"`
}

// DefaultRebuildConfig returns the documented defaults
func DefaultRebuildConfig() RebuildConfig {
	rebuild := true
	return RebuildConfig{
		Alignment:         DefaultAlignment,
		RebuildSystemData: &rebuild,
	}
}

// LoadRebuildConfig reads and validates a rebuild configuration file
func LoadRebuildConfig(path string) (RebuildConfig, error) {
	config := DefaultRebuildConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate enforces the alignment floor
func (c *RebuildConfig) Validate() error {
	if c.Alignment < MinAlignment {
		return fmt.Errorf("alignment must be at least %d bytes, got %d", MinAlignment, c.Alignment)
	}
	return nil
}
