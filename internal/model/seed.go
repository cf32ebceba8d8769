package model

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// DefaultSeed returns a fresh copy of the built-in feed.
func DefaultSeed() Collection {
	c, err := ParseSeed(seedYAML)
	if err != nil {
		// the embedded file is part of the build
		panic(fmt.Sprintf("model: bad embedded seed: %v", err))
	}
	return c
}

// LoadSeedFile reads a YAML seed from disk, for users who want their own defaults.
func LoadSeedFile(path string) (Collection, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(b)
}

// ParseSeed decodes and validates a YAML list of items.
func ParseSeed(b []byte) (Collection, error) {
	var c Collection
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("seed %w", err)
	}
	if c == nil {
		c = Collection{}
	}
	return c, nil
}
