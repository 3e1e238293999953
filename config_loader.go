package esotx

import (
	"fmt"

	"github.com/arloliu/fuda"
)

// LoadConfig loads TelemetryConfig from a file path.
// It supports YAML and JSON formats.
// Environment variables are also parsed and override file values.
func LoadConfig(path string) (*TelemetryConfig, error) {
	var cfg TelemetryConfig
	if err := fuda.LoadFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("esotx: load config %s: %w", path, err)
	}

	return &cfg, nil
}

// ParseConfig parses TelemetryConfig from a byte slice.
// It supports YAML and JSON formats (auto-detected).
// Environment variables are also parsed and override file values.
func ParseConfig(data []byte) (*TelemetryConfig, error) {
	var cfg TelemetryConfig
	if err := fuda.LoadBytes(data, &cfg); err != nil {
		return nil, fmt.Errorf("esotx: parse config: %w", err)
	}

	return &cfg, nil
}
