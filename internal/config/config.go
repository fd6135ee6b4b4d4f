// Package config provides configuration structures and loading for gosymbol.
package config

import "os"

// Staging modes.
const (
	StagingMemory = "memory"
	StagingDisk   = "disk"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatTable = "table"
)

// DefaultMaxPayloadBytes caps a single staged payload at 256 MiB.
const DefaultMaxPayloadBytes int64 = 256 << 20

// Config represents the complete application configuration.
type Config struct {
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// ExtractionConfig controls how payloads are staged before parsing.
type ExtractionConfig struct {
	Staging         string `yaml:"staging" mapstructure:"staging"`     // memory or disk
	StageDir        string `yaml:"stage_dir" mapstructure:"stage_dir"` // disk staging directory
	MaxPayloadBytes int64  `yaml:"max_payload_bytes" mapstructure:"max_payload_bytes"`
}

// OutputConfig controls how reports are rendered.
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // json or table
	Pretty bool   `yaml:"pretty" mapstructure:"pretty"`
	Color  bool   `yaml:"color" mapstructure:"color"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Extraction: ExtractionConfig{
			Staging:         StagingMemory,
			StageDir:        os.TempDir(),
			MaxPayloadBytes: DefaultMaxPayloadBytes,
		},
		Output: OutputConfig{
			Format: FormatJSON,
			Pretty: true,
			Color:  true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
