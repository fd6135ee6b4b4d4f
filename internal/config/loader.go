package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "gosymbol.yaml"

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Read the config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadOrDefault loads configPath, except that a missing file at the default
// path yields DefaultConfig. An explicitly named file must exist.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath
	}
	if configPath == DefaultPath {
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			substituteEnvVars(cfg)
			return cfg, nil
		}
	}
	return Load(configPath)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)
	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars expands environment variables in path-like fields.
func substituteEnvVars(cfg *Config) {
	cfg.Extraction.StageDir = expandEnvVar(cfg.Extraction.StageDir)
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// Overrides carries CLI flag values. Empty fields leave the file value alone.
type Overrides struct {
	LogLevel  string
	LogFormat string
	Staging   string
	StageDir  string
	Output    string
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-empty values are applied.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Logging.Format = o.LogFormat
	}
	if o.Staging != "" {
		c.Extraction.Staging = o.Staging
	}
	if o.StageDir != "" {
		c.Extraction.StageDir = expandEnvVar(o.StageDir)
	}
	if o.Output != "" {
		c.Output.Format = o.Output
	}
}
