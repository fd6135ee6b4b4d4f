package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gosymbol/internal/config"
	"github.com/dbsmedya/gosymbol/internal/failure"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile   string
	logLevel  string
	logFormat string
	staging   string
	stageDir  string
	output    string
	noColor   bool
)

// Input flags shared by the extraction commands
var (
	assemblyPath string
	symbolsPath  string
)

var rootCmd = &cobra.Command{
	Use:   "gosymbol",
	Short: "Managed assembly method extractor",
	Long: `Extract every method of a .NET assembly together with its signature,
access modifiers and IL instruction count.

The assembly is checked against its symbol file (portable or Windows PDB)
before anything is reported, so a stale PDB is refused rather than silently
ignored.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Exit codes per failure kind.
const (
	ExitOK                = 0
	ExitError             = 1
	ExitMissingInput      = 2
	ExitImageCorrupt      = 3
	ExitSymbolsMismatched = 4
	ExitIOFailure         = 5
)

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch failure.KindName(err) {
	case "MissingInput":
		return ExitMissingInput
	case "ImageCorrupt":
		return ExitImageCorrupt
	case "SymbolsMismatched":
		return ExitSymbolsMismatched
	case "IOFailure":
		return ExitIOFailure
	}
	return ExitError
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(ExitCode(err))
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultPath,
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Extraction overrides
	rootCmd.PersistentFlags().StringVar(&staging, "staging", "",
		"Override payload staging mode (memory, disk)")
	rootCmd.PersistentFlags().StringVar(&stageDir, "stage-dir", "",
		"Override directory used by disk staging")

	// Output overrides
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "",
		"Override output format (json, table)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable colored table output")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() config.Overrides {
	return config.Overrides{
		LogLevel:  logLevel,
		LogFormat: logFormat,
		Staging:   staging,
		StageDir:  stageDir,
		Output:    output,
	}
}

// addInputFlags registers --assembly and --symbols on c.
func addInputFlags(c *cobra.Command) {
	c.Flags().StringVarP(&assemblyPath, "assembly", "a", "",
		"Path to the managed assembly (.dll or .exe)")
	c.Flags().StringVarP(&symbolsPath, "symbols", "s", "",
		"Path to the matching symbol file (.pdb)")
}
