package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gosymbol/internal/failure"
	"github.com/dbsmedya/gosymbol/internal/report"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that an assembly parses and matches its symbols",
	Long: `Verify loads the assembly and its symbol file without projecting any
methods. It reports the module name, the runtime version, the number of types
and the matched symbol identity.

Checks performed:
  - PE container and CLI header
  - Metadata root, streams and tables
  - Symbol file format and debug identity

Example:
  gosymbol verify --assembly Sample.dll --symbols Sample.pdb`,
	RunE: runVerify,
}

func init() {
	addInputFlags(verifyCmd)
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	out := cmd.OutOrStdout()
	module, err := s.service.Load(cmd.Context(), s.payloads)
	if err != nil {
		_ = report.Status(out, false, fmt.Sprintf("%s: %v", failure.KindName(err), err), s.colorize())
		return err
	}

	fmt.Fprintf(out, "Module:   %s\n", module.Name)
	fmt.Fprintf(out, "Runtime:  %s\n", module.RuntimeVersion)
	fmt.Fprintf(out, "Types:    %d\n", len(module.Types))
	fmt.Fprintf(out, "Methods:  %d\n", module.MethodCount())
	fmt.Fprintf(out, "Symbols:  %s (age %d)\n", module.Symbols, module.Symbols.Age)
	if module.Symbols.Path != "" {
		fmt.Fprintf(out, "PDB path: %s\n", module.Symbols.Path)
	}
	return report.Status(out, true, "assembly matches its symbols", s.colorize())
}
