package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gosymbol/internal/config"
	"github.com/dbsmedya/gosymbol/internal/report"
)

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List every method of an assembly",
	Long: `Methods loads the assembly, checks it against its symbol file and prints
one record per method in type order then declaration order.

Each record carries the fully qualified name, the containing class, the
access modifier bitmask, parameter and return types, and the IL instruction
count (0 for methods without a body).

Example:
  gosymbol methods --assembly Sample.dll --symbols Sample.pdb
  gosymbol methods -a Sample.dll -s Sample.pdb -o table`,
	RunE: runMethods,
}

func init() {
	addInputFlags(methodsCmd)
	rootCmd.AddCommand(methodsCmd)
}

func runMethods(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	records, err := s.service.Extract(cmd.Context(), s.payloads)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch s.cfg.Output.Format {
	case config.FormatTable:
		err = report.WriteTable(out, records, s.colorize())
	default:
		err = report.WriteJSON(out, records, s.cfg.Output.Pretty)
	}
	if err != nil {
		return fmt.Errorf("failed to write methods: %w", err)
	}
	return nil
}
