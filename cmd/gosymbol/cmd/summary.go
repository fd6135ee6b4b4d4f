package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dbsmedya/gosymbol/internal/config"
	"github.com/dbsmedya/gosymbol/internal/report"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize methods per type",
	Long: `Summary extracts the methods of an assembly and aggregates them per
containing type: method count, public methods, methods without a body and
total IL instructions, followed by a totals row.

Example:
  gosymbol summary --assembly Sample.dll --symbols Sample.pdb -o table`,
	RunE: runSummary,
}

func init() {
	addInputFlags(summaryCmd)
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	records, err := s.service.Extract(cmd.Context(), s.payloads)
	if err != nil {
		return err
	}

	sum := report.Summarize(records)
	if s.cfg.Output.Format == config.FormatTable {
		return report.WriteSummary(cmd.OutOrStdout(), sum, s.colorize())
	}
	return report.WriteJSON(cmd.OutOrStdout(), sum, s.cfg.Output.Pretty)
}
