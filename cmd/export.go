package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/report"
)

var exportCmd = &cobra.Command{
	Use:   "export <results.xlsx>",
	Short: "Export the saved attempt's results to a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		e, err := resumeEngine(cmd, st)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := report.WriteWorkbook(args[0], e.Snapshot(), scorer()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Wrote", args[0])
		return nil
	},
}
