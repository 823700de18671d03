package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/routing"
	"github.com/abhisek/adaptest/internal/testdef"
)

var validateCmd = &cobra.Command{
	Use:   "validate <test.json>...",
	Short: "Check test definitions",
	Long: "Validate test documents against the schema and structural rules, and warn\n" +
		"about achievable scores that no routing rule covers.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			t, err := testdef.Load(path)
			if err != nil {
				failed++
				fmt.Fprintf(out, "%s: invalid\n", path)
				var ve *testdef.ValidationError
				if errors.As(err, &ve) {
					for _, p := range ve.Problems {
						fmt.Fprintf(out, "  - %s\n", p)
					}
				} else {
					fmt.Fprintf(out, "  - %v\n", err)
				}
				continue
			}
			fmt.Fprintf(out, "%s: ok (%s, %d sections, %d questions)\n", path, t.ID, len(t.Sections), t.QuestionCount())
			for _, w := range routing.Warnings(t) {
				fmt.Fprintf(out, "  warning: section %s leaves scores %v unrouted; they end the test\n", w.SectionID, w.Scores)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d test files invalid", failed, len(args))
		}
		return nil
	},
}
