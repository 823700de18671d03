package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the saved attempt",
	Long: "Discard the attempt saved under the storage key. Bookmarks, notes and\n" +
		"flashcard progress are kept unless --all is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if all {
			for _, key := range []string{cfg.StorageKey, cfg.StudyAidsKey} {
				if err := st.SnapshotRepo().Delete(cmd.Context(), key); err != nil {
					return fmt.Errorf("delete snapshots: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted everything stored under %q and %q.\n", cfg.StorageKey, cfg.StudyAidsKey)
			return nil
		}

		e, err := resumeEngine(cmd, st)
		if err != nil {
			return err
		}
		defer e.Close()
		e.ResetTest(cmd.Context())
		if w := e.PersistWarning(); w != nil {
			return fmt.Errorf("save reset: %w", w)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Attempt reset.")
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("all", false, "Also delete bookmarks, notes and flashcards")
}
