package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/spacedrep"
)

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Review flashcards kept across attempts",
}

var cardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every rated question with its review status",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		aids, _, err := studyAids(st).Load(cmd.Context())
		if err != nil {
			return err
		}

		cards := aids.Flashcards.All()
		if len(cards) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No flashcards yet.")
			return nil
		}
		ids := slices.Sorted(maps.Keys(cards))
		now := time.Now()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "QUESTION\tLEVEL\tSTATUS\tREVIEWS\tNEXT REVIEW")
		for _, id := range ids {
			p := cards[id]
			fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n", id, p.MasteryLevel, p.Status(now), p.ReviewCount, p.NextReview.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var cardsDueCmd = &cobra.Command{
	Use:   "due",
	Short: "List questions due for review, most overdue first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		aids, _, err := studyAids(st).Load(cmd.Context())
		if err != nil {
			return err
		}

		due := aids.Flashcards.Due(time.Now())
		if len(due) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing due.")
			return nil
		}
		for _, id := range due {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var cardsRateCmd = &cobra.Command{
	Use:   "rate <question-id> <level>",
	Short: "Record a review with a mastery level from 0 to 5",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("level %q: %w", args[1], spacedrep.ErrInvalidLevel)
		}

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

		p, err := e.Rate(cmd.Context(), args[0], level)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: level %d, next review %s\n", p.QuestionID, p.MasteryLevel, p.NextReview.Local().Format(time.DateTime))
		if w := e.PersistWarning(); w != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
		}
		return nil
	},
}

func init() {
	cardsCmd.AddCommand(cardsListCmd)
	cardsCmd.AddCommand(cardsDueCmd)
	cardsCmd.AddCommand(cardsRateCmd)
}
