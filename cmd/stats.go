package cmd

import (
	"fmt"
	"maps"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recent attempts and review counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		session, _ := cmd.Flags().GetString("session")

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		events, err := st.EventRepo().QuerySessionEvents(ctx, store.QueryOpts{Limit: limit, SessionID: session})
		if err != nil {
			return fmt.Errorf("query session events: %w", err)
		}
		counts, err := st.EventRepo().ReviewCounts(ctx)
		if err != nil {
			return fmt.Errorf("query review counts: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, "No attempts recorded.")
		} else {
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSESSION\tEVENT\tSECTION\tSCORE")
			for _, ev := range events {
				score := ""
				if ev.Action == store.ActionSectionComplete || ev.Action == store.ActionTestComplete {
					score = fmt.Sprintf("%d/%d (%d%%)", ev.Correct, ev.Total, ev.Percentage)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					ev.Timestamp.Local().Format(time.DateTime), shortID(ev.SessionID), ev.Action, ev.SectionID, score)
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}

		if len(counts) > 0 {
			fmt.Fprintln(out)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUESTION\tREVIEWS")
			for _, id := range slices.Sorted(maps.Keys(counts)) {
				fmt.Fprintf(w, "%s\t%d\n", id, counts[id])
			}
			return w.Flush()
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().Int("limit", 20, "Maximum number of events to show (0 = all)")
	statsCmd.Flags().String("session", "", "Only show events of this session id")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
