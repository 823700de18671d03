package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/app"
	"github.com/abhisek/adaptest/internal/routing"
	"github.com/abhisek/adaptest/internal/session"
	"github.com/abhisek/adaptest/internal/testdef"
)

var takeCmd = &cobra.Command{
	Use:   "take [test.json]",
	Short: "Take a test in the terminal",
	Long: "Start a new attempt of the given test, or resume the attempt saved under\n" +
		"the storage key when no file is given.",
	Args: cobra.MaximumNArgs(1),
	RunE: runTake,
}

func init() {
	takeCmd.Flags().String("section-type", "", "Start at the entry section of this type (verbal or quantitative)")
	takeCmd.Flags().String("mode", string(session.ModeTest), "Attempt mode: test or study")
	takeCmd.Flags().Bool("practice", false, "Practice mode: no countdown")
}

func runTake(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	log, closeLog, err := cfg.FileLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	e := newEngine(st, cfg.StorageKey, studyAids(st), log)
	defer e.Close()

	if len(args) == 0 {
		found, err := e.Resume(ctx)
		if err != nil {
			return fmt.Errorf("resume %s: %w", cfg.StorageKey, err)
		}
		if !found || e.Snapshot().Test == nil {
			return fmt.Errorf("no saved attempt under key %q; pass a test file to start one", cfg.StorageKey)
		}
		return app.Run(app.Options{Engine: e, Logger: log})
	}

	t, err := testdef.Load(args[0])
	if err != nil {
		return err
	}
	for _, w := range routing.Warnings(t) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: section %s leaves scores %v unrouted\n", w.SectionID, w.Scores)
	}

	sectionType, _ := cmd.Flags().GetString("section-type")
	mode, _ := cmd.Flags().GetString("mode")
	practice, _ := cmd.Flags().GetBool("practice")
	opts := session.InitOptions{
		SectionType: testdef.SectionType(sectionType),
		Mode:        session.Mode(mode),
		Practice:    practice,
	}
	if !opts.Mode.Valid() {
		return fmt.Errorf("--mode: unknown mode %q", mode)
	}
	if opts.SectionType != "" && !opts.SectionType.Valid() {
		return fmt.Errorf("--section-type: unknown section type %q", sectionType)
	}

	if err := e.InitTest(ctx, t, opts); err != nil {
		return err
	}
	return app.Run(app.Options{Engine: e, Logger: log})
}
