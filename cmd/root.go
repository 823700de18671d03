package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/config"
	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/scoring"
	"github.com/abhisek/adaptest/internal/store"
)

var (
	cfg    config.Config
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "adaptest",
	Short: "Adaptive multi-stage test engine",
	Long: "adaptest runs timed, section-adaptive tests defined in JSON. Take a test in the\n" +
		"terminal, or serve the engine over HTTP for other front ends.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Database file (sqlite) or DSN (postgres); overrides ADAPTEST_DB")
	rootCmd.PersistentFlags().String("driver", "", "Database driver: sqlite or postgres; overrides ADAPTEST_DB_DRIVER")
	rootCmd.PersistentFlags().String("key", "", "Storage key of the attempt; overrides ADAPTEST_STORAGE_KEY")

	rootCmd.AddCommand(takeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(cardsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads .env and the environment, then applies flag overrides.
func loadConfig(cmd *cobra.Command) error {
	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if d, _ := cmd.Flags().GetString("driver"); d != "" {
		c.DBDriver = d
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		c.DBPath = p
	}
	if k, _ := cmd.Flags().GetString("key"); k != "" {
		c.StorageKey = k
	}
	if c.DBDriver == store.DriverPostgres && c.DBPath == "" {
		return fmt.Errorf("--db: a DSN is required for postgres")
	}

	cfg = c
	logger = c.Logger(os.Stderr)
	slog.SetDefault(logger)
	return nil
}

// resolveDBPath returns the --db / ADAPTEST_DB value, falling back to the
// default XDG path for sqlite.
func resolveDBPath() (string, error) {
	if cfg.DBDriver == store.DriverPostgres {
		return cfg.DBPath, nil
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, store.EnsureDir(cfg.DBPath)
	}
	return store.DefaultDBPath()
}

func openStore() (*store.Store, error) {
	dsn, err := resolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func scorer() scoring.Scorer {
	return scoring.Scorer{Numeric: scoring.NumericPolicy{Tolerance: cfg.NumericTolerance}}
}

// studyAids returns the flashcards, bookmarks and notes shared by every
// attempt stored in st.
func studyAids(st *store.Store) *engine.StudyAids {
	return engine.NewStudyAids(st.SnapshotRepo(), cfg.StudyAidsKey)
}

// newEngine builds an engine persisting to st under key.
func newEngine(st *store.Store, key string, aids *engine.StudyAids, log *slog.Logger) *engine.Engine {
	return engine.New(engine.Options{
		StorageKey: key,
		Snapshots:  st.SnapshotRepo(),
		Events:     st.EventRepo(),
		StudyAids:  aids,
		Scorer:     scorer(),
		Logger:     log,
		PruneEvery: cfg.PruneEvery,
		PruneKeep:  cfg.SnapshotKeep,
	})
}

// resumeEngine loads the attempt stored under the configured key.
func resumeEngine(cmd *cobra.Command, st *store.Store) (*engine.Engine, error) {
	e := newEngine(st, cfg.StorageKey, studyAids(st), logger)
	found, err := e.Resume(cmd.Context())
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("resume %s: %w", cfg.StorageKey, err)
	}
	if !found {
		e.Close()
		return nil, fmt.Errorf("no saved attempt under key %q", cfg.StorageKey)
	}
	return e, nil
}
