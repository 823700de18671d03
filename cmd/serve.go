package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/api"
	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/jobs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address; overrides ADAPTEST_HTTP_ADDR")
}

func runServe(cmd *cobra.Command, args []string) error {
	if a, _ := cmd.Flags().GetString("addr"); a != "" {
		cfg.HTTPAddr = a
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	// Every session starts from, and writes back to, the same study aids.
	aids := studyAids(st)
	reg := api.NewRegistry(func(key string) *engine.Engine {
		return newEngine(st, key, aids, logger.With("session_id", key))
	}, st.SnapshotRepo())
	defer reg.Close()

	pruner := jobs.NewPruner(st.SnapshotRepo(), cfg.SnapshotKeep, cfg.PruneInterval, logger)
	if err := pruner.Start(); err != nil {
		return err
	}
	defer pruner.Stop()

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewServer(api.Options{
			Registry:    reg,
			Logger:      logger,
			CORSOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "driver", cfg.DBDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
