package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mockdroid/mockdroid/internal/harness"
	"github.com/mockdroid/mockdroid/internal/recorder"
	"github.com/mockdroid/mockdroid/internal/store"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	Port     int
	Scenario string
	Archive  string
}

// NewServeCommand creates the serve command: it starts the mock device
// agent HTTP server and blocks until interrupted.
func NewServeCommand(root *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mock device agent HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Port, "port", "p", 8001, "port to listen on")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "scenario file to pre-load")
	cmd.Flags().StringVar(&opts.Archive, "archive", "", "SQLite file to archive recorded commands to")

	return cmd
}

func runServe(opts *ServeOptions) error {
	logger := slog.Default()

	recOpts := []recorder.Option{recorder.WithLogger(logger)}
	if opts.Archive != "" {
		st, err := store.Open(opts.Archive)
		if err != nil {
			return fmt.Errorf("open command archive: %w", err)
		}
		defer st.Close()
		recOpts = append(recOpts, recorder.WithArchive(st))
		logger.Info("archiving commands", "path", opts.Archive)
	}

	h := harness.New(
		harness.WithLogger(logger),
		harness.WithRecorder(recorder.New(recOpts...)),
	)

	if opts.Scenario != "" {
		if _, _, err := h.LoadScenario(opts.Scenario); err != nil {
			return fmt.Errorf("pre-load scenario: %w", err)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: h.Handler(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("mock device agent listening", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server: %w", err)

	case sig := <-shutdown:
		logger.Info("shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		logger.Info("server stopped")
	}
	return nil
}
