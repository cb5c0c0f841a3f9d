package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"massupload/internal/config"
	"massupload/internal/infrastructure"
	"massupload/internal/services"
	"massupload/internal/store"
	"massupload/internal/upload"
	"massupload/internal/uploadtypes"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "massupload",
		Short:         "Validate and load bulk data from spreadsheets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newTemplateCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newTypesCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// runtime is the part of the service a command needs: the store and an
// inline upload service.
type runtime struct {
	cfg     *config.Config
	db      *store.DB
	uploads *services.UploadService
	logger  *slog.Logger
}

func openRuntime(ctx context.Context, cmd *cobra.Command, progress upload.ProgressReporter) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := infrastructure.NewLogger(cmd.ErrOrStderr(), cfg.Logging.Level)

	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	registry, err := uploadtypes.NewRegistry(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	uploads := services.NewUploadService(services.UploadServiceDeps{
		Pipeline: upload.NewPipeline(registry, upload.WithLogger(logger)),
		Log:      store.NewUploadLogRepository(db),
		Progress: progress,
		Config:   cfg.Upload,
		Logger:   logger,
	})
	return &runtime{cfg: cfg, db: db, uploads: uploads, logger: logger}, nil
}

func (rt *runtime) Close() error {
	return rt.db.Close()
}
