package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"relastore/internal/config"
	"relastore/internal/storage"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// app is the state shared by every subcommand once the root has loaded the
// configuration and connected to the database.
type app struct {
	cfgFile string

	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
	store  *storage.Store
}

// NewRootCmd builds the relastore command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "relastore",
		Short:         "Store files as rows of a relational table",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./relastore.yaml or $HOME/.relastore/relastore.yaml)")

	root.AddCommand(
		newInitCmd(a),
		newListCmd(a),
		newStatCmd(a),
		newPutCmd(a),
		newGetCmd(a),
		newMoveCmd(a),
		newCopyCmd(a),
		newRemoveCmd(a),
		newImportCmd(a),
		newExportCmd(a),
	)
	return root
}

// Execute runs the command tree with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}

	handler := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Level:           level,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
	})
	a.logger = slog.New(handler)
	slog.SetDefault(a.logger)

	if cfg.File != "" {
		a.logger.Debug("Using config file", "path", cfg.File)
	}

	opts, err := cfg.StoreOptions(a.logger)
	if err != nil {
		return err
	}

	db, err := cfg.OpenDB(cmd.Context())
	if err != nil {
		return err
	}
	a.db = db

	store, err := storage.New(db, cfg.Store.Table, opts...)
	if err != nil {
		_ = db.Close()
		return err
	}
	a.store = store
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
